package tokenizer

import "strings"

// Message is the counting-time view of a chat message: only the fields the
// token-counting algorithms below actually read. Callers translate from
// internal/provider.Message (or any other message shape) into this before
// calling Registry.CountMessages.
type Message struct {
	Role          string
	Name          string
	Content       string
	ToolCallsJSON string // raw JSON of any tool_calls array, empty when absent
}

// toSentencePieceCountInput flattens a message array into the single text
// blob a SentencePiece model counts, grounded on
// miktik_tokenizer_repository.rs::to_sentencepiece_count_input: every
// non-empty field of every message, joined with a blank line between
// messages.
func toSentencePieceCountInput(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		var fields []string
		if msg.Role != "" {
			fields = append(fields, msg.Role)
		}
		if msg.Name != "" {
			fields = append(fields, msg.Name)
		}
		if msg.Content != "" {
			fields = append(fields, msg.Content)
		}
		if msg.ToolCallsJSON != "" {
			fields = append(fields, msg.ToolCallsJSON)
		}
		parts = append(parts, strings.Join(fields, "\n\n"))
	}
	return strings.Join(parts, "\n\n")
}

// toWebTokenizerPrompt renders a message array the way the Claude
// web-tokenizer family counts it: a Human:/Assistant: transcript, with the
// first message forced to "user" (mirroring SillyTavern's convertClaudePrompt
// fixed-parameter path), named example_user/example_assistant system
// messages rendered with the shorthand H:/A: prefixes, and the user message
// immediately preceding the first assistant message (never index 0) retagged
// so it gets its own "First message: " prefix. Grounded on
// miktik_tokenizer_repository.rs::to_web_tokenizer_prompt:520-535.
func toWebTokenizerPrompt(messages []Message) string {
	type mapped struct {
		role    string
		name    string
		content string
	}

	rows := make([]mapped, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		if msg.ToolCallsJSON != "" {
			content += msg.ToolCallsJSON
		}
		role := msg.Role
		if role == "" {
			role = "system"
		}
		rows = append(rows, mapped{role: role, name: msg.Name, content: content})
	}

	if len(rows) == 0 {
		return ""
	}
	rows[0].role = "user"

	firstAssistantIndex := -1
	for i := 1; i < len(rows); i++ {
		if rows[i].role == "assistant" {
			firstAssistantIndex = i
			break
		}
	}
	if firstAssistantIndex >= 0 {
		candidateIndex := firstAssistantIndex - 1
		if candidateIndex != 0 && rows[candidateIndex].role == "user" {
			rows[candidateIndex].role = "FixHumMsg"
		}
	}

	var sb strings.Builder
	for i, row := range rows {
		var prefix string
		switch row.role {
		case "assistant":
			prefix = "\n\nAssistant: "
		case "user":
			prefix = "\n\nHuman: "
		case "system":
			switch {
			case i == 0:
				prefix = ""
			case row.name == "example_assistant":
				prefix = "\n\nA: "
			case row.name == "example_user":
				prefix = "\n\nH: "
			default:
				prefix = "\n\n"
			}
		case "FixHumMsg":
			prefix = "\n\nFirst message: "
		}

		sb.WriteString(prefix)
		if row.role != "system" && row.name != "" {
			sb.WriteString(row.name)
			sb.WriteString(": ")
		}
		sb.WriteString(row.content)
	}
	return sb.String()
}
