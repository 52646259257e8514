package provider

import (
	"encoding/json"
	"strings"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// buildClaudeRequest implements §4.B.2.
func buildClaudeRequest(req *GenerationRequest) (string, map[string]any, error) {
	if req.Model == "" {
		return "", nil, domainerr.New(domainerr.ValidationError, "claude request requires a model")
	}

	opts := req.Options
	body := map[string]any{"model": req.Model}

	if opts.UseSysprompt {
		if sys := concatSystemMessages(req.Messages); sys != "" {
			body["system"] = sys
		}
	}

	converted := convertClaudeMessages(req.Messages)
	if opts.AssistantPrefill != "" {
		converted = append(converted, claudeMessage{
			Role:    "assistant",
			Content: []claudeBlock{{Type: "text", Text: opts.AssistantPrefill}},
		})
	}
	if len(converted) == 0 {
		converted = append(converted, claudeMessage{
			Role:    "user",
			Content: []claudeBlock{{Type: "text", Text: ""}},
		})
	}

	maxTokens := 1024
	if req.MaxCompletionTokens != nil {
		maxTokens = *req.MaxCompletionTokens
	} else if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	body["max_tokens"] = maxTokens

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		body["top_k"] = *req.TopK
	}
	body["stream"] = req.Stream
	if len(req.Stop) > 0 {
		body["stop_sequences"] = req.Stop
	}

	if len(opts.Tools) > 0 {
		body["tools"] = claudeTools(opts.Tools)
	}
	if opts.JSONSchema != nil {
		schemaTool := map[string]any{
			"name":         opts.JSONSchema.Name,
			"input_schema": opts.JSONSchema.Value,
		}
		existing, _ := body["tools"].([]map[string]any)
		body["tools"] = append(existing, schemaTool)
		body["tool_choice"] = map[string]any{"type": "tool", "name": opts.JSONSchema.Name}
	} else if opts.ToolChoice != nil {
		body["tool_choice"] = claudeToolChoice(opts.ToolChoice)
	}

	if opts.EnableSystemPromptCache {
		applyClaudeCaching(converted, body, opts)
	}

	body["messages"] = converted
	return "/messages", body, nil
}

type claudeBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text,omitempty"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	CacheControl *claudeCache    `json:"cache_control,omitempty"`
}

type claudeCache struct {
	Type string `json:"type"`
	TTL  string `json:"ttl,omitempty"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

func concatSystemMessages(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role != "system" {
			continue
		}
		if text := contentToText(m.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func contentToText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []ContentPart:
		var b strings.Builder
		for _, p := range v {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		return b.String()
	default:
		return ""
	}
}

// convertClaudeMessages maps non-system canonical messages onto Claude's
// {role, content:[blocks]} shape (§4.B.2).
func convertClaudeMessages(messages []Message) []claudeMessage {
	var out []claudeMessage
	for _, m := range messages {
		switch m.Role {
		case "system":
			continue
		case "assistant":
			blocks := []claudeBlock{}
			if text := contentToText(m.Content); text != "" {
				blocks = append(blocks, claudeBlock{Type: "text", Text: text})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					quoted, _ := json.Marshal(tc.Function.Arguments)
					input = quoted
				}
				blocks = append(blocks, claudeBlock{
					Type: "tool_use", ID: tc.ID, Name: tc.Function.Name, Input: input,
				})
			}
			out = append(out, claudeMessage{Role: "assistant", Content: blocks})
		case "tool":
			text := "Tool `" + m.Name + "` result:\n" + contentToText(m.Content)
			out = append(out, claudeMessage{Role: "user", Content: []claudeBlock{{Type: "text", Text: text}}})
		default: // "user" and unknown roles
			out = append(out, claudeMessage{Role: "user", Content: []claudeBlock{{Type: "text", Text: contentToText(m.Content)}}})
		}
	}
	return out
}

func claudeTools(tools []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		schema := t.Function.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{}`)
		}
		entry := map[string]any{"name": t.Function.Name, "input_schema": schema}
		if t.Function.Description != "" {
			entry["description"] = t.Function.Description
		}
		out = append(out, entry)
	}
	return out
}

func claudeToolChoice(choice any) any {
	switch v := choice.(type) {
	case string:
		switch v {
		case "auto":
			return map[string]string{"type": "auto"}
		case "required":
			return map[string]string{"type": "any"}
		case "none":
			return nil
		}
	case map[string]any:
		if fn, ok := v["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok {
				return map[string]string{"type": "tool", "name": name}
			}
		}
	}
	return nil
}

// applyClaudeCaching implements the bottom-up depth walk described in §4.B.2
// and resolved by the §9 Open Question ("first transition only" semantics):
// depth increments once per role-boundary transition, walking from the end,
// skipping a trailing assistant_prefill message. Cache markers are placed at
// d == caching_at_depth and d == caching_at_depth+2.
func applyClaudeCaching(messages []claudeMessage, body map[string]any, opts ProviderOptions) {
	ttl := "5m"
	if opts.ExtendedTTL {
		ttl = "1h"
	}

	end := len(messages)
	if end > 0 && messages[end-1].Role == "assistant" && opts.AssistantPrefill != "" {
		end--
	}

	depth := 0
	for i := end - 1; i >= 0; i-- {
		isBoundary := i == end-1 || messages[i].Role != messages[i+1].Role
		if isBoundary && i != end-1 {
			depth++
		}
		if depth == opts.CachingAtDepth || depth == opts.CachingAtDepth+2 {
			markLastBlockCacheable(&messages[i], ttl)
		}
	}

	if opts.EnableSystemPromptCache {
		if sys, ok := body["system"].(string); ok && sys != "" {
			body["system"] = []claudeBlock{{Type: "text", Text: sys, CacheControl: &claudeCache{Type: "ephemeral", TTL: ttl}}}
		}
	}
}

func markLastBlockCacheable(msg *claudeMessage, ttl string) {
	if len(msg.Content) == 0 {
		return
	}
	msg.Content[len(msg.Content)-1].CacheControl = &claudeCache{Type: "ephemeral", TTL: ttl}
}
