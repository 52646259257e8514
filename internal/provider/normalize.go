package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeClaude implements §4.C's Claude response normalizer.
func NormalizeClaude(raw []byte, nowUnix int64) (*Response, error) {
	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	var texts []string
	var toolCalls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			args := string(block.Input)
			if len(block.Input) > 0 && block.Input[0] == '"' {
				var s string
				if err := json.Unmarshal(block.Input, &s); err == nil {
					args = s
				}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      block.Name,
					Arguments: args,
				},
			})
		}
	}

	finish := "stop"
	switch resp.StopReason {
	case "max_tokens":
		finish = "length"
	case "tool_use":
		finish = "tool_calls"
	case "stop_sequence", "end_turn":
		finish = "stop"
	default:
		if resp.StopReason != "" {
			finish = resp.StopReason
		}
	}
	if len(toolCalls) > 0 {
		finish = "tool_calls"
	}

	return &Response{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: nowUnix,
		Model:   resp.Model,
		Choices: []Choice{{
			Index: 0,
			Message: Message{
				Role:      "assistant",
				Content:   strings.Join(texts, "\n\n"),
				ToolCalls: toolCalls,
			},
			FinishReason: finish,
		}},
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// NormalizeGemini implements §4.C's Gemini response normalizer.
func NormalizeGemini(raw []byte, model string, nowUnix int64) (*Response, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string          `json:"text"`
					Thought      bool            `json:"thought"`
					FunctionCall json.RawMessage `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}
	cand := resp.Candidates[0]

	var texts []string
	var toolCalls []ToolCall
	for i, part := range cand.Content.Parts {
		if part.Thought {
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if len(part.FunctionCall) > 0 {
			var fc struct {
				Name string          `json:"name"`
				Args json.RawMessage `json:"args"`
			}
			if err := json.Unmarshal(part.FunctionCall, &fc); err == nil {
				toolCalls = append(toolCalls, ToolCall{
					ID:       fmt.Sprintf("tool_call_%d", i),
					Type:     "function",
					Function: FunctionCall{Name: fc.Name, Arguments: string(fc.Args)},
				})
			}
		}
	}

	finish := "stop"
	switch cand.FinishReason {
	case "MAX_TOKENS":
		finish = "length"
	case "STOP", "FINISH_REASON_UNSPECIFIED", "":
		finish = "stop"
	default:
		finish = "stop"
	}
	if len(toolCalls) > 0 {
		finish = "tool_calls"
	}

	total := resp.UsageMetadata.TotalTokenCount
	if total == 0 {
		total = resp.UsageMetadata.PromptTokenCount + resp.UsageMetadata.CandidatesTokenCount
	}

	return &Response{
		Object:  "chat.completion",
		Created: nowUnix,
		Model:   model,
		Choices: []Choice{{
			Index: 0,
			Message: Message{
				Role:      "assistant",
				Content:   strings.Join(texts, ""),
				ToolCalls: toolCalls,
			},
			FinishReason: finish,
		}},
		Usage: &Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      total,
		},
	}, nil
}

// NormalizeOpenAIFamily passes the response through unchanged — the OpenAI
// family already returns an OpenAI-compatible envelope (§4.C).
func NormalizeOpenAIFamily(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Normalize dispatches to the correct normalizer for source.
func Normalize(source Source, raw []byte, model string, nowUnix int64) (*Response, error) {
	switch source {
	case SourceClaude:
		return NormalizeClaude(raw, nowUnix)
	case SourceMakerSuite:
		return NormalizeGemini(raw, model, nowUnix)
	default:
		return NormalizeOpenAIFamily(raw)
	}
}
