package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// tiktokenEncodingFor resolves the BPE ranks for a canonical tiktoken-family
// identifier, grounded on the teacher's own tiktoken-go usage in
// internal/llm/memory.go (EncodingForModel with a gpt-4o fallback).
func tiktokenEncodingFor(canonical string) (*tiktoken.Tiktoken, error) {
	model := canonical
	if model == DefaultFallbackModel || model == "gpt-3.5-turbo-0301" {
		model = "gpt-3.5-turbo"
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.EncodingForModel("gpt-4o")
		if err != nil {
			return nil, domainerr.Wrap(domainerr.InternalError, "load tiktoken encoding", err)
		}
	}
	return enc, nil
}

// countOpenAIMessages implements the legacy per-message token accounting
// OpenAI's cookbook documents for chat completions: each message costs a
// fixed overhead (tokens_per_message), plus every field it carries (role,
// content, name, tool_calls) encoded and counted individually, with an
// extra per-name adjustment and a final priming allowance.
// gpt-3.5-turbo-0301 uses the older, slightly more expensive constants;
// every later chat model uses the current ones.
func countOpenAIMessages(enc *tiktoken.Tiktoken, canonical string, messages []Message) int {
	tokensPerMessage := 3
	tokensPerName := 1
	if canonical == "gpt-3.5-turbo-0301" {
		tokensPerMessage = 4
		tokensPerName = -1
	}

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(msg.Role, nil, nil))
		total += len(enc.Encode(msg.Content, nil, nil))
		if msg.Name != "" {
			total += len(enc.Encode(msg.Name, nil, nil))
			total += tokensPerName
		}
		if msg.ToolCallsJSON != "" {
			total += len(enc.Encode(msg.ToolCallsJSON, nil, nil))
		}
	}
	total += 3 // every reply is primed with <|start|>assistant<|message|>

	if canonical == "gpt-3.5-turbo-0301" {
		total += 9 // legacy surcharge documented for the 0301 snapshot
	}
	if total < 0 {
		total = 0
	}
	return total
}
