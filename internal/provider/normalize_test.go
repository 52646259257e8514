package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeClaudeCollectsTextAndToolUse(t *testing.T) {
	raw := []byte(`{
		"id": "msg_1",
		"model": "claude-3-5-sonnet",
		"content": [
			{"type": "text", "text": "checking the weather"},
			{"type": "tool_use", "id": "toolu_1", "name": "weather", "input": {"city": "Paris"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	resp, err := NormalizeClaude(raw, 1000)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	msg := resp.Choices[0].Message
	require.Equal(t, "checking the weather", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "toolu_1", msg.ToolCalls[0].ID)
	require.Equal(t, "weather", msg.ToolCalls[0].Function.Name)
	require.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestNormalizeGeminiToolCallIDUsesPartIndex(t *testing.T) {
	raw := []byte(`{
		"candidates": [{
			"content": {"parts": [{"functionCall": {"name": "weather", "args": {"city": "Paris"}}}]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 2, "totalTokenCount": 5}
	}`)

	resp, err := NormalizeGemini(raw, "gemini-pro", 1000)
	require.NoError(t, err)
	require.Equal(t, "tool_call_0", resp.Choices[0].Message.ToolCalls[0].ID)
	require.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
}

func TestNormalizeGeminiDistinctCallsGetDistinctIDs(t *testing.T) {
	raw := []byte(`{
		"candidates": [{
			"content": {"parts": [
				{"functionCall": {"name": "weather", "args": {"city": "Paris"}}},
				{"functionCall": {"name": "weather", "args": {"city": "Berlin"}}}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"totalTokenCount": 5}
	}`)

	resp, err := NormalizeGemini(raw, "gemini-pro", 1000)
	require.NoError(t, err)
	calls := resp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 2)
	require.Equal(t, "tool_call_0", calls[0].ID)
	require.Equal(t, "tool_call_1", calls[1].ID)
}

func TestNormalizeGeminiRejectsEmptyCandidates(t *testing.T) {
	_, err := NormalizeGemini([]byte(`{"candidates": []}`), "gemini-pro", 1000)
	require.Error(t, err)
}

func TestNormalizeOpenAIFamilyPassesThrough(t *testing.T) {
	raw := []byte(`{"id": "chatcmpl-1", "model": "gpt-4o", "choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}]}`)
	resp, err := NormalizeOpenAIFamily(raw)
	require.NoError(t, err)
	require.Equal(t, "chatcmpl-1", resp.ID)
	require.Equal(t, "gpt-4o", resp.Model)
}
