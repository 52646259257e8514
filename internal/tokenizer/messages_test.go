package tokenizer

import (
	"strings"
	"testing"
)

func TestToSentencePieceCountInputJoinsAllFields(t *testing.T) {
	got := toSentencePieceCountInput([]Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Name: "alice", Content: "hi"},
	})
	want := "system\n\nbe helpful\n\nuser\n\nalice\n\nhi"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestToWebTokenizerPromptUsesClaudePrefixes(t *testing.T) {
	got := toWebTokenizerPrompt([]Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "world"},
	})
	// The first message is forced to "user" regardless of its original role,
	// so it carries the Human: prefix rather than an empty one.
	if !strings.Contains(got, "\n\nHuman: sys") {
		t.Fatalf("expected the forced-to-user first message to carry the Human: prefix, got %q", got)
	}
	// The user message immediately preceding the first assistant turn is
	// retagged to FixHumMsg.
	if !strings.Contains(got, "\n\nFirst message: hello") {
		t.Fatalf("expected the message preceding the first assistant turn to carry the FixHumMsg prefix, got %q", got)
	}
	if !strings.Contains(got, "\n\nAssistant: world") {
		t.Fatalf("expected the assistant turn to carry its prefix, got %q", got)
	}
}

func TestToWebTokenizerPromptSkipsFixHumMsgAtIndexZero(t *testing.T) {
	got := toWebTokenizerPrompt([]Message{
		{Role: "system", Content: "be helpful"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you"},
	})
	// The first assistant message is at index 1, so its candidate index (0)
	// is the forced-to-user first message — it must not be retagged, and no
	// other message qualifies, so FixHumMsg never appears.
	if strings.Contains(got, "First message:") {
		t.Fatalf("expected no FixHumMsg retagging when the candidate index is 0, got %q", got)
	}
	if !strings.Contains(got, "\n\nHuman: be helpful") {
		t.Fatalf("expected the forced-to-user first message to carry the Human: prefix, got %q", got)
	}
}

func TestToWebTokenizerPromptExampleNamesUseShorthandPrefixes(t *testing.T) {
	got := toWebTokenizerPrompt([]Message{
		{Role: "system", Content: "be helpful"},
		{Role: "system", Name: "example_user", Content: "hi"},
		{Role: "system", Name: "example_assistant", Content: "hello"},
		{Role: "assistant", Content: "done"},
	})
	if !strings.Contains(got, "\n\nH: hi") || !strings.Contains(got, "\n\nA: hello") {
		t.Fatalf("expected H:/A: shorthand prefixes for named example messages, got %q", got)
	}
}
