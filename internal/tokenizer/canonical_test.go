package tokenizer

import "testing"

func TestCanonicalIsIdempotent(t *testing.T) {
	models := []string{
		"gpt-4o-mini", "gpt-4-32k-0613", "claude-3-5-sonnet-latest", "llama3-70b",
		"mistral-large", "gemini-1.5-pro", "qwen2-72b", "command-r-plus",
		"", "  ", "some-unknown-model-xyz",
	}
	for _, m := range models {
		first := Canonical(m)
		second := Canonical(first)
		if first != second {
			t.Errorf("Canonical(%q) = %q, but Canonical(%q) = %q (not idempotent)", m, first, first, second)
		}
	}
}

func TestCanonicalEmptyFallsBackToDefault(t *testing.T) {
	if got := Canonical(""); got != DefaultFallbackModel {
		t.Fatalf("expected default fallback for empty model, got %q", got)
	}
	if got := Canonical("   "); got != DefaultFallbackModel {
		t.Fatalf("expected default fallback for blank model, got %q", got)
	}
}

func TestCanonicalPrefersMoreSpecificMatch(t *testing.T) {
	if got := Canonical("llama-3-8b"); got != "llama3" {
		t.Fatalf("expected llama-3-8b to route to llama3 before llama, got %q", got)
	}
	if got := Canonical("codellama-7b"); got != "llama" {
		t.Fatalf("expected codellama-7b to route to the generic llama family, got %q", got)
	}
	if got := Canonical("gpt-3.5-turbo-0301"); got != "gpt-3.5-turbo-0301" {
		t.Fatalf("expected exact legacy snapshot match, got %q", got)
	}
}

func TestFamilyOfClassifiesKnownModels(t *testing.T) {
	cases := map[string]family{
		"gpt-4o":     familyTiktoken,
		"claude":     familyWebTokenizer,
		"llama":      familySentencePiece,
		"command-r":  familyWebTokenizer,
		"gemma":      familySentencePiece,
		"deepseek":   familyWebTokenizer,
	}
	for model, want := range cases {
		if got := familyOf(model); got != want {
			t.Errorf("familyOf(%q) = %v, want %v", model, got, want)
		}
	}
}
