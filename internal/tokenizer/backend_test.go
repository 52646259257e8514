package tokenizer

import "testing"

func TestJSONVocabBackendGreedyLongestMatch(t *testing.T) {
	b, err := newJSONVocabBackend([]byte(`{"vocab":{"he":1,"hello":2,"l":3,"o":4}}`))
	if err != nil {
		t.Fatalf("newJSONVocabBackend: %v", err)
	}

	ids := b.Encode("hello")
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected greedy match on the longest vocabulary entry, got %v", ids)
	}
}

func TestJSONVocabBackendFallsBackPerRune(t *testing.T) {
	b, err := newJSONVocabBackend([]byte(`{"vocab":{}}`))
	if err != nil {
		t.Fatalf("newJSONVocabBackend: %v", err)
	}

	ids := b.Encode("ab")
	if len(ids) != 2 {
		t.Fatalf("expected one synthetic id per rune against an empty vocabulary, got %d", len(ids))
	}
}

func TestJSONVocabBackendRoundTrips(t *testing.T) {
	b, err := newJSONVocabBackend([]byte(`{"vocab":{"foo":7,"bar":9}}`))
	if err != nil {
		t.Fatalf("newJSONVocabBackend: %v", err)
	}
	ids := b.Encode("foobar")
	if got := b.Decode(ids); got != "foobar" {
		t.Fatalf("expected round trip to reproduce the original text, got %q", got)
	}
}
