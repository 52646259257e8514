package secretstore

import (
	"path/filepath"
	"testing"
)

func TestAddNormalizesSingleActiveEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first, err := store.Add("api_key_openai", "sk-1", "primary", true)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add("api_key_openai", "sk-2", "secondary", true); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries := store.List("api_key_openai")
	activeCount := 0
	for _, e := range entries {
		if e.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active entry, got %d", activeCount)
	}

	active, ok := store.Active("api_key_openai")
	if !ok || active.ID == first.ID {
		t.Fatalf("expected the second entry to win activation, got %+v ok=%v", active, ok)
	}
}

func TestRemoveActiveEntryPromotesNext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	store, _ := Open(path)

	a, _ := store.Add("api_key_claude", "v1", "a", true)
	_, _ = store.Add("api_key_claude", "v2", "b", false)

	if err := store.Remove("api_key_claude", a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	active, ok := store.Active("api_key_claude")
	if !ok {
		t.Fatalf("expected a promoted active entry after removal")
	}
	if active.Value != "v2" {
		t.Fatalf("expected remaining entry to become active, got %+v", active)
	}
}

func TestReopenRoundTripsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	store, _ := Open(path)
	if _, err := store.Add("api_key_deepseek", "sk-x", "", true); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	active, ok := reopened.Active("api_key_deepseek")
	if !ok || active.Value != "sk-x" {
		t.Fatalf("expected persisted entry to round-trip, got %+v ok=%v", active, ok)
	}
}
