package summaryindex

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherInvalidatesCacheEntryOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.jsonl")
	writeChatFile(t, path, `{"character_name":"Alice"}`+"\n"+`{"mes":"one"}`+"\n")

	idx := NewIndex(filepath.Join(dir, "index.json"))
	if _, err := idx.Summary(path, "alice", "main.jsonl"); err != nil {
		t.Fatalf("initial Summary: %v", err)
	}
	if _, ok := idx.cache.Get(path); !ok {
		t.Fatal("expected an initial cache entry")
	}

	w, err := NewWatcher(idx, dir, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(`{"character_name":"Alice"}`+"\n"+`{"mes":"one"}`+"\n"+`{"mes":"two"}`+"\n"), 0o644); err != nil {
		t.Fatalf("rewrite chat file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := idx.cache.Get(path); !ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected the watcher to invalidate the cache entry after the file changed")
}
