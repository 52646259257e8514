package chatstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRawFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
}

func TestSaveWindowedCreatesNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")

	header := `{"user_name":"User","chat_metadata":{"integrity":"v1"}}`
	cursor, err := SaveWindowed(path, Cursor{}, header, []string{`{"mes":"hi"}`}, false)
	if err != nil {
		t.Fatalf("SaveWindowed: %v", err)
	}
	if cursor.Offset != uint64(len(header))+1 {
		t.Fatalf("expected cursor offset just past the header, got %d", cursor.Offset)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := header + "\n" + `{"mes":"hi"}`
	if string(raw) != want {
		t.Fatalf("got %q, want %q", raw, want)
	}
}

func TestSaveWindowedAppendsWhenHeaderUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")
	header := `{"user_name":"User"}`

	cursor, err := SaveWindowed(path, Cursor{}, header, []string{`{"mes":"one"}`}, false)
	if err != nil {
		t.Fatalf("initial SaveWindowed: %v", err)
	}

	info, _ := os.Stat(path)
	cursor = cursorFromFileInfo(cursor.Offset, info)

	// The cursor marks the start of the caller's window, so the save resends
	// every line from there on.
	cursor, err = SaveWindowed(path, cursor, header, []string{`{"mes":"one"}`, `{"mes":"two"}`}, false)
	if err != nil {
		t.Fatalf("append SaveWindowed: %v", err)
	}

	raw, _ := os.ReadFile(path)
	want := header + "\n" + `{"mes":"one"}` + "\n" + `{"mes":"two"}`
	if string(raw) != want {
		t.Fatalf("got %q, want %q", raw, want)
	}
	_ = cursor
}

func TestSaveWindowedRejectsStaleCursor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")
	header := `{"user_name":"User"}`

	_, err := SaveWindowed(path, Cursor{}, header, []string{`{"mes":"one"}`}, false)
	if err != nil {
		t.Fatalf("initial SaveWindowed: %v", err)
	}

	staleCursor := Cursor{Offset: uint64(len(header)) + 1, Size: 999999, ModifiedMillis: 1}
	_, err = SaveWindowed(path, staleCursor, header, []string{`{"mes":"two"}`}, false)
	if err == nil {
		t.Fatal("expected stale cursor signature to be rejected")
	}
	if !strings.Contains(err.Error(), "InvalidData") {
		t.Fatalf("expected InvalidData error, got %v", err)
	}
}

func TestSaveWindowedRewritesWhenHeaderChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")
	header := `{"v":1}`

	cursor, err := SaveWindowed(path, Cursor{}, header, []string{`{"mes":"one"}`}, false)
	if err != nil {
		t.Fatalf("initial SaveWindowed: %v", err)
	}
	info, _ := os.Stat(path)
	cursor = cursorFromFileInfo(cursor.Offset, info)

	newHeader := `{"v":2}`
	_, err = SaveWindowed(path, cursor, newHeader, []string{`{"mes":"one"}`, `{"mes":"two"}`}, false)
	if err != nil {
		t.Fatalf("header-changing SaveWindowed: %v", err)
	}

	raw, _ := os.ReadFile(path)
	want := newHeader + "\n" + `{"mes":"one"}` + "\n" + `{"mes":"two"}`
	if string(raw) != want {
		t.Fatalf("got %q, want %q", raw, want)
	}
}

func TestSaveWindowedRejectsIntegrityMismatchUnlessForced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")
	header := `{"chat_metadata":{"integrity":"abc"}}`

	cursor, err := SaveWindowed(path, Cursor{}, header, nil, false)
	if err != nil {
		t.Fatalf("initial SaveWindowed: %v", err)
	}
	info, _ := os.Stat(path)
	cursor = cursorFromFileInfo(cursor.Offset, info)

	conflictingHeader := `{"chat_metadata":{"integrity":"xyz"}}`
	_, err = SaveWindowed(path, cursor, conflictingHeader, []string{`{"mes":"hi"}`}, false)
	if err == nil {
		t.Fatal("expected integrity mismatch to be rejected without force")
	}

	_, err = SaveWindowed(path, cursor, conflictingHeader, []string{`{"mes":"hi"}`}, true)
	if err != nil {
		t.Fatalf("expected force=true to bypass the integrity check: %v", err)
	}
}

func TestReadTailReturnsNewestLinesAndCursor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")
	writeRawFile(t, path, "{\"header\":true}\n{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n")

	tail, err := ReadTail(path, 2)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	if tail.Header != `{"header":true}` {
		t.Fatalf("unexpected header %q", tail.Header)
	}
	if len(tail.Lines) != 2 || tail.Lines[0] != `{"n":2}` || tail.Lines[1] != `{"n":3}` {
		t.Fatalf("unexpected tail lines %v", tail.Lines)
	}
	if !tail.HasMoreBefore {
		t.Fatal("expected HasMoreBefore true since n:1 was excluded")
	}
}

func TestReadBeforeWalksBackwardFromCursor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")
	writeRawFile(t, path, "{\"header\":true}\n{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n")

	tail, err := ReadTail(path, 1)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	if len(tail.Lines) != 1 || tail.Lines[0] != `{"n":3}` {
		t.Fatalf("unexpected tail %v", tail.Lines)
	}

	chunk, err := ReadBefore(path, tail.Cursor, 2)
	if err != nil {
		t.Fatalf("ReadBefore: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != `{"n":1}` || chunk.Lines[1] != `{"n":2}` {
		t.Fatalf("unexpected chunk %v", chunk.Lines)
	}
	if chunk.HasMoreBefore {
		t.Fatal("expected no more lines before n:1")
	}
}

func TestReadTailMissingFileReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadTail(filepath.Join(dir, "missing.jsonl"), 10)
	if err == nil {
		t.Fatal("expected NotFound error for a missing payload file")
	}
	if !strings.Contains(err.Error(), "NotFound") {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}
