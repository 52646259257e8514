package chatstore

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestBackupsMaybeCopiesFileOnce(t *testing.T) {
	dir := t.TempDir()
	chatPath := filepath.Join(dir, "alice_chat.jsonl")
	writeRawFile(t, chatPath, "{\"header\":true}\n")

	backupsDir := filepath.Join(dir, "backups")
	b := NewBackups(backupsDir, time.Hour, 5, 50)

	if err := b.Maybe("alice", chatPath, "alice:chat"); err != nil {
		t.Fatalf("Maybe: %v", err)
	}
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one backup file, got %d", len(entries))
	}

	if err := b.Maybe("alice", chatPath, "alice:chat"); err != nil {
		t.Fatalf("second Maybe: %v", err)
	}
	entries, _ = os.ReadDir(backupsDir)
	if len(entries) != 1 {
		t.Fatalf("expected the throttle gate to suppress a second backup within the interval, got %d files", len(entries))
	}
}

func TestBackupsPruneKeepsMostRecentPerChat(t *testing.T) {
	dir := t.TempDir()
	b := NewBackups(dir, time.Hour, 2, 50)

	now := time.Now()
	for i := 0; i < 4; i++ {
		name := backupFileNameForTest("alice", "chat.jsonl", i)
		path := filepath.Join(dir, name)
		writeRawFile(t, path, "{}")
		mtime := now.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}
	// push the directory past maxTotal as well
	for i := 0; i < 60; i++ {
		writeRawFile(t, filepath.Join(dir, backupFileNameForTest("bob", "chat.jsonl", i+100)), "{}")
	}

	if err := b.pruneOldBackups(); err != nil {
		t.Fatalf("pruneOldBackups: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	aliceCount := 0
	for _, e := range entries {
		if key, ok := chatKeyFromBackupName(e.Name()); ok && key == "alice:chat.jsonl" {
			aliceCount++
		}
	}
	if aliceCount > 2 {
		t.Fatalf("expected at most 2 alice backups to survive pruning, got %d", aliceCount)
	}
}

func backupFileNameForTest(character, fileName string, seq int) string {
	return character + "_" + fileName + "_backup_seq" + strconv.Itoa(seq) + ".jsonl"
}

func TestChatKeyFromBackupName(t *testing.T) {
	key, ok := chatKeyFromBackupName("alice_chat.jsonl_backup_20260101-000000.000.jsonl")
	if !ok || key != "alice:chat.jsonl" {
		t.Fatalf("got key=%q ok=%v", key, ok)
	}
}
