// Package chatstore implements the Chat Payload Storage Engine (§4.E): an
// append-only JSONL-per-chat store with windowed/cursor-based reads and
// writes, optimistic concurrency via file-signature cursors, header-integrity
// verification, and throttled rolling backups.
package chatstore

import (
	"os"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// Cursor is the optimistic-concurrency token handed back from every read or
// save: Offset is the byte position of the first body line the cursor
// covers, and Size/ModifiedMillis are a "file signature" that must still
// match at save time or the save is rejected as InvalidData.
type Cursor struct {
	Offset         uint64
	Size           uint64
	ModifiedMillis int64
}

// Tail is the result of reading the newest lines of a payload file.
type Tail struct {
	Header       string
	Lines        []string
	Cursor       Cursor
	HasMoreBefore bool
}

// Chunk is the result of reading the lines immediately before a cursor.
type Chunk struct {
	Lines         []string
	Cursor        Cursor
	HasMoreBefore bool
}

func fileSignature(info os.FileInfo) (uint64, int64) {
	return uint64(info.Size()), info.ModTime().UnixMilli()
}

func cursorFromFileInfo(offset uint64, info os.FileInfo) Cursor {
	size, modifiedMillis := fileSignature(info)
	return Cursor{Offset: offset, Size: size, ModifiedMillis: modifiedMillis}
}

func verifyCursorSignature(path string, cursor Cursor, info os.FileInfo) error {
	size, modifiedMillis := fileSignature(info)
	if cursor.Size != size || cursor.ModifiedMillis != modifiedMillis {
		return domainerr.New(domainerr.InvalidData, "cursor signature mismatch for "+path)
	}
	return nil
}
