package chatstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// windowReadChunkBytes is the block size used when seeking backward through
// a payload file to collect its tail lines.
const windowReadChunkBytes = 64 * 1024

func payloadNotFound(path string) error {
	return domainerr.New(domainerr.NotFound, "chat payload not found: "+path)
}

func mapOpenExistingError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return payloadNotFound(path)
	}
	return domainerr.Wrap(domainerr.InternalError, "open chat payload file "+path, err)
}

func openExistingPayloadFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mapOpenExistingError(path, err)
	}
	return f, nil
}

func readExistingPayloadMetadata(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, payloadNotFound(path)
		}
		return nil, domainerr.Wrap(domainerr.InternalError, "read chat payload metadata "+path, err)
	}
	return info, nil
}

func decodeJSONLLineBytes(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", domainerr.New(domainerr.InvalidData, "JSONL payload is not valid UTF-8")
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}

// readFirstLineAndEndOffset reads the JSONL header line (the first line of
// the file) and returns it along with the byte offset immediately after its
// trailing newline.
func readFirstLineAndEndOffset(path string) (string, uint64, error) {
	f, err := openExistingPayloadFile(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	buf := make([]byte, 8192)
	var collected []byte
	var offset uint64

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if idx := bytes.IndexByte(buf[:n], '\n'); idx >= 0 {
				collected = append(collected, buf[:idx]...)
				offset += uint64(idx + 1)

				line, decodeErr := decodeJSONLLineBytes(collected)
				if decodeErr != nil {
					return "", 0, decodeErr
				}
				if strings.TrimSpace(line) == "" {
					return "", 0, domainerr.New(domainerr.InvalidData, "chat payload header line is empty")
				}
				return line, offset, nil
			}

			collected = append(collected, buf[:n]...)
			offset += uint64(n)
		}

		if readErr == io.EOF {
			if len(collected) == 0 {
				return "", 0, domainerr.New(domainerr.InvalidData, "empty JSONL file")
			}
			line, decodeErr := decodeJSONLLineBytes(collected)
			if decodeErr != nil {
				return "", 0, decodeErr
			}
			if strings.TrimSpace(line) == "" {
				return "", 0, domainerr.New(domainerr.InvalidData, "chat payload header line is empty")
			}
			return line, offset, nil
		}
		if readErr != nil {
			return "", 0, domainerr.Wrap(domainerr.InternalError, "read chat payload header "+path, readErr)
		}
	}
}

// extractIntegritySlugFromHeaderLine pulls chat_metadata.integrity out of a
// header line with gjson, skipping a full unmarshal of the header object —
// this runs on every windowed save, so it stays on the cheap path.
func extractIntegritySlugFromHeaderLine(line string) (string, bool, error) {
	if !gjson.Valid(line) {
		return "", false, domainerr.New(domainerr.InvalidData, "parse chat payload header JSON")
	}
	result := gjson.Get(line, "chat_metadata.integrity")
	if !result.Exists() || result.String() == "" {
		return "", false, nil
	}
	return result.String(), true, nil
}

// readTailLinesWithOffsets walks backward from endPosition in
// windowReadChunkBytes-sized blocks, stopping once at least maxLines
// complete lines have been collected or startBound is reached, and returns
// each retained line paired with its starting byte offset.
func readTailLinesWithOffsets(path string, startBound, endPosition uint64, maxLines int) ([]offsetLine, error) {
	if maxLines == 0 || endPosition <= startBound {
		return nil, nil
	}

	f, err := openExistingPayloadFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pos := endPosition
	var blocks [][]byte
	newlineCount := 0
	blocksStart := pos

	for pos > startBound && newlineCount <= maxLines {
		available := pos - startBound
		readSize := available
		if readSize > windowReadChunkBytes {
			readSize = windowReadChunkBytes
		}

		pos -= readSize
		if _, err := f.Seek(int64(pos), io.SeekStart); err != nil {
			return nil, domainerr.Wrap(domainerr.InternalError, "seek chat payload file "+path, err)
		}

		buf := make([]byte, readSize)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, domainerr.Wrap(domainerr.InternalError, "read chat payload file "+path, err)
		}

		newlineCount += bytes.Count(buf, []byte{'\n'})
		blocks = append(blocks, buf)
		blocksStart = pos
	}

	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}

	var data []byte
	for _, block := range blocks {
		data = append(data, block...)
	}

	type rawLine struct {
		offset uint64
		data   []byte
	}
	var rawLines []rawLine
	lineStart := 0
	for index, b := range data {
		if b != '\n' {
			continue
		}
		rawLines = append(rawLines, rawLine{offset: blocksStart + uint64(lineStart), data: data[lineStart:index]})
		lineStart = index + 1
	}
	if lineStart < len(data) {
		rawLines = append(rawLines, rawLine{offset: blocksStart + uint64(lineStart), data: data[lineStart:]})
	}

	if blocksStart > startBound && len(rawLines) > 0 {
		seekAt := blocksStart - 1
		if _, err := f.Seek(int64(seekAt), io.SeekStart); err != nil {
			return nil, domainerr.Wrap(domainerr.InternalError, "seek chat payload file "+path, err)
		}
		var b [1]byte
		if _, err := io.ReadFull(f, b[:]); err != nil {
			return nil, domainerr.Wrap(domainerr.InternalError, "read chat payload file "+path, err)
		}
		if b[0] != '\n' {
			rawLines = rawLines[1:]
		}
	}

	lines := make([]offsetLine, 0, len(rawLines))
	for _, rl := range rawLines {
		if len(rl.data) == 0 {
			continue
		}
		text, err := decodeJSONLLineBytes(rl.data)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, offsetLine{offset: rl.offset, line: text})
	}

	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	return lines, nil
}

type offsetLine struct {
	offset uint64
	line   string
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "create chat payload directory "+dir, err)
	}
	return nil
}

func writeJSONLLines(f *os.File, firstLine string, lines []string) error {
	if strings.TrimSpace(firstLine) == "" {
		return domainerr.New(domainerr.InvalidData, "chat payload header line is empty")
	}
	if _, err := f.WriteString(firstLine + "\n"); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "write chat payload header", err)
	}
	return writeJSONLLinesAtEnd(f, lines)
}

func writeJSONLLinesAtEnd(f *os.File, lines []string) error {
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if first {
			first = false
		} else if _, err := f.WriteString("\n"); err != nil {
			return domainerr.Wrap(domainerr.InternalError, "write chat payload newline", err)
		}
		if _, err := f.WriteString(line); err != nil {
			return domainerr.Wrap(domainerr.InternalError, "write chat payload line", err)
		}
	}
	return nil
}

func replaceFile(tempPath, targetPath string) error {
	if err := os.Rename(tempPath, targetPath); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "move chat payload file "+targetPath, err)
	}
	return nil
}

func verifyCursorOffsetIsLineBoundary(path string, offset uint64) error {
	if offset == 0 {
		return nil
	}
	f, err := openExistingPayloadFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset-1), io.SeekStart); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "seek chat payload file "+path, err)
	}
	var b [1]byte
	if _, err := io.ReadFull(f, b[:]); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "read chat payload file "+path, err)
	}
	if b[0] != '\n' {
		return domainerr.New(domainerr.InvalidData, "cursor offset is not at a JSONL line boundary for "+path)
	}
	return nil
}

// ReadTail reads the newest maxLines body lines of the payload file at path.
func ReadTail(path string, maxLines int) (Tail, error) {
	info, err := readExistingPayloadMetadata(path)
	if err != nil {
		return Tail{}, err
	}

	header, headerEndOffset, err := readFirstLineAndEndOffset(path)
	if err != nil {
		return Tail{}, err
	}
	endPosition := uint64(info.Size())

	lines, err := readTailLinesWithOffsets(path, headerEndOffset, endPosition, maxLines)
	if err != nil {
		return Tail{}, err
	}

	cursorOffset := headerEndOffset
	if len(lines) > 0 {
		cursorOffset = lines[0].offset
	}

	body := make([]string, len(lines))
	for i, l := range lines {
		body[i] = l.line
	}

	return Tail{
		Header:        header,
		Lines:         body,
		Cursor:        cursorFromFileInfo(cursorOffset, info),
		HasMoreBefore: cursorOffset > headerEndOffset,
	}, nil
}

// ReadBefore reads up to maxLines body lines immediately preceding cursor,
// rejecting the call if cursor's signature no longer matches the file on
// disk (the file changed since the cursor was issued).
func ReadBefore(path string, cursor Cursor, maxLines int) (Chunk, error) {
	info, err := readExistingPayloadMetadata(path)
	if err != nil {
		return Chunk{}, err
	}
	if err := verifyCursorSignature(path, cursor, info); err != nil {
		return Chunk{}, err
	}

	_, headerEndOffset, err := readFirstLineAndEndOffset(path)
	if err != nil {
		return Chunk{}, err
	}

	if cursor.Offset > uint64(info.Size()) {
		return Chunk{}, domainerr.New(domainerr.InvalidData, "cursor offset is out of bounds for "+path)
	}
	endPosition := cursor.Offset
	if endPosition < headerEndOffset {
		return Chunk{}, domainerr.New(domainerr.InvalidData, "cursor offset is before chat payload body for "+path)
	}

	lines, err := readTailLinesWithOffsets(path, headerEndOffset, endPosition, maxLines)
	if err != nil {
		return Chunk{}, err
	}

	newOffset := headerEndOffset
	if len(lines) > 0 {
		newOffset = lines[0].offset
	}

	body := make([]string, len(lines))
	for i, l := range lines {
		body[i] = l.line
	}

	return Chunk{
		Lines:         body,
		Cursor:        cursorFromFileInfo(newOffset, info),
		HasMoreBefore: newOffset > headerEndOffset,
	}, nil
}

// SaveWindowed appends lines to the payload file at path, replacing its
// header if it changed. cursor must match the file's current signature
// unless the file does not exist yet. Unless force is true, a header whose
// chat_metadata.integrity slug differs from the existing file's slug is
// rejected — this is the guard against two independent writers silently
// clobbering each other's chat history.
//
// Two write paths exist: when the header is unchanged, the file is
// truncated to cursor.Offset and the new lines are appended in place (fast
// path); when the header changed, the whole file is rewritten through a
// temp file and renamed into place (slow path), since every existing byte
// offset downstream of the header is now invalid anyway.
func SaveWindowed(path string, cursor Cursor, header string, lines []string, force bool) (Cursor, error) {
	headerIntegrity, hasIntegrity, err := extractIntegritySlugFromHeaderLine(header)
	if err != nil {
		return Cursor{}, err
	}
	hasLines := false
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			hasLines = true
			break
		}
	}

	existingInfo, err := readExistingPayloadMetadata(path)
	if err != nil && !domainerr.Is(err, domainerr.NotFound) {
		return Cursor{}, err
	}

	if existingInfo == nil {
		if err := ensureParentDir(path); err != nil {
			return Cursor{}, err
		}
		tempPath := path + ".tmp"
		f, createErr := os.Create(tempPath)
		if createErr != nil {
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "create chat payload file "+tempPath, createErr)
		}
		if err := writeJSONLLines(f, header, lines); err != nil {
			f.Close()
			return Cursor{}, err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "flush chat payload file", err)
		}
		if err := f.Close(); err != nil {
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "flush chat payload file", err)
		}
		if err := replaceFile(tempPath, path); err != nil {
			return Cursor{}, err
		}

		info, err := readExistingPayloadMetadata(path)
		if err != nil {
			return Cursor{}, err
		}
		headerEndOffset := uint64(len(header)) + 1
		return cursorFromFileInfo(headerEndOffset, info), nil
	}

	if err := verifyCursorSignature(path, cursor, existingInfo); err != nil {
		return Cursor{}, err
	}

	existingHeader, existingHeaderEndOffset, err := readFirstLineAndEndOffset(path)
	if err != nil {
		return Cursor{}, err
	}
	headerOnly := existingHeaderEndOffset == uint64(existingInfo.Size())

	if cursor.Offset > uint64(existingInfo.Size()) {
		return Cursor{}, domainerr.New(domainerr.InvalidData, "cursor offset is out of bounds for "+path)
	}
	if cursor.Offset < existingHeaderEndOffset {
		return Cursor{}, domainerr.New(domainerr.InvalidData, "cursor offset is before chat payload body for "+path)
	}

	if !force && hasIntegrity {
		existingIntegrity, existingHasIntegrity, err := extractIntegritySlugFromHeaderLine(existingHeader)
		if err != nil {
			return Cursor{}, err
		}
		if existingHasIntegrity && existingIntegrity != headerIntegrity {
			return Cursor{}, domainerr.New(domainerr.InvalidData, "integrity")
		}
	}

	headerChanged := headersDiffer(existingHeader, header)

	if !headerChanged {
		if !(headerOnly && cursor.Offset == existingHeaderEndOffset) {
			if err := verifyCursorOffsetIsLineBoundary(path, cursor.Offset); err != nil {
				return Cursor{}, err
			}
		}

		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return Cursor{}, mapOpenExistingError(path, err)
		}
		defer f.Close()

		if err := f.Truncate(int64(cursor.Offset)); err != nil {
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "truncate chat payload file "+path, err)
		}

		endsWithNewline := true
		if cursor.Offset != 0 {
			if _, err := f.Seek(int64(cursor.Offset-1), io.SeekStart); err != nil {
				return Cursor{}, domainerr.Wrap(domainerr.InternalError, "seek chat payload file "+path, err)
			}
			var b [1]byte
			if _, err := io.ReadFull(f, b[:]); err != nil {
				return Cursor{}, domainerr.Wrap(domainerr.InternalError, "read chat payload file "+path, err)
			}
			endsWithNewline = b[0] == '\n'
		}

		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "seek chat payload file "+path, err)
		}

		if hasLines && !endsWithNewline {
			if headerOnly && cursor.Offset == existingHeaderEndOffset {
				if _, err := f.WriteString("\n"); err != nil {
					return Cursor{}, domainerr.Wrap(domainerr.InternalError, "write chat payload newline "+path, err)
				}
			} else {
				return Cursor{}, domainerr.New(domainerr.InvalidData, "truncated chat payload does not end with newline for "+path)
			}
		}

		if err := writeJSONLLinesAtEnd(f, lines); err != nil {
			return Cursor{}, err
		}
		if err := f.Sync(); err != nil {
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "flush chat payload file", err)
		}
	} else {
		if !(headerOnly && cursor.Offset == existingHeaderEndOffset) {
			if err := verifyCursorOffsetIsLineBoundary(path, cursor.Offset); err != nil {
				return Cursor{}, err
			}
		}
		if err := ensureParentDir(path); err != nil {
			return Cursor{}, err
		}

		tempPath := path + ".tmp"
		out, err := os.Create(tempPath)
		if err != nil {
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "create chat payload file "+tempPath, err)
		}

		if _, err := out.WriteString(header + "\n"); err != nil {
			out.Close()
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "write chat payload header", err)
		}

		if cursor.Offset > existingHeaderEndOffset {
			src, err := openExistingPayloadFile(path)
			if err != nil {
				out.Close()
				return Cursor{}, err
			}
			if _, err := src.Seek(int64(existingHeaderEndOffset), io.SeekStart); err != nil {
				src.Close()
				out.Close()
				return Cursor{}, domainerr.Wrap(domainerr.InternalError, "seek chat payload file "+path, err)
			}
			if _, err := io.CopyN(out, src, int64(cursor.Offset-existingHeaderEndOffset)); err != nil {
				src.Close()
				out.Close()
				return Cursor{}, domainerr.Wrap(domainerr.InternalError, "copy chat payload file "+path, err)
			}
			src.Close()
		}

		if err := writeJSONLLinesAtEnd(out, lines); err != nil {
			out.Close()
			return Cursor{}, err
		}
		if err := out.Sync(); err != nil {
			out.Close()
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "flush chat payload file", err)
		}
		if err := out.Close(); err != nil {
			return Cursor{}, domainerr.Wrap(domainerr.InternalError, "flush chat payload file", err)
		}
		if err := replaceFile(tempPath, path); err != nil {
			return Cursor{}, err
		}
	}

	info, err := readExistingPayloadMetadata(path)
	if err != nil {
		return Cursor{}, err
	}

	var newCursorOffset uint64
	switch {
	case headerChanged:
		newHeaderEndOffset := uint64(len(header)) + 1
		preservedPrefix := uint64(0)
		if cursor.Offset > existingHeaderEndOffset {
			preservedPrefix = cursor.Offset - existingHeaderEndOffset
		}
		newCursorOffset = newHeaderEndOffset + preservedPrefix
	case headerOnly && hasLines:
		newCursorOffset = cursor.Offset + 1
	default:
		newCursorOffset = cursor.Offset
	}

	return cursorFromFileInfo(newCursorOffset, info), nil
}

func headersDiffer(existing, incoming string) bool {
	var a, b any
	errA := json.Unmarshal([]byte(existing), &a)
	errB := json.Unmarshal([]byte(incoming), &b)
	if errA == nil && errB == nil {
		return !jsonEqual(a, b)
	}
	return existing != incoming
}

func jsonEqual(a, b any) bool {
	aBytes, errA := json.Marshal(a)
	bBytes, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aBytes) == string(bBytes)
}
