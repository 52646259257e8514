// Package charcard reads and writes the character-card JSON embedded in a
// PNG avatar's tEXt chunks — grounded on the teacher's
// infrastructure/persistence/png_utils.rs. It hands the chat store layer a
// character's raw V2/V3 JSON (and, from it, chat_id_hash) without needing a
// typed character model of its own.
package charcard

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	chunkTypeText = "tEXt"
	chunkTypeIEND = "IEND"
	keywordV2     = "chara"
	keywordV3     = "ccv3"
)

// chunk is one length-prefixed PNG chunk: a 4-byte ASCII type and its
// payload. The trailing CRC is recomputed on encode rather than carried,
// since every chunk charcard touches is either passed through unmodified
// (CRC preserved) or freshly built (CRC computed here).
type chunk struct {
	typ  string
	data []byte
}

// Read extracts the character JSON embedded in a character-card PNG. V3
// (ccv3) takes precedence over V2 (chara) when both are present, matching
// the teacher's read order.
func Read(pngData []byte) (string, error) {
	if mime := mimetype.Detect(pngData); mime.String() != "image/png" {
		return "", domainerr.New(domainerr.InvalidData, "not a PNG file")
	}

	chunks, err := parseChunks(pngData)
	if err != nil {
		return "", err
	}

	var v2Text, v3Text string
	var haveV2, haveV3 bool
	for _, c := range chunks {
		if c.typ != chunkTypeText {
			continue
		}
		keyword, text, ok := splitTextChunk(c.data)
		if !ok {
			continue
		}
		switch keyword {
		case keywordV3:
			v3Text, haveV3 = text, true
		case keywordV2:
			v2Text, haveV2 = text, true
		}
	}

	switch {
	case haveV3:
		return decodeBase64JSON(v3Text)
	case haveV2:
		return decodeBase64JSON(v2Text)
	default:
		return "", domainerr.New(domainerr.InvalidData, "PNG metadata does not contain character data")
	}
}

// Write embeds characterJSON into pngData as both a V2 (chara) and a V3
// (ccv3, with spec/spec_version stamped) tEXt chunk, removing any existing
// chara/ccv3 chunks first. New chunks are inserted immediately before IEND.
func Write(pngData []byte, characterJSON string) ([]byte, error) {
	chunks, err := parseChunks(pngData)
	if err != nil {
		return nil, err
	}

	filtered := chunks[:0]
	for _, c := range chunks {
		if c.typ == chunkTypeText {
			if keyword, _, ok := splitTextChunk(c.data); ok && (keyword == keywordV2 || keyword == keywordV3) {
				continue
			}
		}
		filtered = append(filtered, c)
	}
	chunks = filtered

	v2Base64, err := encodeBase64JSON(characterJSON)
	if err != nil {
		return nil, err
	}
	v2Chunk := chunk{typ: chunkTypeText, data: buildTextChunkData(keywordV2, v2Base64)}

	iendIndex := indexOfIEND(chunks)
	chunks = insertBefore(chunks, iendIndex, v2Chunk)
	iendIndex = indexOfIEND(chunks)

	if v3JSON, ok := withV3SpecFields(characterJSON); ok {
		v3Base64, err := encodeBase64JSON(v3JSON)
		if err == nil {
			v3Chunk := chunk{typ: chunkTypeText, data: buildTextChunkData(keywordV3, v3Base64)}
			chunks = insertBefore(chunks, iendIndex, v3Chunk)
		}
	}

	return encodeChunks(chunks), nil
}

func decodeBase64JSON(encoded string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", domainerr.Wrap(domainerr.InvalidData, "decode character card base64 payload", err)
	}
	return string(decoded), nil
}

func encodeBase64JSON(jsonText string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(jsonText)), nil
}

func splitTextChunk(data []byte) (keyword, text string, ok bool) {
	nul := bytes.IndexByte(data, 0)
	if nul < 0 {
		return "", "", false
	}
	return string(data[:nul]), string(data[nul+1:]), true
}

func buildTextChunkData(keyword, text string) []byte {
	data := make([]byte, 0, len(keyword)+1+len(text))
	data = append(data, keyword...)
	data = append(data, 0)
	data = append(data, text...)
	return data
}

func indexOfIEND(chunks []chunk) int {
	for i, c := range chunks {
		if c.typ == chunkTypeIEND {
			return i
		}
	}
	return len(chunks)
}

func insertBefore(chunks []chunk, index int, c chunk) []chunk {
	out := make([]chunk, 0, len(chunks)+1)
	out = append(out, chunks[:index]...)
	out = append(out, c)
	out = append(out, chunks[index:]...)
	return out
}

func parseChunks(pngData []byte) ([]chunk, error) {
	if len(pngData) < len(pngSignature) || !bytes.Equal(pngData[:len(pngSignature)], pngSignature) {
		return nil, domainerr.New(domainerr.InvalidData, "invalid PNG signature")
	}

	var chunks []chunk
	offset := len(pngSignature)
	for offset+8 <= len(pngData) {
		length := binary.BigEndian.Uint32(pngData[offset : offset+4])
		typ := string(pngData[offset+4 : offset+8])
		dataStart := offset + 8
		dataEnd := dataStart + int(length)
		if dataEnd+4 > len(pngData) {
			return nil, domainerr.New(domainerr.InvalidData, "truncated PNG chunk "+typ)
		}

		chunks = append(chunks, chunk{typ: typ, data: pngData[dataStart:dataEnd]})
		offset = dataEnd + 4 // skip the trailing CRC
		if typ == chunkTypeIEND {
			break
		}
	}
	return chunks, nil
}

func encodeChunks(chunks []chunk) []byte {
	var buf bytes.Buffer
	buf.Write(pngSignature)
	for _, c := range chunks {
		var lengthBytes, crcBytes [4]byte
		binary.BigEndian.PutUint32(lengthBytes[:], uint32(len(c.data)))
		buf.Write(lengthBytes[:])
		buf.WriteString(c.typ)
		buf.Write(c.data)

		hasher := crc32.NewIEEE()
		hasher.Write([]byte(c.typ))
		hasher.Write(c.data)
		binary.BigEndian.PutUint32(crcBytes[:], hasher.Sum32())
		buf.Write(crcBytes[:])
	}
	return buf.Bytes()
}
