package charcard

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func blankPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestWriteThenReadRoundTripsCharacterJSON(t *testing.T) {
	original := blankPNG(t)
	characterJSON := `{"name":"Alice","description":"a test character"}`

	written, err := Write(original, characterJSON)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(written)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// V3 takes precedence on read and carries the stamped spec fields, so
	// compare the readable payload rather than byte-for-byte equality.
	if !strings.Contains(got, `"name":"Alice"`) {
		t.Fatalf("unexpected round-tripped character data: %s", got)
	}
	if !strings.Contains(got, `"spec":"chara_card_v3"`) {
		t.Fatalf("expected V3 spec marker in round-tripped data: %s", got)
	}
}

func TestWriteReplacesExistingCharacterChunks(t *testing.T) {
	original := blankPNG(t)

	first, err := Write(original, `{"name":"First"}`)
	if err != nil {
		t.Fatalf("first Write: %v", err)
	}
	second, err := Write(first, `{"name":"Second"}`)
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := Read(second)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(got, `"name":"Second"`) {
		t.Fatalf("expected the second write to replace the first, got %s", got)
	}
	if strings.Contains(got, "First") {
		t.Fatalf("expected no trace of the first character's data, got %s", got)
	}

	chunks, err := parseChunks(second)
	if err != nil {
		t.Fatalf("parseChunks: %v", err)
	}
	textChunks := 0
	for _, c := range chunks {
		if c.typ == chunkTypeText {
			textChunks++
		}
	}
	if textChunks != 2 {
		t.Fatalf("expected exactly 2 tEXt chunks (chara + ccv3), got %d", textChunks)
	}
}

func TestReadRejectsNonPNGData(t *testing.T) {
	if _, err := Read([]byte("not a png")); err == nil {
		t.Fatal("expected an error for non-PNG input")
	}
}

func TestReadRejectsPNGWithoutCharacterData(t *testing.T) {
	plain := blankPNG(t)
	if _, err := Read(plain); err == nil {
		t.Fatal("expected an error for a PNG with no character tEXt chunk")
	}
}
