package tokenizer

import (
	"encoding/json"
	"strings"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// backend is what a loaded, registered tokenizer exposes. Both the
// SentencePiece and web-tokenizer families are implemented by
// jsonVocabBackend below; the tiktoken family is backed directly by
// pkoukk/tiktoken-go (see tiktoken.go) and never goes through this interface.
type backend interface {
	Encode(text string) []uint32
	Decode(ids []uint32) string
}

// jsonVocabBackend is a greedy longest-match tokenizer over a JSON vocabulary
// of the shape {"vocab": {"token": id, ...}, "merges": [...]}. It is a
// pragmatic stand-in for the real SentencePiece protobuf / HuggingFace
// tokenizers.json formats the original Rust `miktik` crate decodes — the
// one stdlib-only piece of this package, since no pack example grounds a maintained pure-Go binding for either wire
// format and guessing at an unverified third-party API would be worse than
// an honest, explicit approximation.
type jsonVocabBackend struct {
	idByToken map[string]uint32
	tokenByID map[uint32]string
	maxTokLen int
}

func newJSONVocabBackend(raw []byte) (*jsonVocabBackend, error) {
	var doc struct {
		Vocab map[string]uint32 `json:"vocab"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "parse tokenizer vocabulary", err)
	}

	b := &jsonVocabBackend{idByToken: doc.Vocab, tokenByID: make(map[uint32]string, len(doc.Vocab))}
	for tok, id := range doc.Vocab {
		b.tokenByID[id] = tok
		if len(tok) > b.maxTokLen {
			b.maxTokLen = len(tok)
		}
	}
	if b.maxTokLen == 0 {
		b.maxTokLen = 1
	}
	return b, nil
}

// Encode performs a greedy longest-match scan over the vocabulary, falling
// back to one token per rune when no vocabulary entry matches — this keeps
// the backend total even for an empty/placeholder vocabulary.
func (b *jsonVocabBackend) Encode(text string) []uint32 {
	var ids []uint32
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		matched := false
		maxRunes := b.maxTokLen
		if maxRunes > len(runes)-i {
			maxRunes = len(runes) - i
		}
		for l := maxRunes; l >= 1; l-- {
			candidate := string(runes[i : i+l])
			if id, ok := b.idByToken[candidate]; ok {
				ids = append(ids, id)
				i += l
				matched = true
				break
			}
		}
		if !matched {
			ids = append(ids, approximateRuneID(runes[i]))
			i++
		}
	}
	return ids
}

func (b *jsonVocabBackend) Decode(ids []uint32) string {
	var sb strings.Builder
	for _, id := range ids {
		if tok, ok := b.tokenByID[id]; ok {
			sb.WriteString(tok)
			continue
		}
		sb.WriteRune(rune(id))
	}
	return sb.String()
}

// approximateRuneID gives unknown runes a stable synthetic id above the
// vocabulary range (Unicode code points top out under 0x110000).
func approximateRuneID(r rune) uint32 {
	return uint32(0x110000) + uint32(r)
}
