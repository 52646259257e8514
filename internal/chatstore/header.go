package chatstore

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// WithIntegrity stamps chat_metadata.integrity onto headerLine, creating
// chat_metadata if absent, and returns the re-serialized header. Every
// other field — and chat_metadata's own other keys — keeps its original
// position: a plain map[string]any round trip through encoding/json
// alphabetizes keys on marshal, which would needlessly churn the header's
// byte layout on every stamp. Used when a caller sets the integrity slug
// on a chat's first write (§6 "Integrity is a free-form slug").
func WithIntegrity(headerLine, slug string) (string, error) {
	header := orderedmap.New[string, any]()
	if err := json.Unmarshal([]byte(headerLine), header); err != nil {
		return "", domainerr.Wrap(domainerr.InvalidData, "parse chat payload header JSON", err)
	}

	meta := orderedmap.New[string, any]()
	if existing, ok := header.Get("chat_metadata"); ok {
		if nested, ok := existing.(*orderedmap.OrderedMap[string, any]); ok {
			meta = nested
		}
	}
	meta.Set("integrity", slug)
	header.Set("chat_metadata", meta)

	out, err := json.Marshal(header)
	if err != nil {
		return "", domainerr.Wrap(domainerr.InternalError, "serialize chat payload header", err)
	}
	return string(out), nil
}
