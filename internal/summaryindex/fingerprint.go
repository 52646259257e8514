// Package summaryindex maintains, per chat file, a cached last-message
// summary plus a trigram bloom-filter fingerprint used to admit or reject
// candidate files during search — grounded on the teacher's
// file_chat_repository/summary.rs SummaryCache/SearchFingerprint.
package summaryindex

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// fingerprintWords is the bloom filter width: 64 uint64 words == 4096 bits.
const fingerprintWords = 64

// Fingerprint is a 4096-bit trigram bloom filter over a chat file's text.
// Membership tests are admissibility checks, not proofs: a true result
// means "might contain", a false result means "definitely does not".
type Fingerprint struct {
	Bits [fingerprintWords]uint64
}

// AddText folds every lowercased 3-rune sliding window of value into the
// filter. Strings shorter than 3 runes are hashed whole instead, matching
// the teacher's short-string fallback.
func (f *Fingerprint) AddText(value string) {
	for _, hash := range trigramHashes(value) {
		f.setHashed(hash)
	}
}

// MightMatchFragment reports whether every trigram of fragment is present
// in the filter. Fragments under 3 runes are always admitted, since they
// carry no trigram of their own to test.
func (f *Fingerprint) MightMatchFragment(fragment string) bool {
	if utf8.RuneCountInString(fragment) < 3 {
		return true
	}
	hashes := trigramHashes(fragment)
	if len(hashes) == 0 {
		return true
	}
	for _, hash := range hashes {
		if !f.hasHashed(hash) {
			return false
		}
	}
	return true
}

// MightMatchFragments reports whether every fragment individually passes
// MightMatchFragment — the search query is a conjunction of fragments.
func (f *Fingerprint) MightMatchFragments(fragments []string) bool {
	for _, fragment := range fragments {
		if !f.MightMatchFragment(fragment) {
			return false
		}
	}
	return true
}

func (f *Fingerprint) setHashed(hash uint64) {
	wordIndex, offset := bitPosition(hash)
	f.Bits[wordIndex] |= 1 << offset
}

func (f *Fingerprint) hasHashed(hash uint64) bool {
	wordIndex, offset := bitPosition(hash)
	return f.Bits[wordIndex]&(1<<offset) != 0
}

func bitPosition(hash uint64) (wordIndex int, offset uint) {
	bitCount := uint64(fingerprintWords) * 64
	bitIndex := hash % bitCount
	return int(bitIndex / 64), uint(bitIndex % 64)
}

// trigramHashes splits value into lowercased 3-rune sliding windows and
// blake2b-hashes each into a uint64. A value with fewer than 3 runes is
// hashed in its entirety as a single pseudo-trigram.
func trigramHashes(value string) []uint64 {
	lowered := strings.ToLower(value)
	runes := []rune(lowered)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) < 3 {
		return []uint64{hashRunes(runes)}
	}

	hashes := make([]uint64, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		hashes = append(hashes, hashRunes(runes[i:i+3]))
	}
	return hashes
}

func hashRunes(runes []rune) uint64 {
	buf := make([]byte, 4*len(runes))
	for i, r := range runes {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(r))
	}
	sum := blake2b.Sum256(buf)
	return binary.LittleEndian.Uint64(sum[:8])
}
