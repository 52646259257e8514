// Package secretstore persists named, ordered secret lists (API keys, reverse
// proxy passwords, …) to a single JSON file and enforces the "at most one
// active entry per key" invariant after every mutation.
package secretstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// Entry is one secret value in a named list. Exactly one entry per key is
// Active whenever the list is non-empty (§3 "Secret Entry").
type Entry struct {
	ID     string `json:"id"`
	Value  string `json:"value"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// migratedKey is excluded from any "active secrets" enumeration (§6).
const migratedKey = "_migrated"

// Store is the ordered-secret-list file. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string][]Entry
}

// Open loads an existing secrets file, or starts an empty store if none
// exists yet — the file is created on first Save.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string][]Entry)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, domainerr.Wrap(domainerr.InternalError, "read secrets file", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, domainerr.Wrap(domainerr.InvalidData, "parse secrets file", err)
	}
	return s, nil
}

// Active returns the single active entry for key, or (Entry{}, false) when none
// is set (or the key does not exist).
func (s *Store) Active(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.data[key] {
		if e.Active {
			return e, true
		}
	}
	return Entry{}, false
}

// List returns a copy of the ordered entries under key.
func (s *Store) List(key string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.data[key]))
	copy(out, s.data[key])
	return out
}

// Keys returns every key currently holding at least one entry, excluding the
// reserved migration marker.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if k == migratedKey || len(s.data[k]) == 0 {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Add appends a new entry under key, generating its id, and normalizes the
// list so it becomes the sole active entry when activate is true.
func (s *Store) Add(key, value, label string, activate bool) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{ID: uuid.NewString(), Value: value, Label: label, Active: activate}
	if activate {
		for i := range s.data[key] {
			s.data[key][i].Active = false
		}
	}
	s.data[key] = append(s.data[key], entry)
	s.normalize(key)
	return entry, s.persistLocked()
}

// SetActive makes the entry with the given id the sole active entry in key's
// list. Returns NotFound if no such entry exists.
func (s *Store) SetActive(key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.data[key]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			break
		}
	}
	if !found {
		return domainerr.New(domainerr.NotFound, "secret entry not found: "+id)
	}
	for i := range entries {
		entries[i].Active = entries[i].ID == id
	}
	return s.persistLocked()
}

// Remove deletes the entry with the given id from key's list, then
// normalizes so exactly one remaining entry (the first) stays active if the
// removed entry had been active.
func (s *Store) Remove(key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.data[key]
	idx := -1
	for i, e := range entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domainerr.New(domainerr.NotFound, "secret entry not found: "+id)
	}
	removedActive := entries[idx].Active
	entries = append(entries[:idx], entries[idx+1:]...)
	s.data[key] = entries
	if removedActive {
		s.normalize(key)
	}
	return s.persistLocked()
}

// normalize enforces "exactly one active entry iff the list is non-empty":
// if no entry is marked active, the first entry (if any) becomes active; if
// more than one is marked active, only the first survives.
func (s *Store) normalize(key string) {
	entries := s.data[key]
	activeSeen := false
	for i := range entries {
		if entries[i].Active {
			if activeSeen {
				entries[i].Active = false
				continue
			}
			activeSeen = true
		}
	}
	if !activeSeen && len(entries) > 0 {
		entries[0].Active = true
	}
}

func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return domainerr.Wrap(domainerr.InternalError, "marshal secrets file", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "create secrets directory", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "write secrets temp file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "rename secrets temp file", err)
	}
	return nil
}

// PatchValue updates a single entry's value in place on disk using sjson,
// avoiding a full re-marshal of the in-memory map for the common
// single-field-update path (e.g. rotating one API key).
func PatchValue(path, key string, index int, value string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domainerr.Wrap(domainerr.InternalError, "read secrets file", err)
	}
	pointer := key + "." + strconv.Itoa(index) + ".value"
	patched, err := sjson.SetBytes(raw, pointer, value)
	if err != nil {
		return domainerr.Wrap(domainerr.InternalError, "patch secrets file", err)
	}
	return os.WriteFile(path, patched, 0o600)
}
