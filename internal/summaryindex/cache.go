package summaryindex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// indexSchemaVersion is bumped whenever the on-disk snapshot format changes
// incompatibly; older/newer snapshots are discarded rather than migrated.
const indexSchemaVersion = 1

// maxSearchCacheEntries bounds the search-results cache; once full it is
// cleared wholesale rather than evicted entry-by-entry, matching the
// teacher's simple reset-on-overflow policy.
const maxSearchCacheEntries = 128

// FileSignature pins a cache entry to the file state it was computed
// against, the same (size, modified_millis) pairing used by chatstore cursors.
type FileSignature struct {
	Size           uint64 `json:"size"`
	ModifiedMillis int64  `json:"modified_millis"`
}

// ChatSearchResult is the summary surfaced for one chat file: enough to
// render a chat-list row or a search hit without reopening the file.
type ChatSearchResult struct {
	CharacterName string          `json:"character_name"`
	FileName      string          `json:"file_name"`
	FileSize      uint64          `json:"file_size"`
	MessageCount  int             `json:"message_count"`
	Preview       string          `json:"preview"`
	Date          int64           `json:"date"`
	ChatID        *string         `json:"chat_id,omitempty"`
	ChatMetadata  json.RawMessage `json:"chat_metadata,omitempty"`
}

// SummaryCacheEntry bundles the cached summary with the fingerprint used to
// admit it during search and the file signature that validates the entry.
type SummaryCacheEntry struct {
	Signature   FileSignature
	Summary     ChatSearchResult
	Fingerprint Fingerprint
}

type searchCacheEntry struct {
	version uint64
	results []ChatSearchResult
}

// Cache is the process-wide summary index: one entry per chat file path,
// persisted to a JSON snapshot and invalidated by file signature mismatch.
// Grounded on the teacher's SummaryCache; one mutex guards the entries map,
// the search-result cache, and the dirty flag, matching §5's resource model.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]SummaryCacheEntry
	searchCache map[string]searchCacheEntry
	version     uint64
	indexPath   string
	loaded      bool
	dirty       bool
}

type snapshot struct {
	SchemaVersion int             `json:"schema_version"`
	Version       uint64          `json:"version"`
	Entries       []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Key         string                   `json:"key"`
	Signature   FileSignature            `json:"signature"`
	Summary     ChatSearchResult         `json:"summary"`
	Fingerprint [fingerprintWords]uint64 `json:"fingerprint"`
}

// NewCache constructs a Cache that persists to indexPath on Flush.
func NewCache(indexPath string) *Cache {
	return &Cache{
		entries:     make(map[string]SummaryCacheEntry),
		searchCache: make(map[string]searchCacheEntry),
		indexPath:   indexPath,
	}
}

// EnsureLoaded reads the on-disk snapshot on first call; later calls are
// no-ops. A missing, unreadable, unparseable, or schema-mismatched snapshot
// is treated as an empty index rather than an error — the index rebuilds
// lazily from scans.
func (c *Cache) EnsureLoaded() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	c.loaded = true

	raw, err := os.ReadFile(c.indexPath)
	if err != nil {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	if snap.SchemaVersion != indexSchemaVersion {
		return nil
	}

	c.version = snap.Version
	for _, e := range snap.Entries {
		c.entries[e.Key] = SummaryCacheEntry{
			Signature:   e.Signature,
			Summary:     e.Summary,
			Fingerprint: Fingerprint{Bits: e.Fingerprint},
		}
	}
	return nil
}

// Get returns the cached entry for key, if any.
func (c *Cache) Get(key string) (SummaryCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Set records entry under key, bumps the version, and marks the cache
// dirty so the next Flush persists it.
func (c *Cache) Set(key string, entry SummaryCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	c.bumpVersionLocked()
	c.dirty = true
}

// Remove drops key from the cache, if present.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.dirty = true
	}
	c.bumpVersionLocked()
}

// Clear empties the entire cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) > 0 {
		c.entries = make(map[string]SummaryCacheEntry)
		c.dirty = true
	}
	c.bumpVersionLocked()
}

func (c *Cache) bumpVersionLocked() {
	c.version++
	c.searchCache = make(map[string]searchCacheEntry)
}

// GetSearchResults returns a cached search result set for key, but only if
// it was computed against the cache's current version — any intervening
// Set/Remove/Clear invalidates it.
func (c *Cache) GetSearchResults(key string) ([]ChatSearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.searchCache[key]
	if !ok || entry.version != c.version {
		return nil, false
	}
	return entry.results, true
}

// SetSearchResults caches results for key at the current version. The
// cache is cleared wholesale, rather than evicted entry-by-entry, once it
// reaches maxSearchCacheEntries.
func (c *Cache) SetSearchResults(key string, results []ChatSearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.searchCache) >= maxSearchCacheEntries {
		c.searchCache = make(map[string]searchCacheEntry)
	}
	c.searchCache[key] = searchCacheEntry{version: c.version, results: results}
}

// Flush persists the snapshot to disk if the cache is dirty, and marks it
// clean afterward provided the version has not advanced concurrently.
func (c *Cache) Flush() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	snap := snapshot{
		SchemaVersion: indexSchemaVersion,
		Version:       c.version,
		Entries:       make([]snapshotEntry, 0, len(c.entries)),
	}
	for key, entry := range c.entries {
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key:         key,
			Signature:   entry.Signature,
			Summary:     entry.Summary,
			Fingerprint: entry.Fingerprint.Bits,
		})
	}
	flushedVersion := c.version
	c.mu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return domainerr.Wrap(domainerr.InternalError, "serialize chat summary index", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.indexPath), 0o755); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "create chat summary index directory", err)
	}

	tmp := c.indexPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "write chat summary index", err)
	}
	if err := os.Rename(tmp, c.indexPath); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "rename chat summary index into place", err)
	}

	c.mu.Lock()
	if c.version == flushedVersion {
		c.dirty = false
	}
	c.mu.Unlock()
	return nil
}
