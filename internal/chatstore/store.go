package chatstore

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tauritavern/companion-core/internal/domainerr"
	"github.com/tauritavern/companion-core/internal/memcache"
)

// Store lays out the on-disk chats directory and wires the windowed payload
// engine to a memory cache of recently touched chats and a throttled
// rolling backup manager — grounded on the teacher's FileChatRepository.
type Store struct {
	chatsDir string
	cache    *memcache.Cache[[]byte]
	backups  *Backups
}

// Config controls Store construction; zero values fall back to the
// teacher's original sizing (100-entry/30-minute cache, 5-minute backup
// throttle, 5-per-chat/50-total backup retention).
type Config struct {
	CacheCapacity     int
	CacheTTL          time.Duration
	BackupInterval    time.Duration
	MaxBackupsPerChat int
	MaxBackupsTotal   int
}

// New creates a Store rooted at chatsDir, with a "backups" subdirectory for
// rolling backups.
func New(chatsDir string, cfg Config) *Store {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = memcache.DefaultCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = memcache.DefaultTTL
	}
	if cfg.BackupInterval <= 0 {
		cfg.BackupInterval = 5 * time.Minute
	}
	if cfg.MaxBackupsPerChat <= 0 {
		cfg.MaxBackupsPerChat = 5
	}
	if cfg.MaxBackupsTotal <= 0 {
		cfg.MaxBackupsTotal = 50
	}

	return &Store{
		chatsDir: chatsDir,
		cache:    memcache.New[[]byte](cfg.CacheCapacity, cfg.CacheTTL),
		backups: NewBackups(
			filepath.Join(chatsDir, "backups"),
			cfg.BackupInterval,
			cfg.MaxBackupsPerChat,
			cfg.MaxBackupsTotal,
		),
	}
}

// EnsureDirectories creates the chats and backups directories if missing.
func (s *Store) EnsureDirectories() error {
	if err := os.MkdirAll(s.chatsDir, 0o755); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "create chats directory "+s.chatsDir, err)
	}
	if err := os.MkdirAll(s.backups.dir, 0o755); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "create chat backups directory "+s.backups.dir, err)
	}
	return nil
}

func withJSONLExtension(fileName string) string {
	if strings.HasSuffix(fileName, ".jsonl") {
		return fileName
	}
	return fileName + ".jsonl"
}

// StripJSONLExtension trims a trailing ".jsonl" suffix, used for cache keys
// and display names.
func StripJSONLExtension(fileName string) string {
	return strings.TrimSuffix(fileName, ".jsonl")
}

// CharacterDir returns the directory holding a character's chat files.
func (s *Store) CharacterDir(characterName string) string {
	return filepath.Join(s.chatsDir, characterName)
}

// ChatPath returns the payload file path for a character's chat.
func (s *Store) ChatPath(characterName, fileName string) string {
	return filepath.Join(s.CharacterDir(characterName), withJSONLExtension(fileName))
}

// GroupChatPath returns the payload file path for a group chat, stored
// directly under the chats directory rather than a character subdirectory.
func (s *Store) GroupChatPath(chatID string) string {
	return filepath.Join(s.chatsDir, withJSONLExtension(chatID))
}

// CacheKey returns the memory-cache key for a character's chat.
func CacheKey(characterName, fileName string) string {
	return characterName + ":" + StripJSONLExtension(fileName)
}

// GroupCacheKey returns the memory-cache key for a group chat.
func GroupCacheKey(chatID string) string {
	return "group:" + StripJSONLExtension(chatID)
}

// ReadTail reads the newest maxLines lines of a character's chat, serving
// the raw header text from cache would bypass optimistic-concurrency
// signatures, so this always hits the file directly.
func (s *Store) ReadTail(characterName, fileName string, maxLines int) (Tail, error) {
	return ReadTail(s.ChatPath(characterName, fileName), maxLines)
}

// ReadBefore reads up to maxLines lines preceding cursor for a character's chat.
func (s *Store) ReadBefore(characterName, fileName string, cursor Cursor, maxLines int) (Chunk, error) {
	return ReadBefore(s.ChatPath(characterName, fileName), cursor, maxLines)
}

// SaveWindowed appends/rewrites a character's chat payload, invalidates its
// memory-cache entry, and triggers a throttled backup. It does not touch the
// summary index.
func (s *Store) SaveWindowed(characterName, fileName string, cursor Cursor, header string, lines []string, force bool) (Cursor, error) {
	if err := s.EnsureDirectories(); err != nil {
		return Cursor{}, err
	}
	if err := os.MkdirAll(s.CharacterDir(characterName), 0o755); err != nil {
		return Cursor{}, domainerr.Wrap(domainerr.InternalError, "create character chat directory "+s.CharacterDir(characterName), err)
	}

	path := s.ChatPath(characterName, fileName)
	key := CacheKey(characterName, fileName)

	result, err := SaveWindowed(path, cursor, header, lines, force)
	if err != nil {
		return Cursor{}, err
	}

	s.cache.Remove(key)
	if err := s.backups.Maybe(characterName, path, key); err != nil {
		return result, err
	}
	return result, nil
}

// SaveGroupWindowed is the group-chat analogue of SaveWindowed.
func (s *Store) SaveGroupWindowed(chatID string, cursor Cursor, header string, lines []string, force bool) (Cursor, error) {
	if err := s.EnsureDirectories(); err != nil {
		return Cursor{}, err
	}

	path := s.GroupChatPath(chatID)
	key := GroupCacheKey(chatID)

	result, err := SaveWindowed(path, cursor, header, lines, force)
	if err != nil {
		return Cursor{}, err
	}

	s.cache.Remove(key)
	if err := s.backups.Maybe("group", path, key); err != nil {
		return result, err
	}
	return result, nil
}
