package chatstore

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// Backups manages the throttled rolling backup copies of chat payload files,
// grounded on the teacher repository's ThrottledBackup/remove_old_backups
// pair: each distinct chat key gets its own rate.Sometimes gate so a chat
// under heavy write traffic is still backed up at most once per Interval,
// and the backup directory is pruned to stay within per-chat and total caps.
type Backups struct {
	dir               string
	interval          time.Duration
	maxPerChat        int
	maxTotal          int
	enabled           bool
	mu                sync.Mutex
	gates             map[string]*rate.Sometimes
}

// NewBackups configures a Backups manager rooted at dir, throttling each key
// to at most one backup per interval and retaining maxPerChat backups per
// chat key (and maxTotal backups overall, pruning the oldest first).
func NewBackups(dir string, interval time.Duration, maxPerChat, maxTotal int) *Backups {
	return &Backups{
		dir:        dir,
		interval:   interval,
		maxPerChat: maxPerChat,
		maxTotal:   maxTotal,
		enabled:    true,
		gates:      make(map[string]*rate.Sometimes),
	}
}

func (b *Backups) gateFor(key string) *rate.Sometimes {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gates[key]
	if !ok {
		g = &rate.Sometimes{Interval: b.interval}
		b.gates[key] = g
	}
	return g
}

// Maybe copies chatPath into the backup directory if key's throttle gate is
// open, then prunes old backups. A no-op (including pruning) when disabled.
func (b *Backups) Maybe(chatKeyNamespace, chatPath, key string) error {
	if !b.enabled {
		return nil
	}

	var copyErr error
	b.gateFor(key).Do(func() {
		copyErr = b.copyInto(chatKeyNamespace, chatPath)
	})
	if copyErr != nil {
		return copyErr
	}
	return b.pruneOldBackups()
}

func (b *Backups) copyInto(chatKeyNamespace, chatPath string) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "create chat backups directory "+b.dir, err)
	}

	src, err := os.Open(chatPath)
	if err != nil {
		return domainerr.Wrap(domainerr.InternalError, "open chat payload for backup "+chatPath, err)
	}
	defer src.Close()

	backupPath := filepath.Join(b.dir, backupFileName(chatKeyNamespace, filepath.Base(chatPath)))
	dst, err := os.Create(backupPath)
	if err != nil {
		return domainerr.Wrap(domainerr.InternalError, "create chat backup file "+backupPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "copy chat payload to backup "+backupPath, err)
	}
	return nil
}

func backupFileName(namespace, fileName string) string {
	timestamp := time.Now().UTC().Format("20060102-150405.000")
	return namespace + "_" + fileName + "_backup_" + timestamp + ".jsonl"
}

type backupEntry struct {
	path     string
	modified time.Time
}

// pruneOldBackups removes the oldest backups once either a chat's own
// backup count exceeds maxPerChat, or the directory's total backup count
// exceeds maxTotal — mirrors remove_old_backups's two-phase grouped-then-
// global sweep.
func (b *Backups) pruneOldBackups() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return domainerr.Wrap(domainerr.InternalError, "list chat backups directory "+b.dir, err)
	}

	byChat := make(map[string][]backupEntry)
	var all []backupEntry
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		be := backupEntry{path: filepath.Join(b.dir, entry.Name()), modified: info.ModTime()}
		all = append(all, be)
		if key, ok := chatKeyFromBackupName(entry.Name()); ok {
			byChat[key] = append(byChat[key], be)
		}
	}

	for _, group := range byChat {
		sort.Slice(group, func(i, j int) bool { return group[i].modified.Before(group[j].modified) })
		for len(group) > b.maxPerChat {
			if err := os.Remove(group[0].path); err != nil && !os.IsNotExist(err) {
				return domainerr.Wrap(domainerr.InternalError, "remove old chat backup "+group[0].path, err)
			}
			group = group[1:]
		}
	}

	remaining, err := os.ReadDir(b.dir)
	if err != nil {
		return domainerr.Wrap(domainerr.InternalError, "list chat backups directory "+b.dir, err)
	}
	var sortedAll []backupEntry
	for _, entry := range remaining {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sortedAll = append(sortedAll, backupEntry{path: filepath.Join(b.dir, entry.Name()), modified: info.ModTime()})
	}
	sort.Slice(sortedAll, func(i, j int) bool { return sortedAll[i].modified.Before(sortedAll[j].modified) })

	for len(sortedAll) > b.maxTotal {
		if err := os.Remove(sortedAll[0].path); err != nil && !os.IsNotExist(err) {
			return domainerr.Wrap(domainerr.InternalError, "remove old chat backup "+sortedAll[0].path, err)
		}
		sortedAll = sortedAll[1:]
	}
	return nil
}

// chatKeyFromBackupName extracts "character:chat.jsonl" from a
// "character_chat.jsonl_backup_<timestamp>.jsonl" backup file name.
func chatKeyFromBackupName(name string) (string, bool) {
	firstUnderscore := strings.IndexByte(name, '_')
	if firstUnderscore < 0 {
		return "", false
	}
	character := name[:firstUnderscore]
	rest := name[firstUnderscore+1:]
	secondUnderscore := strings.IndexByte(rest, '_')
	if secondUnderscore < 0 {
		return "", false
	}
	chat := rest[:secondUnderscore]
	return character + ":" + chat, true
}
