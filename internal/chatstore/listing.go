package chatstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// ChatFile describes one on-disk chat payload file, enough to key a
// summary-index entry against — grounded on the teacher's
// ChatFileDescriptor / list_character_chat_files.
type ChatFile struct {
	CharacterName string
	FileName      string
	Path          string
}

// ListCharacterChats walks every character subdirectory of the chats
// directory (or, if characterFilter is non-empty, just that one) and
// returns every ".jsonl" payload file found.
func (s *Store) ListCharacterChats(characterFilter string) ([]ChatFile, error) {
	if characterFilter != "" {
		return listJSONLFiles(s.CharacterDir(characterFilter), characterFilter)
	}

	entries, err := os.ReadDir(s.chatsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domainerr.Wrap(domainerr.InternalError, "read chats directory "+s.chatsDir, err)
	}

	var files []ChatFile
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "backups" {
			continue
		}
		characterFiles, err := listJSONLFiles(filepath.Join(s.chatsDir, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		files = append(files, characterFiles...)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ListGroupChats returns every group chat payload file directly under the
// chats directory (group chats are not nested under a character directory).
func (s *Store) ListGroupChats() ([]ChatFile, error) {
	return listJSONLFiles(s.chatsDir, "")
}

func listJSONLFiles(dir, characterName string) ([]ChatFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domainerr.Wrap(domainerr.InternalError, "read directory "+dir, err)
	}

	var files []ChatFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".jsonl") {
			continue
		}
		files = append(files, ChatFile{
			CharacterName: characterName,
			FileName:      entry.Name(),
			Path:          filepath.Join(dir, entry.Name()),
		})
	}
	return files, nil
}
