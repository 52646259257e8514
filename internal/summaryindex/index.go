package summaryindex

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/dlclark/regexp2"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// maxPreviewRunes caps the preview text carried on a ChatSearchResult to
// the last N runes of the final message, matching the teacher's
// preview_message_text tail-truncation.
const maxPreviewRunes = 400

// fragmentPattern extracts Unicode word tokens (letter or number runs) as
// search fragments, rather than splitting on ASCII whitespace only —
// regexp2 is used here for its Unicode character-class support, which the
// standard library's RE2-derived regexp cannot express for \p{L}/\p{N}.
var fragmentPattern = regexp2.MustCompile(`[\p{L}\p{N}]+`, regexp2.None)

// Index orchestrates scanning chat files into the Cache and answering
// list/search queries backed by the bloom-filter prefilter.
type Index struct {
	cache *Cache
}

// NewIndex wraps a Cache persisted at indexPath.
func NewIndex(indexPath string) *Index {
	return &Index{cache: NewCache(indexPath)}
}

// Flush persists the index if dirty.
func (idx *Index) Flush() error {
	return idx.cache.Flush()
}

// Summary returns the up-to-date summary for path, scanning the file if
// the cached entry's signature no longer matches the file on disk.
func (idx *Index) Summary(path, fallbackCharacterName, fallbackFileName string) (ChatSearchResult, error) {
	entry, err := idx.entryFor(path, fallbackCharacterName, fallbackFileName)
	if err != nil {
		return ChatSearchResult{}, err
	}
	return entry.Summary, nil
}

// RemoveForPath drops the cache entry keyed by path, e.g. after a chat
// file is deleted or renamed.
func (idx *Index) RemoveForPath(path string) {
	idx.cache.Remove(path)
}

// Clear empties the whole index, forcing every subsequent lookup to rescan.
func (idx *Index) Clear() {
	idx.cache.Clear()
}

func (idx *Index) entryFor(path, fallbackCharacterName, fallbackFileName string) (SummaryCacheEntry, error) {
	if err := idx.cache.EnsureLoaded(); err != nil {
		return SummaryCacheEntry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return SummaryCacheEntry{}, domainerr.Wrap(domainerr.InternalError, "stat chat file "+path, err)
	}
	signature := FileSignature{
		Size:           uint64(info.Size()),
		ModifiedMillis: info.ModTime().UnixMilli(),
	}

	if cached, ok := idx.cache.Get(path); ok && cached.Signature == signature {
		return cached, nil
	}

	scanned, err := scanChatSummaryFile(path, fallbackCharacterName, fallbackFileName, signature)
	if err != nil {
		return SummaryCacheEntry{}, err
	}
	idx.cache.Set(path, scanned)
	return scanned, nil
}

// ChatFile describes one candidate chat file for listing or search.
type ChatFile struct {
	CharacterName string
	FileName      string
	Path          string
}

// Search returns every file in candidates whose scanned summary survives
// the bloom prefilter against query's fragments, sorted by descending date
// (most recent first). Results are cached per fragment list and candidate
// path list, and invalidated by the index's version counter.
func (idx *Index) Search(candidates []ChatFile, query string) ([]ChatSearchResult, error) {
	fragments := SearchFragments(query)
	keyParts := make([]string, 0, len(candidates)+1)
	keyParts = append(keyParts, strings.Join(fragments, " "))
	for _, candidate := range candidates {
		keyParts = append(keyParts, candidate.Path)
	}
	cacheKey := strings.Join(keyParts, "\x00")

	if len(fragments) > 0 {
		if cached, ok := idx.cache.GetSearchResults(cacheKey); ok {
			return cached, nil
		}
	}

	results := make([]ChatSearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		entry, err := idx.entryFor(candidate.Path, candidate.CharacterName, candidate.FileName)
		if err != nil {
			return nil, err
		}
		if len(fragments) == 0 || entry.Fingerprint.MightMatchFragments(fragments) {
			results = append(results, entry.Summary)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Date > results[j].Date })

	if len(fragments) > 0 {
		idx.cache.SetSearchResults(cacheKey, results)
	}
	return results, nil
}

// NormalizeSearchQuery lowercases query and collapses internal whitespace
// runs to a single space. Search does not use it; its cache key is built
// from SearchFragments.
func NormalizeSearchQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
}

// SearchFragments splits query into lowercased Unicode word fragments —
// the conjunctive terms a candidate file's fingerprint must admit.
func SearchFragments(query string) []string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	if lowered == "" {
		return nil
	}

	var fragments []string
	m, err := fragmentPattern.FindStringMatch(lowered)
	for err == nil && m != nil {
		fragments = append(fragments, m.String())
		m, err = fragmentPattern.FindNextMatch(m)
	}
	return fragments
}

func scanChatSummaryFile(path, fallbackCharacterName, fallbackFileName string, signature FileSignature) (SummaryCacheEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return SummaryCacheEntry{}, domainerr.Wrap(domainerr.InternalError, "open chat file "+path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	fingerprint := Fingerprint{}
	fingerprint.AddText(stripJSONLExtension(fallbackFileName))

	var firstLine, lastLine []byte
	lineCount := 0
	for {
		line, readErr := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			lineCount++
			if firstLine == nil {
				firstLine = []byte(trimmed)
			}
			fingerprint.AddText(trimmed)
			lastLine = []byte(trimmed)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return SummaryCacheEntry{}, domainerr.Wrap(domainerr.InternalError, "read chat file "+path, readErr)
		}
	}

	characterName := fallbackCharacterName
	var chatID *string
	var chatMetadata []byte
	if firstLine != nil {
		if name, err := jsonparser.GetString(firstLine, "character_name"); err == nil {
			trimmedName := strings.TrimSpace(name)
			if trimmedName != "" && !strings.EqualFold(trimmedName, "unused") {
				characterName = trimmedName
			}
		}
		if meta, dataType, _, err := jsonparser.Get(firstLine, "chat_metadata"); err == nil && dataType == jsonparser.Object {
			chatMetadata = append([]byte(nil), meta...)
			if idHash, hashType, _, hashErr := jsonparser.Get(meta, "chat_id_hash"); hashErr == nil {
				var s string
				switch hashType {
				case jsonparser.String:
					s, _ = jsonparser.ParseString(idHash)
				default:
					s = string(idHash)
				}
				chatID = &s
			}
		}
	}

	messageCount := lineCount - 1
	if messageCount < 0 {
		messageCount = 0
	}

	var preview string
	var sendDateMillis int64
	if lastLine != nil {
		if mes, err := jsonparser.GetString(lastLine, "mes"); err == nil {
			preview = previewMessageText(mes)
		}
		sendDateMillis = parseSendDate(lastLine)
	}

	date := sendDateMillis
	if date <= 0 {
		date = signature.ModifiedMillis
	}

	return SummaryCacheEntry{
		Signature: signature,
		Summary: ChatSearchResult{
			CharacterName: characterName,
			FileName:      normalizeJSONLFileName(fallbackFileName),
			FileSize:      signature.Size,
			MessageCount:  messageCount,
			Preview:       preview,
			Date:          date,
			ChatID:        chatID,
			ChatMetadata:  chatMetadata,
		},
		Fingerprint: fingerprint,
	}, nil
}

// parseSendDate extracts the last message's send_date, tolerating either a
// numeric epoch-millis value or a string the teacher's chat model also
// accepts (RFC3339 is the one string format worth special-casing here;
// anything else falls back to 0, triggering the file-modified-time default).
func parseSendDate(line []byte) int64 {
	if value, dataType, _, err := jsonparser.Get(line, "send_date"); err == nil {
		switch dataType {
		case jsonparser.Number:
			if n, parseErr := jsonparser.ParseInt(value); parseErr == nil {
				return n
			}
		case jsonparser.String:
			raw, _ := jsonparser.ParseString(value)
			if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
				return t.UnixMilli()
			}
		}
	}
	return 0
}

func previewMessageText(message string) string {
	runes := []rune(message)
	if len(runes) <= maxPreviewRunes {
		return message
	}
	return "..." + string(runes[len(runes)-maxPreviewRunes:])
}

func stripJSONLExtension(fileName string) string {
	return strings.TrimSuffix(fileName, ".jsonl")
}

func normalizeJSONLFileName(fileName string) string {
	if strings.HasSuffix(fileName, ".jsonl") {
		return fileName
	}
	return fileName + ".jsonl"
}
