package data

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kerbaras/mdown/pkg/utils"
)

// LedgerStore persists which chapters of which manga are already downloaded.
// It is read-modify-written once per completed chapter.
type LedgerStore struct {
	path    string
	version string

	mu  sync.RWMutex
	doc LedgerDocument
}

// NewLedgerStore creates a store backed by the JSON document at path
func NewLedgerStore(path, version string) *LedgerStore {
	return &LedgerStore{
		path:    path,
		version: version,
		doc:     LedgerDocument{Data: []MangaLedger{}, Version: version},
	}
}

// Path returns the location of the ledger document
func (s *LedgerStore) Path() string {
	return s.path
}

// Load reads the ledger from disk, creating an empty document if none exists
func (s *LedgerStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = LedgerDocument{Data: []MangaLedger{}, Version: s.version}
		return s.writeLocked()
	}
	if err != nil {
		return utils.DatabaseError(s.path, err)
	}

	var doc LedgerDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return utils.JsonError(s.path, err)
	}
	if doc.Data == nil {
		doc.Data = []MangaLedger{}
	}
	s.doc = doc
	return nil
}

// Document returns a deep copy of the current ledger
func (s *LedgerStore) Document() LedgerDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := LedgerDocument{Version: s.doc.Version, Data: make([]MangaLedger, len(s.doc.Data))}
	for i, m := range s.doc.Data {
		out.Data[i] = copyLedger(m)
	}
	return out
}

// Manga returns a copy of the ledger for the named manga
func (s *LedgerStore) Manga(name string) (MangaLedger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.doc.Data {
		if m.Name == name {
			return copyLedger(m), true
		}
	}
	return MangaLedger{}, false
}

// RemoveChapter drops a chapter number from the named manga's ledger
func (s *LedgerStore) RemoveChapter(name, number string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Data {
		if s.doc.Data[i].Name != name {
			continue
		}
		chapters := s.doc.Data[i].Chapters
		for j := range chapters {
			if chapters[j].Number == number {
				s.doc.Data[i].Chapters = append(chapters[:j:j], chapters[j+1:]...)
				return true
			}
		}
	}
	return false
}

// RemoveManga drops a manga and all its chapters from the ledger
func (s *LedgerStore) RemoveManga(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Data {
		if s.doc.Data[i].Name == name {
			s.doc.Data = append(s.doc.Data[:i:i], s.doc.Data[i+1:]...)
			return true
		}
	}
	return false
}

// Merge folds completed chapters into the ledger. A manga that is not yet
// present is appended whole. Otherwise chapters with unseen numbers are
// sorted numerically and appended, and a chapter whose updated_at is newer
// than the stored one replaces it.
func (s *LedgerStore) Merge(entry MangaLedger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.doc.Data {
		if s.doc.Data[i].Name == entry.Name {
			idx = i
			break
		}
	}
	if idx < 0 {
		fresh := copyLedger(entry)
		fresh.Chapters = dedupeChapters(fresh.Chapters)
		s.doc.Data = append(s.doc.Data, fresh)
		return
	}

	current := &s.doc.Data[idx]
	if entry.MWD != "" {
		current.MWD = entry.MWD
	}
	if current.ID == "" {
		current.ID = entry.ID
	}
	if entry.Cover {
		current.Cover = true
	}
	if entry.Language != "" {
		current.Language = entry.Language
	}

	var added []LedgerChapter
	for _, ch := range dedupeChapters(entry.Chapters) {
		pos := -1
		for j := range current.Chapters {
			if current.Chapters[j].Number == ch.Number {
				pos = j
				break
			}
		}
		if pos >= 0 {
			if !isNewer(ch.UpdatedAt, current.Chapters[pos].UpdatedAt) {
				continue
			}
			current.Chapters = append(current.Chapters[:pos:pos], current.Chapters[pos+1:]...)
		}
		added = append(added, ch)
	}

	sortLedgerChapters(added)
	current.Chapters = append(current.Chapters, added...)
}

// Save writes the ledger to disk atomically
func (s *LedgerStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

func (s *LedgerStore) writeLocked() error {
	if s.doc.Version == "" {
		s.doc.Version = s.version
	}
	out, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return utils.JsonError(s.path, err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.DatabaseError(s.path, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(out, '\n'), 0644); err != nil {
		return utils.DatabaseError(s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return utils.DatabaseError(s.path, err)
	}
	return nil
}

func copyLedger(m MangaLedger) MangaLedger {
	out := m
	out.Chapters = make([]LedgerChapter, len(m.Chapters))
	copy(out.Chapters, m.Chapters)
	return out
}

// dedupeChapters keeps one entry per number, the newest one winning
func dedupeChapters(chapters []LedgerChapter) []LedgerChapter {
	out := make([]LedgerChapter, 0, len(chapters))
	index := make(map[string]int, len(chapters))
	for _, ch := range chapters {
		if i, ok := index[ch.Number]; ok {
			if isNewer(ch.UpdatedAt, out[i].UpdatedAt) {
				out[i] = ch
			}
			continue
		}
		index[ch.Number] = len(out)
		out = append(out, ch)
	}
	return out
}

func sortLedgerChapters(chapters []LedgerChapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		a, _ := ChapterNumber(chapters[i].Number)
		b, _ := ChapterNumber(chapters[j].Number)
		return a < b
	})
}

// isNewer reports whether a is a later timestamp than b. Unparsable dates are never newer.
func isNewer(a, b string) bool {
	ta, ok := ParseDate(a)
	if !ok {
		return false
	}
	tb, ok := ParseDate(b)
	if !ok {
		return true
	}
	return ta.After(tb)
}
