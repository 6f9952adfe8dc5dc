package data

import (
	"strconv"
	"time"
)

// Manga is the catalog entry a run downloads chapters for
type Manga struct {
	ID   string
	Name string
}

// ChapterRecord is a normalized chapter as returned by the remote feed
type ChapterRecord struct {
	ID        string
	MangaID   string
	Number    string
	Volume    string
	Title     string
	Language  string
	Pages     int
	UpdatedAt string
	GroupID   string
}

// LedgerChapter is one completed chapter in a manga's ledger
type LedgerChapter struct {
	Number    string `json:"number"`
	UpdatedAt string `json:"updated_at"`
	ID        string `json:"id"`
}

// MangaLedger holds the completed chapters of a single manga
type MangaLedger struct {
	Name     string          `json:"name"`
	ID       string          `json:"id"`
	MWD      string          `json:"mwd"`
	Cover    bool            `json:"cover"`
	Language string          `json:"current_language,omitempty"`
	Chapters []LedgerChapter `json:"chapters"`
}

// LedgerDocument is the on-disk ledger of every downloaded manga
type LedgerDocument struct {
	Data    []MangaLedger `json:"data"`
	Version string        `json:"version"`
}

// Scanlation identifies the group that translated a chapter
type Scanlation struct {
	Name    string `json:"name"`
	Website string `json:"website"`
}

// ChapterMetadata is the provenance sidecar stored with every chapter
type ChapterMetadata struct {
	Name       string     `json:"name"`
	ID         string     `json:"id"`
	MangaID    string     `json:"manga_id"`
	Saver      bool       `json:"saver"`
	Title      string     `json:"title"`
	Pages      string     `json:"pages"`
	Chapter    string     `json:"chapter"`
	Volume     string     `json:"volume"`
	Scanlation Scanlation `json:"scanlation"`
}

// ChapterNumber parses a chapter number such as "12" or "12.5".
// The boolean is false when the value is not numeric.
func ChapterNumber(number string) (float64, bool) {
	n, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the timestamp formats seen in feeds and ledgers
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
