package data

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/kerbaras/mdown/pkg/utils"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS downloads (
	handle_id      VARCHAR NOT NULL,
	manga_id       VARCHAR NOT NULL,
	manga_name     VARCHAR NOT NULL,
	chapter_id     VARCHAR NOT NULL,
	chapter_number VARCHAR NOT NULL,
	volume         VARCHAR,
	outcome        VARCHAR NOT NULL,
	pages          INTEGER,
	bytes          BIGINT,
	error          VARCHAR,
	recorded_at    TIMESTAMP NOT NULL
)`

// HistoryEntry is one chapter outcome recorded by a run
type HistoryEntry struct {
	HandleID      string
	MangaID       string
	MangaName     string
	ChapterID     string
	ChapterNumber string
	Volume        string
	Outcome       string
	Pages         int
	Bytes         int64
	Error         string
	RecordedAt    time.Time
}

// InitDuckDB opens the DuckDB database at path and ensures the schema exists
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// HistoryRepository records chapter outcomes across runs
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository opens the history database at path
func NewHistoryRepository(path string) (*HistoryRepository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, utils.DatabaseError(path, err)
	}
	return &HistoryRepository{db: db}, nil
}

// Record stores a chapter outcome
func (r *HistoryRepository) Record(ctx context.Context, e HistoryEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads (handle_id, manga_id, manga_name, chapter_id, chapter_number, volume, outcome, pages, bytes, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.HandleID, e.MangaID, e.MangaName, e.ChapterID, e.ChapterNumber, e.Volume,
		e.Outcome, e.Pages, e.Bytes, e.Error, e.RecordedAt,
	)
	if err != nil {
		return utils.DatabaseError("record history", err)
	}
	return nil
}

// List returns the most recent entries, optionally restricted to one manga
func (r *HistoryRepository) List(ctx context.Context, mangaName string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT handle_id, manga_id, manga_name, chapter_id, chapter_number,
		       COALESCE(volume, ''), outcome, COALESCE(pages, 0), COALESCE(bytes, 0),
		       COALESCE(error, ''), recorded_at
		FROM downloads
		WHERE ? = '' OR manga_name = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, mangaName, mangaName, limit)
	if err != nil {
		return nil, utils.DatabaseError("list history", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.HandleID, &e.MangaID, &e.MangaName, &e.ChapterID, &e.ChapterNumber,
			&e.Volume, &e.Outcome, &e.Pages, &e.Bytes, &e.Error, &e.RecordedAt,
		); err != nil {
			return nil, utils.DatabaseError("scan history", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.DatabaseError("list history", err)
	}
	return out, nil
}

// Close closes the underlying database
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}
