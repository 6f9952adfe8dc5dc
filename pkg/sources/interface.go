package sources

import (
	"context"

	"github.com/kerbaras/mdown/pkg/data"
)

// Source is a remote catalog the pipeline downloads from
type Source interface {
	GetManga(ctx context.Context, id string) (*data.Manga, error)
	FetchAllChapters(ctx context.Context, mangaID string, offset int) ([]ChapterData, int, error)
	GetChapterManifest(ctx context.Context, chapterID string, saver bool) (*Manifest, error)
	GetGroup(ctx context.Context, groupID string) (data.Scanlation, error)
}

// Cache stores small resolved resources between runs
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
