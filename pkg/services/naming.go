package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/integrations"
	"github.com/kerbaras/mdown/pkg/sources"
)

// FileName derives every on-disk name used for one chapter
type FileName struct {
	MangaName string
	Volume    string
	Chapter   string
	Title     string
	Folder    string // manga output folder holding the archives
	CacheDir  string // working directory for pages and sentinels
}

// NewFileName builds the names for record inside the given folders
func NewFileName(mangaName string, record data.ChapterRecord, folder, cacheDir string) FileName {
	return FileName{
		MangaName: mangaName,
		Volume:    record.Volume,
		Chapter:   record.Number,
		Title:     chapterTitle(record.Title),
		Folder:    folder,
		CacheDir:  cacheDir,
	}
}

// chapterTitle drops a single trailing period from a chapter title
func chapterTitle(title string) string {
	return strings.TrimSuffix(title, ".")
}

func (f FileName) volumePrefix() string {
	if f.Volume == "" {
		return ""
	}
	return fmt.Sprintf("Vol.%s ", f.Volume)
}

// FolderName is "{manga} - {Vol.V }Ch.{num}{ - title}" with forbidden characters removed
func (f FileName) FolderName() string {
	name := fmt.Sprintf("%s - %sCh.%s", f.MangaName, f.volumePrefix(), f.Chapter)
	if f.Title != "" {
		name += " - " + f.Title
	}
	return sources.ProcessFilename(name)
}

// ArchivePath is where the finished chapter archive lives
func (f FileName) ArchivePath() string {
	return filepath.Join(f.Folder, f.FolderName()+".cbz")
}

// WorkDir is the directory pages are downloaded into
func (f FileName) WorkDir() string {
	return filepath.Join(f.CacheDir, f.FolderName())
}

// PagePath is the target file of the 1-based page n
func (f FileName) PagePath(n int) string {
	return filepath.Join(f.WorkDir(), fmt.Sprintf("%s - %d.jpg", f.FolderName(), n))
}

// MetadataPath is the provenance sidecar inside the work directory
func (f FileName) MetadataPath() string {
	return filepath.Join(f.WorkDir(), integrations.MetadataFile)
}

// Label is the human readable chapter label shown by front-ends
func (f FileName) Label() string {
	return fmt.Sprintf("%sCh.%s", f.volumePrefix(), f.Chapter)
}
