package services

import (
	"os"
	"sort"

	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/integrations"
	"github.com/kerbaras/mdown/pkg/sources"
)

// Decision is what the reconciler decided to do with a remote chapter
type Decision string

const (
	Download          Decision = "download"
	SkipExisting      Decision = "skip_existing"
	SkipLanguage      Decision = "skip_language"
	SkipVolumeFilter  Decision = "skip_volume"
	SkipChapterFilter Decision = "skip_chapter"
	SkipNoPages       Decision = "skip_no_pages"
	SkipOffset        Decision = "skip_offset"
	SkipInvalid       Decision = "skip_invalid"
	Superseded        Decision = "superseded"
	Fixed             Decision = "fixed"
)

// WorkItem pairs a remote chapter with the decision taken for it
type WorkItem struct {
	Record   data.ChapterRecord
	Decision Decision
	Name     FileName
}

// ReconcileOptions are the user filters applied to the chapter list
type ReconcileOptions struct {
	Language string
	Volume   string
	Chapter  string
	Offset   int
	Force    bool
	Update   bool
	Saver    bool
}

// ReconcileResult holds the work items and the ledger changes they imply
type ReconcileResult struct {
	Items []WorkItem
	// Removed lists chapter numbers whose ledger entry must be dropped
	Removed []string
	// Keep lists chapters found complete on disk that the ledger must record
	Keep []data.LedgerChapter
}

// Count returns how many items carry the given decision
func (r ReconcileResult) Count(d Decision) int {
	n := 0
	for _, item := range r.Items {
		if item.Decision == d {
			n++
		}
	}
	return n
}

// Downloads returns the items to download, in order
func (r ReconcileResult) Downloads() []WorkItem {
	var out []WorkItem
	for _, item := range r.Items {
		if item.Decision == Download {
			out = append(out, item)
		}
	}
	return out
}

// Reconciler classifies remote chapters against the ledger and the archives on disk
type Reconciler struct {
	folder   string
	cacheDir string

	// ArchiveExists reports whether a finished archive is present
	ArchiveExists func(path string) bool
	// ArchiveSaver reports the saver flag an archive was downloaded with
	ArchiveSaver func(path string) (bool, error)
}

// NewReconciler creates a reconciler for archives in folder
func NewReconciler(folder, cacheDir string) *Reconciler {
	return &Reconciler{
		folder:   folder,
		cacheDir: cacheDir,
		ArchiveExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
		ArchiveSaver: func(path string) (bool, error) {
			meta, err := integrations.ReadArchiveMetadata(path)
			if err != nil {
				return false, err
			}
			return meta.Saver, nil
		},
	}
}

// SortChapters orders records by numeric chapter value. The sort is stable and
// non-numeric chapters compare as zero.
func SortChapters(records []data.ChapterRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := data.ChapterNumber(records[i].Number)
		b, _ := data.ChapterNumber(records[j].Number)
		return a < b
	})
}

func matchesFilter(filter, value string) bool {
	return filter == "" || filter == "*" || filter == value
}

// Reconcile produces one work item per record, in input order. Records must
// already be sorted with SortChapters.
func (r *Reconciler) Reconcile(mangaName string, records []data.ChapterRecord, ledger data.MangaLedger, opts ReconcileOptions) ReconcileResult {
	dates := make(map[string]string, len(ledger.Chapters))
	for _, ch := range ledger.Chapters {
		dates[ch.Number] = ch.UpdatedAt
	}

	result := ReconcileResult{Items: make([]WorkItem, 0, len(records))}
	queued := make(map[string]bool)
	offset := opts.Offset

	for _, record := range records {
		item := WorkItem{Record: record, Name: NewFileName(mangaName, record, r.folder, r.cacheDir)}
		item.Decision = r.decide(record, item.Name, dates, queued, &offset, opts, &result)
		switch item.Decision {
		case Download, SkipExisting, Fixed:
			// one archive per chapter number, whatever group or title a duplicate carries
			queued[record.Number] = true
		}
		result.Items = append(result.Items, item)
	}
	return result
}

func (r *Reconciler) decide(
	record data.ChapterRecord,
	name FileName,
	dates map[string]string,
	queued map[string]bool,
	offset *int,
	opts ReconcileOptions,
	result *ReconcileResult,
) Decision {
	if record.Number == sources.TestChapter {
		return SkipInvalid
	}

	languageOK := matchesFilter(opts.Language, record.Language)

	if languageOK && !opts.Force && r.ArchiveExists(name.ArchivePath()) && !r.saverMismatch(name.ArchivePath(), opts.Saver) {
		keep := data.LedgerChapter{Number: record.Number, UpdatedAt: record.UpdatedAt, ID: record.ID}
		remote, remoteOK := data.ParseDate(record.UpdatedAt)
		local, localOK := data.ParseDate(dates[record.Number])

		switch {
		case remoteOK && localOK && local.Before(remote):
			delete(dates, record.Number)
			result.Removed = append(result.Removed, record.Number)
			if !opts.Update {
				return Superseded
			}
			// update mode: the stale archive is downloaded again below
		case remoteOK && localOK && local.After(remote):
			result.Removed = append(result.Removed, record.Number)
			result.Keep = append(result.Keep, keep)
			return Fixed
		default:
			result.Keep = append(result.Keep, keep)
			return SkipExisting
		}
	}

	switch {
	case !languageOK:
		return SkipLanguage
	case !matchesFilter(opts.Volume, record.Volume):
		return SkipVolumeFilter
	case !matchesFilter(opts.Chapter, record.Number):
		return SkipChapterFilter
	case record.Pages == 0:
		return SkipNoPages
	case queued[record.Number]:
		return SkipExisting
	case *offset > 0:
		*offset--
		return SkipOffset
	}
	return Download
}

// saverMismatch reports whether an archive was downloaded with a different saver
// setting than requested. Unreadable metadata never counts as a mismatch.
func (r *Reconciler) saverMismatch(path string, saver bool) bool {
	got, err := r.ArchiveSaver(path)
	if err != nil {
		return false
	}
	return got != saver
}
