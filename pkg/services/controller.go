package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/sources"
	"github.com/kerbaras/mdown/pkg/utils"
)

// RunOptions controls a single manga run
type RunOptions struct {
	ReconcileOptions
	// Check only reconciles and reports, nothing is downloaded
	Check bool
	// MWD overrides the manga folder, otherwise {folder}/{manga name}
	MWD string
}

// Summary describes what a run did
type Summary struct {
	Manga      *data.Manga
	Folder     string
	Items      []WorkItem
	Decisions  map[Decision]int
	Downloaded int
	Incomplete int
	Elapsed    time.Duration
}

// MangaController drives a run: catalog fetch, reconciliation, then one
// chapter at a time through the download engine.
type MangaController struct {
	source   sources.Source
	ledger   *data.LedgerStore
	chapters *ChapterDownloader
	folder   string
	cacheDir string

	// newReconciler builds the reconciler for a manga output folder
	newReconciler func(folder, cacheDir string) *Reconciler
}

// NewMangaController creates a controller writing archives below folder
func NewMangaController(source sources.Source, ledger *data.LedgerStore, chapters *ChapterDownloader, folder, cacheDir string) *MangaController {
	return &MangaController{
		source:        source,
		ledger:        ledger,
		chapters:      chapters,
		folder:        folder,
		cacheDir:      cacheDir,
		newReconciler: NewReconciler,
	}
}

// Run downloads every chapter of mangaID the reconciler selects. The returned
// error is fatal; per-chapter failures are suspended on pc instead.
func (c *MangaController) Run(ctx context.Context, pc *PipelineContext, mangaID string, opts RunOptions) (*Summary, error) {
	start := time.Now()
	log := pc.Log.WithComponent("controller")

	pc.Emit(ProgressEvent{Kind: EventFetch, MangaID: mangaID, Label: "manga"})
	manga, err := c.source.GetManga(ctx, mangaID)
	if err != nil {
		return nil, fmt.Errorf("fetching manga %s: %w", mangaID, err)
	}

	mwd := opts.MWD
	if mwd == "" {
		mwd = filepath.Join(c.folder, manga.Name)
	}
	for _, dir := range []string{mwd, c.cacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, utils.IoError(dir, err)
		}
	}

	pc.Emit(ProgressEvent{Kind: EventFetch, MangaID: manga.ID, MangaName: manga.Name, Label: "feed"})
	feed, last, err := c.source.FetchAllChapters(ctx, manga.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching chapters of %s: %w", manga.Name, err)
	}
	log.Info().Str("manga", manga.Name).Int("chapters", len(feed)).Int("last_page", last).Msg("feed fetched")

	records := make([]data.ChapterRecord, len(feed))
	for i := range feed {
		records[i] = feed[i].ToRecord(manga.ID)
	}
	SortChapters(records)

	ledger, _ := c.ledger.Manga(manga.Name)
	result := c.newReconciler(mwd, c.cacheDir).Reconcile(manga.Name, records, ledger, opts.ReconcileOptions)

	summary := &Summary{
		Manga:     manga,
		Folder:    mwd,
		Items:     result.Items,
		Decisions: make(map[Decision]int),
	}
	pc.setParsedMax(len(result.Items))
	for _, item := range result.Items {
		summary.Decisions[item.Decision]++
		pc.Emit(ProgressEvent{
			Kind:          EventDecision,
			MangaID:       manga.ID,
			MangaName:     manga.Name,
			ChapterID:     item.Record.ID,
			ChapterNumber: item.Record.Number,
			Label:         item.Name.Label(),
			Decision:      item.Decision,
		})
		if item.Decision != Download {
			pc.addParsed()
		}
	}

	if err := c.applyLedgerChanges(manga, mwd, opts.Language, result); err != nil {
		pc.Suspend("ledger", err)
	}

	if opts.Check {
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	for _, item := range result.Downloads() {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}
		if !opts.Force && ChapterInProgress(item.Name) {
			pc.Suspend(item.Name.Label(), fmt.Errorf("chapter locked by another download, remove %s or use --force", item.Name.LockPath()))
			summary.Incomplete++
			pc.addParsed()
			continue
		}

		outcome, err := c.chapters.DownloadChapter(ctx, pc, manga, mwd, item)
		pc.addParsed()
		if outcome == Complete {
			summary.Downloaded++
			continue
		}
		summary.Incomplete++
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			summary.Elapsed = time.Since(start)
			return summary, err
		}
		pc.Suspend(item.Name.Label(), err)
	}

	summary.Elapsed = time.Since(start)
	log.Info().
		Int("downloaded", summary.Downloaded).
		Int("incomplete", summary.Incomplete).
		Dur("elapsed", summary.Elapsed).
		Msg("run finished")
	return summary, nil
}

// applyLedgerChanges drops superseded entries and records chapters found
// complete on disk
func (c *MangaController) applyLedgerChanges(manga *data.Manga, mwd, language string, result ReconcileResult) error {
	if len(result.Removed) == 0 && len(result.Keep) == 0 {
		return nil
	}
	for _, number := range result.Removed {
		c.ledger.RemoveChapter(manga.Name, number)
	}
	if len(result.Keep) > 0 {
		c.ledger.Merge(data.MangaLedger{Name: manga.Name, ID: manga.ID, MWD: mwd, Language: language, Chapters: result.Keep})
	}
	return c.ledger.Save()
}
