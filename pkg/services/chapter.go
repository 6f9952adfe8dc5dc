package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/integrations"
	"github.com/kerbaras/mdown/pkg/sources"
	"github.com/kerbaras/mdown/pkg/utils"
)

// HistoryRecorder stores the outcome of every chapter a run touched
type HistoryRecorder interface {
	Record(ctx context.Context, e data.HistoryEntry) error
}

// ChapterDownloader takes one chapter classified Download from manifest to archive
type ChapterDownloader struct {
	source       sources.Source
	pages        *PageDownloader
	ledger       *data.LedgerStore
	history      HistoryRecorder
	pollInterval time.Duration

	// archive packs the work dir into the chapter archive
	archive func(sourceDir, destFile string) error
}

// NewChapterDownloader creates a chapter downloader. history may be nil.
func NewChapterDownloader(source sources.Source, pages *PageDownloader, ledger *data.LedgerStore, history HistoryRecorder) *ChapterDownloader {
	return &ChapterDownloader{
		source:       source,
		pages:        pages,
		ledger:       ledger,
		history:      history,
		pollInterval: DefaultPollInterval,
		archive:      integrations.Archive,
	}
}

// DownloadChapter downloads every page of item, archives them and records the
// chapter in the ledger. mwd is the manga output folder recorded in the ledger.
func (c *ChapterDownloader) DownloadChapter(ctx context.Context, pc *PipelineContext, manga *data.Manga, mwd string, item WorkItem) (ChapterOutcome, error) {
	// a skip requested after the previous chapter's last batch does not carry over
	pc.ResetCancel()
	outcome, err := c.download(ctx, pc, manga, mwd, item)
	c.record(ctx, pc, manga, item, outcome, err)
	return outcome, err
}

func (c *ChapterDownloader) download(ctx context.Context, pc *PipelineContext, manga *data.Manga, mwd string, item WorkItem) (ChapterOutcome, error) {
	name := item.Name
	log := pc.Log.With().Str("chapter", item.Record.Number).Str("chapter_id", item.Record.ID).Logger()

	manifest, err := c.source.GetChapterManifest(ctx, item.Record.ID, pc.Saver)
	if err != nil {
		return Incomplete, err
	}

	if err := os.MkdirAll(name.WorkDir(), 0755); err != nil {
		return Incomplete, utils.IoError(name.WorkDir(), err)
	}
	if err := writeSentinel(name.LockPath(), 0); err != nil {
		return Incomplete, err
	}
	defer func() {
		if err := removeSentinel(name.LockPath()); err != nil {
			pc.Suspend(name.Label(), err)
		}
	}()

	if err := c.writeMetadata(ctx, pc, manga, item, manifest); err != nil {
		return Incomplete, err
	}

	tasks := make([]PageTask, len(manifest.Images))
	for i, image := range manifest.Images {
		tasks[i] = PageTask{
			Index:     i,
			Image:     image,
			URL:       manifest.PageURL(image),
			Target:    name.PagePath(i + 1),
			Lock:      name.PageLockPath(i + 1),
			FinalLock: name.FinalLockPath(i + 1),
		}
	}

	pc.setChapter(name.Label(), len(tasks))
	pc.Emit(ProgressEvent{
		Kind:          EventChapterStart,
		MangaID:       manga.ID,
		MangaName:     manga.Name,
		ChapterID:     item.Record.ID,
		ChapterNumber: item.Record.Number,
		Label:         name.Label(),
		TotalPages:    len(tasks),
	})
	log.Info().Int("pages", len(tasks)).Str("mode", manifest.Mode).Msg("downloading chapter")

	w := startWaiter(pc, name, len(tasks), c.pollInterval)
	outcome, err := c.pages.Download(ctx, pc, tasks)
	if err != nil || outcome != Complete {
		w.stop()
		log.Warn().Err(err).Msg("chapter incomplete")
		return Incomplete, err
	}

	// page sentinels outlive the archive step
	err = c.archive(name.WorkDir(), name.ArchivePath())
	w.stop()
	if err != nil {
		return Incomplete, err
	}
	if err := os.RemoveAll(name.WorkDir()); err != nil {
		pc.Suspend(name.Label(), utils.IoError(name.WorkDir(), err))
	}

	c.ledger.Merge(data.MangaLedger{
		Name:     manga.Name,
		ID:       manga.ID,
		MWD:      mwd,
		Language: item.Record.Language,
		Chapters: []data.LedgerChapter{{
			Number:    item.Record.Number,
			UpdatedAt: item.Record.UpdatedAt,
			ID:        item.Record.ID,
		}},
	})
	if err := c.ledger.Save(); err != nil {
		return Incomplete, err
	}

	pc.addDownloaded()
	log.Info().Str("archive", name.ArchivePath()).Msg("chapter complete")
	return Complete, nil
}

func (c *ChapterDownloader) writeMetadata(ctx context.Context, pc *PipelineContext, manga *data.Manga, item WorkItem, manifest *sources.Manifest) error {
	group, err := c.source.GetGroup(ctx, item.Record.GroupID)
	if err != nil {
		pc.Suspend(fmt.Sprintf("group %s", item.Record.GroupID), err)
		group = data.Scanlation{Name: "Unknown", Website: "None"}
	}

	meta := data.ChapterMetadata{
		Name:       manga.Name,
		ID:         item.Record.ID,
		MangaID:    manga.ID,
		Saver:      manifest.Saver(),
		Title:      item.Record.Title,
		Pages:      strconv.Itoa(len(manifest.Images)),
		Chapter:    item.Record.Number,
		Volume:     item.Record.Volume,
		Scanlation: group,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return utils.JsonError(item.Name.MetadataPath(), err)
	}
	if err := os.WriteFile(item.Name.MetadataPath(), raw, 0644); err != nil {
		return utils.IoError(item.Name.MetadataPath(), err)
	}
	return nil
}

func (c *ChapterDownloader) record(ctx context.Context, pc *PipelineContext, manga *data.Manga, item WorkItem, outcome ChapterOutcome, err error) {
	snap := pc.Snapshot()
	pc.Emit(ProgressEvent{
		Kind:          EventChapterDone,
		MangaID:       manga.ID,
		MangaName:     manga.Name,
		ChapterID:     item.Record.ID,
		ChapterNumber: item.Record.Number,
		Label:         item.Name.Label(),
		Outcome:       outcome,
		Error:         err,
	})

	if c.history == nil {
		return
	}
	entry := data.HistoryEntry{
		HandleID:      pc.Handle,
		MangaID:       manga.ID,
		MangaName:     manga.Name,
		ChapterID:     item.Record.ID,
		ChapterNumber: item.Record.Number,
		Volume:        item.Record.Volume,
		Outcome:       string(outcome),
		Pages:         int(snap.CurrentPage),
		Bytes:         snap.MaxSize,
		RecordedAt:    time.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if herr := c.history.Record(context.WithoutCancel(ctx), entry); herr != nil {
		pc.Suspend("history", herr)
	}
}
