package services

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/kerbaras/mdown/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// ChapterOutcome is how a chapter download ended
type ChapterOutcome string

const (
	Complete   ChapterOutcome = "complete"
	Incomplete ChapterOutcome = "incomplete"
)

const (
	// DefaultStagger delays each page task by its index within the batch
	DefaultStagger = 50 * time.Millisecond
	// DefaultProgressInterval is how often a page task rewrites its progress sentinel
	DefaultProgressInterval = 250 * time.Millisecond

	chunkSize = 32 * 1024
)

var errCancelled = errors.New("download cancelled")

// PageTask is one page of a chapter
type PageTask struct {
	Index     int // 0-based
	Image     string
	URL       string
	Target    string
	Lock      string
	FinalLock string
}

// Streamer fetches a page body along with its declared length
type Streamer interface {
	Stream(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

// PageDownloader downloads the pages of one chapter in fixed-size batches.
// Every task of a batch returns before the next batch starts.
type PageDownloader struct {
	streamer       Streamer
	maxConsecutive int
	stagger        time.Duration
	progressEvery  time.Duration

	// trace observes task start and end, used by tests
	trace func(start bool, task PageTask)
}

// NewPageDownloader creates a downloader running at most maxConsecutive pages at a time
func NewPageDownloader(streamer Streamer, maxConsecutive int) *PageDownloader {
	if maxConsecutive < 1 {
		maxConsecutive = 1
	}
	return &PageDownloader{
		streamer:       streamer,
		maxConsecutive: maxConsecutive,
		stagger:        DefaultStagger,
		progressEvery:  DefaultProgressInterval,
	}
}

// Batches splits tasks into consecutive groups of at most size elements
func Batches(tasks []PageTask, size int) [][]PageTask {
	if size < 1 {
		size = 1
	}
	var out [][]PageTask
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		out = append(out, tasks[start:end])
	}
	return out
}

// Download runs every task. It returns Incomplete without an error when the
// pipeline was cancelled or a page failed; failures are suspended on pc.
func (d *PageDownloader) Download(ctx context.Context, pc *PipelineContext, tasks []PageTask) (ChapterOutcome, error) {
	var done, failed atomic.Int64
	total := len(tasks)

	for i, batch := range Batches(tasks, d.maxConsecutive) {
		pc.Emit(ProgressEvent{Kind: EventBatch, Batch: i + 1, TotalPages: total})
		pc.Log.Debug().Int("batch", i+1).Int("pages", len(batch)).Msg("batch started")

		var g errgroup.Group
		for slot, task := range batch {
			g.Go(func() error {
				if d.trace != nil {
					d.trace(true, task)
					defer d.trace(false, task)
				}
				err := d.downloadPage(ctx, pc, task, slot)
				switch {
				case err == nil:
					n := done.Add(1)
					pc.setPage(int(n))
					pc.Emit(ProgressEvent{Kind: EventPage, CurrentPage: int(n), TotalPages: total})
				case errors.Is(err, errCancelled), errors.Is(err, context.Canceled):
				default:
					failed.Add(1)
					pc.Suspend(task.Target, err)
				}
				return nil
			})
		}
		_ = g.Wait()

		if pc.ResetCancel() {
			pc.Log.Info().Int("batch", i+1).Msg("download cancelled")
			return Incomplete, nil
		}
		if err := ctx.Err(); err != nil {
			return Incomplete, err
		}
	}

	if failed.Load() > 0 {
		return Incomplete, nil
	}
	return Complete, nil
}

func (d *PageDownloader) downloadPage(ctx context.Context, pc *PipelineContext, task PageTask, slot int) error {
	if slot > 0 && d.stagger > 0 {
		timer := time.NewTimer(time.Duration(slot) * d.stagger)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	if pc.Cancelled() {
		return errCancelled
	}

	body, length, err := d.streamer.Stream(ctx, task.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := writeSentinel(task.FinalLock, max(length, 0)); err != nil {
		return err
	}

	f, err := os.Create(task.Target)
	if err != nil {
		return utils.IoError(task.Target, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	var written int64
	last := time.Now()
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if pc.Cancelled() {
				return errCancelled
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return utils.IoError(task.Target, err)
			}
			written += int64(n)
			if time.Since(last) >= d.progressEvery {
				if err := writeSentinel(task.Lock, written); err != nil {
					return err
				}
				last = time.Now()
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return utils.NetworkError(task.URL, rerr)
		}
	}

	if err := f.Sync(); err != nil {
		return utils.IoError(task.Target, err)
	}
	return writeSentinel(task.Lock, written)
}
