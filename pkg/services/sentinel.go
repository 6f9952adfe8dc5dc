package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kerbaras/mdown/pkg/utils"
)

// DefaultPollInterval is how often the waiter aggregates page sentinels
const DefaultPollInterval = 100 * time.Millisecond

// LockPath is the chapter-level sentinel; it exists while the chapter downloads
func (f FileName) LockPath() string {
	return filepath.Join(f.CacheDir, f.FolderName()+".lock")
}

// PageLockPath holds the bytes downloaded so far for page n
func (f FileName) PageLockPath(n int) string {
	return filepath.Join(f.CacheDir, fmt.Sprintf("%s_%d.lock", f.FolderName(), n))
}

// FinalLockPath holds the declared total size of page n
func (f FileName) FinalLockPath(n int) string {
	return filepath.Join(f.CacheDir, fmt.Sprintf("%s_%d_final.lock", f.FolderName(), n))
}

// ChapterInProgress reports whether some process holds the chapter lock
func ChapterInProgress(name FileName) bool {
	_, err := os.Stat(name.LockPath())
	return err == nil
}

func writeSentinel(path string, value int64) error {
	if err := os.WriteFile(path, []byte(strconv.FormatInt(value, 10)), 0644); err != nil {
		return utils.IoError(path, err)
	}
	return nil
}

// readSentinel returns the number stored at path, or 0 if it is missing or
// still being written
func readSentinel(path string) int64 {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func removeSentinel(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return utils.IoError(path, err)
	}
	return nil
}

// waiter is the single owner of reads and deletion of a chapter's page
// sentinels. Page tasks only ever write their own files.
type waiter struct {
	pc       *PipelineContext
	name     FileName
	pages    int
	interval time.Duration

	done    chan struct{}
	stopped chan struct{}
}

func startWaiter(pc *PipelineContext, name FileName, pages int, interval time.Duration) *waiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	w := &waiter{
		pc:       pc,
		name:     name,
		pages:    pages,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *waiter) run() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			w.poll()
			w.cleanup()
			return
		case <-ticker.C:
			w.poll()
			if !ChapterInProgress(w.name) {
				w.cleanup()
				return
			}
		}
	}
}

// poll sums downloaded and declared bytes across every page of the chapter
func (w *waiter) poll() {
	var size, total int64
	for n := 1; n <= w.pages; n++ {
		size += readSentinel(w.name.PageLockPath(n))
		total += readSentinel(w.name.FinalLockPath(n))
	}
	w.pc.setSizes(size, total)
	w.pc.Emit(ProgressEvent{
		Kind:          EventBytes,
		ChapterNumber: w.name.Chapter,
		Label:         w.name.Label(),
		Size:          size,
		MaxSize:       total,
	})
}

func (w *waiter) cleanup() {
	for n := 1; n <= w.pages; n++ {
		for _, path := range []string{w.name.PageLockPath(n), w.name.FinalLockPath(n)} {
			if err := removeSentinel(path); err != nil {
				w.pc.Suspend(w.name.Label(), err)
			}
		}
	}
}

// stop makes the waiter take a final reading, delete the page sentinels and exit
func (w *waiter) stop() {
	select {
	case <-w.stopped:
		return
	default:
	}
	close(w.done)
	<-w.stopped
}
