package services

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kerbaras/mdown/pkg/utils"
)

// EventKind identifies what a ProgressEvent reports
type EventKind string

const (
	EventFetch        EventKind = "fetch"
	EventDecision     EventKind = "decision"
	EventChapterStart EventKind = "chapter_start"
	EventPage         EventKind = "page"
	EventBytes        EventKind = "bytes"
	EventBatch        EventKind = "batch"
	EventChapterDone  EventKind = "chapter_done"
	EventError        EventKind = "error"
)

// ProgressEvent is a structured progress update for front-ends
type ProgressEvent struct {
	Kind          EventKind
	MangaID       string
	MangaName     string
	ChapterID     string
	ChapterNumber string
	Label         string
	Decision      Decision
	CurrentPage   int
	TotalPages    int
	Batch         int
	Size          int64
	MaxSize       int64
	Outcome       ChapterOutcome
	Error         error
}

// Snapshot is a point-in-time copy of the progress counters
type Snapshot struct {
	CurrentPage    int64
	PageMax        int64
	ChapterLabel   string
	Size           int64
	MaxSize        int64
	Parsed         int64
	ParsedMax      int64
	Downloaded     int64
	SuspendedCount int
}

// Percent returns the byte progress of the current chapter in [0, 100]
func (s Snapshot) Percent() float64 {
	if s.MaxSize <= 0 {
		return 0
	}
	p := float64(s.Size) / float64(s.MaxSize) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// PipelineContext is the state shared by every stage of one run. Counters are
// atomics so front-ends can read them without locking.
type PipelineContext struct {
	Handle    string
	Saver     bool
	Update    bool
	Log       *utils.Logger
	Suspended *utils.SuspendedErrors

	currentPage atomic.Int64
	pageMax     atomic.Int64
	size        atomic.Int64
	maxSize     atomic.Int64
	parsed      atomic.Int64
	parsedMax   atomic.Int64
	downloaded  atomic.Int64
	cancel      atomic.Bool

	labelMu sync.RWMutex
	label   string

	evMu   sync.RWMutex
	events chan ProgressEvent
	closed bool
}

// NewPipelineContext creates a context with a fresh run handle
func NewPipelineContext(log *utils.Logger) *PipelineContext {
	if log == nil {
		log = utils.NewNopLogger()
	}
	handle := uuid.NewString()
	return &PipelineContext{
		Handle:    handle,
		Log:       log.WithHandle(handle),
		Suspended: &utils.SuspendedErrors{},
		events:    make(chan ProgressEvent, 100),
	}
}

// Events returns the channel progress events are delivered on
func (p *PipelineContext) Events() <-chan ProgressEvent {
	return p.events
}

// Emit delivers an event without blocking; it is dropped if no one keeps up
func (p *PipelineContext) Emit(ev ProgressEvent) {
	p.evMu.RLock()
	defer p.evMu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}

// CloseEvents closes the event channel. Later Emit calls are ignored.
func (p *PipelineContext) CloseEvents() {
	p.evMu.Lock()
	defer p.evMu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
}

// Cancel requests that in-flight page downloads stop at their next chunk
func (p *PipelineContext) Cancel() {
	p.cancel.Store(true)
}

// Cancelled reports whether cancellation has been requested
func (p *PipelineContext) Cancelled() bool {
	return p.cancel.Load()
}

// ResetCancel clears the cancellation flag and reports whether it was set
func (p *PipelineContext) ResetCancel() bool {
	return p.cancel.Swap(false)
}

// Suspend records a non-fatal error and reports it to front-ends
func (p *PipelineContext) Suspend(context string, err error) {
	if err == nil {
		return
	}
	p.Suspended.Suspend(context, err)
	p.Log.Warn().Err(err).Str("context", context).Msg("error suspended")
	p.Emit(ProgressEvent{Kind: EventError, Label: context, Error: err})
}

func (p *PipelineContext) setChapter(label string, pages int) {
	p.labelMu.Lock()
	p.label = label
	p.labelMu.Unlock()
	p.currentPage.Store(0)
	p.pageMax.Store(int64(pages))
	p.size.Store(0)
	p.maxSize.Store(0)
}

func (p *PipelineContext) setPage(page int) { p.currentPage.Store(int64(page)) }

func (p *PipelineContext) setSizes(size, total int64) {
	p.size.Store(size)
	p.maxSize.Store(total)
}

func (p *PipelineContext) setParsedMax(n int) { p.parsedMax.Store(int64(n)) }

func (p *PipelineContext) addParsed() { p.parsed.Add(1) }

func (p *PipelineContext) addDownloaded() { p.downloaded.Add(1) }

// Snapshot returns the current counters
func (p *PipelineContext) Snapshot() Snapshot {
	p.labelMu.RLock()
	label := p.label
	p.labelMu.RUnlock()
	return Snapshot{
		CurrentPage:    p.currentPage.Load(),
		PageMax:        p.pageMax.Load(),
		ChapterLabel:   label,
		Size:           p.size.Load(),
		MaxSize:        p.maxSize.Load(),
		Parsed:         p.parsed.Load(),
		ParsedMax:      p.parsedMax.Load(),
		Downloaded:     p.downloaded.Load(),
		SuspendedCount: p.Suspended.Len(),
	}
}
