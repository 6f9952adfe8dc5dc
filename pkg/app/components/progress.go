package components

import (
	"fmt"
	"strings"

	"github.com/kerbaras/mdown/pkg/app/styles"
	"github.com/kerbaras/mdown/pkg/services"
)

const maxFinished = 5

// FinishedChapter is a chapter the run is done with
type FinishedChapter struct {
	Label   string
	Outcome services.ChapterOutcome
	Err     error
}

// ProgressTracker folds progress events into what the download screen shows
type ProgressTracker struct {
	manga     string
	stage     string
	decisions map[services.Decision]int
	active    *services.ProgressEvent
	batch     int
	snapshot  services.Snapshot
	finished  []FinishedChapter
	errors    []string
	width     int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		decisions: make(map[services.Decision]int),
		width:     width,
	}
}

// SetWidth resizes the progress bars
func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

func (p *ProgressTracker) Update(ev services.ProgressEvent) {
	if ev.MangaName != "" {
		p.manga = ev.MangaName
	}
	switch ev.Kind {
	case services.EventFetch:
		p.stage = "fetching " + ev.Label
	case services.EventDecision:
		p.stage = "reconciling"
		p.decisions[ev.Decision]++
	case services.EventChapterStart:
		p.stage = "downloading"
		e := ev
		p.active = &e
		p.batch = 0
	case services.EventBatch:
		p.batch = ev.Batch
	case services.EventChapterDone:
		p.active = nil
		p.finished = append(p.finished, FinishedChapter{Label: ev.Label, Outcome: ev.Outcome, Err: ev.Error})
		if len(p.finished) > maxFinished {
			p.finished = p.finished[len(p.finished)-maxFinished:]
		}
	case services.EventError:
		p.errors = append(p.errors, fmt.Sprintf("[%s] %v", ev.Label, ev.Error))
	}
}

// SetSnapshot records the latest counters read from the pipeline
func (p *ProgressTracker) SetSnapshot(s services.Snapshot) {
	p.snapshot = s
}

func (p *ProgressTracker) HasActive() bool {
	return p.active != nil
}

// Decisions returns how many chapters received d
func (p *ProgressTracker) Decisions(d services.Decision) int {
	return p.decisions[d]
}

func (p *ProgressTracker) Errors() []string {
	return p.errors
}

func (p *ProgressTracker) View() string {
	var b strings.Builder

	title := "mdown"
	if p.manga != "" {
		title = p.manga
	}
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n")
	if p.stage != "" {
		b.WriteString(styles.SubtitleStyle.Render(p.stage))
		b.WriteString("\n")
	}

	if len(p.decisions) > 0 {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf(
			"to download %d • existing %d • other language %d • superseded %d",
			p.decisions[services.Download],
			p.decisions[services.SkipExisting],
			p.decisions[services.SkipLanguage],
			p.decisions[services.Superseded],
		)))
		b.WriteString("\n")
	}

	s := p.snapshot
	if s.ParsedMax > 0 {
		b.WriteString("\n")
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("Chapters %d/%d", s.Parsed, s.ParsedMax)))
		b.WriteString("\n")
		b.WriteString(renderProgressBar(int(s.Parsed), int(s.ParsedMax), p.width-4))
		b.WriteString("\n")
	}

	if p.active != nil {
		b.WriteString("\n")
		b.WriteString(styles.StatusDownloading.Render(fmt.Sprintf("%s  batch %d", p.active.Label, p.batch)))
		b.WriteString("\n")
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("pages %d/%d • %s/%s (%.0f%%)",
			s.CurrentPage, s.PageMax, formatBytes(s.Size), formatBytes(s.MaxSize), s.Percent())))
		b.WriteString("\n")
		b.WriteString(renderProgressBar(int(s.CurrentPage), int(s.PageMax), p.width-4))
		b.WriteString("\n")
	}

	if len(p.finished) > 0 {
		b.WriteString("\n")
		for _, f := range p.finished {
			line := fmt.Sprintf("%s %s", f.Label, f.Outcome)
			if f.Err != nil {
				line += ": " + f.Err.Error()
			}
			b.WriteString(styles.StatusStyle(string(f.Outcome)).Render(line))
			b.WriteString("\n")
		}
	}

	if n := len(p.errors); n > 0 {
		b.WriteString("\n")
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("%d suspended errors, last: %s", n, p.errors[n-1])))
		b.WriteString("\n")
	}

	return b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return styles.ProgressBarStyle.Render(bar)
}

// SimpleProgress renders a simple progress bar
func SimpleProgress(current, total, width int) string {
	return renderProgressBar(current, total, width)
}
