package screens

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mdown/pkg/app/components"
	"github.com/kerbaras/mdown/pkg/app/styles"
	"github.com/kerbaras/mdown/pkg/services"
)

const snapshotInterval = 100 * time.Millisecond

// RunFunc runs the pipeline to completion
type RunFunc func() (*services.Summary, error)

// ProgressMsg carries one pipeline event
type ProgressMsg services.ProgressEvent

// RunDoneMsg is sent when the pipeline returns
type RunDoneMsg struct {
	Summary *services.Summary
	Err     error
}

type snapshotMsg time.Time

type eventsClosedMsg struct{}

// DownloadScreen shows a running download and quits once it returns
type DownloadScreen struct {
	pc      *services.PipelineContext
	run     RunFunc
	stop    context.CancelFunc
	tracker *components.ProgressTracker
	spinner spinner.Model

	summary  *services.Summary
	err      error
	done     bool
	stopping bool
	width    int
}

func NewDownloadScreen(pc *services.PipelineContext, run RunFunc, stop context.CancelFunc) *DownloadScreen {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	return &DownloadScreen{
		pc:      pc,
		run:     run,
		stop:    stop,
		tracker: components.NewProgressTracker(60),
		spinner: s,
		width:   80,
	}
}

func (d *DownloadScreen) Init() tea.Cmd {
	return tea.Batch(
		d.spinner.Tick,
		d.start(),
		listen(d.pc.Events()),
		tickSnapshot(),
	)
}

func (d *DownloadScreen) start() tea.Cmd {
	return func() tea.Msg {
		summary, err := d.run()
		return RunDoneMsg{Summary: summary, Err: err}
	}
}

func listen(events <-chan services.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return ProgressMsg(ev)
	}
}

func tickSnapshot() tea.Cmd {
	return tea.Tick(snapshotInterval, func(t time.Time) tea.Msg {
		return snapshotMsg(t)
	})
}

func (d *DownloadScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.tracker.SetWidth(max(msg.Width-4, 10))

	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			// abandons the chapter in flight, the run moves on
			d.pc.Cancel()
		case "q", "ctrl+c":
			if !d.stopping {
				d.stopping = true
				d.pc.Cancel()
				if d.stop != nil {
					d.stop()
				}
			}
		}

	case ProgressMsg:
		d.tracker.Update(services.ProgressEvent(msg))
		return d, listen(d.pc.Events())

	case eventsClosedMsg:
		return d, nil

	case snapshotMsg:
		d.tracker.SetSnapshot(d.pc.Snapshot())
		if d.done {
			return d, nil
		}
		return d, tickSnapshot()

	case RunDoneMsg:
		d.done = true
		d.summary = msg.Summary
		d.err = msg.Err
		d.tracker.SetSnapshot(d.pc.Snapshot())
		return d, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd
	}

	return d, nil
}

func (d *DownloadScreen) View() string {
	header := d.spinner.View() + " " + styles.MutedStyle.Render("downloading")
	switch {
	case d.done:
		header = styles.StatusCompleted.Render("done")
	case d.stopping:
		header = styles.StatusWarning.Render("stopping, waiting for the current batch")
	}

	help := styles.HelpStyle.Render("c: skip chapter • q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, "", d.tracker.View(), help)
}

// Result returns what the pipeline returned, or an error if it never finished
func (d *DownloadScreen) Result() (*services.Summary, error) {
	if !d.done {
		return d.summary, fmt.Errorf("download interrupted")
	}
	return d.summary, d.err
}

// Errors returns the suspended errors seen while the screen was running
func (d *DownloadScreen) Errors() []string {
	return d.tracker.Errors()
}
