package screens

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mdown/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestScreen(t *testing.T) (*DownloadScreen, *services.PipelineContext, *bool) {
	t.Helper()
	pc := services.NewPipelineContext(nil)
	stopped := false
	run := func() (*services.Summary, error) { return &services.Summary{Downloaded: 1}, nil }
	return NewDownloadScreen(pc, run, func() { stopped = true }), pc, &stopped
}

func TestDownloadScreen_SkipKeyCancelsChapter(t *testing.T) {
	screen, pc, stopped := newTestScreen(t)

	screen.Update(key("c"))

	assert.True(t, pc.Cancelled())
	assert.False(t, *stopped)
}

func TestDownloadScreen_QuitStopsRun(t *testing.T) {
	screen, pc, stopped := newTestScreen(t)

	_, cmd := screen.Update(key("q"))

	assert.Nil(t, cmd, "quit waits for the run to return")
	assert.True(t, *stopped)
	assert.True(t, pc.Cancelled())
	assert.Contains(t, screen.View(), "stopping")
}

func TestDownloadScreen_ProgressKeepsListening(t *testing.T) {
	screen, _, _ := newTestScreen(t)

	_, cmd := screen.Update(ProgressMsg(services.ProgressEvent{
		Kind:      services.EventDecision,
		MangaName: "Berserk",
		Decision:  services.Download,
	}))

	assert.NotNil(t, cmd)
	assert.Contains(t, screen.View(), "Berserk")
}

func TestDownloadScreen_RunDoneQuits(t *testing.T) {
	screen, _, _ := newTestScreen(t)

	_, err := screen.Result()
	assert.Error(t, err)

	_, cmd := screen.Update(RunDoneMsg{Summary: &services.Summary{Downloaded: 2}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	summary, err := screen.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Downloaded)
	assert.True(t, strings.Contains(screen.View(), "done"))
}

func TestDownloadScreen_RunErrorIsReturned(t *testing.T) {
	screen, _, _ := newTestScreen(t)
	boom := errors.New("feed unavailable")

	screen.Update(RunDoneMsg{Err: boom})

	_, err := screen.Result()
	assert.ErrorIs(t, err, boom)
}

func TestDownloadScreen_StartRunsPipeline(t *testing.T) {
	screen, _, _ := newTestScreen(t)

	msg := screen.start()()

	done, ok := msg.(RunDoneMsg)
	require.True(t, ok)
	assert.Equal(t, 1, done.Summary.Downloaded)
}
