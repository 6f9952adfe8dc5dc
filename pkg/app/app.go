package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mdown/pkg/app/screens"
	"github.com/kerbaras/mdown/pkg/services"
)

// App renders a pipeline run in the terminal
type App struct {
	pc   *services.PipelineContext
	run  screens.RunFunc
	stop context.CancelFunc
}

func NewApp(pc *services.PipelineContext, run screens.RunFunc, stop context.CancelFunc) *App {
	return &App{pc: pc, run: run, stop: stop}
}

// Run blocks until the pipeline returns and hands back its result
func (a *App) Run() (*services.Summary, error) {
	model := screens.NewDownloadScreen(a.pc, a.run, a.stop)
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running tui: %w", err)
	}
	screen, ok := final.(*screens.DownloadScreen)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", final)
	}
	return screen.Result()
}
