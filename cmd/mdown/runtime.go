package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kerbaras/mdown/pkg/config"
	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/utils"
	"github.com/spf13/viper"
)

// runtime holds the configuration and the stores a command opened.
// Stores are opened on demand and released by close.
type runtime struct {
	cfg     *config.Config
	log     *utils.Logger
	version string
	closers []io.Closer
}

// newRuntime loads the configuration and builds the logger. With quiet set
// logs go to a file so they don't interleave with the terminal UI.
func newRuntime(v *viper.Viper, version string, quiet bool) (*runtime, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	rt := &runtime{cfg: cfg, version: version}

	var out io.Writer = os.Stderr
	format := cfg.Logging.Format
	logFile := cfg.Logging.File
	if quiet && logFile == "" {
		logFile = filepath.Join(cfg.CacheDir, "mdown.log")
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, utils.IoError(logFile, err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, utils.IoError(logFile, err)
		}
		rt.closers = append(rt.closers, f)
		out = f
		format = "json"
	}

	rt.log = utils.NewLogger(utils.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: format,
		Output: out,
	})
	return rt, nil
}

// storePath resolves relative store locations against the config directory
func storePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(config.ConfigDir(), p)
}

func (r *runtime) openLedger() (*data.LedgerStore, error) {
	ledger := data.NewLedgerStore(storePath(r.cfg.Store.LedgerFile), r.version)
	if err := ledger.Load(); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (r *runtime) openHistory() (*data.HistoryRepository, error) {
	history, err := data.NewHistoryRepository(storePath(r.cfg.Store.HistoryDB))
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, history)
	return history, nil
}

func (r *runtime) openResources() (*data.ResourceStore, error) {
	store, err := data.NewResourceStore(data.ResourceOptions{Directory: storePath(r.cfg.Store.ResourceDir)})
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, store)
	return store, nil
}

// close releases everything in reverse order of opening
func (r *runtime) close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
