package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kerbaras/mdown/pkg/config"
	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err, "existing config is not overwritten without --force")

	out, err = execute(t, "--config", path, "--folder", "/srv/manga", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "folder: /srv/manga")
	assert.Contains(t, out, "max_consecutive: 40")
}

func TestDownloadRequiresID(t *testing.T) {
	_, err := execute(t, "download")
	assert.Error(t, err)
}

func TestStorePath(t *testing.T) {
	assert.Equal(t, "/var/lib/mdown/dat.json", storePath("/var/lib/mdown/dat.json"))
	assert.Equal(t, filepath.Join(config.ConfigDir(), "dat.json"), storePath("dat.json"))
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Berserk", 10, "Berserk"},
		{"Vinland Saga", 10, "Vinland..."},
		{"ワンピース ONE PIECE", 8, "ワンピース..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateString(tt.in, tt.max))
	}
}

func TestRunPlainDrainsEvents(t *testing.T) {
	pc := services.NewPipelineContext(nil)
	var out bytes.Buffer

	summary, err := runPlain(pc, func() (*services.Summary, error) {
		defer pc.CloseEvents()
		pc.Emit(services.ProgressEvent{Kind: services.EventChapterStart, Label: "Ch.1", TotalPages: 2})
		pc.Emit(services.ProgressEvent{Kind: services.EventPage, CurrentPage: 2, TotalPages: 2})
		pc.Emit(services.ProgressEvent{Kind: services.EventChapterDone, Label: "Ch.1", Outcome: services.Complete})
		return &services.Summary{Downloaded: 1}, nil
	}, &out, true)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Contains(t, out.String(), "Ch.1 complete")
}

// ledgerConfig writes a config whose stores all live under dir
func ledgerConfig(t *testing.T, dir, ledger string) string {
	t.Helper()
	ledgerPath := filepath.Join(dir, "dat.json")
	require.NoError(t, os.WriteFile(ledgerPath, []byte(ledger), 0644))

	cfg := fmt.Sprintf(`folder: %s
cache_dir: %s
logging:
  level: error
store:
  ledger_file: %s
  history_db: %s
  resource_dir: %s
`,
		filepath.Join(dir, "manga"),
		filepath.Join(dir, "cache"),
		ledgerPath,
		filepath.Join(dir, "history.duckdb"),
		filepath.Join(dir, "resources"),
	)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func TestLedgerList(t *testing.T) {
	dir := t.TempDir()
	mwd := filepath.Join(dir, "manga", "Berserk")
	require.NoError(t, os.MkdirAll(mwd, 0755))
	cfgPath := ledgerConfig(t, dir, fmt.Sprintf(`{"data":[{"name":"Berserk","id":"m-1","mwd":%q,"cover":true,"current_language":"en",
"chapters":[{"number":"1","updated_at":"2024-01-01T00:00:00+00:00","id":"c-1-en"}]}],"version":"test"}`, mwd))

	out, err := execute(t, "--config", cfgPath, "ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Berserk")
	assert.Contains(t, out, "1 manga")

	out, err = execute(t, "--config", cfgPath, "ledger", "list", "Berserk")
	require.NoError(t, err)
	assert.Contains(t, out, "c-1-en")
	assert.Contains(t, out, "cover true")

	_, err = execute(t, "--config", cfgPath, "ledger", "list", "Vagabond")
	assert.Error(t, err)
}

func TestLedgerCheckDropsMissingFolders(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "manga", "Vagabond")
	cfgPath := ledgerConfig(t, dir, fmt.Sprintf(`{"data":[{"name":"Vagabond","id":"m-2","mwd":%q,"cover":false,"chapters":[]}],"version":"test"}`, gone))

	out, err := execute(t, "--config", cfgPath, "ledger", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "removed from ledger")

	ledger := data.NewLedgerStore(filepath.Join(dir, "dat.json"), "test")
	require.NoError(t, ledger.Load())
	assert.Empty(t, ledger.Document().Data)
}
