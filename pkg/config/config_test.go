package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		check   func(*testing.T, *Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			modify: func(c *Config) {},
		},
		{
			name:   "max consecutive below one falls back to default",
			modify: func(c *Config) { c.MaxConsecutive = 0 },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultMaxConsecutive, c.MaxConsecutive)
			},
		},
		{
			name:   "empty folder is rejected",
			modify: func(c *Config) { c.Folder = "" },
			wantErr: true,
		},
		{
			name:   "missing retry interval falls back to a minute",
			modify: func(c *Config) { c.API.RetryInterval = 0 },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, time.Minute, c.API.RetryInterval)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_ExceedsCaution(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.ExceedsCaution())
	cfg.MaxConsecutive = 51
	assert.True(t, cfg.ExceedsCaution())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("folder: /tmp/manga\nlanguage: fr\nmax_consecutive: 12\napi:\n  retry_interval: 5s\n"), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/manga", cfg.Folder)
	assert.Equal(t, "fr", cfg.Language)
	assert.Equal(t, 12, cfg.MaxConsecutive)
	assert.Equal(t, 5*time.Second, cfg.API.RetryInterval)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultLedgerFile, cfg.Store.LedgerFile)
}

func TestLoad_Env(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("language: fr\n"), 0644))
	t.Setenv("MDOWN_LANGUAGE", "es")

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "es", cfg.Language)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default().MaxConsecutive, cfg.MaxConsecutive)
	assert.Equal(t, Default().Store, cfg.Store)
}
