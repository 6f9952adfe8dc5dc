package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultFolder   = "."
	DefaultCacheDir = ".cache"
	DefaultLanguage = "en"

	DefaultMaxConsecutive = 40
	CautionMaxConsecutive = 50

	DefaultBaseURL       = "https://api.mangadex.org"
	DefaultRetryInterval = 60 * time.Second

	DefaultLedgerFile  = "dat.json"
	DefaultHistoryDB   = "history.db"
	DefaultResourceDir = "resources"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// ConfigDir returns the config directory path
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mdown")
	}
	return ".mdown"
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
