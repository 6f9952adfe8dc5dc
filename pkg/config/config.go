package config

import (
	"errors"
	"time"
)

// Config represents the application configuration
type Config struct {
	Folder         string        `mapstructure:"folder" yaml:"folder"`
	CacheDir       string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	Language       string        `mapstructure:"language" yaml:"language"`
	MaxConsecutive int           `mapstructure:"max_consecutive" yaml:"max_consecutive"`
	Saver          bool          `mapstructure:"saver" yaml:"saver"`
	API            APIConfig     `mapstructure:"api" yaml:"api"`
	Store          StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging        LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// APIConfig contains remote catalog settings
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// StoreConfig contains the on-disk stores used between runs
type StoreConfig struct {
	LedgerFile  string `mapstructure:"ledger_file" yaml:"ledger_file"`
	HistoryDB   string `mapstructure:"history_db" yaml:"history_db"`
	ResourceDir string `mapstructure:"resource_dir" yaml:"resource_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// ErrNoFolder is returned when no download folder is configured
var ErrNoFolder = errors.New("download folder must not be empty")

// Validate clamps invalid values to defaults and rejects unusable ones
func (c *Config) Validate() error {
	if c.Folder == "" {
		return ErrNoFolder
	}
	if c.MaxConsecutive < 1 {
		c.MaxConsecutive = DefaultMaxConsecutive
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.RetryInterval <= 0 {
		c.API.RetryInterval = DefaultRetryInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	return nil
}

// ExceedsCaution reports whether the batch size is above the recommended ceiling.
// Larger batches tend to leave partial or corrupt pages under real-world load.
func (c *Config) ExceedsCaution() bool {
	return c.MaxConsecutive > CautionMaxConsecutive
}

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		Folder:         DefaultFolder,
		CacheDir:       DefaultCacheDir,
		Language:       DefaultLanguage,
		MaxConsecutive: DefaultMaxConsecutive,
		API: APIConfig{
			BaseURL:       DefaultBaseURL,
			RetryInterval: DefaultRetryInterval,
		},
		Store: StoreConfig{
			LedgerFile:  DefaultLedgerFile,
			HistoryDB:   DefaultHistoryDB,
			ResourceDir: DefaultResourceDir,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
