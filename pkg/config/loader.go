package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from defaults, config file, environment and
// any flags already bound to v. A nil v uses the global viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	setDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// MDOWN_MAX_CONSECUTIVE, MDOWN_API_BASE_URL, ...
	v.SetEnvPrefix("MDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("folder", DefaultFolder)
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("language", DefaultLanguage)
	v.SetDefault("max_consecutive", DefaultMaxConsecutive)
	v.SetDefault("saver", false)

	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.user_agent", "")
	v.SetDefault("api.retry_interval", DefaultRetryInterval)

	v.SetDefault("store.ledger_file", DefaultLedgerFile)
	v.SetDefault("store.history_db", DefaultHistoryDB)
	v.SetDefault("store.resource_dir", DefaultResourceDir)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.file", "")
}

// WriteDefault writes the default configuration to path as YAML
func WriteDefault(path string) error {
	out, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
