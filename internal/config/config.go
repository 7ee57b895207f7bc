// Package config loads the single immutable configuration for a nutrisolve
// run. It is read once at process startup; nothing downstream mutates it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full, immutable run configuration. Passed down explicitly by
// value from cmd/nutrisolve to every component that needs it; there is no
// package-level global.
type Config struct {
	StoreDSN     string        `mapstructure:"store_dsn"`
	CatalogDir   string        `mapstructure:"catalog_dir"`
	Cardinality  int           `mapstructure:"cardinality"`
	Workers      int           `mapstructure:"workers"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	StartupGrace time.Duration `mapstructure:"startup_grace"`
	LogLevel     string        `mapstructure:"log_level"`
	Resume       bool          `mapstructure:"resume"`
}

// Load builds a Config from environment variables prefixed NUTRISOLVE_ and
// the given overrides (flag values from cobra win over environment values,
// which win over the defaults below). An empty configPath skips the optional
// config file lookup.
func Load(configPath string, overrides map[string]interface{}) (Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("nutrisolve")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range overrides {
		if val == nil {
			continue
		}
		switch t := val.(type) {
		case string:
			if t == "" {
				continue
			}
		case int:
			if t == 0 {
				continue
			}
		case time.Duration:
			if t == 0 {
				continue
			}
		case bool:
			if !t {
				continue
			}
		}
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_dsn", "./nutrisolve.db")
	v.SetDefault("catalog_dir", "./catalog")
	v.SetDefault("cardinality", 3)
	v.SetDefault("workers", 4)
	v.SetDefault("job_timeout", "1h")
	v.SetDefault("startup_grace", "2s")
	v.SetDefault("log_level", "info")
	v.SetDefault("resume", false)
}

func validate(cfg Config) error {
	if cfg.Cardinality <= 0 {
		return fmt.Errorf("cardinality must be positive, got %d", cfg.Cardinality)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.StoreDSN == "" {
		return fmt.Errorf("store_dsn must not be empty")
	}
	if cfg.JobTimeout <= 0 {
		return fmt.Errorf("job_timeout must be positive, got %s", cfg.JobTimeout)
	}
	return nil
}
