// Package config loads the server configuration: defaults, then an optional
// YAML file, then ADVENTURE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ADVENTURE_"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the server configuration.
type Config struct {
	Addr             string        `yaml:"addr" env:"ADDR"`
	StoreDriver      string        `yaml:"store_driver" env:"STORE_DRIVER"`
	SQLitePath       string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
	DataDir          string        `yaml:"data_dir" env:"DATA_DIR"`
	MediaDir         string        `yaml:"media_dir" env:"MEDIA_DIR"`
	MediaBaseURL     string        `yaml:"media_base_url" env:"MEDIA_BASE_URL"`
	MediaMaxSize     int           `yaml:"media_max_size" env:"MEDIA_MAX_SIZE"`
	AutosaveDebounce time.Duration `yaml:"autosave_debounce" env:"AUTOSAVE_DEBOUNCE"`
	Watch            bool          `yaml:"watch" env:"WATCH"`
	CORS             bool          `yaml:"cors" env:"CORS"`
	CORSOrigins      []string      `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	Debug            bool          `yaml:"debug" env:"DEBUG"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr:             ":8080",
		StoreDriver:      DriverSQLite,
		SQLitePath:       "data/adventures.db",
		DataDir:          "data/adventures",
		MediaDir:         "data/media",
		MediaBaseURL:     "/media",
		MediaMaxSize:     32 << 20,
		AutosaveDebounce: 250 * time.Millisecond,
		CORS:             true,
		CORSOrigins:      []string{"*"},
	}
}

// Load builds the configuration. path may be empty; a missing file named
// explicitly is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr is empty", ErrInvalid)
	case c.StoreDriver != DriverSQLite && c.StoreDriver != DriverFile:
		return fmt.Errorf("%w: store_driver %q, expected %s or %s", ErrInvalid, c.StoreDriver, DriverSQLite, DriverFile)
	case c.StoreDriver == DriverSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is empty", ErrInvalid)
	case c.StoreDriver == DriverFile && c.DataDir == "":
		return fmt.Errorf("%w: data_dir is empty", ErrInvalid)
	case c.Watch && c.StoreDriver != DriverFile:
		return fmt.Errorf("%w: watch needs the %s store driver", ErrInvalid, DriverFile)
	case c.MediaDir == "":
		return fmt.Errorf("%w: media_dir is empty", ErrInvalid)
	case !strings.HasPrefix(c.MediaBaseURL, "/"):
		return fmt.Errorf("%w: media_base_url %q must start with /", ErrInvalid, c.MediaBaseURL)
	case c.MediaMaxSize <= 0:
		return fmt.Errorf("%w: media_max_size must be positive", ErrInvalid)
	case c.AutosaveDebounce <= 0:
		return fmt.Errorf("%w: autosave_debounce must be positive", ErrInvalid)
	}
	return nil
}
