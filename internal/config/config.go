// Package config loads exfolab settings from defaults, an optional YAML
// file, and EXFOLAB_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"exfolab/pkg/domain"
)

// Storage selects and parameterizes the persistent store backend.
type Storage struct {
	Driver      string `yaml:"driver"`       // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlite_path"`  // when driver=sqlite
	PostgresDSN string `yaml:"postgres_dsn"` // when driver=postgres
}

// Log configures structured logging output.
type Log struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// OpenAI configures the report assistant endpoint.
type OpenAI struct {
	APIBase string `yaml:"api_base"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Config is the root settings document.
type Config struct {
	Log        Log                       `yaml:"log"`
	Storage    Storage                   `yaml:"storage"`
	OpenAI     OpenAI                    `yaml:"openai"`
	DataDir    string                    `yaml:"data_dir"`
	ReportsDir string                    `yaml:"reports_dir"`
	Thresholds domain.ThresholdOverrides `yaml:"thresholds"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log:        Log{Level: "info", Format: "text"},
		Storage:    Storage{Driver: "sqlite", SQLitePath: "exfolab.db"},
		DataDir:    "data",
		ReportsDir: "reports",
	}
}

// Load builds the effective configuration. path may be empty, in which case
// EXFOLAB_CONFIG is consulted; a missing file is only an error when it was
// named explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("EXFOLAB_CONFIG")
		explicit = path != ""
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if explicit {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Log.Level, "EXFOLAB_LOG_LEVEL")
	setString(&cfg.Log.Format, "EXFOLAB_LOG_FORMAT")
	setString(&cfg.Storage.Driver, "EXFOLAB_STORAGE_DRIVER")
	setString(&cfg.Storage.SQLitePath, "EXFOLAB_SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "EXFOLAB_POSTGRES_DSN")
	setString(&cfg.DataDir, "EXFOLAB_DATA_DIR")
	setString(&cfg.ReportsDir, "EXFOLAB_REPORTS_DIR")
	setString(&cfg.OpenAI.APIBase, "OPENAI_API_BASE")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.Model, "OPENAI_MODEL")
}
