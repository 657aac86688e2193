package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EXFOLAB_CONFIG", "EXFOLAB_LOG_LEVEL", "EXFOLAB_LOG_FORMAT",
		"EXFOLAB_STORAGE_DRIVER", "EXFOLAB_SQLITE_PATH", "EXFOLAB_POSTGRES_DSN",
		"EXFOLAB_DATA_DIR", "EXFOLAB_REPORTS_DIR",
		"OPENAI_API_BASE", "OPENAI_API_KEY", "OPENAI_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "exfolab.db" {
		t.Fatalf("storage defaults: %+v", cfg.Storage)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log defaults: %+v", cfg.Log)
	}
	if cfg.DataDir != "data" || cfg.ReportsDir != "reports" {
		t.Fatalf("dir defaults: %+v", cfg)
	}
	if cfg.Thresholds.AnodeLossG != nil {
		t.Fatalf("thresholds should default to nil overrides: %+v", cfg.Thresholds)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "exfolab.yaml")
	doc := `log:
  level: debug
  format: json
storage:
  driver: postgres
  postgres_dsn: postgres://db/exfolab
thresholds:
  anode_loss_threshold_g: 0.2
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log overlay: %+v", cfg.Log)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.PostgresDSN != "postgres://db/exfolab" {
		t.Fatalf("storage overlay: %+v", cfg.Storage)
	}
	if cfg.Thresholds.AnodeLossG == nil || *cfg.Thresholds.AnodeLossG != 0.2 {
		t.Fatalf("threshold overlay: %+v", cfg.Thresholds)
	}
	// untouched keys keep defaults
	if cfg.DataDir != "data" {
		t.Fatalf("data dir should keep default: %s", cfg.DataDir)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "exfolab.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: sqlite\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("EXFOLAB_CONFIG", path)
	t.Setenv("EXFOLAB_STORAGE_DRIVER", "memory")
	t.Setenv("OPENAI_MODEL", "gpt-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("env should win over file: %+v", cfg.Storage)
	}
	if cfg.OpenAI.Model != "gpt-test" {
		t.Fatalf("openai env: %+v", cfg.OpenAI)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for explicit missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("storage: [not a map"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
