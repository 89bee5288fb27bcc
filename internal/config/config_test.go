package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claimgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFileAppliesValues(t *testing.T) {
	t.Setenv("CLAIMGATE_DEV_MODE", "true")

	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 10s
index:
  batch_size: 128
  workers: 8
data:
  rules_path: /srv/rules.json
summary:
  enabled: false
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if time.Duration(cfg.Server.ReadTimeout) != 10*time.Second {
		t.Errorf("read_timeout = %v", time.Duration(cfg.Server.ReadTimeout))
	}
	if cfg.Index.BatchSize != 128 || cfg.Index.Workers != 8 {
		t.Errorf("index settings not applied: %+v", cfg.Index)
	}
	if cfg.Data.RulesPath != "/srv/rules.json" {
		t.Errorf("rules_path = %s", cfg.Data.RulesPath)
	}
	if cfg.Summary.Enabled {
		t.Error("summary should be disabled")
	}
}

func TestDefaultsPreservedWhenUnset(t *testing.T) {
	t.Setenv("CLAIMGATE_DEV_MODE", "true")

	path := writeConfig(t, `server: {port: 9000}`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("default embedding model lost: %s", cfg.Embedding.Model)
	}
	if cfg.Index.Workers != 4 || cfg.Index.BatchSize != 64 {
		t.Errorf("default index settings lost: %+v", cfg.Index)
	}
	if cfg.Database.Path != "data/claimgate.db" {
		t.Errorf("default db path lost: %s", cfg.Database.Path)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("CLAIMGATE_DEV_MODE", "true")
	t.Setenv("CLAIMGATE_PORT", "7070")
	t.Setenv("CLAIMGATE_INDEX_WORKERS", "2")
	t.Setenv("CLAIMGATE_EMBEDDING_MODEL", "text-embedding-3-large")

	path := writeConfig(t, `server: {port: 9090}`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("env should override yaml: port = %d", cfg.Server.Port)
	}
	if cfg.Index.Workers != 2 {
		t.Errorf("env worker override lost: %d", cfg.Index.Workers)
	}
	if cfg.Embedding.Model != "text-embedding-3-large" {
		t.Errorf("env model override lost: %s", cfg.Embedding.Model)
	}
}

func TestValidateRequiresAPIKeys(t *testing.T) {
	t.Setenv("CLAIMGATE_DEV_MODE", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CLAIMGATE_API_KEY", "")

	path := writeConfig(t, `server: {port: 8080}`)
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected validation failure without API keys")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected validation failure without auth API key")
	}

	t.Setenv("CLAIMGATE_API_KEY", "secret")
	if _, err := LoadFromFile(path); err != nil {
		t.Fatalf("expected valid config with both keys: %v", err)
	}
}

func TestDevModeSkipsValidation(t *testing.T) {
	t.Setenv("CLAIMGATE_DEV_MODE", "true")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CLAIMGATE_API_KEY", "")

	path := writeConfig(t, `server: {port: 8080}`)
	if _, err := LoadFromFile(path); err != nil {
		t.Fatalf("dev mode should skip key validation: %v", err)
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	t.Setenv("CLAIMGATE_DEV_MODE", "true")

	path := writeConfig(t, `server: {read_timeout: "not-a-duration"}`)
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
