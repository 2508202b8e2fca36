package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
active_provider: openai
log_level: DEBUG
provider:
  openai:
    options:
      apiKey: test-key
      model: gpt-4o-mini
      temperature: 0.3
agent:
  max_tool_calls: 8
  history_window: 12
store:
  data_dir: /tmp/atelier-test
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	id, opts, err := cfg.GetActiveProvider()
	if err != nil {
		t.Fatalf("active provider: %v", err)
	}
	if id != "openai" || opts.APIKey != "test-key" || opts.Model != "gpt-4o-mini" {
		t.Errorf("unexpected provider: %s %+v", id, opts)
	}
	// Default BaseURL should be merged in
	if opts.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("default base url not merged: %s", opts.BaseURL)
	}
	if cfg.Agent.MaxToolCalls != 8 || cfg.Agent.HistoryWindow != 12 {
		t.Errorf("agent config not loaded: %+v", cfg.Agent)
	}
	if cfg.Store.DataDir != "/tmp/atelier-test" {
		t.Errorf("store config not loaded: %+v", cfg.Store)
	}
}

func TestDetectProviderFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg := &Config{Providers: map[string]ProviderConfig{}}
	id, opts, err := cfg.GetActiveProvider()
	if err != nil {
		t.Fatalf("active provider: %v", err)
	}
	if id != "openai" || opts.APIKey != "env-key" {
		t.Errorf("unexpected detection: %s %+v", id, opts)
	}
}

func TestNoProviderConfigured(t *testing.T) {
	for _, vars := range ProviderEnvVars {
		for _, v := range vars.APIKey {
			t.Setenv(v, "")
		}
	}

	cfg := &Config{Providers: map[string]ProviderConfig{}}
	if _, _, err := cfg.GetActiveProvider(); err == nil {
		t.Error("expected error when nothing is configured")
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing-is-ok-when-empty"))
	if err == nil {
		t.Skip("explicit missing path returns error; defaults tested via empty path")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("default addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Store.DataDir == "" {
		t.Error("default data dir not applied")
	}
}
