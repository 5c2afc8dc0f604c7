package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.MaxRetries != def.MaxRetries {
		t.Fatalf("MaxRetries = %d, want %d", cfg.MaxRetries, def.MaxRetries)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"request_interval_ms": 250, "max_retries": 5}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestIntervalMs != 250 {
		t.Fatalf("RequestIntervalMs = %d, want 250", cfg.RequestIntervalMs)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	// Untouched fields keep defaults
	if cfg.RetryDelayMs != 5000 {
		t.Fatalf("RetryDelayMs = %d, want 5000", cfg.RetryDelayMs)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["batch_run", "file_dedupe"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "batch_run" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "batch_run")
	}
}

func TestDurations(t *testing.T) {
	cfg := &Config{RequestTimeoutMs: 1500, RequestIntervalMs: 3000, RetryDelayMs: 10}

	if cfg.RequestTimeout() != 1500*time.Millisecond {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
	if cfg.RequestInterval() != 3*time.Second {
		t.Errorf("RequestInterval() = %v", cfg.RequestInterval())
	}
	if cfg.RetryDelay() != 10*time.Millisecond {
		t.Errorf("RetryDelay() = %v", cfg.RetryDelay())
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"request_interval_ms": 4000, "disabled_tools": ["batch_run"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, ".chemfetch")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"request_interval_ms": 1000, "disabled_tools": ["file_dedupe"]}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.RequestIntervalMs != 1000 {
		t.Errorf("RequestIntervalMs = %d, want 1000 (repo override)", cfg.RequestIntervalMs)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.RequestIntervalMs != 3000 {
		t.Errorf("RequestIntervalMs = %d, want 3000", cfg.RequestIntervalMs)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	tmpDir := t.TempDir()
	globalDir := t.TempDir()

	repoDir := filepath.Join(tmpDir, ".chemfetch")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(`{"log_level": "debug"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{RequestIntervalMs: 3000, DBMaxOpenConns: 5, LogLevel: "info"}
	overlay := &Config{RequestIntervalMs: 10, LogLevel: "  "}

	result := Merge(base, overlay)

	if result.RequestIntervalMs != 10 {
		t.Errorf("RequestIntervalMs = %d, want 10 (overlay)", result.RequestIntervalMs)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info (blank overlay ignored)", result.LogLevel)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"batch_run", "file_dedupe"}}
	overlay := &Config{DisabledTools: []string{"file_dedupe", " batch_list "}}

	result := Merge(base, overlay)

	want := []string{"batch_run", "file_dedupe", "batch_list"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}
