package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Match.CompletionThreshold != 0.7 {
		t.Errorf("Match.CompletionThreshold = %v, want 0.7", cfg.Match.CompletionThreshold)
	}
	if cfg.Anomaly.FrozenThreshold != 3*time.Second {
		t.Errorf("Anomaly.FrozenThreshold = %v, want 3s", cfg.Anomaly.FrozenThreshold)
	}
	if cfg.Anomaly.ReportThreshold != 5 {
		t.Errorf("Anomaly.ReportThreshold = %v, want 5", cfg.Anomaly.ReportThreshold)
	}
	if cfg.Snapshot.MaxViews != 500 {
		t.Errorf("Snapshot.MaxViews = %v, want 500", cfg.Snapshot.MaxViews)
	}
	if cfg.Upload.FlushInterval != 3*time.Second {
		t.Errorf("Upload.FlushInterval = %v, want 3s", cfg.Upload.FlushInterval)
	}
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	defer func() { _ = os.Chdir(oldWd) }()

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	configContent := `
match:
  completion_threshold: 0.8
  min_key_views: 2
anomaly:
  frozen_threshold: 5s
  report_threshold: 3
backend:
  base_url: "https://backend.example.com"
`
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Match.CompletionThreshold != 0.8 {
		t.Errorf("Match.CompletionThreshold = %v, want 0.8", cfg.Match.CompletionThreshold)
	}
	if cfg.Match.MinKeyViews != 2 {
		t.Errorf("Match.MinKeyViews = %v, want 2", cfg.Match.MinKeyViews)
	}
	if cfg.Anomaly.FrozenThreshold != 5*time.Second {
		t.Errorf("Anomaly.FrozenThreshold = %v, want 5s", cfg.Anomaly.FrozenThreshold)
	}
	if cfg.Anomaly.ReportThreshold != 3 {
		t.Errorf("Anomaly.ReportThreshold = %v, want 3", cfg.Anomaly.ReportThreshold)
	}
	if cfg.Backend.BaseURL != "https://backend.example.com" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}

	// Untouched sections keep their defaults.
	if cfg.Upload.BatchSize != 50 {
		t.Errorf("Upload.BatchSize = %v, want default 50", cfg.Upload.BatchSize)
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
anomaly:
  frozen_threshold: 10s
`
	configPath := filepath.Join(tmpDir, "custom-config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Anomaly.FrozenThreshold != 10*time.Second {
		t.Errorf("Anomaly.FrozenThreshold = %v, want 10s", cfg.Anomaly.FrozenThreshold)
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := LoadConfig(v); err == nil {
		t.Fatal("missing explicit config should fail")
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	v := viper.New()
	v.Set("match.completion_threshold", 0.9)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Match.CompletionThreshold != 0.9 {
		t.Errorf("Match.CompletionThreshold = %v, want flag override 0.9", cfg.Match.CompletionThreshold)
	}
}
