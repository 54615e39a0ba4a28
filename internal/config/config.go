// Package config provides configuration types and defaults for stepwatch.
package config

import "time"

// Config holds all configuration for stepwatch.
type Config struct {
	Match       MatchConfig       `yaml:"match" mapstructure:"match"`
	Anomaly     AnomalyConfig     `yaml:"anomaly" mapstructure:"anomaly"`
	Snapshot    SnapshotConfig    `yaml:"snapshot" mapstructure:"snapshot"`
	Upload      UploadConfig      `yaml:"upload" mapstructure:"upload"`
	Backend     BackendConfig     `yaml:"backend" mapstructure:"backend"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	Overlay     OverlayConfig     `yaml:"overlay" mapstructure:"overlay"`
}

// MatchConfig holds the matcher tunables.
type MatchConfig struct {
	CompletionThreshold float64 `yaml:"completion_threshold" mapstructure:"completion_threshold"` // Baseline ratio accepted as completion
	PackageOnlyRatio    float64 `yaml:"package_only_ratio" mapstructure:"package_only_ratio"`     // Ratio floor when only the app matches
	MinKeyViews         int     `yaml:"min_key_views" mapstructure:"min_key_views"`               // KeyViews required for a UI-state match
}

// AnomalyConfig holds anomaly detection thresholds.
type AnomalyConfig struct {
	FrozenThreshold time.Duration `yaml:"frozen_threshold" mapstructure:"frozen_threshold"` // Screen unchanged longer than this is frozen
	ReportThreshold int           `yaml:"report_threshold" mapstructure:"report_threshold"` // Consecutive occurrences before reporting
	PollInterval    time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`       // Frozen-screen polling cadence
}

// SnapshotConfig caps snapshot traversal.
type SnapshotConfig struct {
	MaxViews int `yaml:"max_views" mapstructure:"max_views"`
	MaxTexts int `yaml:"max_texts" mapstructure:"max_texts"`
}

// UploadConfig holds event batch upload settings.
type UploadConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size"`
	BufferLimit   int           `yaml:"buffer_limit" mapstructure:"buffer_limit"`
}

// BackendConfig holds the backend endpoints.
type BackendConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`     // HTTP base for completion and error reports
	EventsURL string `yaml:"events_url" mapstructure:"events_url"` // Websocket URL for event batches; blank falls back to HTTP
}

// PathsConfig holds file paths for state, logs, and the completion cache.
type PathsConfig struct {
	State       string `yaml:"state" mapstructure:"state"`
	Log         string `yaml:"log" mapstructure:"log"`
	Completions string `yaml:"completions" mapstructure:"completions"`
}

// LogRotationConfig holds settings for debug log rotation
// (lumberjack-based, used when the overlay owns the terminal).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// OverlayConfig holds terminal overlay settings.
type OverlayConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Default returns a Config with the stock tuning.
func Default() *Config {
	return &Config{
		Match: MatchConfig{
			CompletionThreshold: 0.7,
			PackageOnlyRatio:    0.3,
			MinKeyViews:         1,
		},
		Anomaly: AnomalyConfig{
			FrozenThreshold: 3 * time.Second,
			ReportThreshold: 5,
			PollInterval:    time.Second,
		},
		Snapshot: SnapshotConfig{
			MaxViews: 500,
			MaxTexts: 200,
		},
		Upload: UploadConfig{
			Enabled:       true,
			FlushInterval: 3 * time.Second,
			BatchSize:     50,
			BufferLimit:   1000,
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8080",
		},
		Paths: PathsConfig{
			State:       ".stepwatch/state.json",
			Log:         ".stepwatch/stepwatch.log",
			Completions: ".stepwatch/completions.db",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Overlay: OverlayConfig{
			Enabled: true,
		},
	}
}
