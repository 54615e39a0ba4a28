package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose   = "verbose"
	FlagConfig    = "config"
	FlagLogFile   = "log-file"
	FlagStateFile = "state-file"

	// Run command flags
	FlagLesson        = "lesson"
	FlagInput         = "input"
	FlagOverlay       = "overlay"
	FlagBackendURL    = "backend-url"
	FlagEventsURL     = "events-url"
	FlagUploadEnabled = "upload-enabled"
	FlagPollInterval  = "poll-interval"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"
)
