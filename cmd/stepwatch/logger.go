package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"stepwatch/internal/config"
)

// OverlayLoggerResult contains the results of setting up logging for
// overlay mode.
type OverlayLoggerResult struct {
	Logger   *slog.Logger
	LogFile  io.WriteCloser
	FilePath string
}

// Close closes the log file if it was opened.
func (r *OverlayLoggerResult) Close() error {
	if r.LogFile != nil {
		return r.LogFile.Close()
	}
	return nil
}

// SetupOverlayLogger creates a logger that writes to a rotating file instead
// of stderr, so log output never corrupts the overlay display. Uses
// lumberjack for rotation based on the provided config.
func SetupOverlayLogger(logDir string, level slog.Leveler, rotationCfg config.LogRotationConfig) (*OverlayLoggerResult, error) {
	debugLogPath := filepath.Join(logDir, "stepwatch-debug.log")

	debugLogWriter := &lumberjack.Logger{
		Filename:   debugLogPath,
		MaxSize:    rotationCfg.MaxSizeMB,
		MaxBackups: rotationCfg.MaxBackups,
		MaxAge:     rotationCfg.MaxAgeDays,
		Compress:   rotationCfg.Compress,
	}

	logger := slog.New(slog.NewJSONHandler(debugLogWriter, &slog.HandlerOptions{Level: level}))

	return &OverlayLoggerResult{
		Logger:   logger,
		LogFile:  debugLogWriter,
		FilePath: debugLogPath,
	}, nil
}

// SetupLoggerWithWriter creates a logger that writes to the given writer.
// Useful for tests that capture the output.
func SetupLoggerWithWriter(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
