package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"stepwatch/internal/config"
	"stepwatch/internal/events"
	"stepwatch/internal/lesson"
	"stepwatch/internal/overlay"
	"stepwatch/internal/report"
	"stepwatch/internal/session"
	"stepwatch/internal/shutdown"
	"stepwatch/internal/store"
)

var version = "dev"

// tailLast reads and prints the last n lines from the event log.
func tailLast(path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No events yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	if len(lines) == 0 {
		fmt.Println("No events yet")
		return nil
	}

	start := 0
	if len(lines) > n {
		start = len(lines) - n
	}
	for _, line := range lines[start:] {
		printEventLine(line)
	}
	return nil
}

// tailFollow follows the event log and prints new lines as they appear.
func tailFollow(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	fmt.Println("Following events (Ctrl+C to stop)...")
	reader := bufio.NewReader(file)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					time.Sleep(100 * time.Millisecond)
					continue
				}
				return fmt.Errorf("read log: %w", err)
			}
			printEventLine(strings.TrimSuffix(line, "\n"))
		}
	}
}

// printEventLine prints a single event line in a human-readable format.
func printEventLine(line string) {
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		fmt.Println(line)
		return
	}

	timestamp := ""
	if ts, ok := event["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			timestamp = t.Format("15:04:05")
		} else {
			timestamp = ts
		}
	}

	eventType := ""
	if t, ok := event["type"].(string); ok {
		eventType = t
	}

	var detail string
	switch eventType {
	case "session.start":
		if title, ok := event["lesson_title"].(string); ok {
			detail = fmt.Sprintf("lesson=%q", title)
		}
	case "session.end":
		if reason, ok := event["reason"].(string); ok {
			detail = reason
		}
	case "step.advanced", "step.matched", "step.completed":
		if id, ok := event["subtask_id"].(string); ok {
			detail = fmt.Sprintf("subtask=%s", id)
		}
	case "tracking.changed":
		from, _ := event["from"].(string)
		to, _ := event["to"].(string)
		detail = fmt.Sprintf("%s -> %s", from, to)
	case "anomaly.detected", "anomaly.reported":
		if et, ok := event["error_type"].(string); ok {
			detail = et
		}
	case "error", "error.parse":
		if msg, ok := event["error"].(string); ok {
			detail = msg
		} else if msg, ok := event["message"].(string); ok {
			detail = msg
		}
	}

	if detail != "" {
		fmt.Printf("[%s] %s: %s\n", timestamp, eventType, detail)
	} else {
		fmt.Printf("[%s] %s\n", timestamp, eventType)
	}
}

// openInput opens the device event stream: a file path, or stdin for "-".
func openInput(path string) (io.ReadCloser, bool, error) {
	if path == "" || path == "-" {
		return os.Stdin, true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open event stream: %w", err)
	}
	return f, false, nil
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("STEPWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "stepwatch",
		Short: "On-device step tracking for guided lessons",
		Long: `stepwatch consumes the accessibility event stream from a learner's
device, matches it against the active lesson's step expectations, detects
anomalies (wrong app, frozen screen, wrong click), and reports completions
and errors to the tutoring backend.`,
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .stepwatch/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Event log file path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "State file path")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stepwatch %s\n", version)
		},
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Track a lesson against the device event stream",
		Long: `Run a tracking session for one lesson.

Device events are read as JSON lines from --input (or stdin). Step
completions and detected anomalies are reported to the backend and written
to the local event log and state file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
				logger.Debug("verbose logging enabled")
			}

			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Apply CLI flag overrides (only if explicitly set)
			if cmd.Flags().Changed(FlagLogFile) {
				cfg.Paths.Log = viper.GetString(FlagLogFile)
			}
			if cmd.Flags().Changed(FlagStateFile) {
				cfg.Paths.State = viper.GetString(FlagStateFile)
			}
			if cmd.Flags().Changed(FlagBackendURL) {
				cfg.Backend.BaseURL = viper.GetString(FlagBackendURL)
			}
			if cmd.Flags().Changed(FlagEventsURL) {
				cfg.Backend.EventsURL = viper.GetString(FlagEventsURL)
			}
			if cmd.Flags().Changed(FlagUploadEnabled) {
				cfg.Upload.Enabled = viper.GetBool(FlagUploadEnabled)
			}
			if cmd.Flags().Changed(FlagPollInterval) {
				cfg.Anomaly.PollInterval = viper.GetDuration(FlagPollInterval)
			}

			lessonPath := viper.GetString(FlagLesson)
			if lessonPath == "" {
				return fmt.Errorf("--lesson is required")
			}
			lsn, err := lesson.Load(lessonPath)
			if err != nil {
				return err
			}

			input, isStdin, err := openInput(viper.GetString(FlagInput))
			if err != nil {
				return err
			}
			if !isStdin {
				defer func() { _ = input.Close() }()
			}

			// Overlay mode: explicit flag > auto-detect. The overlay owns the
			// terminal's stdin, so it cannot run when events arrive on stdin.
			overlayEnabled := viper.GetBool(FlagOverlay)
			if !cmd.Flags().Changed(FlagOverlay) {
				overlayEnabled = cfg.Overlay.Enabled && term.IsTerminal(int(os.Stdout.Fd()))
			}
			if overlayEnabled && isStdin {
				logger.Warn("overlay disabled: event stream is on stdin")
				overlayEnabled = false
			}

			for _, p := range []string{cfg.Paths.Log, cfg.Paths.State} {
				if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
					return fmt.Errorf("create data directory: %w", err)
				}
			}

			logger.Info("stepwatch starting",
				"version", version,
				"lesson", lsn.Title,
				"steps", len(lsn.Subtasks),
				"log_file", cfg.Paths.Log,
				"state_file", cfg.Paths.State,
			)

			// Event router and sinks
			router := events.NewRouter(events.DefaultBufferSize)

			logSink := events.NewLogSink(cfg.Paths.Log)
			stateSink := events.NewStateSink(cfg.Paths.State)

			ctx := cmd.Context()
			sinkCtx, sinkCancel := context.WithCancel(ctx)

			logEvents, logCancel := router.Subscribe()
			if err := logSink.Start(sinkCtx, logEvents); err != nil {
				sinkCancel()
				return fmt.Errorf("start log sink: %w", err)
			}

			stateEvents, stateCancel := router.SubscribeBuffered(events.StateBufferSize)
			if err := stateSink.Start(sinkCtx, stateEvents); err != nil {
				sinkCancel()
				logCancel()
				_ = logSink.Stop()
				return fmt.Errorf("start state sink: %w", err)
			}

			cleanup := func() {
				sinkCancel()
				router.Close()
				logCancel()
				stateCancel()
				_ = logSink.Stop()
				_ = stateSink.Stop()
			}

			// Local completion cache: tracking works without it.
			completions, err := store.OpenCompletionStore(cfg.Paths.Completions)
			if err != nil {
				logger.Warn("completion cache unavailable", "path", cfg.Paths.Completions, "error", err)
			} else {
				defer func() { _ = completions.Close() }()
			}

			// Backend client and event uploader
			var client report.Client
			if cfg.Backend.BaseURL != "" {
				client = report.NewHTTPClient(cfg.Backend.BaseURL, logger)
			}

			var uploader *report.Uploader
			if cfg.Upload.Enabled && client != nil {
				var sink report.EventUploader = client
				if cfg.Backend.EventsURL != "" {
					ws := report.NewWSUploader(cfg.Backend.EventsURL, logger)
					defer func() { _ = ws.Close() }()
					sink = ws
				}
				uploader = report.NewUploader(sink, logger,
					report.WithFlushInterval(cfg.Upload.FlushInterval),
					report.WithBatchSize(cfg.Upload.BatchSize),
					report.WithBufferLimit(cfg.Upload.BufferLimit),
				)
			}

			// Overlay mode: redirect logging to a file before tracking starts
			runLogger := logger
			var overlayLogResult *OverlayLoggerResult
			if overlayEnabled {
				overlayLogResult, err = SetupOverlayLogger(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation)
				if err != nil {
					cleanup()
					return err
				}
				runLogger = overlayLogResult.Logger
				slog.SetDefault(runLogger)
			}

			runner := session.NewRunner(cfg, lsn, session.Options{
				Client:   client,
				Store:    completions,
				Uploader: uploader,
				Router:   router,
				Logger:   runLogger,
			})

			// Overlay mode: overlay in foreground, runner in background
			if overlayEnabled {
				defer func() { _ = overlayLogResult.Close() }()

				overlayEvents, overlayCancel := router.SubscribeBuffered(5000)
				defer overlayCancel()

				ov := overlay.New(overlayEvents,
					overlay.WithOnPause(runner.Pause),
					overlay.WithOnResume(runner.Resume),
					overlay.WithOnQuit(runner.Stop),
				)

				runnerDone := make(chan error, 1)
				go func() {
					runnerDone <- runner.Run(ctx, input)
				}()

				overlayErr := ov.Run()

				runner.Stop()
				runErr := <-runnerDone

				cleanup()
				if runErr != nil {
					return runErr
				}
				return overlayErr
			}

			// Headless mode: block with signal-driven shutdown
			err = shutdown.Run(
				ctx,
				logger,
				15*time.Second,
				func(runCtx context.Context) error {
					return runner.Run(runCtx, input)
				},
				func(stopCtx context.Context) error {
					runner.Stop()
					return nil
				},
			)

			cleanup()
			return err
		},
	}

	runCmd.Flags().String(FlagLesson, "", "Lesson JSON file (required)")
	runCmd.Flags().String(FlagInput, "-", "Device event stream: file path or - for stdin")
	runCmd.Flags().Bool(FlagOverlay, false, "Enable terminal overlay")
	runCmd.Flags().String(FlagBackendURL, "", "Backend base URL for reports")
	runCmd.Flags().String(FlagEventsURL, "", "Websocket URL for event batch upload")
	runCmd.Flags().Bool(FlagUploadEnabled, true, "Enable raw event batch upload")
	runCmd.Flags().Duration(FlagPollInterval, time.Second, "Frozen-screen poll interval (0 disables)")

	runCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last persisted session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed(FlagStateFile) {
				cfg.Paths.State = viper.GetString(FlagStateFile)
			}

			sink := events.NewStateSink(cfg.Paths.State)
			if err := sink.Load(); err != nil {
				if os.IsNotExist(err) {
					fmt.Println("No session recorded yet")
					return nil
				}
				return fmt.Errorf("load state: %w", err)
			}
			state := sink.State()

			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(state, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal state: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if state.SessionID == "" {
				fmt.Println("No session recorded yet")
				return nil
			}
			fmt.Printf("Session: %s\n", state.SessionID)
			fmt.Printf("Status: %s\n", state.Status)
			fmt.Printf("Lesson: %s\n", state.LessonTitle)
			fmt.Printf("Step: %d/%d\n", state.StepIndex+1, state.StepCount)
			fmt.Printf("Tracking: %s\n", state.TrackingState)
			fmt.Printf("Completed: %d\n", len(state.CompletedSubtasks))
			if len(state.AnomalyCounts) > 0 {
				fmt.Printf("Anomalies:\n")
				for errType, count := range state.AnomalyCounts {
					fmt.Printf("  %s: %d\n", errType, count)
				}
			}
			fmt.Printf("Updated: %s\n", state.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output state as JSON")
	_ = viper.BindPFlag(FlagJSON, statusCmd.Flags().Lookup(FlagJSON))

	// Events command
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent session events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed(FlagLogFile) {
				cfg.Paths.Log = viper.GetString(FlagLogFile)
			}

			if viper.GetBool(FlagFollow) {
				return tailFollow(cmd.Context(), cfg.Paths.Log)
			}
			return tailLast(cfg.Paths.Log, viper.GetInt(FlagCount))
		},
	}

	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	eventsCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
