package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateBufferSize is the recommended buffer size for state sink
// subscriptions.
const StateBufferSize = 1000

// CurrentStateVersion is the current state file format version. Increment
// on incompatible changes to the State struct.
const CurrentStateVersion = 1

// State is the persisted session state, written for crash recovery and
// external inspection.
type State struct {
	Version           int            `json:"version"`
	SessionID         string         `json:"session_id,omitempty"`
	Status            string         `json:"status"`
	LessonTitle       string         `json:"lesson_title,omitempty"`
	StepIndex         int            `json:"step_index"`
	StepCount         int            `json:"step_count"`
	TrackingState     string         `json:"tracking_state,omitempty"`
	CompletedSubtasks []string       `json:"completed_subtasks,omitempty"`
	AnomalyCounts     map[string]int `json:"anomaly_counts,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DefaultMinSaveDelay is the minimum time between saves.
const DefaultMinSaveDelay = 5 * time.Second

// StateSink persists session state to a JSON file. Writes are debounced
// and atomic (temp file + rename).
type StateSink struct {
	path     string
	state    *State
	dirty    bool
	mu       sync.Mutex
	done     chan struct{}
	lastSave time.Time
	minDelay time.Duration
}

// NewStateSink creates a StateSink that writes to the specified path.
func NewStateSink(path string) *StateSink {
	return &StateSink{
		path: path,
		state: &State{
			Version:       CurrentStateVersion,
			AnomalyCounts: make(map[string]int),
		},
		done:     make(chan struct{}),
		minDelay: DefaultMinSaveDelay,
	}
}

// Start ensures the directory exists, loads existing state, and begins
// processing events.
func (s *StateSink) Start(ctx context.Context, events <-chan Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load state: %w", err)
	}

	go s.run(ctx, events)
	return nil
}

func (s *StateSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.flushIfDirty()
			return
		case event, ok := <-events:
			if !ok {
				s.flushIfDirty()
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *StateSink) handleEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case *SessionStartEvent:
		s.state.SessionID = e.SessionID
		s.state.Status = "tracking"
		s.state.LessonTitle = e.LessonTitle
		s.state.StepIndex = 0
		s.state.StepCount = e.StepCount
		s.state.CompletedSubtasks = nil
		s.state.AnomalyCounts = make(map[string]int)
		s.dirty = true

	case *SessionEndEvent:
		s.state.Status = "stopped"
		s.dirty = true
		// Always save immediately on session end.
		s.saveUnlocked()
		return

	case *StepAdvancedEvent:
		s.state.StepIndex = e.StepIndex
		s.dirty = true

	case *StepCompletedEvent:
		for _, id := range s.state.CompletedSubtasks {
			if id == e.SubtaskID {
				return
			}
		}
		s.state.CompletedSubtasks = append(s.state.CompletedSubtasks, e.SubtaskID)
		s.dirty = true

	case *TrackingChangedEvent:
		s.state.TrackingState = e.To
		s.dirty = true

	case *AnomalyDetectedEvent:
		if s.state.AnomalyCounts == nil {
			s.state.AnomalyCounts = make(map[string]int)
		}
		s.state.AnomalyCounts[e.ErrorType]++
		s.dirty = true
	}

	// Debounced save
	if s.dirty && time.Since(s.lastSave) >= s.minDelay {
		s.saveUnlocked()
	}
}

func (s *StateSink) saveUnlocked() {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "state sink: marshal error: %v\n", err)
		return
	}

	// Atomic write: temp file + rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "state sink: write error: %v\n", err)
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		fmt.Fprintf(os.Stderr, "state sink: rename error: %v\n", err)
		return
	}

	s.dirty = false
	s.lastSave = time.Now()
}

func (s *StateSink) flushIfDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.saveUnlocked()
	}
}

// Stop waits for the run goroutine to finish; a final save happens there if
// needed.
func (s *StateSink) Stop() error {
	<-s.done
	return nil
}

// Load reads the state file from disk. A corrupted file or an incompatible
// version is backed up and replaced with fresh state.
func (s *StateSink) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		if backupErr := s.backupStateFile(); backupErr != nil {
			slog.Warn("state file corrupted, failed to backup",
				"path", s.path,
				"error", err,
				"backup_error", backupErr)
		} else {
			slog.Warn("state file corrupted, backed up and starting fresh",
				"path", s.path,
				"error", err)
		}
		s.resetState()
		return nil
	}

	if state.Version == 0 || state.Version != CurrentStateVersion {
		if backupErr := s.backupStateFile(); backupErr != nil {
			slog.Warn("incompatible state version, failed to backup",
				"path", s.path,
				"file_version", state.Version,
				"current_version", CurrentStateVersion,
				"backup_error", backupErr)
		} else {
			slog.Warn("incompatible state version, backed up and starting fresh",
				"path", s.path,
				"file_version", state.Version,
				"current_version", CurrentStateVersion)
		}
		s.resetState()
		return nil
	}

	if state.AnomalyCounts == nil {
		state.AnomalyCounts = make(map[string]int)
	}
	s.state = &state
	return nil
}

// backupStateFile moves the current state file to a .backup file.
// Must be called with s.mu held.
func (s *StateSink) backupStateFile() error {
	return os.Rename(s.path, s.path+".backup")
}

// resetState initializes a fresh state. Must be called with s.mu held.
func (s *StateSink) resetState() {
	s.state = &State{
		Version:       CurrentStateVersion,
		AnomalyCounts: make(map[string]int),
	}
}

// State returns a copy of the current state.
func (s *StateSink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := *s.state
	st.CompletedSubtasks = append([]string(nil), s.state.CompletedSubtasks...)
	counts := make(map[string]int, len(s.state.AnomalyCounts))
	for k, v := range s.state.AnomalyCounts {
		counts[k] = v
	}
	st.AnomalyCounts = counts
	return st
}

// Path returns the state file path.
func (s *StateSink) Path() string {
	return s.path
}

// SetMinDelay sets the minimum delay between saves (for testing).
func (s *StateSink) SetMinDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDelay = d
}
