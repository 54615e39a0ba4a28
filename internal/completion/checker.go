// Package completion tracks which lesson steps have been completed and
// drives the happy-path reporting flow. The completed set only grows within
// a session, so a duplicate match can never re-trigger a report.
package completion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"stepwatch/internal/lesson"
	"stepwatch/internal/match"
	"stepwatch/internal/report"
	"stepwatch/internal/store"
	"stepwatch/internal/tracking"
	"stepwatch/internal/uievent"
)

// DefaultMatchThreshold is the ratio at which a partial baseline match
// still counts as completion.
const DefaultMatchThreshold = 0.7

// CheckResult is the outcome of one completion check.
type CheckResult struct {
	Completed     bool
	NewCompletion bool
	Ratio         float64
}

// Checker owns the per-session completed set. All methods are safe for
// concurrent use; the event path checks while background reporting runs.
type Checker struct {
	// MatchThreshold is the baseline match ratio accepted as completion.
	MatchThreshold float64

	matcher  *match.Matcher
	reporter report.CompletionReporter
	store    *store.CompletionStore
	logger   *slog.Logger

	mu        sync.Mutex
	completed map[string]bool
	state     tracking.CompletionState
	watchers  []chan tracking.CompletionState
}

// NewChecker creates a checker. The reporter and store may be nil, which
// disables backend reporting and local persistence respectively. A nil
// logger uses slog.Default().
func NewChecker(matcher *match.Matcher, reporter report.CompletionReporter, st *store.CompletionStore, logger *slog.Logger) *Checker {
	if matcher == nil {
		matcher = match.NewMatcher(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		MatchThreshold: DefaultMatchThreshold,
		matcher:        matcher,
		reporter:       reporter,
		store:          st,
		logger:         logger,
		completed:      make(map[string]bool),
		state:          tracking.CompletionNotStarted,
	}
}

// Check runs the baseline matcher for one subtask. An already-completed
// subtask short-circuits; a match or a ratio at or above MatchThreshold
// marks first completion.
func (c *Checker) Check(sub lesson.SubtaskDetail, sig uievent.Signature, eventType uievent.EventType) CheckResult {
	c.mu.Lock()
	if c.completed[sub.ID] {
		c.mu.Unlock()
		return CheckResult{Completed: true, Ratio: 1}
	}
	c.mu.Unlock()

	res := c.matcher.MatchStep(sub, sig, eventType)
	if !res.Matched && res.Ratio < c.MatchThreshold {
		c.setState(tracking.CompletionInProgress)
		return CheckResult{Ratio: res.Ratio}
	}

	c.mu.Lock()
	first := !c.completed[sub.ID]
	c.completed[sub.ID] = true
	c.mu.Unlock()

	if first {
		c.logger.Info("step completed", "subtask", sub.ID, "ratio", res.Ratio)
		c.setState(tracking.CompletionCompleted)
	}
	return CheckResult{Completed: true, NewCompletion: first, Ratio: res.Ratio}
}

// Complete records a completion decided upstream (a full match from the
// primary matcher). Idempotent: only the first call reports NewCompletion.
func (c *Checker) Complete(subtaskID string) CheckResult {
	c.mu.Lock()
	if c.completed[subtaskID] {
		c.mu.Unlock()
		return CheckResult{Completed: true, Ratio: 1}
	}
	c.completed[subtaskID] = true
	c.mu.Unlock()

	c.logger.Info("step completed", "subtask", subtaskID)
	c.setState(tracking.CompletionCompleted)
	return CheckResult{Completed: true, NewCompletion: true, Ratio: 1}
}

// IsCompleted reports whether the subtask is in the completed set.
func (c *Checker) IsCompleted(subtaskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed[subtaskID]
}

// CompletedCount returns the size of the completed set.
func (c *Checker) CompletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completed)
}

// Report sends one completion to the backend. It fails soft: the error is
// returned for logging, local state is never rolled back. On success the
// completion flag is persisted locally.
func (c *Checker) Report(ctx context.Context, subtaskID, sessionID string) error {
	if c.reporter == nil {
		return nil
	}
	if err := c.reporter.ReportCompletion(ctx, subtaskID, sessionID); err != nil {
		c.logger.Warn("completion report failed",
			"subtask", subtaskID, "session", sessionID, "error", err)
		return fmt.Errorf("report completion: %w", err)
	}

	if c.store != nil {
		if err := c.store.MarkCompleted(ctx, subtaskID, sessionID); err != nil {
			c.logger.Warn("persist completion flag failed", "subtask", subtaskID, "error", err)
		}
	}
	return nil
}

// Sync reconciles the local completed set with server truth. Server-side
// completions are merged in; local completions are never removed.
func (c *Checker) Sync(ctx context.Context, sessionID string) error {
	if c.reporter == nil {
		return nil
	}
	status, err := c.reporter.CompletionStatus(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("sync completions: %w", err)
	}
	if status == nil {
		return nil
	}

	c.mu.Lock()
	added := 0
	for _, id := range status.CompletedIDs {
		if !c.completed[id] {
			c.completed[id] = true
			added++
		}
	}
	c.mu.Unlock()

	if added > 0 {
		c.logger.Info("synced completions from server", "added", added)
	}
	return nil
}

// LoadLocal seeds the completed set from the local store, so completed
// steps render as completed across restarts.
func (c *Checker) LoadLocal(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	ids, err := c.store.CompletedIDs(ctx)
	if err != nil {
		return fmt.Errorf("load local completions: %w", err)
	}

	c.mu.Lock()
	for _, id := range ids {
		c.completed[id] = true
	}
	c.mu.Unlock()
	return nil
}

// Watch returns a channel receiving completion state transitions and a
// cancel function. The channel is buffered; a slow watcher loses updates
// rather than blocking the check path.
func (c *Checker) Watch() (<-chan tracking.CompletionState, func()) {
	ch := make(chan tracking.CompletionState, 16)

	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, w := range c.watchers {
			if w == ch {
				c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
				close(w)
				return
			}
		}
	}
	return ch, cancel
}

// State returns the current completion state.
func (c *Checker) State() tracking.CompletionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset clears the completed set and state. Called at session boundaries.
// The local store is left intact; it is cleared only explicitly.
func (c *Checker) Reset() {
	c.mu.Lock()
	c.completed = make(map[string]bool)
	c.mu.Unlock()
	c.setState(tracking.CompletionNotStarted)
}

func (c *Checker) setState(s tracking.CompletionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == s {
		return
	}
	c.state = s
	for _, w := range c.watchers {
		select {
		case w <- s:
		default:
		}
	}
}
