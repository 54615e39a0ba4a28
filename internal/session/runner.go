// Package session orchestrates one tracking session: it consumes the
// device event stream, drives the matchers, the anomaly detector, and the
// completion checker, and emits internal events for the sinks and overlay.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"stepwatch/internal/anomaly"
	"stepwatch/internal/completion"
	"stepwatch/internal/config"
	"stepwatch/internal/events"
	"stepwatch/internal/lesson"
	"stepwatch/internal/match"
	"stepwatch/internal/report"
	"stepwatch/internal/store"
	"stepwatch/internal/tracking"
	"stepwatch/internal/uievent"
)

// State represents the runner's current state.
type State string

// Runner states.
const (
	StateTracking State = "tracking"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// maxLineSize bounds one inbound event line. Node dumps on busy screens
// can exceed bufio's default.
const maxLineSize = 1 << 20

// Options carries the runner's external collaborators. All fields are
// optional; a nil field disables that integration.
type Options struct {
	Client   report.Client
	Store    *store.CompletionStore
	Uploader *report.Uploader
	Router   *events.Router
	Logger   *slog.Logger
}

// Runner owns the per-session pipeline. Matching is synchronous on the
// event path; only reporting and upload run in background goroutines.
type Runner struct {
	cfg          *config.Config
	lsn          *lesson.Lesson
	expectations []lesson.StepExpectation

	matcher  *match.Matcher
	advanced *match.AdvancedMatcher
	detector *anomaly.Detector
	checker  *completion.Checker
	builder  *uievent.SnapshotBuilder
	finder   *uievent.ElementFinder
	sigBuf   *uievent.SignatureBuffer

	client   report.Client
	uploader *report.Uploader
	router   *events.Router
	logger   *slog.Logger

	state   State
	stateMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pauseSignal  chan struct{}
	resumeSignal chan struct{}
	stopSignal   chan struct{}

	mu         sync.Mutex
	sessionID  string
	stepIndex  int
	trackState tracking.State
	lastPkg    string
	lastClass  string
	done       bool
}

// NewRunner creates a runner for one lesson. The matchers, detector, and
// checker are built from cfg.
func NewRunner(cfg *config.Config, lsn *lesson.Lesson, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}

	advanced := match.NewAdvancedMatcher(logger)
	advanced.MinKeyViews = cfg.Match.MinKeyViews
	advanced.PackageOnlyRatio = cfg.Match.PackageOnlyRatio

	detector := anomaly.NewDetector(logger)
	if cfg.Anomaly.FrozenThreshold > 0 {
		detector.FrozenThreshold = cfg.Anomaly.FrozenThreshold
	}
	if cfg.Anomaly.ReportThreshold > 0 {
		detector.ReportThreshold = cfg.Anomaly.ReportThreshold
	}

	matcher := match.NewMatcher(logger)
	checker := completion.NewChecker(matcher, opts.Client, opts.Store, logger)
	if cfg.Match.CompletionThreshold > 0 {
		checker.MatchThreshold = cfg.Match.CompletionThreshold
	}

	expectations := make([]lesson.StepExpectation, 0, len(lsn.Subtasks))
	for _, sub := range lsn.Subtasks {
		expectations = append(expectations, lesson.ExpectationFor(sub))
	}

	return &Runner{
		cfg:          cfg,
		lsn:          lsn,
		expectations: expectations,
		matcher:      matcher,
		advanced:     advanced,
		detector:     detector,
		checker:      checker,
		builder:      uievent.NewSnapshotBuilder(cfg.Snapshot.MaxViews, cfg.Snapshot.MaxTexts, logger),
		finder:       uievent.NewElementFinder(logger),
		sigBuf:       uievent.NewSignatureBuffer(0),
		client:       opts.Client,
		uploader:     opts.Uploader,
		router:       opts.Router,
		logger:       logger,
		state:        StateTracking,
		trackState:   tracking.StateWaiting,
		pauseSignal:  make(chan struct{}, 1),
		resumeSignal: make(chan struct{}, 1),
		stopSignal:   make(chan struct{}, 1),
	}
}

// SessionID returns the session's ulid, empty before Run.
func (r *Runner) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// StepIndex returns the active step index.
func (r *Runner) StepIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepIndex
}

// TrackingState returns the current tracking state.
func (r *Runner) TrackingState() tracking.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackState
}

// Run consumes the event stream until it ends, the context is canceled, or
// Stop is called. It blocks; use Stop from another goroutine.
func (r *Runner) Run(ctx context.Context, stream io.Reader) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.ctx, r.cancel = runCtx, cancel
	r.sessionID = ulid.Make().String()
	sessionID := r.sessionID
	r.mu.Unlock()

	start := time.Now()

	if err := r.checker.LoadLocal(r.ctx); err != nil {
		r.logger.Warn("local completion cache unavailable", "error", err)
	}
	if err := r.checker.Sync(r.ctx, sessionID); err != nil {
		r.logger.Warn("completion sync failed", "error", err)
	}

	r.emit(&events.SessionStartEvent{
		BaseEvent:   events.NewInternalEvent(events.EventSessionStart),
		SessionID:   sessionID,
		LessonTitle: r.lsn.Title,
		StepCount:   len(r.lsn.Subtasks),
	})
	r.logger.Info("session started",
		"session", sessionID,
		"lesson", r.lsn.Title,
		"steps", len(r.lsn.Subtasks),
	)

	if r.uploader != nil {
		r.uploader.Start(r.ctx)
	}
	if r.cfg.Anomaly.PollInterval > 0 {
		r.wg.Add(1)
		go r.pollLoop()
	}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	reason := "event stream ended"
scan:
	for scanner.Scan() {
		select {
		case <-r.ctx.Done():
			reason = "context cancelled"
			break scan
		case <-r.stopSignal:
			reason = "stop requested"
			break scan
		case <-r.pauseSignal:
			r.setState(StatePaused)
			r.logger.Info("tracking paused")
		default:
		}

		if r.getState() == StatePaused {
			if !r.waitResume() {
				reason = "stop requested"
				break scan
			}
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, err := uievent.Parse(line)
		if err != nil {
			r.emit(&events.ParseErrorEvent{
				BaseEvent: events.NewDeviceEvent(events.EventParseError),
				Line:      truncate(string(line), 200),
				Error:     err.Error(),
			})
			continue
		}

		r.handleEvent(ev)

		r.mu.Lock()
		finished := r.done
		r.mu.Unlock()
		if finished {
			reason = "lesson completed"
			break
		}
	}
	if err := scanner.Err(); err != nil {
		reason = fmt.Sprintf("stream error: %v", err)
		r.logger.Error("event stream failed", "error", err)
	}

	return r.shutdown(sessionID, reason, start)
}

func (r *Runner) shutdown(sessionID, reason string, start time.Time) error {
	r.setState(StateStopping)
	r.cancel()
	r.wg.Wait()
	if r.uploader != nil {
		r.uploader.Stop()
	}

	r.emit(&events.SessionEndEvent{
		BaseEvent:      events.NewInternalEvent(events.EventSessionEnd),
		SessionID:      sessionID,
		CompletedSteps: r.checker.CompletedCount(),
		TotalSteps:     len(r.lsn.Subtasks),
		DurationMs:     time.Since(start).Milliseconds(),
		Reason:         reason,
	})
	r.setState(StateStopped)
	r.logger.Info("session ended", "session", sessionID, "reason", reason)
	return nil
}

// handleEvent runs the synchronous matching pipeline for one event.
func (r *Runner) handleEvent(ev *uievent.Event) {
	sig := uievent.FromEvent(ev)
	r.sigBuf.Add(sig)

	r.mu.Lock()
	r.lastPkg = ev.Package
	r.lastClass = ev.ClassName
	idx := r.stepIndex
	sessionID := r.sessionID
	r.mu.Unlock()

	if r.uploader != nil {
		r.uploader.Add(report.RawEvent{
			SessionID: sessionID,
			Type:      string(ev.Type),
			Timestamp: ev.Time,
			Package:   ev.Package,
			Fields:    sig,
		})
	}

	if idx >= len(r.expectations) {
		return
	}
	exp := r.expectations[idx]
	sub := r.lsn.Subtasks[idx]

	var snap *uievent.Snapshot
	if ev.Root != nil {
		snap = r.builder.Build(ev.Root, ev.Package)
	} else {
		snap = uievent.FromEventFields(ev)
	}

	detected := r.detector.Detect(snap, exp)
	if detected == nil && ev.Type == uievent.TypeViewClicked {
		detected = r.detector.DetectWrongClick(ev.ViewID, ev.Text, exp)
	}
	var errType *anomaly.ErrorType
	if detected != nil {
		errType = &detected.Type
		r.handleAnomaly(detected, sessionID)
	}

	res := r.advanced.Match(snap, exp, ev.Type)
	r.updateTracking(tracking.FromError(errType, res), res.FailureReason(), sessionID)

	if res.Matched {
		r.emit(&events.StepMatchedEvent{
			BaseEvent: events.NewInternalEvent(events.EventStepMatched),
			SessionID: sessionID,
			SubtaskID: exp.SubtaskID,
			Ratio:     res.Ratio,
		})

		if check := r.checker.Complete(exp.SubtaskID); check.NewCompletion {
			r.completeStep(exp, res.Ratio, sessionID)
		}
		return
	}

	// Coarser fallback for gestures that satisfy the step's action: the
	// field-table match can clear the completion threshold when the
	// snapshot path does not (sparse trees, treeless events).
	if uievent.IsGesture(ev.Type) && !res.ActionMismatch {
		if check := r.checker.Check(sub, sig, ev.Type); check.NewCompletion {
			r.completeStep(exp, check.Ratio, sessionID)
			return
		}
	}

	// Not matched but on the right screen: point at the target element.
	if res.WaitingForAction() && ev.Root != nil {
		r.emitGuidance(ev.Root, exp, sessionID)
	}
}

func (r *Runner) completeStep(exp lesson.StepExpectation, ratio float64, sessionID string) {
	r.emit(&events.StepCompletedEvent{
		BaseEvent: events.NewInternalEvent(events.EventStepCompleted),
		SessionID: sessionID,
		SubtaskID: exp.SubtaskID,
		Ratio:     ratio,
		Reported:  r.client != nil,
	})

	// Reporting is fire-and-forget; a slow backend never stalls matching.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
		defer cancel()
		if err := r.checker.Report(ctx, exp.SubtaskID, sessionID); err != nil {
			r.logger.Warn("completion report failed", "subtask", exp.SubtaskID, "error", err)
		}
	}()

	r.advanceStep(sessionID)
}

func (r *Runner) advanceStep(sessionID string) {
	r.mu.Lock()
	r.stepIndex++
	idx := r.stepIndex
	if idx >= len(r.expectations) {
		r.done = true
		r.mu.Unlock()
		r.logger.Info("all steps completed", "session", sessionID)
		return
	}
	r.mu.Unlock()

	sub := r.lsn.Subtasks[idx]
	r.emit(&events.StepAdvancedEvent{
		BaseEvent: events.NewInternalEvent(events.EventStepAdvanced),
		SessionID: sessionID,
		StepIndex: idx,
		SubtaskID: sub.ID,
		Title:     sub.Title,
	})
	r.logger.Info("step advanced", "index", idx, "subtask", sub.ID, "title", sub.Title)
}

func (r *Runner) handleAnomaly(detected *anomaly.DetectedError, sessionID string) {
	r.emit(&events.AnomalyDetectedEvent{
		BaseEvent: events.NewInternalEvent(events.EventAnomalyDetected),
		SessionID: sessionID,
		ErrorType: string(detected.Type),
		SubtaskID: detected.SubtaskID,
		Info:      detected.Info,
	})

	if !r.detector.ShouldReport(detected.Type) || r.detector.AlreadyReported(detected) {
		return
	}
	r.detector.MarkReported(detected)

	r.emit(&events.AnomalyReportedEvent{
		BaseEvent: events.NewInternalEvent(events.EventAnomalyReported),
		SessionID: sessionID,
		ErrorType: string(detected.Type),
		SubtaskID: detected.SubtaskID,
	})

	if r.client == nil {
		return
	}
	payload := detected.ReportPayload()
	payload["session_id"] = sessionID
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
		defer cancel()
		if err := r.client.ReportError(ctx, payload); err != nil {
			r.logger.Warn("anomaly report failed", "error_type", detected.Type, "error", err)
		}
	}()
}

func (r *Runner) emitGuidance(root uievent.Node, exp lesson.StepExpectation, sessionID string) {
	keyViews := exp.ValidKeyViews()
	if len(keyViews) == 0 {
		return
	}
	kv := keyViews[0]
	bounds, ok := r.finder.Find(root, kv.ViewID, kv.Text)
	if !ok || bounds.Empty() {
		return
	}

	r.emit(&events.StepGuidanceEvent{
		BaseEvent: events.NewInternalEvent(events.EventStepGuidance),
		SessionID: sessionID,
		SubtaskID: exp.SubtaskID,
		Left:      bounds.Left,
		Top:       bounds.Top,
		Right:     bounds.Right,
		Bottom:    bounds.Bottom,
	})
}

func (r *Runner) updateTracking(next tracking.State, reason, sessionID string) {
	r.mu.Lock()
	prev := r.trackState
	if prev == next {
		r.mu.Unlock()
		return
	}
	r.trackState = next
	r.mu.Unlock()

	r.emit(&events.TrackingChangedEvent{
		BaseEvent: events.NewInternalEvent(events.EventTrackingChanged),
		SessionID: sessionID,
		From:      string(prev),
		To:        string(next),
		Reason:    reason,
	})
}

// pollLoop runs the low-cost frozen-screen check between events. A screen
// that stops producing events entirely would otherwise never be noticed.
func (r *Runner) pollLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.Anomaly.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce()
		}
	}
}

func (r *Runner) pollOnce() {
	r.mu.Lock()
	pkg, class := r.lastPkg, r.lastClass
	idx := r.stepIndex
	sessionID := r.sessionID
	r.mu.Unlock()

	if pkg == "" || idx >= len(r.expectations) {
		return
	}

	snap := uievent.BuildLight(pkg, class)
	if detected := r.detector.Detect(snap, r.expectations[idx]); detected != nil {
		r.handleAnomaly(detected, sessionID)
	}
}

// waitResume blocks until resume or stop. Returns false on stop.
func (r *Runner) waitResume() bool {
	select {
	case <-r.resumeSignal:
		r.setState(StateTracking)
		r.logger.Info("tracking resumed")
		return true
	case <-r.stopSignal:
		return false
	case <-r.ctx.Done():
		return false
	}
}

// Reset clears all per-session state for reuse with a fresh stream.
func (r *Runner) Reset() {
	r.detector.Reset()
	r.checker.Reset()
	r.sigBuf.Clear()

	r.mu.Lock()
	r.stepIndex = 0
	r.trackState = tracking.StateWaiting
	r.lastPkg = ""
	r.lastClass = ""
	r.done = false
	r.mu.Unlock()
}

// Stop requests shutdown. It returns immediately; Run's return signals
// completion.
func (r *Runner) Stop() {
	select {
	case r.stopSignal <- struct{}{}:
	default:
	}
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pause requests that event processing pause after the current event.
func (r *Runner) Pause() {
	select {
	case r.pauseSignal <- struct{}{}:
		r.logger.Info("pause requested")
	default:
	}
}

// Resume requests that paused processing continue.
func (r *Runner) Resume() {
	select {
	case r.resumeSignal <- struct{}{}:
		r.logger.Info("resume requested")
	default:
	}
}

// State returns the runner state.
func (r *Runner) State() State {
	return r.getState()
}

func (r *Runner) getState() State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

func (r *Runner) emit(event events.Event) {
	if r.router != nil {
		r.router.Emit(event)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
