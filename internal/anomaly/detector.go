// Package anomaly detects deviations from the expected lesson path: the
// learner left the target app, the screen stopped changing, or a click
// landed on the wrong element. Detection is local and cheap; reporting is
// debounced so transient noise never reaches an instructor.
package anomaly

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stepwatch/internal/fuzzy"
	"stepwatch/internal/lesson"
	"stepwatch/internal/uievent"
)

// ErrorType identifies the kind of detected anomaly.
type ErrorType string

const (
	ErrWrongApp     ErrorType = "WRONG_APP"
	ErrFrozenScreen ErrorType = "FROZEN_SCREEN"
	ErrWrongClick   ErrorType = "WRONG_CLICK"
)

// Detection and reporting defaults.
const (
	DefaultFrozenThreshold = 3000 * time.Millisecond
	DefaultReportThreshold = 5
	dedupBucket            = 10 * time.Second
)

// DetectedError is one observed anomaly.
type DetectedError struct {
	Type            ErrorType
	Timestamp       time.Time
	ExpectedPackage string
	ActualPackage   string
	SubtaskID       string
	Info            string
}

// ReportPayload flattens the error into the key/value form the backend
// ingests.
func (e DetectedError) ReportPayload() map[string]string {
	p := map[string]string{
		"error_type": string(e.Type),
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if e.ExpectedPackage != "" {
		p["expected_package"] = e.ExpectedPackage
	}
	if e.ActualPackage != "" {
		p["actual_package"] = e.ActualPackage
	}
	if e.SubtaskID != "" {
		p["subtask_id"] = e.SubtaskID
	}
	if e.Info != "" {
		p["additional_info"] = e.Info
	}
	return p
}

// Detector holds the per-session anomaly state. One instance per active
// session; all methods are safe for concurrent use.
type Detector struct {
	// FrozenThreshold is how long the screen must stay structurally
	// unchanged before FROZEN_SCREEN fires.
	FrozenThreshold time.Duration
	// ReportThreshold is how many consecutive occurrences of the same
	// error type are required before ShouldReport passes it through.
	// WRONG_CLICK bypasses this gate.
	ReportThreshold int

	mu             sync.Mutex
	counts         map[ErrorType]int
	lastSnapshot   *uievent.Snapshot
	lastChangeTime time.Time
	reported       map[string]bool

	now    func() time.Time
	logger *slog.Logger
}

// NewDetector creates a detector with the default thresholds. A nil logger
// uses slog.Default().
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		FrozenThreshold: DefaultFrozenThreshold,
		ReportThreshold: DefaultReportThreshold,
		counts:          map[ErrorType]int{},
		reported:        map[string]bool{},
		now:             time.Now,
		logger:          logger,
	}
}

// Detect runs the snapshot-driven checks (WRONG_APP, FROZEN_SCREEN) against
// the current expectation. It returns at most one error per call; WRONG_APP
// takes precedence over FROZEN_SCREEN.
func (d *Detector) Detect(snap *uievent.Snapshot, exp lesson.StepExpectation) *DetectedError {
	if snap == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	if exp.ExpectedPackage != "" && !fuzzy.ContainsFold(snap.Package, exp.ExpectedPackage) {
		d.counts[ErrWrongApp]++
		// A foreign package also resets the frozen timer: the screen is
		// changing, just in the wrong app.
		d.markChanged(snap, now)
		return &DetectedError{
			Type:            ErrWrongApp,
			Timestamp:       now,
			ExpectedPackage: exp.ExpectedPackage,
			ActualPackage:   snap.Package,
			SubtaskID:       exp.SubtaskID,
		}
	}
	// Back in the right app clears the wrong-app streak.
	d.counts[ErrWrongApp] = 0

	if d.lastSnapshot == nil || !snap.StructuralEqual(d.lastSnapshot) {
		d.markChanged(snap, now)
		d.counts[ErrFrozenScreen] = 0
		return nil
	}

	if now.Sub(d.lastChangeTime) > d.FrozenThreshold {
		d.counts[ErrFrozenScreen]++
		return &DetectedError{
			Type:            ErrFrozenScreen,
			Timestamp:       now,
			ExpectedPackage: exp.ExpectedPackage,
			ActualPackage:   snap.Package,
			SubtaskID:       exp.SubtaskID,
			Info:            fmt.Sprintf("unchanged for %s", now.Sub(d.lastChangeTime).Round(time.Millisecond)),
		}
	}
	return nil
}

// DetectWrongClick checks a click target against the expectation's
// KeyViews. A click matching none of them is an immediate WRONG_CLICK;
// expectations without KeyViews never produce one.
func (d *Detector) DetectWrongClick(viewID, text string, exp lesson.StepExpectation) *DetectedError {
	keyViews := exp.ValidKeyViews()
	if len(keyViews) == 0 {
		return nil
	}

	for _, kv := range keyViews {
		if kv.ViewID != "" && (fuzzy.ContainsFold(viewID, kv.ViewID) || fuzzy.ShortID(viewID) == fuzzy.ShortID(kv.ViewID)) {
			return nil
		}
		if kv.Text != "" && (fuzzy.ContainsFold(text, kv.Text) || fuzzy.ContainsFold(viewID, kv.Text)) {
			return nil
		}
	}

	d.mu.Lock()
	now := d.now()
	d.counts[ErrWrongClick]++
	d.mu.Unlock()

	return &DetectedError{
		Type:      ErrWrongClick,
		Timestamp: now,
		SubtaskID: exp.SubtaskID,
		Info:      fmt.Sprintf("clicked %q / %q", viewID, text),
	}
}

// ShouldReport applies the debounce gate: WRONG_CLICK reports immediately,
// everything else only after ReportThreshold consecutive occurrences.
func (d *Detector) ShouldReport(t ErrorType) bool {
	if t == ErrWrongClick {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[t] >= d.ReportThreshold
}

// MarkReported records that an error was sent, keyed by a coarse time
// bucket so the same error is not re-reported within ~10 seconds.
func (d *Detector) MarkReported(e *DetectedError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reported[dedupKey(e)] = true
}

// AlreadyReported reports whether an equivalent error was already sent in
// the current time bucket.
func (d *Detector) AlreadyReported(e *DetectedError) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reported[dedupKey(e)]
}

// Reset clears all detection state. Called at session boundaries.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts = map[ErrorType]int{}
	d.reported = map[string]bool{}
	d.lastSnapshot = nil
	d.lastChangeTime = time.Time{}
	d.logger.Debug("anomaly state reset")
}

func (d *Detector) markChanged(snap *uievent.Snapshot, now time.Time) {
	d.lastSnapshot = snap
	d.lastChangeTime = now
}

func dedupKey(e *DetectedError) string {
	bucket := e.Timestamp.UnixMilli() / dedupBucket.Milliseconds()
	return fmt.Sprintf("%s_%s_%d", e.Type, e.SubtaskID, bucket)
}
