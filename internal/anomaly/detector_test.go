package anomaly

import (
	"testing"
	"time"

	"stepwatch/internal/lesson"
	"stepwatch/internal/uievent"
)

// fakeClock drives the detector's notion of time in tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDetector() (*Detector, *fakeClock) {
	d := NewDetector(nil)
	c := newFakeClock()
	d.now = c.now
	return d, c
}

func snap(pkg string, views ...string) *uievent.Snapshot {
	return &uievent.Snapshot{Package: pkg, VisibleViews: views}
}

func TestDetectWrongApp(t *testing.T) {
	d, _ := newTestDetector()
	exp := lesson.StepExpectation{ExpectedPackage: "com.example.app", SubtaskID: "s1"}

	e := d.Detect(snap("com.other.launcher"), exp)
	if e == nil || e.Type != ErrWrongApp {
		t.Fatalf("error = %+v, want WRONG_APP", e)
	}
	if e.ExpectedPackage != "com.example.app" || e.ActualPackage != "com.other.launcher" {
		t.Errorf("packages = %q / %q", e.ExpectedPackage, e.ActualPackage)
	}

	payload := e.ReportPayload()
	if payload["error_type"] != "WRONG_APP" || payload["subtask_id"] != "s1" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWrongAppClearsOnReturn(t *testing.T) {
	d, _ := newTestDetector()
	exp := lesson.StepExpectation{ExpectedPackage: "com.example.app"}

	for i := 0; i < 3; i++ {
		d.Detect(snap("com.other.launcher"), exp)
	}
	if d.Detect(snap("com.example.app", "a"), exp) != nil {
		t.Fatal("right app produced an error")
	}

	// The streak restarted, so one more occurrence is not reportable.
	d.Detect(snap("com.other.launcher"), exp)
	if d.ShouldReport(ErrWrongApp) {
		t.Error("streak should have been cleared by the return to the app")
	}
}

func TestDetectFrozenScreen(t *testing.T) {
	d, clock := newTestDetector()
	exp := lesson.StepExpectation{ExpectedPackage: "com.example.app", SubtaskID: "s1"}
	same := snap("com.example.app", "a", "b")

	if d.Detect(same, exp) != nil {
		t.Fatal("first snapshot is a change, not a freeze")
	}

	clock.advance(2 * time.Second)
	if d.Detect(same, exp) != nil {
		t.Fatal("2s below threshold produced an error")
	}

	clock.advance(1500 * time.Millisecond)
	e := d.Detect(same, exp)
	if e == nil || e.Type != ErrFrozenScreen {
		t.Fatalf("error = %+v, want FROZEN_SCREEN after 3.5s", e)
	}

	// Any structural change resets the timer.
	clock.advance(time.Second)
	if d.Detect(snap("com.example.app", "a", "c"), exp) != nil {
		t.Fatal("changed screen produced an error")
	}
	clock.advance(2 * time.Second)
	if d.Detect(snap("com.example.app", "a", "c"), exp) != nil {
		t.Fatal("timer did not reset on change")
	}
}

func TestDetectWrongClick(t *testing.T) {
	d, _ := newTestDetector()
	exp := lesson.StepExpectation{
		SubtaskID: "s1",
		KeyViews:  []lesson.KeyView{{ViewID: "btn_save", Text: "Save"}},
	}

	if e := d.DetectWrongClick("com.example:id/btn_save", "", exp); e != nil {
		t.Fatalf("click on target flagged: %+v", e)
	}
	if e := d.DetectWrongClick("", "Save changes", exp); e != nil {
		t.Fatalf("click on target text flagged: %+v", e)
	}

	e := d.DetectWrongClick("com.example:id/btn_cancel", "Cancel", exp)
	if e == nil || e.Type != ErrWrongClick {
		t.Fatalf("error = %+v, want WRONG_CLICK", e)
	}

	// No KeyViews means nothing to be wrong about.
	if e := d.DetectWrongClick("anything", "", lesson.StepExpectation{}); e != nil {
		t.Fatalf("expectation without KeyViews flagged: %+v", e)
	}
}

func TestShouldReportDebounce(t *testing.T) {
	d, _ := newTestDetector()
	exp := lesson.StepExpectation{ExpectedPackage: "com.example.app"}

	for i := 0; i < 4; i++ {
		d.Detect(snap("com.other"), exp)
		if d.ShouldReport(ErrWrongApp) {
			t.Fatalf("reportable after %d occurrences", i+1)
		}
	}
	d.Detect(snap("com.other"), exp)
	if !d.ShouldReport(ErrWrongApp) {
		t.Fatal("not reportable after 5 occurrences")
	}
}

func TestWrongClickBypassesDebounce(t *testing.T) {
	d, _ := newTestDetector()
	if !d.ShouldReport(ErrWrongClick) {
		t.Fatal("WRONG_CLICK must report on first occurrence")
	}
}

func TestReportDedup(t *testing.T) {
	d, clock := newTestDetector()
	e := &DetectedError{Type: ErrWrongApp, SubtaskID: "s1", Timestamp: clock.now()}

	if d.AlreadyReported(e) {
		t.Fatal("fresh error already reported")
	}
	d.MarkReported(e)
	if !d.AlreadyReported(e) {
		t.Fatal("marked error not deduplicated")
	}

	// Same error in the same 10s bucket is suppressed; a later bucket is not.
	within := &DetectedError{Type: ErrWrongApp, SubtaskID: "s1", Timestamp: clock.now().Add(5 * time.Second)}
	if !d.AlreadyReported(within) {
		t.Error("error within the bucket not deduplicated")
	}
	later := &DetectedError{Type: ErrWrongApp, SubtaskID: "s1", Timestamp: clock.now().Add(25 * time.Second)}
	if d.AlreadyReported(later) {
		t.Error("error in a later bucket deduplicated")
	}
}

func TestReset(t *testing.T) {
	d, clock := newTestDetector()
	exp := lesson.StepExpectation{ExpectedPackage: "com.example.app"}
	same := snap("com.example.app", "a")

	d.Detect(same, exp)
	clock.advance(5 * time.Second)
	if d.Detect(same, exp) == nil {
		t.Fatal("expected FROZEN_SCREEN before reset")
	}

	d.Reset()
	if d.Detect(same, exp) != nil {
		t.Fatal("first snapshot after reset produced an error")
	}
	if d.ShouldReport(ErrFrozenScreen) {
		t.Error("counters survived reset")
	}
}
