package session

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"stepwatch/internal/config"
	"stepwatch/internal/events"
	"stepwatch/internal/lesson"
	"stepwatch/internal/report"
	"stepwatch/internal/tracking"
)

func testConfig() *config.Config {
	cfg := config.Default()
	// Event-driven tests: no background polling.
	cfg.Anomaly.PollInterval = 0
	return cfg
}

func testLesson() *lesson.Lesson {
	return &lesson.Lesson{
		TaskID: "task-1",
		Title:  "Connect to Wi-Fi",
		Subtasks: []lesson.SubtaskDetail{
			{ID: "s1", Title: "Open settings", OrderIndex: 0, TargetApp: "com.example.app", TargetAction: "CLICK", ViewID: "btn_one", Text: "One"},
			{ID: "s2", Title: "Tap Wi-Fi", OrderIndex: 1, TargetApp: "com.example.app", TargetAction: "CLICK", ViewID: "btn_two", Text: "Two"},
		},
	}
}

func collectEvents(ch <-chan events.Event) map[events.EventType]int {
	counts := map[events.EventType]int{}
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return counts
			}
			counts[ev.Type()]++
		default:
			return counts
		}
	}
}

func TestRunnerCompletesLesson(t *testing.T) {
	mock := report.NewMockClient()
	router := events.NewRouter(0)
	defer router.Close()
	ch, cancel := router.SubscribeBuffered(256)
	defer cancel()

	r := NewRunner(testConfig(), testLesson(), Options{Client: mock, Router: router})

	stream := strings.Join([]string{
		`{"type":"view.clicked","package":"com.example.app","view_id":"com.example.app:id/btn_one","text":"One"}`,
		`{"type":"view.clicked","package":"com.example.app","view_id":"com.example.app:id/btn_two","text":"Two"}`,
	}, "\n")

	if err := r.Run(context.Background(), strings.NewReader(stream)); err != nil {
		t.Fatalf("run: %v", err)
	}

	if r.SessionID() == "" {
		t.Error("session id not assigned")
	}
	if got := len(mock.ReportCompletionCalls); got != 2 {
		t.Errorf("completion reports = %d, want 2", got)
	}

	counts := collectEvents(ch)
	if counts[events.EventSessionStart] != 1 || counts[events.EventSessionEnd] != 1 {
		t.Errorf("session events = %v", counts)
	}
	if counts[events.EventStepCompleted] != 2 {
		t.Errorf("step.completed = %d, want 2", counts[events.EventStepCompleted])
	}
	if counts[events.EventStepAdvanced] != 1 {
		t.Errorf("step.advanced = %d, want 1 (no advance event past the last step)", counts[events.EventStepAdvanced])
	}
	if counts[events.EventTrackingChanged] == 0 {
		t.Error("no tracking transitions emitted")
	}
}

func TestRunnerReportsWrongAppAfterDebounce(t *testing.T) {
	mock := report.NewMockClient()
	router := events.NewRouter(0)
	defer router.Close()
	ch, cancel := router.SubscribeBuffered(256)
	defer cancel()

	r := NewRunner(testConfig(), testLesson(), Options{Client: mock, Router: router})

	var lines []string
	for i := 0; i < 6; i++ {
		lines = append(lines, `{"type":"window.state_changed","package":"com.other.launcher","class_name":"com.other.launcher.HomeActivity"}`)
	}

	if err := r.Run(context.Background(), strings.NewReader(strings.Join(lines, "\n"))); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := len(mock.ReportErrorCalls); got != 1 {
		t.Fatalf("error reports = %d, want 1 (debounced then deduplicated)", got)
	}
	payload := mock.ReportErrorCalls[0]
	if payload["error_type"] != "WRONG_APP" {
		t.Errorf("payload = %v", payload)
	}
	if payload["session_id"] == "" {
		t.Error("session id missing from payload")
	}

	counts := collectEvents(ch)
	if counts[events.EventAnomalyDetected] != 6 {
		t.Errorf("anomaly.detected = %d, want 6", counts[events.EventAnomalyDetected])
	}
	if counts[events.EventAnomalyReported] != 1 {
		t.Errorf("anomaly.reported = %d, want 1", counts[events.EventAnomalyReported])
	}
	if r.TrackingState() != tracking.StateError {
		t.Errorf("tracking state = %q, want error", r.TrackingState())
	}
}

func TestRunnerEmitsParseErrors(t *testing.T) {
	router := events.NewRouter(0)
	defer router.Close()
	ch, cancel := router.SubscribeBuffered(64)
	defer cancel()

	r := NewRunner(testConfig(), testLesson(), Options{Router: router})

	stream := "{broken json\n" +
		`{"type":"view.clicked","package":"com.example.app","view_id":"com.example.app:id/btn_one"}` + "\n"

	if err := r.Run(context.Background(), strings.NewReader(stream)); err != nil {
		t.Fatalf("run: %v", err)
	}

	counts := collectEvents(ch)
	if counts[events.EventParseError] != 1 {
		t.Errorf("error.parse = %d, want 1", counts[events.EventParseError])
	}
	// The good line still matched step one.
	if counts[events.EventStepCompleted] != 1 {
		t.Errorf("step.completed = %d, want 1", counts[events.EventStepCompleted])
	}
}

func TestRunnerUploadsRawEvents(t *testing.T) {
	mock := report.NewMockClient()
	uploader := report.NewUploader(mock, nil, report.WithFlushInterval(10*time.Millisecond))

	r := NewRunner(testConfig(), testLesson(), Options{Client: mock, Uploader: uploader})

	stream := `{"type":"view.clicked","package":"com.example.app","view_id":"com.example.app:id/btn_one","text":"One"}` + "\n"
	if err := r.Run(context.Background(), strings.NewReader(stream)); err != nil {
		t.Fatalf("run: %v", err)
	}

	calls := mock.Calls()
	if len(calls) == 0 {
		t.Fatal("no event batches uploaded")
	}
	var total int
	for _, c := range calls {
		total += len(c.Events)
	}
	if total != 1 {
		t.Errorf("uploaded events = %d, want 1", total)
	}
	if calls[0].Events[0].SessionID != r.SessionID() {
		t.Errorf("uploaded session id = %q", calls[0].Events[0].SessionID)
	}
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner(testConfig(), testLesson(), Options{})

	// A pipe-like blocking reader: Run should exit on Stop via context.
	pr, pw := newBlockingStream()
	defer pw.close()

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), pr) }()

	time.Sleep(20 * time.Millisecond)
	r.Stop()
	pw.close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	if r.State() != StateStopped {
		t.Errorf("state = %q", r.State())
	}
}

func TestRunnerReset(t *testing.T) {
	r := NewRunner(testConfig(), testLesson(), Options{})

	stream := `{"type":"view.clicked","package":"com.example.app","view_id":"com.example.app:id/btn_one","text":"One"}` + "\n"
	if err := r.Run(context.Background(), strings.NewReader(stream)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.StepIndex() != 1 {
		t.Fatalf("StepIndex = %d, want 1", r.StepIndex())
	}

	r.Reset()
	if r.StepIndex() != 0 {
		t.Errorf("StepIndex after reset = %d", r.StepIndex())
	}
	if r.TrackingState() != tracking.StateWaiting {
		t.Errorf("tracking state after reset = %q", r.TrackingState())
	}
}

// blockingStream is an in-memory reader that blocks until closed.
type blockingStream struct {
	ch chan byte
}

type blockingWriter struct {
	ch   chan byte
	once chan struct{}
}

func newBlockingStream() (*blockingStream, *blockingWriter) {
	ch := make(chan byte)
	return &blockingStream{ch: ch}, &blockingWriter{ch: ch, once: make(chan struct{})}
}

func (s *blockingStream) Read(p []byte) (int, error) {
	b, ok := <-s.ch
	if !ok {
		return 0, io.EOF
	}
	p[0] = b
	return 1, nil
}

func (w *blockingWriter) close() {
	select {
	case <-w.once:
	default:
		close(w.once)
		close(w.ch)
	}
}
