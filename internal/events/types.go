// Package events defines the internal event taxonomy and the channel-based
// pub/sub router carrying session activity to the sinks and the overlay.
package events

import "time"

// EventType identifies the category and nature of an internal event.
type EventType string

const (
	// Session events
	EventSessionStart EventType = "session.start"
	EventSessionEnd   EventType = "session.end"

	// Step events
	EventStepAdvanced  EventType = "step.advanced"
	EventStepMatched   EventType = "step.matched"
	EventStepCompleted EventType = "step.completed"
	EventStepGuidance  EventType = "step.guidance"

	// Tracking events
	EventTrackingChanged EventType = "tracking.changed"

	// Anomaly events
	EventAnomalyDetected EventType = "anomaly.detected"
	EventAnomalyReported EventType = "anomaly.reported"

	// Error events
	EventError      EventType = "error"
	EventParseError EventType = "error.parse"
)

// Source constants identify the origin of events.
const (
	SourceDevice   = "device"
	SourceInternal = "stepwatch"
)

// Event is the base interface for all internal events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType { return e.EventType }

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// Source returns the origin of the event.
func (e BaseEvent) Source() string { return e.Src }

// SessionStartEvent is emitted when a tracking session begins.
type SessionStartEvent struct {
	BaseEvent
	SessionID   string `json:"session_id"`
	LessonTitle string `json:"lesson_title"`
	StepCount   int    `json:"step_count"`
}

// SessionEndEvent is emitted when a tracking session finishes.
type SessionEndEvent struct {
	BaseEvent
	SessionID      string `json:"session_id"`
	CompletedSteps int    `json:"completed_steps"`
	TotalSteps     int    `json:"total_steps"`
	DurationMs     int64  `json:"duration_ms"`
	Reason         string `json:"reason,omitempty"`
}

// StepAdvancedEvent is emitted when the active step changes.
type StepAdvancedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	StepIndex int    `json:"step_index"`
	SubtaskID string `json:"subtask_id"`
	Title     string `json:"title"`
}

// StepMatchedEvent is emitted when the active step fully matches.
type StepMatchedEvent struct {
	BaseEvent
	SessionID string  `json:"session_id"`
	SubtaskID string  `json:"subtask_id"`
	Ratio     float64 `json:"ratio"`
}

// StepCompletedEvent is emitted when a step completion is accepted.
type StepCompletedEvent struct {
	BaseEvent
	SessionID string  `json:"session_id"`
	SubtaskID string  `json:"subtask_id"`
	Ratio     float64 `json:"ratio"`
	Reported  bool    `json:"reported"`
}

// StepGuidanceEvent carries highlight geometry for the active step's target
// element.
type StepGuidanceEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	SubtaskID string `json:"subtask_id"`
	Left      int    `json:"left"`
	Top       int    `json:"top"`
	Right     int    `json:"right"`
	Bottom    int    `json:"bottom"`
}

// TrackingChangedEvent is emitted on every tracking state transition.
type TrackingChangedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
}

// AnomalyDetectedEvent is emitted for every detected anomaly, reportable or
// not.
type AnomalyDetectedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	ErrorType string `json:"error_type"`
	SubtaskID string `json:"subtask_id,omitempty"`
	Info      string `json:"info,omitempty"`
}

// AnomalyReportedEvent is emitted when an anomaly passes the debounce gate
// and is sent to the backend.
type AnomalyReportedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	ErrorType string `json:"error_type"`
	SubtaskID string `json:"subtask_id,omitempty"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeverityFatal   = "fatal"
)

// ErrorEvent is emitted for any error condition.
type ErrorEvent struct {
	BaseEvent
	Message  string            `json:"message"`
	Severity string            `json:"severity"`
	Context  map[string]string `json:"context,omitempty"`
}

// ParseErrorEvent is emitted when decoding an inbound event line fails.
type ParseErrorEvent struct {
	BaseEvent
	Line  string `json:"line"`
	Error string `json:"error"`
}

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewDeviceEvent creates a BaseEvent sourced from the device stream.
func NewDeviceEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceDevice)
}

// NewInternalEvent creates a BaseEvent sourced from stepwatch itself.
func NewInternalEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceInternal)
}
