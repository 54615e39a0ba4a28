// Package report provides the outbound backend contracts: completion
// reports, error reports, and raw event batch upload. It abstracts the
// backend so the session pipeline can be unit tested with mocks.
package report

import (
	"context"
	"time"
)

// RawEvent is one observed UI event in wire form, batched for upload.
type RawEvent struct {
	SessionID string            `json:"session_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Package   string            `json:"package,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// CompletionStatus is the server's view of completed subtasks, used to
// reconcile the local cache after reconnect.
type CompletionStatus struct {
	SessionID    string   `json:"session_id"`
	CompletedIDs []string `json:"completed_ids"`
}

// CompletionReporter reports step completions.
type CompletionReporter interface {
	// ReportCompletion tells the backend that a subtask was completed.
	ReportCompletion(ctx context.Context, subtaskID, sessionID string) error

	// CompletionStatus fetches the server-side completion set for a session.
	CompletionStatus(ctx context.Context, sessionID string) (*CompletionStatus, error)
}

// ErrorReporter reports detected anomalies.
type ErrorReporter interface {
	// ReportError delivers one anomaly payload.
	ReportError(ctx context.Context, payload map[string]string) error
}

// EventUploader uploads raw event batches.
type EventUploader interface {
	// UploadBatch delivers a batch of raw events. An error means the whole
	// batch was not accepted.
	UploadBatch(ctx context.Context, batchID string, events []RawEvent) error
}

// Client combines all outbound operations.
type Client interface {
	CompletionReporter
	ErrorReporter
	EventUploader
}
