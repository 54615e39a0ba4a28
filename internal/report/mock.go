package report

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of Client for testing.
// It records all calls and returns configured responses.
type MockClient struct {
	mu sync.Mutex

	// Configured responses
	ReportCompletionError error
	CompletionStatusResp  *CompletionStatus
	CompletionStatusError error
	ReportErrorError      error
	UploadBatchError      error

	// UploadBatchErrors maps batch id to a one-shot error, for tests that
	// fail specific batches.
	UploadBatchErrors map[string]error

	// Call tracking
	ReportCompletionCalls []ReportCompletionCall
	CompletionStatusCalls []string
	ReportErrorCalls      []map[string]string
	UploadBatchCalls      []UploadBatchCall
}

// ReportCompletionCall records a ReportCompletion call.
type ReportCompletionCall struct {
	SubtaskID string
	SessionID string
}

// UploadBatchCall records an UploadBatch call.
type UploadBatchCall struct {
	BatchID string
	Events  []RawEvent
}

// NewMockClient creates a new MockClient with initialized maps.
func NewMockClient() *MockClient {
	return &MockClient{
		UploadBatchErrors: make(map[string]error),
	}
}

// ReportCompletion implements CompletionReporter.
func (m *MockClient) ReportCompletion(ctx context.Context, subtaskID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReportCompletionCalls = append(m.ReportCompletionCalls, ReportCompletionCall{
		SubtaskID: subtaskID,
		SessionID: sessionID,
	})
	return m.ReportCompletionError
}

// CompletionStatus implements CompletionReporter.
func (m *MockClient) CompletionStatus(ctx context.Context, sessionID string) (*CompletionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompletionStatusCalls = append(m.CompletionStatusCalls, sessionID)
	if m.CompletionStatusError != nil {
		return nil, m.CompletionStatusError
	}
	return m.CompletionStatusResp, nil
}

// ReportError implements ErrorReporter.
func (m *MockClient) ReportError(ctx context.Context, payload map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReportErrorCalls = append(m.ReportErrorCalls, payload)
	return m.ReportErrorError
}

// UploadBatch implements EventUploader.
func (m *MockClient) UploadBatch(ctx context.Context, batchID string, events []RawEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UploadBatchCalls = append(m.UploadBatchCalls, UploadBatchCall{
		BatchID: batchID,
		Events:  append([]RawEvent(nil), events...),
	})
	if err, ok := m.UploadBatchErrors[batchID]; ok {
		delete(m.UploadBatchErrors, batchID)
		return err
	}
	return m.UploadBatchError
}

// Calls returns a snapshot of the recorded upload calls.
func (m *MockClient) Calls() []UploadBatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UploadBatchCall(nil), m.UploadBatchCalls...)
}

// Interface compliance checks.
var (
	_ Client        = (*MockClient)(nil)
	_ EventUploader = (*MockClient)(nil)
)
