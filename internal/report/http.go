package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPClient reports completions and errors to the backend over HTTP.
// All calls are fail-soft: an error is returned for the caller to log, and
// never corrupts local state.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the backend at baseURL. A nil logger
// uses slog.Default().
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		logger:  logger,
	}
}

// ReportCompletion implements CompletionReporter.
func (c *HTTPClient) ReportCompletion(ctx context.Context, subtaskID, sessionID string) error {
	body := map[string]string{
		"subtask_id": subtaskID,
		"session_id": sessionID,
	}
	return c.post(ctx, "/api/v1/completions", body, nil)
}

// CompletionStatus implements CompletionReporter.
func (c *HTTPClient) CompletionStatus(ctx context.Context, sessionID string) (*CompletionStatus, error) {
	url := fmt.Sprintf("%s/api/v1/completions?session_id=%s", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch completion status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion status: unexpected status %d", resp.StatusCode)
	}

	var status CompletionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode completion status: %w", err)
	}
	return &status, nil
}

// ReportError implements ErrorReporter.
func (c *HTTPClient) ReportError(ctx context.Context, payload map[string]string) error {
	return c.post(ctx, "/api/v1/errors", payload, nil)
}

// UploadBatch implements EventUploader. HTTP upload is the fallback when no
// websocket uploader is configured.
func (c *HTTPClient) UploadBatch(ctx context.Context, batchID string, events []RawEvent) error {
	body := map[string]any{
		"batch_id": batchID,
		"events":   events,
	}
	return c.post(ctx, "/api/v1/events", body, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
