package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// batchMessage is the wire form of one uploaded batch.
type batchMessage struct {
	BatchID string     `json:"batch_id"`
	Count   int        `json:"count"`
	Events  []RawEvent `json:"events"`
}

// WSUploader uploads event batches over a single websocket connection.
// The connection is dialed lazily and redialed after a write failure; a
// failed write surfaces as an error so the uploader's retry policy applies.
type WSUploader struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSUploader creates an uploader targeting the given websocket URL.
// A nil logger uses slog.Default().
func NewWSUploader(url string, logger *slog.Logger) *WSUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSUploader{url: url, logger: logger}
}

// UploadBatch implements EventUploader.
func (u *WSUploader) UploadBatch(ctx context.Context, batchID string, events []RawEvent) error {
	payload, err := json.Marshal(batchMessage{
		BatchID: batchID,
		Count:   len(events),
		Events:  events,
	})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.conn == nil {
		if err := u.dial(ctx); err != nil {
			return err
		}
	}

	u.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := u.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		// Drop the connection; the next call redials.
		u.conn.Close()
		u.conn = nil
		return fmt.Errorf("write batch %s: %w", batchID, err)
	}
	return nil
}

// Close tears down the connection.
func (u *WSUploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	err := u.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	u.conn.Close()
	u.conn = nil
	return err
}

func (u *WSUploader) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.url, err)
	}
	u.logger.Debug("event upload socket connected", "url", u.url)
	u.conn = conn
	return nil
}

var _ EventUploader = (*WSUploader)(nil)
