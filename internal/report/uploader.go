package report

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Uploader defaults.
const (
	DefaultFlushInterval = 3 * time.Second
	DefaultBatchSize     = 50
	DefaultBufferLimit   = 1000
)

// Uploader buffers raw events and flushes them in batches on a timer. A
// failed batch is re-queued once at the head of the buffer for the next
// flush cycle; a batch that fails its retry is dropped, so the buffer can
// never grow without bound under a sustained outage.
type Uploader struct {
	sink          EventUploader
	flushInterval time.Duration
	batchSize     int
	bufferLimit   int
	logger        *slog.Logger

	mu      sync.Mutex
	buffer  []RawEvent
	retry   []RawEvent
	retryID string
	dropped int

	started bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		if d > 0 {
			u.flushInterval = d
		}
	}
}

// WithBatchSize sets the maximum events per batch.
func WithBatchSize(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.batchSize = n
		}
	}
}

// WithBufferLimit caps the number of buffered events. Events past the cap
// are dropped oldest-first.
func WithBufferLimit(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.bufferLimit = n
		}
	}
}

// NewUploader creates an uploader draining into sink. A nil logger uses
// slog.Default().
func NewUploader(sink EventUploader, logger *slog.Logger, opts ...UploaderOption) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Uploader{
		sink:          sink,
		flushInterval: DefaultFlushInterval,
		batchSize:     DefaultBatchSize,
		bufferLimit:   DefaultBufferLimit,
		logger:        logger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start launches the periodic flush loop. It returns immediately; Stop
// drains and joins the loop.
func (u *Uploader) Start(ctx context.Context) {
	u.mu.Lock()
	if u.started {
		u.mu.Unlock()
		return
	}
	u.started = true
	u.mu.Unlock()

	go func() {
		defer close(u.done)
		ticker := time.NewTicker(u.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				u.Flush(ctx)
			case <-u.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Add buffers one event. When the buffer is at its limit the oldest event
// is dropped.
func (u *Uploader) Add(ev RawEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.buffer) >= u.bufferLimit {
		u.buffer = u.buffer[1:]
		u.dropped++
		if u.dropped%100 == 1 {
			u.logger.Warn("event buffer full, dropping oldest", "dropped_total", u.dropped)
		}
	}
	u.buffer = append(u.buffer, ev)
}

// Flush uploads the retry batch (if any) and then the buffered events, one
// batch per call per queue. Safe to call concurrently with Add.
func (u *Uploader) Flush(ctx context.Context) {
	u.flushRetry(ctx)
	u.flushBuffer(ctx)
}

func (u *Uploader) flushRetry(ctx context.Context) {
	u.mu.Lock()
	batch, batchID := u.retry, u.retryID
	u.retry, u.retryID = nil, ""
	u.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := u.sink.UploadBatch(ctx, batchID, batch); err != nil {
		// Second failure for this batch: drop it.
		u.logger.Warn("event batch dropped after retry",
			"batch_id", batchID, "events", len(batch), "error", err)
	}
}

func (u *Uploader) flushBuffer(ctx context.Context) {
	u.mu.Lock()
	if len(u.buffer) == 0 {
		u.mu.Unlock()
		return
	}
	n := len(u.buffer)
	if n > u.batchSize {
		n = u.batchSize
	}
	batch := append([]RawEvent(nil), u.buffer[:n]...)
	u.buffer = u.buffer[n:]
	u.mu.Unlock()

	batchID := ulid.Make().String()
	if err := u.sink.UploadBatch(ctx, batchID, batch); err != nil {
		u.logger.Warn("event batch upload failed, queued for one retry",
			"batch_id", batchID, "events", len(batch), "error", err)
		u.mu.Lock()
		u.retry, u.retryID = batch, batchID
		u.mu.Unlock()
		return
	}
	u.logger.Debug("event batch uploaded", "batch_id", batchID, "events", len(batch))
}

// Pending returns the number of buffered events, including the retry batch.
func (u *Uploader) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.buffer) + len(u.retry)
}

// Stop joins the flush loop and drains what is still buffered. The final
// flush runs on a fresh context: the loop's context is typically already
// canceled by the time Stop is called. Safe to call multiple times; a
// no-op if Start was never called.
func (u *Uploader) Stop() {
	u.mu.Lock()
	started := u.started
	u.mu.Unlock()
	if !started {
		return
	}
	u.once.Do(func() { close(u.stop) })
	<-u.done

	for u.Pending() > 0 {
		before := u.Pending()
		u.Flush(context.Background())
		if u.Pending() >= before {
			// Sink is down; batches are being dropped, not drained.
			return
		}
	}
}
