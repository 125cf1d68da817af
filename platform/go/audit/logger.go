package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger is a fire-and-forget audit emitter. Emit only guarantees the entry
// was enqueued; a background worker batches entries into the store off the
// request's critical path. Failures are logged to the fallback logger and
// swallowed; auditing must never abort the triggering request.
type Logger struct {
	entries chan Entry
	store   Store
	logger  *zap.Logger

	batchSize     int
	flushInterval time.Duration
	storeTimeout  time.Duration

	done chan struct{}
}

// Config tunes the buffering and batching behavior.
type Config struct {
	Store  Store
	Logger *zap.Logger
	// BufferSize is the channel capacity; defaults to 1024. When the buffer
	// is full the entry is dropped and reported via the fallback logger.
	BufferSize int
	// BatchSize is the flush threshold; defaults to 64.
	BatchSize int
	// FlushInterval bounds how long a partial batch waits; defaults to 1s.
	FlushInterval time.Duration
	// StoreTimeout bounds each batch write; defaults to 5s.
	StoreTimeout time.Duration
}

// NewLogger starts the background worker and returns the logger.
func NewLogger(cfg Config) *Logger {
	if cfg.Store == nil {
		panic("audit logger: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}

	l := &Logger{
		entries:       make(chan Entry, cfg.BufferSize),
		store:         cfg.Store,
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		storeTimeout:  cfg.StoreTimeout,
		done:          make(chan struct{}),
	}

	go l.worker()
	return l
}

// Emit enqueues one entry. It never blocks: when the buffer is full the entry
// is dropped and the drop is reported through the fallback logger.
func (l *Logger) Emit(action string, severity Severity, actorID *uuid.UUID, detail map[string]any) {
	entry := Entry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    action,
		Severity:  severity,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case l.entries <- entry:
	default:
		l.logger.Warn("audit buffer full, dropping entry",
			zap.String("action", action),
			zap.String("severity", string(severity)),
		)
	}
}

// Close stops accepting entries, flushes the remaining buffer and waits for
// the worker, bounded by ctx.
func (l *Logger) Close(ctx context.Context) error {
	close(l.entries)
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) worker() {
	defer close(l.done)

	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, l.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.storeTimeout)
		if err := l.store.AppendBatch(ctx, batch); err != nil {
			l.logger.Error("append audit batch", zap.Int("entries", len(batch)), zap.Error(err))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-l.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= l.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
