package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu      sync.Mutex
	batches [][]Entry
	entered chan struct{}
	release chan struct{}
}

func newRecordingStore() *recordingStore {
	return &recordingStore{}
}

func (s *recordingStore) AppendBatch(_ context.Context, entries []Entry) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// The worker reuses its batch slice, so keep a copy.
	batch := make([]Entry, len(entries))
	copy(batch, entries)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingStore) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func (s *recordingStore) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestLoggerFlushesFullBatches(t *testing.T) {
	store := newRecordingStore()
	logger := NewLogger(Config{
		Store:         store,
		BatchSize:     3,
		FlushInterval: time.Hour,
	})

	actor := uuid.New()
	for i := 0; i < 3; i++ {
		logger.Emit(ActionTenantAccess, SeverityLow, &actor, map[string]any{"n": i})
	}

	require.Eventually(t, func() bool {
		return store.batchCount() == 1
	}, time.Second, 5*time.Millisecond)

	entries := store.all()
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.Equal(t, ActionTenantAccess, e.Action)
		require.Equal(t, SeverityLow, e.Severity)
		require.Equal(t, actor, *e.ActorID)
		require.NotEqual(t, uuid.Nil, e.ID)
		require.False(t, e.CreatedAt.IsZero())
	}

	require.NoError(t, logger.Close(context.Background()))
}

func TestLoggerFlushesPartialBatchOnInterval(t *testing.T) {
	store := newRecordingStore()
	logger := NewLogger(Config{
		Store:         store,
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
	})

	logger.Emit(ActionAccessDenied, SeverityMedium, nil, nil)

	require.Eventually(t, func() bool {
		return len(store.all()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, logger.Close(context.Background()))
}

func TestLoggerCloseDrainsBuffer(t *testing.T) {
	store := newRecordingStore()
	logger := NewLogger(Config{
		Store:         store,
		BatchSize:     100,
		FlushInterval: time.Hour,
	})

	for i := 0; i < 5; i++ {
		logger.Emit(ActionGlobalAccess, SeverityHigh, nil, nil)
	}

	require.NoError(t, logger.Close(context.Background()))
	require.Len(t, store.all(), 5)
}

func TestLoggerEmitNeverBlocks(t *testing.T) {
	store := newRecordingStore()
	store.entered = make(chan struct{}, 4)
	store.release = make(chan struct{})

	logger := NewLogger(Config{
		Store:      store,
		BufferSize: 1,
		BatchSize:  1,
	})

	// The first entry is taken by the worker and wedges inside the store.
	logger.Emit(ActionTenantAccess, SeverityLow, nil, nil)
	<-store.entered

	// The second entry fills the buffer; the third must be dropped without
	// blocking the caller.
	logger.Emit(ActionTenantAccess, SeverityLow, nil, nil)

	done := make(chan struct{})
	go func() {
		logger.Emit(ActionTenantAccess, SeverityLow, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	close(store.release)
	require.NoError(t, logger.Close(context.Background()))
	require.Len(t, store.all(), 2)
}
