package audit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colabtask/colabtask/internal/audit"
	"github.com/colabtask/colabtask/internal/domain"
)

// memStore collects inserted entries in memory. failFirst makes the first N
// inserts return an error to exercise the skip-and-continue path.
type memStore struct {
	mu        sync.Mutex
	entries   []*domain.AuditEntry
	failFirst int
}

func (s *memStore) Insert(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst > 0 {
		s.failFirst--
		return errors.New("store unavailable")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) Entries() []*domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func newEntry(taskID string) *domain.AuditEntry {
	return &domain.AuditEntry{
		TaskID:         taskID,
		PreviousStatus: domain.TaskStatusPending,
		NewStatus:      domain.TaskStatusInProgress,
		ChangedBy:      "test_user",
		ChangedAt:      time.Now().UTC(),
	}
}

func TestRecorder_DrainsInOrderOnStop(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, 16, audit.DropNewest)
	rec.Start()

	for i := 0; i < 5; i++ {
		rec.Enqueue(newEntry(fmt.Sprintf("task-%d", i)))
	}
	rec.Stop()

	entries := store.Entries()
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("task-%d", i), e.TaskID, "entries must arrive first-enqueued-first-dequeued")
	}
	assert.EqualValues(t, 0, rec.Dropped())
}

func TestRecorder_PersistFailureDoesNotStopDrain(t *testing.T) {
	store := &memStore{failFirst: 2}
	rec := audit.NewRecorder(store, 16, audit.DropNewest)
	rec.Start()

	for i := 0; i < 5; i++ {
		rec.Enqueue(newEntry(fmt.Sprintf("task-%d", i)))
	}
	rec.Stop()

	// The two failed entries are gone for good, the rest were written.
	entries := store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "task-2", entries[0].TaskID)
	assert.Equal(t, "task-4", entries[2].TaskID)
}

func TestRecorder_DropNewestOnOverflow(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, 2, audit.DropNewest)
	// Consumer not started: entries pile up in the queue.

	rec.Enqueue(newEntry("task-0"))
	rec.Enqueue(newEntry("task-1"))
	rec.Enqueue(newEntry("task-2")) // over capacity, discarded

	assert.EqualValues(t, 1, rec.Dropped())
	assert.Equal(t, 2, rec.Pending())

	rec.Start()
	rec.Stop()

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "task-0", entries[0].TaskID)
	assert.Equal(t, "task-1", entries[1].TaskID)
}

func TestRecorder_DropOldestOnOverflow(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, 2, audit.DropOldest)

	rec.Enqueue(newEntry("task-0"))
	rec.Enqueue(newEntry("task-1"))
	rec.Enqueue(newEntry("task-2")) // evicts task-0

	assert.EqualValues(t, 1, rec.Dropped())

	rec.Start()
	rec.Stop()

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "task-1", entries[0].TaskID)
	assert.Equal(t, "task-2", entries[1].TaskID)
}

func TestRecorder_EnqueueAfterStopIsDropped(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, 4, audit.DropNewest)
	rec.Start()
	rec.Stop()

	rec.Enqueue(newEntry("task-late"))

	assert.EqualValues(t, 1, rec.Dropped())
	assert.Empty(t, store.Entries())
}

func TestRecorder_ConcurrentProducers(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, 128, audit.DropNewest)
	rec.Start()

	var wg sync.WaitGroup
	const producers = 8
	const perProducer = 10
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				rec.Enqueue(newEntry(fmt.Sprintf("task-%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()
	rec.Stop()

	assert.Len(t, store.Entries(), producers*perProducer)
	assert.EqualValues(t, 0, rec.Dropped())
}

func TestParseOverflowPolicy(t *testing.T) {
	policy, err := audit.ParseOverflowPolicy("drop_newest")
	require.NoError(t, err)
	assert.Equal(t, audit.DropNewest, policy)

	policy, err = audit.ParseOverflowPolicy("drop_oldest")
	require.NoError(t, err)
	assert.Equal(t, audit.DropOldest, policy)

	_, err = audit.ParseOverflowPolicy("block")
	assert.Error(t, err)
}
