// Package audit implements the asynchronous audit-logging pipeline: a
// bounded in-memory queue fed by task mutations and a single background
// consumer that persists entries to the append-only audit log.
//
// The pipeline is deliberately decoupled from the write path. Enqueueing
// never blocks and never fails the surrounding mutation; persistence is
// best-effort and entries still buffered at process exit may be lost.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/colabtask/colabtask/internal/domain"
)

// OverflowPolicy selects what happens when an entry arrives while the
// queue is full.
type OverflowPolicy string

const (
	// DropNewest discards the incoming entry.
	DropNewest OverflowPolicy = "drop_newest"
	// DropOldest evicts the oldest pending entry to make room.
	DropOldest OverflowPolicy = "drop_oldest"
)

// ParseOverflowPolicy converts a configuration string to an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case DropNewest, DropOldest:
		return OverflowPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown audit overflow policy %q", s)
	}
}

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, entry *domain.AuditEntry) error
}

// insertTimeout bounds a single audit write so a wedged database cannot
// stall the drain loop forever.
const insertTimeout = 5 * time.Second

// Recorder owns the audit queue and its consumer goroutine.
//
// Multiple producers may call Enqueue concurrently; entries are delivered
// to the single consumer first-enqueued-first-dequeued. A persistence
// failure is logged and the consumer moves on: entries are written at most
// once and never retried.
type Recorder struct {
	store   Store
	entries chan *domain.AuditEntry
	policy  OverflowPolicy
	dropped atomic.Uint64
	wg      sync.WaitGroup
	closed  bool
	mu      sync.Mutex
}

// NewRecorder creates a Recorder with the given queue capacity and
// overflow policy.
func NewRecorder(store Store, capacity int, policy OverflowPolicy) *Recorder {
	return &Recorder{
		store:   store,
		entries: make(chan *domain.AuditEntry, capacity),
		policy:  policy,
	}
}

// Start launches the consumer goroutine. It runs until Stop closes the queue.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.consume()
}

// Enqueue hands an entry to the pipeline without blocking. When the queue
// is full the overflow policy decides which entry is sacrificed; the caller
// is never back-pressured and never sees an error.
func (r *Recorder) Enqueue(entry *domain.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.drop(entry, "recorder stopped")
		return
	}

	select {
	case r.entries <- entry:
		return
	default:
	}

	if r.policy == DropOldest {
		select {
		case evicted := <-r.entries:
			r.drop(evicted, "queue full, evicted oldest")
		default:
		}
		select {
		case r.entries <- entry:
			return
		default:
		}
	}

	r.drop(entry, "queue full")
}

// Stop closes the queue and waits for the consumer to drain every entry
// already buffered. Entries enqueued after Stop are dropped.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	r.wg.Wait()
	slog.Info("audit recorder stopped", "dropped_total", r.dropped.Load())
}

// Dropped returns the number of entries discarded by the overflow policy.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Pending returns the number of entries waiting in the queue.
func (r *Recorder) Pending() int {
	return len(r.entries)
}

func (r *Recorder) drop(entry *domain.AuditEntry, reason string) {
	r.dropped.Add(1)
	slog.Warn("audit entry dropped",
		"task_id", entry.TaskID,
		"previous_status", entry.PreviousStatus,
		"new_status", entry.NewStatus,
		"reason", reason,
	)
}

// consume is the single drain loop. It suspends when the queue is empty and
// exits when the queue is closed, after persisting everything still buffered.
func (r *Recorder) consume() {
	defer r.wg.Done()

	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		err := r.store.Insert(ctx, entry)
		cancel()
		if err != nil {
			slog.Error("failed to persist audit entry",
				"task_id", entry.TaskID,
				"changed_by", entry.ChangedBy,
				"error", err,
			)
		}
	}
}
