package domain

import "time"

// AuditEntry records a single status change of a task. Entries are
// append-only: they are never updated or deleted once persisted.
//
// Persistence is best-effort. Entries are handed to a background consumer
// after the task write commits, so an entry still buffered at process exit
// may be lost. The task mutation itself never depends on the entry.
type AuditEntry struct {
	ID             string
	TaskID         string
	PreviousStatus TaskStatus
	NewStatus      TaskStatus
	ChangedBy      string
	ChangedAt      time.Time
}
