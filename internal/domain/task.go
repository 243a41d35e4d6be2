package domain

import "time"

// TaskStatus represents the workflow status of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Next returns the following status in the pending -> in_progress -> done
// rotation, wrapping back to pending. Used by the concurrency probe to pick
// a deterministic target status for each simulated editor.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case TaskStatusPending:
		return TaskStatusInProgress
	case TaskStatusInProgress:
		return TaskStatusDone
	default:
		return TaskStatusPending
	}
}

// Evidence is an optional binary attachment on a task.
type Evidence struct {
	Content     []byte
	Filename    string
	ContentType string
}

// Task represents a shared task record edited by multiple concurrent users.
//
// Version is an opaque token issued by the store and replaced on every
// successful write. Callers must present the version they last observed to
// mutate the record; a mismatch means someone else wrote first.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	Assignee    *string
	Evidence    *Evidence
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	Version     string
}

// HasEvidence reports whether the task carries an attachment.
func (t *Task) HasEvidence() bool {
	return t.Evidence != nil && len(t.Evidence.Content) > 0
}

// TaskChanges holds the mutable fields of an update request. Nil fields
// keep the current value of the record.
type TaskChanges struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Assignee    *string
	Evidence    *Evidence
}
