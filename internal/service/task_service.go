package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/colabtask/colabtask/internal/domain"
	"github.com/colabtask/colabtask/internal/repository"
)

// AuditSink receives audit entries from successful status changes. Handing
// an entry over must not block: persistence happens on the consumer side.
type AuditSink interface {
	Enqueue(entry *domain.AuditEntry)
}

// TaskService coordinates task mutations with optimistic concurrency control.
//
// No lock is held across a read-modify-write cycle. The version token the
// caller presents is the only correctness guarantee: concurrent updates to
// the same record produce at most one winner, the rest observe
// domain.ErrVersionConflict and must re-read before retrying.
type TaskService struct {
	taskRepo *repository.TaskRepository
	sink     AuditSink
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskRepo *repository.TaskRepository, sink AuditSink) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		sink:     sink,
	}
}

// CreateTaskParams holds the fields for creating a task.
type CreateTaskParams struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Assignee    *string
	Evidence    *domain.Evidence
	CreatedBy   string
}

// CreateTask generates an identifier and creation timestamp and persists the
// task. The store assigns the initial version token; creation never conflicts.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	status := params.Status
	if status == "" {
		status = domain.TaskStatusPending
	}
	if !status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}

	task := &domain.Task{
		ID:          uuid.New().String(),
		Title:       params.Title,
		Description: params.Description,
		Status:      status,
		Assignee:    params.Assignee,
		Evidence:    params.Evidence,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		slog.Error("failed to create task",
			"task_id", task.ID,
			"created_by", params.CreatedBy,
			"error", err,
		)
		return nil, err
	}

	slog.Info("task created",
		"task_id", task.ID,
		"status", task.Status,
		"created_by", params.CreatedBy,
	)

	return task, nil
}

// UpdateTask applies a partial update to a task using compare-and-swap on the
// caller-supplied version token.
//
// The current record is read once to merge unset fields and to capture the
// previous status, then the merged record is written conditionally on
// expectedVersion. On a version conflict the error is returned as-is with no
// retry: the caller must re-read and resubmit with the fresh token.
//
// When the write succeeds and the status value changed, exactly one audit
// entry is handed to the sink. The hand-off never blocks or fails the update.
func (s *TaskService) UpdateTask(
	ctx context.Context,
	taskID string,
	changes domain.TaskChanges,
	expectedVersion string,
	changedBy string,
) (*domain.Task, error) {
	if expectedVersion == "" {
		return nil, domain.ErrMissingVersion
	}
	if changes.Status != nil && !changes.Status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	previousStatus := task.Status

	if changes.Title != nil {
		task.Title = *changes.Title
	}
	if changes.Description != nil {
		task.Description = *changes.Description
	}
	if changes.Status != nil {
		task.Status = *changes.Status
	}
	if changes.Assignee != nil {
		task.Assignee = changes.Assignee
	}
	if changes.Evidence != nil {
		task.Evidence = changes.Evidence
	}

	if err := s.taskRepo.CompareAndUpdate(ctx, task, expectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			slog.Warn("concurrent modification detected",
				"task_id", taskID,
				"changed_by", changedBy,
			)
		} else {
			slog.Error("failed to update task",
				"task_id", taskID,
				"changed_by", changedBy,
				"error", err,
			)
		}
		return nil, err
	}

	if changedBy == "" {
		changedBy = "system"
	}

	if previousStatus != task.Status {
		s.sink.Enqueue(&domain.AuditEntry{
			TaskID:         task.ID,
			PreviousStatus: previousStatus,
			NewStatus:      task.Status,
			ChangedBy:      changedBy,
			ChangedAt:      time.Now().UTC(),
		})
	}

	slog.Info("task updated",
		"task_id", task.ID,
		"previous_status", previousStatus,
		"new_status", task.Status,
		"changed_by", changedBy,
	)

	return task, nil
}

// DeleteTask removes a task by identifier. No version check is applied and
// no audit entry is emitted: deletes are not OCC-protected.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}

	slog.Info("task deleted", "task_id", taskID)
	return nil
}

// GetTask retrieves a task by identifier.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.taskRepo.GetByID(ctx, taskID)
}

// GetPagedTasks retrieves a page of tasks ordered newest-created-first,
// optionally bounded inclusively by creation time, with the total count
// matching the filters.
func (s *TaskService) GetPagedTasks(
	ctx context.Context,
	page int,
	pageSize int,
	from *time.Time,
	to *time.Time,
) ([]*domain.Task, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return s.taskRepo.GetPaged(ctx, page, pageSize, from, to)
}
