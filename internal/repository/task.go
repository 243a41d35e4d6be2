package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colabtask/colabtask/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "title", "description", "status", "assignee",
	"evidence", "evidence_filename", "evidence_content_type",
	"created_at", "updated_at", "row_version",
}

// TaskRepository handles database operations for tasks.
//
// Updates go through CompareAndUpdate, which is atomic with respect to all
// concurrent callers for a given id: the version check and the write are a
// single UPDATE statement, so the database decides the winner and losers see
// domain.ErrVersionConflict. No application-level locking is involved.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task        domain.Task
		content     []byte
		filename    *string
		contentType *string
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Assignee,
		&content,
		&filename,
		&contentType,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if content != nil {
		task.Evidence = &domain.Evidence{Content: content}
		if filename != nil {
			task.Evidence.Filename = *filename
		}
		if contentType != nil {
			task.Evidence.ContentType = *contentType
		}
	}
	return &task, nil
}

// evidenceFields splits an optional attachment into its three columns.
func evidenceFields(ev *domain.Evidence) (content []byte, filename, contentType *string) {
	if ev == nil {
		return nil, nil, nil
	}
	return ev.Content, &ev.Filename, &ev.ContentType
}

// GetByID retrieves a task by ID, including its current version token.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(r.pool.QueryRow(ctx, query, args...))
}

// GetPaged retrieves a page of tasks ordered most-recent-created-first,
// together with the total count of tasks matching the same filters.
// The from/to bounds filter inclusively on creation time.
func (r *TaskRepository) GetPaged(
	ctx context.Context,
	page int,
	pageSize int,
	from *time.Time,
	to *time.Time,
) ([]*domain.Task, int, error) {
	qb := psql.
		Select(taskColumns...).
		From("tasks")
	countQb := psql.
		Select("COUNT(*)").
		From("tasks")

	if from != nil {
		qb = qb.Where(sq.GtOrEq{"created_at": *from})
		countQb = countQb.Where(sq.GtOrEq{"created_at": *from})
	}
	if to != nil {
		qb = qb.Where(sq.LtOrEq{"created_at": *to})
		countQb = countQb.Where(sq.LtOrEq{"created_at": *to})
	}

	qb = qb.
		OrderBy("created_at DESC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build GetPaged query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}

	countQuery, countArgs, err := countQb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	return tasks, total, nil
}

// Create inserts a new task. The database assigns the initial version token,
// which is written back to task.Version. Create never conflicts.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	content, filename, contentType := evidenceFields(task.Evidence)

	query, args, err := psql.
		Insert("tasks").
		Columns(
			"id", "title", "description", "status", "assignee",
			"evidence", "evidence_filename", "evidence_content_type",
			"created_at",
		).
		Values(
			task.ID,
			task.Title,
			task.Description,
			task.Status,
			task.Assignee,
			content,
			filename,
			contentType,
			task.CreatedAt,
		).
		Suffix("RETURNING row_version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for task: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&task.Version); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

// CompareAndUpdate writes the task's mutable fields only if the stored
// version still equals expectedVersion, issuing a fresh version token in the
// same statement. On success the task's Version and UpdatedAt are refreshed
// in place.
//
// A zero-row result alone cannot tell a missing record from a stale version,
// so the two cases are disambiguated with an existence probe: a record that
// does not exist yields domain.ErrTaskNotFound, one that exists under a
// different version yields domain.ErrVersionConflict.
func (r *TaskRepository) CompareAndUpdate(
	ctx context.Context,
	task *domain.Task,
	expectedVersion string,
) error {
	content, filename, contentType := evidenceFields(task.Evidence)

	query, args, err := psql.
		Update("tasks").
		Set("title", task.Title).
		Set("description", task.Description).
		Set("status", task.Status).
		Set("assignee", task.Assignee).
		Set("evidence", content).
		Set("evidence_filename", filename).
		Set("evidence_content_type", contentType).
		Set("updated_at", sq.Expr("NOW()")).
		Set("row_version", sq.Expr("gen_random_uuid()::text")).
		Where(sq.Eq{
			"id":          task.ID,
			"row_version": expectedVersion,
		}).
		Suffix("RETURNING row_version, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build CompareAndUpdate query for task %s: %w", task.ID, err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&task.Version, &task.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update task: %w", err)
	}

	exists, err := r.exists(ctx, task.ID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return domain.ErrVersionConflict
}

// Delete removes a task unconditionally. No version check is applied:
// deletes are not OCC-protected.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	query, args, err := psql.
		Delete("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for task %s: %w", taskID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// exists checks whether a task row is present regardless of its version.
func (r *TaskRepository) exists(ctx context.Context, taskID string) (bool, error) {
	query, args, err := psql.
		Select("1").
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query for task %s: %w", taskID, err)
	}

	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check task existence: %w", err)
	}
	return true, nil
}
