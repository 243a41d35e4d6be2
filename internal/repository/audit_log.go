package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colabtask/colabtask/internal/domain"
)

// AuditLogRepository handles database operations for the append-only audit log.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository.
func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

// Insert appends a single audit entry. There is no update or delete path.
func (r *AuditLogRepository) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	query, args, err := psql.
		Insert("audit_logs").
		Columns("task_id", "previous_status", "new_status", "changed_by", "changed_at").
		Values(entry.TaskID, entry.PreviousStatus, entry.NewStatus, entry.ChangedBy, entry.ChangedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// GetByTaskID retrieves all audit entries for a task, oldest first.
func (r *AuditLogRepository) GetByTaskID(ctx context.Context, taskID string) ([]*domain.AuditEntry, error) {
	query, args, err := psql.
		Select("id", "task_id", "previous_status", "new_status", "changed_by", "changed_at").
		From("audit_logs").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("changed_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.ChangedBy,
			&entry.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}
