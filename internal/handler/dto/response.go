package dto

import (
	"time"

	"github.com/colabtask/colabtask/internal/domain"
)

// TaskResponse represents a task in API responses. Evidence bytes are never
// inlined; clients fetch them from the evidence endpoint. RowVersion is the
// opaque token the client must echo back on its next update.
type TaskResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Assignee         *string    `json:"assignee"`
	EvidenceFilename *string    `json:"evidence_filename"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
	RowVersion       string     `json:"row_version"`
}

// ToTaskResponse maps a domain task to its API representation.
func ToTaskResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Assignee:    t.Assignee,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		RowVersion:  t.Version,
	}
	if t.Evidence != nil && t.Evidence.Filename != "" {
		filename := t.Evidence.Filename
		resp.EvidenceFilename = &filename
	}
	return resp
}

// TasksPageResponse represents the response for GET /tasks.
type TasksPageResponse struct {
	Items    []TaskResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ToTasksPageResponse maps a page of tasks plus its total count.
func ToTasksPageResponse(tasks []*domain.Task, total, page, pageSize int) TasksPageResponse {
	items := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		items[i] = ToTaskResponse(t)
	}
	return TasksPageResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
}

// AuditEntryResponse represents an audit log entry in API responses.
type AuditEntryResponse struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedBy      string    `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
}

// ToAuditEntryResponses maps audit entries to their API representation.
func ToAuditEntryResponses(entries []*domain.AuditEntry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		responses[i] = AuditEntryResponse{
			ID:             e.ID,
			TaskID:         e.TaskID,
			PreviousStatus: string(e.PreviousStatus),
			NewStatus:      string(e.NewStatus),
			ChangedBy:      e.ChangedBy,
			ChangedAt:      e.ChangedAt,
		}
	}
	return responses
}
