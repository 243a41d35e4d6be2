package dto

// CreateTaskRequest represents the multipart form fields for POST /tasks.
// An optional evidence file may accompany the form.
type CreateTaskRequest struct {
	Title       string  `form:"title" validate:"required,max=250"`
	Description string  `form:"description"`
	Status      string  `form:"status" validate:"omitempty,oneof=pending in_progress done"`
	Assignee    *string `form:"assignee" validate:"omitempty,max=200"`
}

// UpdateTaskRequest represents the multipart form fields for PUT /tasks/:id.
// Absent fields keep the record's current values. RowVersion must carry the
// version token the client observed when it last read the task; its absence
// is rejected before any store call.
type UpdateTaskRequest struct {
	Title       *string `form:"title" validate:"omitempty,max=250"`
	Description *string `form:"description"`
	Status      *string `form:"status" validate:"omitempty,oneof=pending in_progress done"`
	Assignee    *string `form:"assignee" validate:"omitempty,max=200"`
	RowVersion  string  `form:"row_version"`
}

// ListTasksQuery represents query parameters for GET /tasks.
type ListTasksQuery struct {
	Page     int    // ?page=1 (1-based)
	PageSize int    // ?page_size=10
	From     string // ?from=2024-01-01 (inclusive, on creation time)
	To       string // ?to=2024-01-31 (inclusive, on creation time)
}
