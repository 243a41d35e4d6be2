package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/colabtask/colabtask/internal/config"
	"github.com/colabtask/colabtask/internal/domain"
	"github.com/colabtask/colabtask/internal/handler/dto"
	"github.com/colabtask/colabtask/internal/middleware"
	"github.com/colabtask/colabtask/internal/service"
)

// parseTaskForm reads the form fields and the optional evidence file from a
// create or update request. Plain urlencoded forms are accepted when no
// attachment is sent. The request body is capped at config.MaxEvidenceBytes;
// an oversized upload surfaces as *http.MaxBytesError.
func parseTaskForm(w http.ResponseWriter, r *http.Request) (url.Values, *domain.Evidence, error) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxEvidenceBytes)

	if err := r.ParseMultipartForm(config.MaxEvidenceBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, fmt.Errorf("parse multipart form: %w", err)
		}
		if err := r.ParseForm(); err != nil {
			return nil, nil, fmt.Errorf("parse form: %w", err)
		}
		return r.PostForm, nil, nil
	}

	values := url.Values(r.MultipartForm.Value)

	file, header, err := r.FormFile("evidence")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return values, nil, nil
		}
		return nil, nil, fmt.Errorf("read evidence file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("read evidence content: %w", err)
	}

	evidence := &domain.Evidence{
		Content:     content,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
	return values, evidence, nil
}

// respondFormError distinguishes an over-cap body from a malformed one.
func respondFormError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		respondError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE",
			fmt.Sprintf("request body exceeds the %d byte limit", int64(config.MaxEvidenceBytes)))
		return
	}
	respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
}

// formValue returns a pointer to the first value of key, nil when the field
// was not sent at all. Presence matters for partial updates.
func formValue(values url.Values, key string) *string {
	vals, ok := values[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

// parseTimeBound accepts either an RFC 3339 timestamp or a plain date.
func parseTimeBound(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("expected RFC 3339 timestamp or YYYY-MM-DD date, got %q", raw)
	}
	return &t, nil
}

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a task from multipart form fields with an optional evidence attachment. The response carries the initial row_version token.
// @Tags tasks
// @Accept mpfd
// @Produce json
// @Param title formData string true "Task title"
// @Param description formData string false "Task description"
// @Param status formData string false "Initial status (pending, in_progress, done)"
// @Param assignee formData string false "Assignee name"
// @Param evidence formData file false "Evidence attachment"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	values, evidence, err := parseTaskForm(w, r)
	if err != nil {
		respondFormError(w, err)
		return
	}

	req := dto.CreateTaskRequest{
		Title:       values.Get("title"),
		Description: values.Get("description"),
		Status:      values.Get("status"),
		Assignee:    formValue(values, "assignee"),
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	task, err := h.taskService.CreateTask(ctx, service.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		Assignee:    req.Assignee,
		Evidence:    evidence,
		CreatedBy:   middleware.ActorFromContext(ctx),
	})
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task))
}

// handleGetTask retrieves a task by ID.
// @Summary Get a task
// @Description Get a task including its current row_version token. Clients must echo the token back on update.
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(ctx, taskID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleListTasks returns a page of tasks.
// @Summary List tasks
// @Description Offset-paginated listing ordered newest-created-first, with inclusive creation-time bounds. Total reflects the full filtered count.
// @Tags tasks
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size"
// @Param from query string false "Inclusive lower bound on creation time (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Inclusive upper bound on creation time (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} dto.TasksPageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page := 1
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer")
			return
		}
		page = parsed
	}

	pageSize := config.DefaultPageSize
	if raw := query.Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "page_size must be a positive integer")
			return
		}
		if parsed > config.MaxPageSize {
			parsed = config.MaxPageSize
		}
		pageSize = parsed
	}

	from, err := parseTimeBound(query.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid from bound: "+err.Error())
		return
	}
	to, err := parseTimeBound(query.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid to bound: "+err.Error())
		return
	}

	tasks, total, err := h.taskService.GetPagedTasks(ctx, page, pageSize, from, to)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTasksPageResponse(tasks, total, page, pageSize))
}

// handleUpdateTask applies a partial update guarded by the version token.
// @Summary Update a task
// @Description Partial update via multipart form fields. The row_version field must carry the token from the client's last read; a stale token yields 409 and the client must re-fetch before retrying.
// @Tags tasks
// @Accept mpfd
// @Produce json
// @Param id path string true "Task ID"
// @Param title formData string false "Task title"
// @Param description formData string false "Task description"
// @Param status formData string false "Status (pending, in_progress, done)"
// @Param assignee formData string false "Assignee name"
// @Param row_version formData string true "Version token from the last read"
// @Param evidence formData file false "Evidence attachment"
// @Success 200 {object} dto.TaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks/{id} [put]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	values, evidence, err := parseTaskForm(w, r)
	if err != nil {
		respondFormError(w, err)
		return
	}

	req := dto.UpdateTaskRequest{
		Title:       formValue(values, "title"),
		Description: formValue(values, "description"),
		Status:      formValue(values, "status"),
		Assignee:    formValue(values, "assignee"),
		RowVersion:  values.Get("row_version"),
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	changes := domain.TaskChanges{
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		Evidence:    evidence,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		changes.Status = &status
	}

	task, err := h.taskService.UpdateTask(ctx, taskID, changes, req.RowVersion, middleware.ActorFromContext(ctx))
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleDeleteTask deletes a task.
// @Summary Delete a task
// @Description Deletes a task unconditionally. No version token is required.
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(ctx, taskID); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetEvidence streams the evidence attachment of a task.
// @Summary Download task evidence
// @Tags tasks
// @Produce octet-stream
// @Param id path string true "Task ID"
// @Success 200 {file} binary
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/evidence [get]
func (h *Handler) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(ctx, taskID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	if !task.HasEvidence() {
		respondError(w, http.StatusNotFound, "EVIDENCE_NOT_FOUND", "task has no evidence attachment")
		return
	}

	contentType := task.Evidence.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if task.Evidence.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", task.Evidence.Filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(task.Evidence.Content); err != nil {
		// Client likely went away mid-stream, nothing to do.
		return
	}
}

// handleGetAuditLog lists the status-change history of a task.
// @Summary Get task audit log
// @Description Returns the append-only status-change history, oldest first. Entries are persisted asynchronously and best-effort.
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {array} dto.AuditEntryResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/audit [get]
func (h *Handler) handleGetAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	entries, err := h.auditRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToAuditEntryResponses(entries))
}

// handleSimulate runs the concurrency probe against a task.
// @Summary Simulate concurrent updates
// @Description Races N simulated editors against the task to exercise the optimistic concurrency path, returning the success/conflict split.
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Param users query int false "Number of concurrent editors (default 3, capped at 100)"
// @Success 200 {object} service.ProbeResult
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/simulate [post]
func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	users := config.DefaultProbeEditors
	if raw := r.URL.Query().Get("users"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "users must be a positive integer")
			return
		}
		if parsed > config.MaxProbeEditors {
			parsed = config.MaxProbeEditors
		}
		users = parsed
	}

	result, err := h.taskService.SimulateConcurrentUpdates(ctx, taskID, users)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
