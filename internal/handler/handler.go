package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/colabtask/colabtask/docs" // Import generated docs
	"github.com/colabtask/colabtask/internal/audit"
	"github.com/colabtask/colabtask/internal/handler/dto"
	"github.com/colabtask/colabtask/internal/middleware"
	"github.com/colabtask/colabtask/internal/repository"
	"github.com/colabtask/colabtask/internal/service"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool            *pgxpool.Pool
	taskService     *service.TaskService
	auditRepo       *repository.AuditLogRepository
	actorMiddleware *middleware.ActorMiddleware
	validate        *validator.Validate
}

// New creates a new Handler instance with all dependencies. The audit
// recorder is owned by the caller: its lifecycle belongs to the process,
// not to the HTTP layer.
func New(pool *pgxpool.Pool, recorder *audit.Recorder) *Handler {
	taskRepo := repository.NewTaskRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)

	taskService := service.NewTaskService(taskRepo, recorder)

	return &Handler{
		pool:            pool,
		taskService:     taskService,
		auditRepo:       auditRepo,
		actorMiddleware: middleware.NewActorMiddleware(),
		validate:        validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// API v1 routes with actor identification
	identify := h.actorMiddleware.Identify
	mux.Handle("GET /api/v1/tasks", identify(http.HandlerFunc(h.handleListTasks)))
	mux.Handle("POST /api/v1/tasks", identify(http.HandlerFunc(h.handleCreateTask)))
	mux.Handle("GET /api/v1/tasks/{id}", identify(http.HandlerFunc(h.handleGetTask)))
	mux.Handle("PUT /api/v1/tasks/{id}", identify(http.HandlerFunc(h.handleUpdateTask)))
	mux.Handle("DELETE /api/v1/tasks/{id}", identify(http.HandlerFunc(h.handleDeleteTask)))
	mux.Handle("GET /api/v1/tasks/{id}/evidence", identify(http.HandlerFunc(h.handleGetEvidence)))
	mux.Handle("GET /api/v1/tasks/{id}/audit", identify(http.HandlerFunc(h.handleGetAuditLog)))
	mux.Handle("POST /api/v1/tasks/{id}/simulate", identify(http.HandlerFunc(h.handleSimulate)))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// extractTaskID extracts and validates the task ID from the path parameter.
// Returns (taskID, true) if valid, ("", false) if invalid (error already sent to client).
func extractTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return "", false
	}

	if _, err := uuid.Parse(taskID); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id must be a valid UUID")
		return "", false
	}

	return taskID, true
}
