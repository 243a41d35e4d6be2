// @title			ColabTask API
// @version		1.0
// @description	Collaborative task API with optimistic concurrency control and asynchronous audit logging.
// @BasePath	/api/v1

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/colabtask/colabtask/internal/audit"
	"github.com/colabtask/colabtask/internal/config"
	"github.com/colabtask/colabtask/internal/database"
	"github.com/colabtask/colabtask/internal/handler"
	"github.com/colabtask/colabtask/internal/logger"
	"github.com/colabtask/colabtask/internal/repository"
	"github.com/colabtask/colabtask/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "colabtask",
		Usage: "Collaborative task service with optimistic concurrency control",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "audit-queue-size",
				Value:   config.DefaultAuditQueueSize,
				Usage:   "Capacity of the in-memory audit queue",
				EnvVars: []string{"AUDIT_QUEUE_SIZE"},
			},
			&cli.StringFlag{
				Name:    "audit-overflow-policy",
				Value:   config.DefaultAuditOverflowPolicy,
				Usage:   "Policy when the audit queue is full (drop_newest, drop_oldest)",
				EnvVars: []string{"AUDIT_OVERFLOW_POLICY"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
				},
				Action: runServe,
			},
			{
				Name:  "simulate",
				Usage: "Race N simulated editors against one task to exercise the concurrency path",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "task-id",
						Usage:    "Task identifier to contend on",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "users",
						Value: config.DefaultProbeEditors,
						Usage: "Number of concurrent editors",
					},
				},
				Action: runSimulate,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// newRecorder builds the audit pipeline from CLI configuration.
func newRecorder(c *cli.Context, auditRepo *repository.AuditLogRepository) (*audit.Recorder, error) {
	policy, err := audit.ParseOverflowPolicy(c.String("audit-overflow-policy"))
	if err != nil {
		return nil, err
	}
	return audit.NewRecorder(auditRepo, c.Int("audit-queue-size"), policy), nil
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}
	databaseURL := c.String("database-url")

	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	auditRepo := repository.NewAuditLogRepository(db.Pool())
	recorder, err := newRecorder(c, auditRepo)
	if err != nil {
		return err
	}
	recorder.Start()

	h := handler.New(db.Pool(), recorder)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		recorder.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		recorder.Stop()
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// No producers remain once the server is down; drain buffered entries.
	recorder.Stop()

	slog.Info("server stopped")
	return nil
}

func runSimulate(c *cli.Context) error {
	ctx := c.Context
	databaseURL := c.String("database-url")

	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	auditRepo := repository.NewAuditLogRepository(db.Pool())
	recorder, err := newRecorder(c, auditRepo)
	if err != nil {
		return err
	}
	recorder.Start()

	taskRepo := repository.NewTaskRepository(db.Pool())
	taskService := service.NewTaskService(taskRepo, recorder)

	result, err := taskService.SimulateConcurrentUpdates(ctx, c.String("task-id"), c.Int("users"))

	// Drain pending audit entries before reporting.
	recorder.Stop()

	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	slog.Info("simulation result",
		"attempts", result.Attempts,
		"successes", result.Successes,
		"conflicts", result.Conflicts,
		"audit_entries_dropped", recorder.Dropped(),
	)
	return nil
}
