// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cvdesk/internal/analysisservice"
	"github.com/starford/cvdesk/internal/api"
	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/mcpserver"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("backend_url", cfg.Backend.URL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := app.build(ctx, logger)
	if err != nil {
		return err
	}
	defer c.close()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := c.backend.Ping(pingCtx); err != nil {
		logger.Warn("analysis backend not reachable yet", slog.String("error", err.Error()))
	}
	cancel()

	apiRouter := api.NewRouter(c.svc, api.Options{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		CORSOrigins: cfg.App.CORSOrigins,
		SessionTTL:  cfg.Session.TTL,
		SSEHandler:  c.broker,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		if !c.backend.Healthy() {
			_, _ = w.Write([]byte(`{"status":"ok","backend":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","backend":"ok"}`))
	})
	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the document directory when documents live on disk.
	if c.fsStore != nil {
		g.Go(func() error {
			if err := blobstore.Watch(gCtx, c.fsStore, logger, c.broker.PublishDocumentEvent); err != nil {
				logger.Warn("blob watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Drop expired session values.
	g.Go(func() error {
		c.sessions.RunPruner(gCtx, cfg.Session.PruneInterval, logger)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams end when the broker closes; do it before waiting on Shutdown.
		c.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so background loops stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := app.build(ctx, logger)
	if err != nil {
		return err
	}
	defer c.close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// OpenHistory builds the service for one-shot history commands. The returned
// func releases the database.
func OpenHistory(ctx context.Context, opts ...Option) (*analysisservice.Service, func(), error) {
	app, err := newApplication(opts...)
	if err != nil {
		return nil, nil, err
	}
	c, err := app.build(ctx, app.newLogger())
	if err != nil {
		return nil, nil, err
	}
	return c.svc, c.close, nil
}
