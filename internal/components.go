package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/cvdesk/internal/analysisservice"
	"github.com/starford/cvdesk/internal/backend"
	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/ledger"
	"github.com/starford/cvdesk/internal/localdb"
	"github.com/starford/cvdesk/internal/metrics"
	"github.com/starford/cvdesk/internal/session"
	"github.com/starford/cvdesk/internal/sse"
	"github.com/starford/cvdesk/internal/viewer"
)

// components are the long-lived collaborators shared by the server, the MCP
// server and the history commands.
type components struct {
	db       *localdb.DB
	fsStore  *blobstore.FS
	metrics  *metrics.Metrics
	broker   *sse.Broker
	sessions *session.Scope
	backend  *backend.Client
	ledger   *ledger.Ledger
	svc      *analysisservice.Service
}

func (c *components) close() {
	c.broker.Close()
	_ = c.db.Close()
}

func newApplication(opts ...Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func (a *application) build(ctx context.Context, logger *slog.Logger) (*components, error) {
	cfg := a.config

	db, err := localdb.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init localdb: %w", err)
	}

	c := &components{
		db:      db,
		metrics: metrics.New(),
		broker:  sse.NewBroker(2 * time.Second),
	}

	store, err := c.openStore(ctx, cfg.Storage)
	if err != nil {
		c.close()
		return nil, err
	}

	c.ledger = ledger.New(db, logger, cfg.History.Capacity)
	recs := c.ledger.Load(ctx)
	logger.Info("History loaded", slog.Int("records", len(recs)), slog.Int("capacity", c.ledger.Capacity()))

	c.sessions = session.NewScope(db, cfg.Session.TTL)
	c.backend = backend.New(backend.Options{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Breaker: backend.BreakerOptions{
			Enabled:      cfg.Backend.Breaker.Enabled,
			MaxRequests:  cfg.Backend.Breaker.MaxRequests,
			Interval:     cfg.Backend.Breaker.Interval,
			Timeout:      cfg.Backend.Breaker.Timeout,
			MinRequests:  cfg.Backend.Breaker.MinRequests,
			FailureRatio: cfg.Backend.Breaker.FailureRatio,
		},
	}, logger)

	c.svc = analysisservice.New(analysisservice.Deps{
		Ledger:   c.ledger,
		Store:    c.metrics.InstrumentStore(store),
		Sessions: c.sessions,
		Viewer:   viewer.NewRegistry(),
		Backend:  c.backend,
		Events:   c.broker,
		Metrics:  c.metrics,
		Logger:   logger,
	})
	return c, nil
}

func (c *components) openStore(ctx context.Context, cfg StorageConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case StorageFS:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create document dir: %w", err)
		}
		fs, err := blobstore.NewFS(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("init fs store: %w", err)
		}
		c.fsStore = fs
		return fs, nil
	case StorageMinio:
		m, err := blobstore.NewMinio(ctx, blobstore.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.Bucket,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init minio store: %w", err)
		}
		return m, nil
	default:
		return blobstore.NewSQLite(c.db), nil
	}
}
