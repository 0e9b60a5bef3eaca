// Package runtime wires configuration, storage, services, and the HTTP
// server into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	app "github.com/studytrack/backend/internal/app"
	"github.com/studytrack/backend/internal/app/httpapi"
	"github.com/studytrack/backend/internal/app/metrics"
	"github.com/studytrack/backend/internal/app/storage/postgres"
	"github.com/studytrack/backend/internal/app/storage/rediscache"
	"github.com/studytrack/backend/internal/config"
	"github.com/studytrack/backend/internal/logging"
	"github.com/studytrack/backend/internal/middleware"
	"github.com/studytrack/backend/internal/platform/database"
	"github.com/studytrack/backend/internal/platform/migrations"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logging.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Client
}

// NewApplication constructs a new application instance with default wiring.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(ctx, cfg)
}

// NewApplicationWithConfig wires an application from an explicit config.
func NewApplicationWithConfig(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "studytrack")

	stores, db, redisClient, err := buildStores(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(stores, app.Options{ReminderSchedule: cfg.Reminder.Schedule}, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	auditSink, err := httpapi.NewFileAuditSink(cfg.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	var sink httpapi.AuditSink
	if auditSink != nil {
		sink = auditSink
	}
	audit := httpapi.NewAuditLog(200, sink)

	router, err := httpapi.NewHandler(httpapi.HandlerConfig{
		App:   application,
		DB:    db,
		Log:   log,
		Audit: audit,
	})
	if err != nil {
		return nil, fmt.Errorf("build http handler: %w", err)
	}

	var handler http.Handler = router
	handler = metrics.InstrumentHandler(handler)
	handler = middleware.NewTracingMiddleware(log).Handler(handler)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	rateLimiter.StartCleanup(10 * time.Minute)
	handler = rateLimiter.Handler(handler)
	handler = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(handler)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpSrv,
		db:         db,
		redis:      redisClient,
	}, nil
}

// Run starts the managed services and the HTTP server, then blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.cfg.Server.Addr())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, services, and connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}

	return nil
}

// buildStores selects the persistence backend. An empty DSN falls back to
// the shared in-memory store, which only suits local development.
func buildStores(ctx context.Context, cfg *config.Config, log *logging.Logger) (app.Stores, *sql.DB, *redis.Client, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, nil, nil, nil
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return app.Stores{}, nil, nil, err
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	stores := app.Stores{Students: store, Parents: store, Tasks: store}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		ttl := time.Duration(cfg.Redis.TTL) * time.Second
		stores.Tasks = rediscache.New(store, redisClient, ttl, log)
		log.WithField("addr", cfg.Redis.Addr).Info("task read cache enabled")
	}

	return stores, db, redisClient, nil
}
