package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/kudos/internal/adapters/http/api"
	"github.com/okian/kudos/internal/adapters/repository"
	app "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/config"
	"github.com/okian/kudos/pkg/logger"
	"github.com/okian/kudos/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("kudos: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	metrics.Init(cfg.MetricsOptions()...)

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := setup(ctx, cfg, loggerInstance)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.svc)

	errCh := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("db_path", cfg.DBPath))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// application is the wired process: store, service and HTTP server.
type application struct {
	store  *repository.Store
	svc    *app.Service
	srv    *http.Server
	logger logger.Logger
}

// setup opens the database, starts the service and builds the HTTP server.
func setup(ctx context.Context, cfg *config.Config, l logger.Logger) (*application, error) {
	store, err := repository.New(ctx, cfg.DBPath, repository.WithLogger(l.Named("repository")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	svc := app.New(store,
		app.WithLogger(l),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.JobQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithRules(cfg.Rules()),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	api.NewServer(svc, api.WithLogger(l.Named("api"))).Register(ctx, mux)

	return &application{
		store: store,
		svc:   svc,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: l,
	}, nil
}

// close stops the workers, then the database.
func (a *application) close(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := a.svc.Stop(stopCtx); err != nil {
		a.logger.Error(ctx, "service stop failed", logger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error(ctx, "store close failed", logger.Error(err))
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics refreshes the queue, worker and profile gauges.
// GetStats sets them as a side effect.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	_ = svc.GetStats(ctx)
}
