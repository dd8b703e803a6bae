package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clouddev/leaderboard/internal/adapters/directory"
	api "github.com/clouddev/leaderboard/internal/adapters/http/api"
	"github.com/clouddev/leaderboard/internal/adapters/repository"
	"github.com/clouddev/leaderboard/internal/app"
	"github.com/clouddev/leaderboard/internal/config"
	"github.com/clouddev/leaderboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Backend selection is configuration, not inheritance: every adapter
	// satisfies the same store contract.
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open score store",
			logger.String("backend", cfg.StoreBackend), logger.Error(err))
		return
	}
	log.Info(ctx, "score store ready", logger.String("backend", cfg.StoreBackend))

	opts := []app.Option{
		app.WithLogger(log),
		app.WithStoreTimeout(time.Duration(cfg.StoreTimeoutMS) * time.Millisecond),
	}
	if cfg.DirectoryURL != "" {
		opts = append(opts, app.WithDirectory(directory.NewHTTPClient(
			cfg.DirectoryURL,
			directory.WithTimeout(time.Duration(cfg.DirectoryTimeoutMS)*time.Millisecond),
			directory.WithLogger(log),
		)))
	}

	svc := app.New(store, opts...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc, cfg.MaxTopLimit)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// openStore constructs the configured score store adapter.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return repository.OpenPostgres(ctx, cfg.PostgresDSN)
	case config.BackendRedis:
		return repository.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	default:
		return repository.NewMemoryStore(), nil
	}
}
