package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/api"
	"github.com/bloxkit/experience-notify/internal/config"
	"github.com/bloxkit/experience-notify/internal/crypto"
	"github.com/bloxkit/experience-notify/internal/db"
	"github.com/bloxkit/experience-notify/internal/executor"
	"github.com/bloxkit/experience-notify/internal/fingerprint"
	"github.com/bloxkit/experience-notify/internal/metrics"
	"github.com/bloxkit/experience-notify/internal/provider"
	"github.com/bloxkit/experience-notify/internal/queue"
	"github.com/bloxkit/experience-notify/internal/ratelimiter"
	"github.com/bloxkit/experience-notify/internal/store"
	"github.com/bloxkit/experience-notify/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- job store backend ----
	ctx := context.Background()
	var jobStore store.JobStore
	switch cfg.QueueBackend {
	case config.BackendRedis:
		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		jobStore = store.NewRedisStore(client, queue.Name)
		logger.Info("using redis job store")

	case config.BackendPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		jobStore = store.NewPgStore(pool)
		logger.Info("using postgres job store")
	}

	// ---- core dependencies ----
	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("invalid encryption key", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gen := fingerprint.NewGenerator(cfg.FingerprintSalt)
	limiters := ratelimiter.New(cfg.RateLimitPerMinute)
	q := queue.New(jobStore, cfg.DefaultDelay, cfg.Retention, logger)
	prov := provider.NewRobloxProvider(cfg.NotificationsBaseURL, cfg.ProviderTimeout)
	exec := executor.New(cipher, prov, jobStore, logger)

	// ---- background goroutines ----
	// Shared context; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onCompleted, onFailed := m.WorkerHooks()
	pool := worker.NewPool(cfg.WorkerConcurrency, jobStore, exec, cfg.PollInterval, logger, worker.MetricHooks{
		OnCompleted: onCompleted,
		OnFailed:    onFailed,
	})
	pool.Start(workerCtx)

	janitor := worker.NewJanitor(jobStore, cfg.JanitorInterval, logger)
	go janitor.Run(workerCtx)

	go limiters.Run(workerCtx, cfg.JanitorInterval)

	// ---- HTTP server ----
	accessToken := cfg.AccessToken
	if cfg.Env == "development" {
		// Local development runs without auth regardless of ACCESS_TOKEN.
		accessToken = ""
	}

	router := api.NewRouter(api.RouterDeps{
		Queue:         q,
		Cipher:        cipher,
		Fingerprint:   gen,
		Limiters:      limiters,
		Registry:      reg,
		AccessToken:   accessToken,
		Logger:        logger,
		OnRateLimited: func() { m.RequestsRateLimit.Inc() },
		OnSubmitted:   func() { m.SubmissionsTotal.Inc() },
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all background goroutines to stop claiming new jobs.
	cancelWorkers()

	// 3. Wait for in-flight jobs to reach a terminal state.
	pool.Wait()

	logger.Info("server stopped cleanly")
}
