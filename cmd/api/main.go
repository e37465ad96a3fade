package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modelyard/platform/internal/app/migrate"
	httpx "github.com/modelyard/platform/internal/http"
	"github.com/modelyard/platform/internal/monitoring/gcm"
	"github.com/modelyard/platform/internal/repository/postgres"
	"github.com/modelyard/platform/internal/service/access"
	"github.com/modelyard/platform/internal/service/auth"
	"github.com/modelyard/platform/internal/service/endpoint"
	"github.com/modelyard/platform/internal/service/metrics"
	"github.com/modelyard/platform/internal/service/project"
	"github.com/modelyard/platform/internal/service/status"
	"github.com/modelyard/platform/internal/service/team"
	"github.com/modelyard/platform/internal/ws"
	"github.com/modelyard/platform/pkg/config"
	"github.com/modelyard/platform/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	logHub := ws.NewHub()

	authSvc := auth.New(repo, log, cfg)
	teamSvc := team.New(repo, log)
	projectSvc := project.New(repo, teamSvc, log)
	endpointSvc := endpoint.New(repo, repo, logHub, log)
	accessSvc := access.New(repo, repo, repo, log)
	statusSvc := status.New(accessSvc, log)

	var metricsSource metrics.Source
	if projectID := strings.TrimSpace(cfg.MonitoringProjectID); projectID != "" {
		client, err := gcm.New(ctx, projectID)
		if err != nil {
			log.Warn("cloud monitoring unavailable", "error", err)
		} else {
			defer client.Close()
			metricsSource = client
		}
	}
	metricsSvc := metrics.New(accessSvc, metricsSource, log, cfg.MetricsQueryTimeout, cfg.MetricsMaxHoursBack)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, teamSvc, projectSvc, endpointSvc, statusSvc, metricsSvc, accessSvc, limiter, cfg.PipelineAuthToken, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
