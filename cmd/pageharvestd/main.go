// Package main wires together the pageharvest service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pageharvest/pageharvest/internal/api"
	"github.com/pageharvest/pageharvest/internal/clock/system"
	"github.com/pageharvest/pageharvest/internal/config"
	"github.com/pageharvest/pageharvest/internal/fetch"
	chromedpfetch "github.com/pageharvest/pageharvest/internal/fetch/chromedp"
	rodfetch "github.com/pageharvest/pageharvest/internal/fetch/rod"
	staticfetch "github.com/pageharvest/pageharvest/internal/fetch/static"
	"github.com/pageharvest/pageharvest/internal/id/uuid"
	"github.com/pageharvest/pageharvest/internal/logging"
	"github.com/pageharvest/pageharvest/internal/metrics"
	"github.com/pageharvest/pageharvest/internal/orchestrator"
	"github.com/pageharvest/pageharvest/internal/policy"
	"github.com/pageharvest/pageharvest/internal/scraper"
	"github.com/pageharvest/pageharvest/internal/store/postgres"
	"github.com/pageharvest/pageharvest/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.ConnLifetime(),
	})
	if err != nil {
		logger.Fatal("connect to postgres failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("ensure schema failed", zap.Error(err))
	}

	registry := fetch.NewRegistry()
	registry.Register(scraper.MethodStatic, staticfetch.New(staticfetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}))
	registry.Register(scraper.MethodChromedp, chromedpfetch.New(chromedpfetch.Config{
		UserAgent:         cfg.Fetch.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
	}))
	registry.Register(scraper.MethodRod, rodfetch.New(rodfetch.Config{
		UserAgent:         cfg.Fetch.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
	}))

	clock := system.New()
	ids := uuid.New()
	limiter := policy.NewDomainLimiter()
	tester := policy.NewTester(registry, cfg.FetchTimeout())

	orch := orchestrator.New(store, store, registry, limiter, clock, ids, logger.Named("orchestrator"))

	queue := worker.NewQueue(cfg.Worker.QueueDepth)
	tracker := worker.NewTracker()
	pool := worker.NewPool(queue, orch, store, tracker, clock, ids,
		worker.Config{Size: cfg.Worker.Concurrency}, logger.Named("worker"))

	sweeper, err := worker.NewSweeper(store, tracker, clock, worker.SweeperConfig{
		Schedule:      cfg.Retention.Schedule,
		RetentionDays: cfg.Retention.Days,
	}, logger.Named("sweeper"))
	if err != nil {
		logger.Fatal("sweeper init failed", zap.Error(err))
	}

	apiServer := api.NewServer(store, store, store, orch, queue, tracker, tester,
		ids, clock, cfg, logger.Named("api"), store.Ping)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	poolDone := make(chan struct{})
	go func() {
		logger.Info("worker pool started", zap.Int("size", cfg.Worker.Concurrency))
		pool.Run(ctx)
		close(poolDone)
	}()

	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("sweeper start failed", zap.Error(err))
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sweeper.Stop()
	queue.Close()
	<-poolDone
	logger.Info("shutdown complete")
}
