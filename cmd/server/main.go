package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/api"
	"github.com/kamranshah125/turum/internal/app"
	"github.com/kamranshah125/turum/internal/config"
	"github.com/kamranshah125/turum/internal/repository/postgres"
	"github.com/kamranshah125/turum/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Turum integration server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(rootCtx, cfg, logger, reg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	// Run migrations
	migrator, err := postgres.NewMigrator(a.DB, logger)
	if err != nil {
		logger.Fatal("Failed to prepare migrations", zap.Error(err))
	}
	if err := migrator.Up(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("Failed to close migrator", zap.Error(err))
	}

	queue := service.NewOrderQueue(a.Orders, cfg.Jobs.OrderQueueSize, cfg.Jobs.OrderWorkers, logger)
	queue.Start(rootCtx)

	// Initialize router
	router := api.NewRouter(cfg, api.Dependencies{
		Queue:    queue,
		Supplier: a.Supplier,
		Repos:    a.Repos,
		Gatherer: reg,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Background passes: run once on startup, then on their interval
	var loops sync.WaitGroup
	for _, loop := range []service.Loop{
		{Name: service.JobCatalogSync, Interval: cfg.Jobs.CatalogSyncInterval, Mu: &sync.Mutex{}, Run: service.CatalogSyncJob(a.Catalog)},
		{Name: service.JobReservationPoll, Interval: cfg.Jobs.ReservationPollInterval, Mu: &sync.Mutex{}, Run: service.ReservationPollJob(a.Poller)},
	} {
		loops.Add(1)
		go func(loop service.Loop) {
			defer loops.Done()
			service.RunLoop(rootCtx, loop, a.Metrics, logger)
		}(loop)
	}
	logger.Info("Background jobs started",
		zap.Duration("catalog_sync_interval", cfg.Jobs.CatalogSyncInterval),
		zap.Duration("reservation_poll_interval", cfg.Jobs.ReservationPollInterval),
	)

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := queue.Stop(ctx); err != nil {
		logger.Error("Order queue did not drain", zap.Int("pending", queue.Pending()), zap.Error(err))
	}
	stop()
	loops.Wait()

	logger.Info("Server exited")
}
