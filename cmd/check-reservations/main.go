package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/app"
	"github.com/kamranshah125/turum/internal/config"
)

// One tracking pass over open reservations: store supplier status and fulfill shipped orders.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	report, err := a.Poller.Run(ctx)
	if err != nil {
		logger.Error("Reservation check failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("Checked %d reservations: %d status changes, %d fulfilled, %d failed\n",
		report.Checked, report.StatusChanged, report.Fulfilled, report.Failed)
	if report.Failed > 0 {
		os.Exit(2)
	}
}
