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

// One catalog pass: create/update storefront products from the supplier feed, then draft the ones that left it.
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

	report, err := a.Catalog.Run(ctx)
	if err != nil {
		logger.Error("Catalog sync failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("Catalog sync finished: seen=%d created=%d updated=%d skipped=%d failed=%d drafted=%d\n",
		report.Seen, report.Created, report.Updated, report.Skipped, report.Failed, report.Drafted)
	if report.Failed > 0 {
		os.Exit(2)
	}
}
