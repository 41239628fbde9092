package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/app"
	"github.com/kamranshah125/turum/internal/config"
)

func main() {
	if len(os.Args) < 2 || strings.TrimSpace(os.Args[1]) == "" {
		fmt.Println("Usage: go run ./cmd/test-draft <sku>")
		fmt.Println("Drafts the storefront product carrying <sku> when the supplier no longer lists it.")
		os.Exit(1)
	}
	sku := strings.TrimSpace(os.Args[1])

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

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	drafted, err := a.Drafter.DraftSKUIfMissing(ctx, sku)
	if err != nil {
		logger.Error("Draft check failed", zap.String("sku", sku), zap.Error(err))
		os.Exit(1)
	}
	if drafted {
		fmt.Printf("SKU %s is gone from the supplier feed; product set to draft\n", sku)
		return
	}
	fmt.Printf("SKU %s left unchanged (still sold by the supplier, or not on the storefront)\n", sku)
}
