// Package app wires configuration, storage and remote clients into the integration services.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kamranshah125/turum/internal/config"
	"github.com/kamranshah125/turum/internal/repository"
	"github.com/kamranshah125/turum/internal/repository/postgres"
	"github.com/kamranshah125/turum/internal/service"
	"github.com/kamranshah125/turum/internal/shopify"
	"github.com/kamranshah125/turum/internal/turum"
	"github.com/kamranshah125/turum/pkg/metrics"
)

// App holds the wired services shared by the server and the one-shot commands
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *sql.DB
	Repos      *repository.Repositories
	Metrics    *metrics.Metrics
	Supplier   *turum.Client
	Storefront *service.ShopifyService
	Orders     *service.OrderProcessor
	Catalog    *service.CatalogSynchronizer
	Drafter    *service.StaleDrafter
	Poller     *service.TrackingPoller

	redis *redis.Client
}

// NewLogger builds the production or development zap logger, honouring LOG_LEVEL
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// New connects to postgres (and Redis when configured) and builds every service.
// reg may be nil to disable metrics.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Repos:   postgres.NewRepositories(db, logger),
		Metrics: metrics.New(reg),
	}

	tokens, err := a.tokenCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Supplier = turum.NewClient(cfg.Turum, tokens, logger)
	a.Storefront = service.NewShopifyService(shopify.NewClient(cfg.Shopify, logger), logger)
	a.wireServices()
	return a, nil
}

func (a *App) tokenCache(ctx context.Context) (turum.TokenCache, error) {
	if a.Config.Redis.Addr == "" {
		return turum.NewMemoryTokenCache(), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.Redis.Addr, err)
	}
	a.Logger.Info("Supplier token cache backed by Redis", zap.String("addr", a.Config.Redis.Addr))
	return turum.NewRedisTokenCache(a.redis), nil
}

func (a *App) wireServices() {
	cfg := a.Config
	pricer := service.NewPricer(cfg.Turum.MarginPercent)

	a.Orders = service.NewOrderProcessor(service.OrderProcessorDeps{
		Orders:     a.Repos.IntegrationOrder,
		Storefront: a.Storefront,
		Supplier:   a.Supplier,
		Resolver:   service.NewVariantResolver(a.Storefront, a.Supplier, a.Repos.VariantMap, a.Logger),
		Stock:      service.NewStockValidator(a.Supplier),
		Address:    service.NewAddressPropagator(a.Supplier, cfg.Turum, a.Logger),
		Metrics:    a.Metrics,
	}, service.OrderPolicy{
		MaxAttempts: cfg.Jobs.OrderMaxAttempts,
		ClaimLease:  cfg.Jobs.OrderClaimLease,
	}, a.Logger)

	reconciler := service.NewVariantReconciler(a.Storefront, pricer, service.DefaultBatchDelay, a.Metrics, a.Logger)
	a.Drafter = service.NewStaleDrafter(a.Storefront, a.Supplier, cfg.Turum.Vendor, a.Metrics, a.Logger)
	a.Catalog = service.NewCatalogSynchronizer(a.Storefront, a.Supplier, reconciler, a.Drafter, pricer, cfg.Turum.Vendor, a.Logger)
	a.Poller = service.NewTrackingPoller(a.Repos.IntegrationOrder, a.Supplier, a.Storefront, a.Metrics, a.Logger)
}

// Close releases the database and Redis connections
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("Failed to close database", zap.Error(err))
	}
}
