package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/pkg/metrics"
)

// Job names used in logs and metrics
const (
	JobCatalogSync     = "catalog_sync"
	JobReservationPoll = "reservation_poll"
)

// Loop runs a pass once, then every interval. Passes sharing a mutex never overlap,
// so a one-shot command and the server loop can use the same guard.
type Loop struct {
	Name     string
	Interval time.Duration
	Mu       *sync.Mutex
	Run      func(ctx context.Context) error
}

// RunLoop blocks until ctx is done. Call from a goroutine.
func RunLoop(ctx context.Context, loop Loop, m *metrics.Metrics, logger *zap.Logger) {
	if loop.Mu == nil {
		loop.Mu = &sync.Mutex{}
	}
	runOnce(ctx, loop, m, logger)

	ticker := time.NewTicker(loop.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping background loop", zap.String("job", loop.Name))
			return
		case <-ticker.C:
			runOnce(ctx, loop, m, logger)
		}
	}
}

func runOnce(ctx context.Context, loop Loop, m *metrics.Metrics, logger *zap.Logger) {
	if !loop.Mu.TryLock() {
		logger.Warn("Previous pass still running, skipping", zap.String("job", loop.Name))
		return
	}
	defer loop.Mu.Unlock()

	start := time.Now()
	err := loop.Run(ctx)
	m.ObserveJob(loop.Name, time.Since(start), err)
	if err != nil {
		logger.Error("Background pass failed", zap.String("job", loop.Name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	logger.Info("Background pass finished", zap.String("job", loop.Name), zap.Duration("duration", time.Since(start)))
}

// CatalogSyncJob adapts a synchronizer to a loop body
func CatalogSyncJob(s *CatalogSynchronizer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Run(ctx)
		return err
	}
}

// ReservationPollJob adapts a poller to a loop body
func ReservationPollJob(p *TrackingPoller) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	}
}
