package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
)

// Queue errors
var (
	ErrQueueFull    = stderrors.New("order queue is full")
	ErrQueueStopped = stderrors.New("order queue is not running")
)

// OrderHandler processes one storefront order; *OrderProcessor implements it
type OrderHandler interface {
	Process(ctx context.Context, order *domain.ShopifyOrder, payload json.RawMessage) (*domain.IntegrationOrder, error)
}

type orderJob struct {
	requestID string
	order     *domain.ShopifyOrder
	payload   json.RawMessage
}

// OrderQueue hands webhook orders to a fixed set of background workers
type OrderQueue struct {
	handler OrderHandler
	jobs    chan orderJob
	workers int
	running atomic.Bool
	mu      sync.RWMutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewOrderQueue creates a queue holding up to size pending orders
func NewOrderQueue(handler OrderHandler, size, workers int, logger *zap.Logger) *OrderQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &OrderQueue{
		handler: handler,
		jobs:    make(chan orderJob, size),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers; they stop when ctx ends or Stop is called
func (q *OrderQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running.Load() {
		return
	}
	ctx, q.cancel = context.WithCancel(ctx)
	q.running.Store(true)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i)
	}
	q.logger.Info("Order queue started", zap.Int("workers", q.workers), zap.Int("capacity", cap(q.jobs)))
}

// Stop drains the pending orders and waits for the workers, or gives up when ctx ends
func (q *OrderQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running.Load() {
		q.mu.Unlock()
		return nil
	}
	q.running.Store(false)
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		q.logger.Info("Order queue stopped")
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

// Enqueue never blocks; it returns the request id assigned to the order
func (q *OrderQueue) Enqueue(order *domain.ShopifyOrder, payload json.RawMessage) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running.Load() {
		return "", ErrQueueStopped
	}
	job := orderJob{requestID: uuid.New().String(), order: order, payload: payload}
	select {
	case q.jobs <- job:
		return job.requestID, nil
	default:
		return "", ErrQueueFull
	}
}

// Pending returns the number of orders waiting for a worker
func (q *OrderQueue) Pending() int {
	return len(q.jobs)
}

func (q *OrderQueue) work(ctx context.Context, worker int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(ctx, worker, job)
	}
}

func (q *OrderQueue) run(ctx context.Context, worker int, job orderJob) {
	logger := q.logger.With(
		zap.String("request_id", job.requestID),
		zap.Int64("order_id", job.order.ID),
		zap.Int("worker", worker),
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Order processing panicked", zap.Any("panic", r))
		}
	}()

	record, err := q.handler.Process(ctx, job.order, job.payload)
	if err != nil {
		logger.Error("Order processing error", zap.Error(err))
		return
	}
	if record != nil {
		logger.Info("Order processed", zap.String("status", string(record.Status)))
	}
}
