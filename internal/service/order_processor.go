package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/repository"
	"github.com/kamranshah125/turum/internal/turum"
	"github.com/kamranshah125/turum/pkg/errors"
	"github.com/kamranshah125/turum/pkg/metrics"
	"github.com/kamranshah125/turum/pkg/retry"
)

// CancelReasonInventoryShortage is the storefront cancellation reason for unreservable orders
const CancelReasonInventoryShortage = "inventory_shortage"

// OrderProcessor turns a storefront order into a supplier reservation
type OrderProcessor struct {
	orders     repository.IntegrationOrderRepository
	storefront Storefront
	supplier   Supplier
	resolver   *VariantResolver
	stock      *StockValidator
	address    *AddressPropagator
	policy     OrderPolicy
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// OrderPolicy bounds how orders are claimed and how a supplier reservation is recorded
type OrderPolicy struct {
	MaxAttempts int           // processing attempts allowed for a failed order
	ClaimLease  time.Duration // age after which an unfinished claim is taken over; 0 uses domain.DefaultClaimLease
	Persist     retry.Policy  // retries for recording the reservation; zero uses retry.DefaultPolicy
}

// OrderProcessorDeps groups the collaborators of an OrderProcessor
type OrderProcessorDeps struct {
	Orders     repository.IntegrationOrderRepository
	Storefront Storefront
	Supplier   Supplier
	Resolver   *VariantResolver
	Stock      *StockValidator
	Address    *AddressPropagator // optional
	Metrics    *metrics.Metrics   // optional
}

// NewOrderProcessor creates an order processor
func NewOrderProcessor(deps OrderProcessorDeps, policy OrderPolicy, logger *zap.Logger) *OrderProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.ClaimLease <= 0 {
		policy.ClaimLease = domain.DefaultClaimLease
	}
	if policy.Persist.Attempts < 1 {
		policy.Persist = retry.DefaultPolicy
	}
	return &OrderProcessor{
		orders:     deps.Orders,
		storefront: deps.Storefront,
		supplier:   deps.Supplier,
		resolver:   deps.Resolver,
		stock:      deps.Stock,
		address:    deps.Address,
		policy:     policy,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Process runs one order through validation and reservation. It returns the stored order,
// or nil when the order was already handled by an earlier delivery.
func (p *OrderProcessor) Process(ctx context.Context, order *domain.ShopifyOrder, payload json.RawMessage) (*domain.IntegrationOrder, error) {
	logger := p.logger.With(zap.Int64("order_id", order.ID), zap.String("order_name", order.Name))

	record, err := p.orders.Claim(ctx, order.ID, payload, domain.ClaimPolicy{
		MaxAttempts: p.policy.MaxAttempts,
		Lease:       p.policy.ClaimLease,
	})
	if err != nil {
		return nil, fmt.Errorf("claim order %d: %w", order.ID, err)
	}
	if record == nil {
		logger.Info("Order already processed, skipping")
		return nil, nil
	}
	logger = logger.With(zap.Int64("integration_order_id", record.ID), zap.Int("attempt", record.Attempts))
	logger.Info("Processing order", zap.Int("line_items", len(order.LineItems)))

	checked, err := p.validate(ctx, order, logger)
	if err != nil {
		return p.fail(ctx, record, err.Error(), logger)
	}
	if checked.invalid != nil {
		return p.cancel(ctx, record, joinErrors(checked.invalid), logger)
	}
	items := checked.items
	if len(items) == 0 {
		return p.fail(ctx, record, "order has no reservable line items", logger)
	}

	if p.address != nil {
		if res := p.address.Propagate(ctx, order); res.Err != nil {
			logger.Warn("Address propagation failed, continuing with reservation", zap.Error(res.Err))
		} else if res.Attempted {
			logger.Info("Shipping address propagated to supplier")
		}
	}

	reservationID, err := p.supplier.CreateReservation(ctx, items)
	if err != nil {
		return p.fail(ctx, record, fmt.Sprintf("reservation failed: %s", err), logger)
	}
	if err := p.recordReservation(ctx, record.ID, reservationID); err != nil {
		logger.Error("Supplier reservation created but not recorded",
			zap.String("reservation_id", reservationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("mark order %d reserved with %s: %w", order.ID, reservationID, err)
	}
	record.Status = domain.OrderStatusReserved
	record.SupplierReservationID = &reservationID
	p.metrics.IncOrder(string(domain.OrderStatusReserved))
	logger.Info("Order reserved at supplier", zap.String("reservation_id", reservationID))
	return record, nil
}

// recordReservation stores the reservation id once the supplier holds stock. The write runs
// detached from ctx so a cancelled worker cannot drop a reservation the supplier already made.
func (p *OrderProcessor) recordReservation(ctx context.Context, id int64, reservationID string) error {
	persistCtx := context.WithoutCancel(ctx)
	return retry.Do(persistCtx, p.policy.Persist, func() error {
		err := p.orders.MarkReserved(persistCtx, id, reservationID)
		if err == nil {
			return nil
		}
		if errors.IsInvalidTransition(err) || errors.IsConflict(err) {
			return retry.Permanent(err)
		}
		p.logger.Warn("Recording reservation failed, retrying",
			zap.Int64("integration_order_id", id),
			zap.String("reservation_id", reservationID),
			zap.Error(err),
		)
		return err
	})
}

// validatedOrder holds the reservable items and the collected per-item validation failures
type validatedOrder struct {
	items   []turum.ReservationItem
	invalid error
}

// validate resolves and stock-checks every line item. Validation failures are collected for
// all items; a returned error is a remote or storage failure that stops processing.
func (p *OrderProcessor) validate(ctx context.Context, order *domain.ShopifyOrder, logger *zap.Logger) (*validatedOrder, error) {
	var (
		out      validatedOrder
		products = make(map[string]*domain.SupplierProduct)
	)
	for _, item := range order.LineItems {
		if item.Quantity <= 0 {
			logger.Debug("Skipping line item without quantity", zap.Int64("line_item_id", item.ID))
			continue
		}

		res, err := p.resolver.Resolve(ctx, item)
		if err != nil {
			if errors.IsValidation(err) {
				out.invalid = multierr.Append(out.invalid, err)
				continue
			}
			return nil, err
		}

		sku := strings.TrimSpace(item.SKU)
		product := products[sku]
		if res.Product != nil {
			product = res.Product
		}

		checked, err := p.stock.Validate(ctx, sku, res.SupplierVariantID, item.Quantity, product)
		if err != nil && !errors.IsValidation(err) {
			return nil, err
		}
		products[sku] = checked
		if err != nil {
			out.invalid = multierr.Append(out.invalid, err)
			continue
		}

		logger.Debug("Line item validated",
			zap.String("sku", sku),
			zap.String("supplier_variant_id", res.SupplierVariantID),
			zap.String("source", string(res.Source)),
		)
		out.items = append(out.items, turum.ReservationItem{VariantID: res.SupplierVariantID, Quantity: item.Quantity})
	}
	return &out, nil
}

func (p *OrderProcessor) cancel(ctx context.Context, record *domain.IntegrationOrder, reason string, logger *zap.Logger) (*domain.IntegrationOrder, error) {
	logger.Warn("Order validation failed, cancelling storefront order", zap.String("errors", reason))
	if err := p.storefront.CancelOrder(ctx, record.ShopifyOrderID, CancelReasonInventoryShortage); err != nil {
		logger.Error("Storefront cancellation failed", zap.Error(err))
	}
	if err := p.orders.MarkCancelled(ctx, record.ID, reason); err != nil {
		return nil, fmt.Errorf("mark order %d cancelled: %w", record.ShopifyOrderID, err)
	}
	record.Status = domain.OrderStatusCancelled
	record.ErrorMessage = &reason
	p.metrics.IncOrder(string(domain.OrderStatusCancelled))
	return record, nil
}

func (p *OrderProcessor) fail(ctx context.Context, record *domain.IntegrationOrder, reason string, logger *zap.Logger) (*domain.IntegrationOrder, error) {
	logger.Error("Order processing failed", zap.String("reason", reason))
	if err := p.orders.MarkFailed(ctx, record.ID, reason); err != nil {
		return nil, fmt.Errorf("mark order %d failed: %w", record.ShopifyOrderID, err)
	}
	record.Status = domain.OrderStatusFailed
	record.ErrorMessage = &reason
	p.metrics.IncOrder(string(domain.OrderStatusFailed))
	return record, nil
}

func joinErrors(err error) string {
	errs := multierr.Errors(err)
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, ", ")
}
