package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/pkg/errors"
)

const integrationOrderColumns = `id, shopify_order_id, supplier_reservation_id, status, supplier_status,
	tracking_number, tracking_url, carrier, raw_payload, error_message, attempts, created_at, updated_at`

type integrationOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIntegrationOrderRepository creates a new integration order repository
func NewIntegrationOrderRepository(db *sql.DB, logger *zap.Logger) *integrationOrderRepository {
	return &integrationOrderRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntegrationOrder(row rowScanner) (*domain.IntegrationOrder, error) {
	var order domain.IntegrationOrder
	var reservationID sql.NullString
	var supplierStatus sql.NullString
	var trackingNumber sql.NullString
	var trackingURL sql.NullString
	var carrier sql.NullString
	var payload []byte
	var errorMessage sql.NullString

	err := row.Scan(
		&order.ID,
		&order.ShopifyOrderID,
		&reservationID,
		&order.Status,
		&supplierStatus,
		&trackingNumber,
		&trackingURL,
		&carrier,
		&payload,
		&errorMessage,
		&order.Attempts,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !order.Status.IsValid() {
		return nil, fmt.Errorf("integration order %d has unknown status %q", order.ID, order.Status)
	}

	order.SupplierReservationID = nullStringPtr(reservationID)
	order.SupplierStatus = nullStringPtr(supplierStatus)
	order.TrackingNumber = nullStringPtr(trackingNumber)
	order.TrackingURL = nullStringPtr(trackingURL)
	order.Carrier = nullStringPtr(carrier)
	order.ErrorMessage = nullStringPtr(errorMessage)
	if len(payload) > 0 {
		order.RawPayload = json.RawMessage(payload)
	}
	return &order, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *integrationOrderRepository) Claim(ctx context.Context, shopifyOrderID int64, payload json.RawMessage, policy domain.ClaimPolicy) (*domain.IntegrationOrder, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	lease := policy.Lease
	if lease <= 0 {
		lease = domain.DefaultClaimLease
	}

	// The unique constraint on shopify_order_id makes concurrent deliveries race for a single row
	insert := `
		INSERT INTO integration_orders (shopify_order_id, status, raw_payload, attempts, claimed_at, created_at, updated_at)
		VALUES ($1, $2, $3, 1, NOW(), NOW(), NOW())
		ON CONFLICT (shopify_order_id) DO NOTHING
		RETURNING ` + integrationOrderColumns

	order, err := scanIntegrationOrder(r.db.QueryRowContext(ctx, insert, shopifyOrderID, domain.OrderStatusNew, []byte(payload)))
	if err == nil {
		return order, nil
	}
	if err != sql.ErrNoRows {
		r.logger.Error("Failed to claim integration order", zap.Int64("shopify_order_id", shopifyOrderID), zap.Error(err))
		return nil, mapUniqueViolation(err, "integration_order", strconv.FormatInt(shopifyOrderID, 10))
	}

	// Row exists: a failed order with attempts left is re-opened, an abandoned new claim is taken over
	reopen := `
		UPDATE integration_orders
		SET status = $2, attempts = attempts + 1, error_message = NULL, raw_payload = $3,
			claimed_at = NOW(), updated_at = NOW()
		WHERE shopify_order_id = $1
		  AND ((status = $4 AND attempts < $5)
		    OR (status = $2 AND supplier_reservation_id IS NULL AND claimed_at < NOW() - $6::bigint * INTERVAL '1 second'))
		RETURNING ` + integrationOrderColumns

	order, err = scanIntegrationOrder(r.db.QueryRowContext(ctx, reopen,
		shopifyOrderID, domain.OrderStatusNew, []byte(payload), domain.OrderStatusFailed, policy.MaxAttempts, int64(lease/time.Second)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to re-open integration order", zap.Int64("shopify_order_id", shopifyOrderID), zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *integrationOrderRepository) GetByShopifyOrderID(ctx context.Context, shopifyOrderID int64) (*domain.IntegrationOrder, error) {
	query := `SELECT ` + integrationOrderColumns + ` FROM integration_orders WHERE shopify_order_id = $1`

	order, err := scanIntegrationOrder(r.db.QueryRowContext(ctx, query, shopifyOrderID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "integration_order", ID: strconv.FormatInt(shopifyOrderID, 10)}
	}
	if err != nil {
		r.logger.Error("Failed to get integration order by shopify order id", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *integrationOrderRepository) MarkReserved(ctx context.Context, id int64, reservationID string) error {
	query := `
		UPDATE integration_orders
		SET status = $2, supplier_reservation_id = $3, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	return r.transition(ctx, id, domain.OrderStatusNew, domain.OrderStatusReserved, query,
		id, domain.OrderStatusReserved, reservationID, domain.OrderStatusNew)
}

func (r *integrationOrderRepository) MarkCancelled(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE integration_orders
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	return r.transition(ctx, id, domain.OrderStatusNew, domain.OrderStatusCancelled, query,
		id, domain.OrderStatusCancelled, reason, domain.OrderStatusNew)
}

func (r *integrationOrderRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE integration_orders
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	return r.transition(ctx, id, domain.OrderStatusNew, domain.OrderStatusFailed, query,
		id, domain.OrderStatusFailed, reason, domain.OrderStatusNew)
}

func (r *integrationOrderRepository) MarkFulfilled(ctx context.Context, id int64) error {
	query := `
		UPDATE integration_orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	return r.transition(ctx, id, domain.OrderStatusReserved, domain.OrderStatusFulfilled, query,
		id, domain.OrderStatusFulfilled, domain.OrderStatusReserved)
}

// transition runs a guarded status update; zero affected rows means the row was not in from
func (r *integrationOrderRepository) transition(ctx context.Context, id int64, from, to domain.OrderStatus, query string, args ...interface{}) error {
	if !from.CanTransitionTo(to) {
		return &errors.ErrInvalidStateTransition{From: from, To: to}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update integration order status",
			zap.Int64("id", id),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return mapUniqueViolation(err, "integration_order", strconv.FormatInt(id, 10))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrInvalidStateTransition{From: from, To: to}
	}
	return nil
}

func (r *integrationOrderRepository) UpdateSupplierStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE integration_orders SET supplier_status = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, "supplier status", id, query, id, status)
}

func (r *integrationOrderRepository) UpdateTracking(ctx context.Context, id int64, carrier, trackingNumber, trackingURL string) error {
	query := `
		UPDATE integration_orders
		SET carrier = $2, tracking_number = $3, tracking_url = $4, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "tracking", id, query, id, carrier, trackingNumber, trackingURL)
}

func (r *integrationOrderRepository) exec(ctx context.Context, what string, id int64, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update integration order "+what, zap.Int64("id", id), zap.Error(err))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &errors.ErrNotFound{Resource: "integration_order", ID: fmt.Sprint(id)}
	}
	return nil
}

func (r *integrationOrderRepository) ListOpenWithReservation(ctx context.Context) ([]*domain.IntegrationOrder, error) {
	query := `SELECT ` + integrationOrderColumns + `
		FROM integration_orders
		WHERE status IN ($1, $2) AND supplier_reservation_id IS NOT NULL
		ORDER BY id`

	return r.list(ctx, query, domain.OrderStatusNew, domain.OrderStatusReserved)
}

func (r *integrationOrderRepository) List(ctx context.Context, limit, offset int) ([]*domain.IntegrationOrder, error) {
	query := `SELECT ` + integrationOrderColumns + `
		FROM integration_orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	return r.list(ctx, query, limit, offset)
}

func (r *integrationOrderRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.IntegrationOrder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list integration orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.IntegrationOrder
	for rows.Next() {
		order, err := scanIntegrationOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
