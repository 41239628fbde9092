package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/pkg/errors"
)

var orderColumns = []string{
	"id", "shopify_order_id", "supplier_reservation_id", "status", "supplier_status",
	"tracking_number", "tracking_url", "carrier", "raw_payload", "error_message", "attempts", "created_at", "updated_at",
}

func newOrderRepo(t *testing.T) (*integrationOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewIntegrationOrderRepository(db, zap.NewNop()), mock
}

func TestIntegrationOrderRepository_Claim_NewOrder(t *testing.T) {
	repo, mock := newOrderRepo(t)
	now := time.Now()
	payload := json.RawMessage(`{"id":1001}`)

	mock.ExpectQuery(`INSERT INTO integration_orders .* ON CONFLICT \(shopify_order_id\) DO NOTHING`).
		WithArgs(int64(1001), "new", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(7), int64(1001), nil, "new", nil, nil, nil, nil, []byte(payload), nil, 1, now, now))

	order, err := repo.Claim(context.Background(), 1001, payload, domain.ClaimPolicy{MaxAttempts: 1})
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, int64(7), order.ID)
	assert.Equal(t, domain.OrderStatusNew, order.Status)
	assert.Nil(t, order.SupplierReservationID)
	assert.JSONEq(t, `{"id":1001}`, string(order.RawPayload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_Claim_Duplicate(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery(`INSERT INTO integration_orders`).
		WithArgs(int64(1001), "new", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderColumns))
	mock.ExpectQuery(`UPDATE integration_orders\s+SET status = \$2, attempts = attempts \+ 1`).
		WithArgs(int64(1001), "new", sqlmock.AnyArg(), "failed", 1, int64(900)).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	order, err := repo.Claim(context.Background(), 1001, json.RawMessage(`{}`), domain.ClaimPolicy{MaxAttempts: 1})
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_Claim_ReopensFailed(t *testing.T) {
	repo, mock := newOrderRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO integration_orders`).
		WillReturnRows(sqlmock.NewRows(orderColumns))
	mock.ExpectQuery(`UPDATE integration_orders`).
		WithArgs(int64(1001), "new", sqlmock.AnyArg(), "failed", 3, int64(900)).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(7), int64(1001), nil, "new", nil, nil, nil, nil, []byte(`{}`), nil, 2, now, now))

	order, err := repo.Claim(context.Background(), 1001, json.RawMessage(`{}`), domain.ClaimPolicy{MaxAttempts: 3})
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, 2, order.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_Claim_TakesOverAbandonedClaim(t *testing.T) {
	repo, mock := newOrderRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO integration_orders .*claimed_at`).
		WillReturnRows(sqlmock.NewRows(orderColumns))
	mock.ExpectQuery(`UPDATE integration_orders\s+SET .*claimed_at = NOW\(\).*status = \$2 AND supplier_reservation_id IS NULL AND claimed_at < NOW\(\) - \$6`).
		WithArgs(int64(1001), "new", sqlmock.AnyArg(), "failed", 1, int64(300)).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(7), int64(1001), nil, "new", nil, nil, nil, nil, []byte(`{}`), nil, 2, now, now))

	order, err := repo.Claim(context.Background(), 1001, json.RawMessage(`{}`),
		domain.ClaimPolicy{MaxAttempts: 1, Lease: 5 * time.Minute})
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStatusNew, order.Status)
	assert.Nil(t, order.SupplierReservationID)
	assert.Equal(t, 2, order.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_Claim_RejectsUnknownStatus(t *testing.T) {
	repo, mock := newOrderRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO integration_orders`).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(7), int64(1001), nil, "shipped", nil, nil, nil, nil, []byte(`{}`), nil, 1, now, now))

	order, err := repo.Claim(context.Background(), 1001, json.RawMessage(`{}`), domain.ClaimPolicy{MaxAttempts: 1})
	require.Error(t, err)
	assert.Nil(t, order)
	assert.Contains(t, err.Error(), `unknown status "shipped"`)
}

func TestIntegrationOrderRepository_MarkReserved(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec(`UPDATE integration_orders\s+SET status = \$2, supplier_reservation_id = \$3`).
		WithArgs(int64(7), "reserved", "res-1", "new").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkReserved(context.Background(), 7, "res-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_MarkReserved_DuplicateReservation(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec(`UPDATE integration_orders`).
		WithArgs(int64(7), "reserved", "res-1", "new").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_integration_orders_reservation"})

	err := repo.MarkReserved(context.Background(), 7, "res-1")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Contains(t, err.Error(), "idx_integration_orders_reservation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_MarkFulfilled_WrongState(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec(`UPDATE integration_orders`).
		WithArgs(int64(7), "fulfilled", "reserved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkFulfilled(context.Background(), 7)
	var transitionErr *errors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.OrderStatusReserved, transitionErr.From)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_GetByShopifyOrderID_NotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery(`SELECT .* FROM integration_orders WHERE shopify_order_id = \$1`).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByShopifyOrderID(context.Background(), 5)
	assert.True(t, errors.IsNotFound(err))
}

func TestIntegrationOrderRepository_ListOpenWithReservation(t *testing.T) {
	repo, mock := newOrderRepo(t)
	now := time.Now()

	mock.ExpectQuery(`WHERE status IN \(\$1, \$2\) AND supplier_reservation_id IS NOT NULL`).
		WithArgs("new", "reserved").
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(1), int64(11), "res-1", "reserved", "processing", nil, nil, nil, nil, nil, 1, now, now).
			AddRow(int64(2), int64(12), "res-2", "new", nil, nil, nil, nil, nil, nil, 1, now, now))

	orders, err := repo.ListOpenWithReservation(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "res-1", *orders[0].SupplierReservationID)
	assert.Equal(t, "processing", *orders[0].SupplierStatus)
	assert.Nil(t, orders[1].SupplierStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationOrderRepository_UpdateTracking(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec(`UPDATE integration_orders\s+SET carrier = \$2, tracking_number = \$3, tracking_url = \$4`).
		WithArgs(int64(3), "DPD", "123456", "DPD\n123456").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE integration_orders SET supplier_status`).
		WithArgs(int64(4), "sent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateTracking(context.Background(), 3, "DPD", "123456", "DPD\n123456"))
	err := repo.UpdateSupplierStatus(context.Background(), 4, "sent")
	assert.True(t, errors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
