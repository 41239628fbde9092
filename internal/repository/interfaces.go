package repository

import (
	"context"
	"encoding/json"

	"github.com/kamranshah125/turum/internal/domain"
)

// IntegrationOrderRepository defines integration order data access methods
type IntegrationOrderRepository interface {
	// Claim creates the row for a storefront order in status new. An existing row is re-opened when
	// it failed with attempts left, or taken over when it is still new without a reservation and
	// its claim outlived the lease. It returns nil when the order must not be processed again.
	Claim(ctx context.Context, shopifyOrderID int64, payload json.RawMessage, policy domain.ClaimPolicy) (*domain.IntegrationOrder, error)
	GetByShopifyOrderID(ctx context.Context, shopifyOrderID int64) (*domain.IntegrationOrder, error)
	MarkReserved(ctx context.Context, id int64, reservationID string) error
	MarkCancelled(ctx context.Context, id int64, reason string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	MarkFulfilled(ctx context.Context, id int64) error
	UpdateSupplierStatus(ctx context.Context, id int64, status string) error
	UpdateTracking(ctx context.Context, id int64, carrier, trackingNumber, trackingURL string) error
	// ListOpenWithReservation returns new/reserved orders that carry a supplier reservation id
	ListOpenWithReservation(ctx context.Context) ([]*domain.IntegrationOrder, error)
	List(ctx context.Context, limit, offset int) ([]*domain.IntegrationOrder, error)
}

// VariantMapRepository defines variant map data access methods
type VariantMapRepository interface {
	GetBySKUAndSize(ctx context.Context, sku, size string) (*domain.VariantMap, error)
	ListBySKU(ctx context.Context, sku string) ([]*domain.VariantMap, error)
	Upsert(ctx context.Context, m *domain.VariantMap) error
}

// Repositories aggregates all repositories
type Repositories struct {
	IntegrationOrder IntegrationOrderRepository
	VariantMap       VariantMapRepository
}
