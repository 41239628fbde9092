package service

import (
	"context"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/shopify"
	"github.com/kamranshah125/turum/internal/turum"
)

// Link annotation that ties a storefront variant to its supplier variant
const (
	LinkMetafieldNamespace = "turum"
	LinkMetafieldKey       = "variant_id"
	linkMetafieldType      = "single_line_text_field"
)

// Supplier is the subset of the supplier API the engine uses; *turum.Client implements it
type Supplier interface {
	Login(ctx context.Context) (string, error)
	CreateReservation(ctx context.Context, items []turum.ReservationItem) (string, error)
	GetReservation(ctx context.Context, reservationID string) (*turum.Reservation, error)
	// GetProduct returns nil, nil when the supplier does not know the SKU
	GetProduct(ctx context.Context, sku string) (*domain.SupplierProduct, error)
	GetProductsFullList(ctx context.Context) ([]domain.SupplierProduct, error)
	GetAccountAddress(ctx context.Context) (*turum.AccountAddress, error)
	UpdateAddress(ctx context.Context, addr turum.AccountAddress) error
}

// Storefront is the subset of the storefront API the engine uses; *ShopifyService implements it
type Storefront interface {
	FindVariantBySKU(ctx context.Context, sku string) (*domain.StorefrontVariantRef, error)
	GetProductVariants(ctx context.Context, productID int64) ([]domain.StorefrontVariant, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	SetInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, quantity int) error
	CreateProduct(ctx context.Context, product shopify.RESTProduct) (*domain.StorefrontProduct, error)
	UpdateProductStatus(ctx context.Context, productID int64, status domain.ProductStatus) error
	UpdateVariantPrice(ctx context.Context, variantID int64, price string) error
	BulkUpdateVariants(ctx context.Context, productID int64, variants []shopify.ProductVariantsBulkInput) error
	SetInventoryQuantities(ctx context.Context, quantities []shopify.InventoryQuantityInput) ([]shopify.UserError, error)
	ActivateInventory(ctx context.Context, inventoryItemID, locationID int64) error
	GetVariantMetafield(ctx context.Context, variantID int64, namespace, key string) (string, error)
	SetVariantMetafield(ctx context.Context, variantID int64, namespace, key, value string) error
	CancelOrder(ctx context.Context, orderID int64, reason string) error
	FulfillOrder(ctx context.Context, orderID int64, tracking shopify.TrackingInfo) error
	ListProducts(ctx context.Context, query, after string, pageSize, variantsPerProduct int) (*ProductPage, error)
}

// ProductPage is one cursor page of a storefront product search
type ProductPage struct {
	Products    []domain.StorefrontProduct
	HasNextPage bool
	EndCursor   string
}

var (
	_ Supplier   = (*turum.Client)(nil)
	_ Storefront = (*ShopifyService)(nil)
)
