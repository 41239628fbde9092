package domain

import (
	"encoding/json"
	"time"
)

// IntegrationOrder tracks one storefront order through reservation and fulfillment.
// The storefront order id is the natural key; a second row for the same id is never created.
type IntegrationOrder struct {
	ID                    int64
	ShopifyOrderID        int64
	SupplierReservationID *string
	Status                OrderStatus
	SupplierStatus        *string // last status reported by the supplier, verbatim
	TrackingNumber        *string
	TrackingURL           *string // raw supplier tracking field
	Carrier               *string
	RawPayload            json.RawMessage // original webhook body
	ErrorMessage          *string
	Attempts              int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DefaultClaimLease is how long a claimed order may stay new without a reservation before
// another delivery takes it over
const DefaultClaimLease = 15 * time.Minute

// ClaimPolicy decides when an existing integration order row may be claimed again
type ClaimPolicy struct {
	MaxAttempts int           // a failed order is re-opened while attempts < MaxAttempts
	Lease       time.Duration // a new order without reservation is taken over once its claim is older than Lease
}

// VariantMap caches a confirmed (storefront SKU, size) -> supplier variant link
type VariantMap struct {
	ID                int64
	ShopifySKU        string
	ShopifySize       string
	SupplierVariantID string
	SupplierSKU       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ShopifyOrder is the subset of the orders/create webhook body the integration reads
type ShopifyOrder struct {
	ID              int64            `json:"id" validate:"required"`
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	LineItems       []LineItem       `json:"line_items" validate:"dive"`
	ShippingAddress *ShippingAddress `json:"shipping_address"`
}

// LineItem is a storefront order line
type LineItem struct {
	ID           int64  `json:"id"`
	SKU          string `json:"sku"`
	Title        string `json:"title"`
	VariantID    *int64 `json:"variant_id"`
	VariantTitle string `json:"variant_title"`
	Quantity     int    `json:"quantity" validate:"gte=0"`
}

// ShippingAddress is the storefront shipping address shape
type ShippingAddress struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Zip          string `json:"zip"`
	Province     string `json:"province"`
	ProvinceCode string `json:"province_code"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Phone        string `json:"phone"`
}
