package domain

// OrderStatus represents the lifecycle state of an integration order
type OrderStatus string

const (
	// NEW - order claimed for processing, no reservation yet
	OrderStatusNew OrderStatus = "new"
	// RESERVED - supplier stock reserved, waiting for shipment
	OrderStatusReserved OrderStatus = "reserved"
	// FULFILLED - tracking pushed to the storefront
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// CANCELLED - validation failed, storefront order cancelled
	OrderStatusCancelled OrderStatus = "cancelled"
	// FAILED - reservation could not be created
	OrderStatusFailed OrderStatus = "failed"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew,
		OrderStatusReserved,
		OrderStatusFulfilled,
		OrderStatusCancelled,
		OrderStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusNew:
		return newStatus == OrderStatusReserved ||
			newStatus == OrderStatusCancelled ||
			newStatus == OrderStatusFailed
	case OrderStatusReserved:
		return newStatus == OrderStatusFulfilled
	case OrderStatusFailed:
		// only through an explicit re-attempt
		return newStatus == OrderStatusNew
	case OrderStatusFulfilled, OrderStatusCancelled:
		return false // Terminal states
	default:
		return false
	}
}

// IsOpen reports whether the tracking poller should still look at the order
func (s OrderStatus) IsOpen() bool {
	return s == OrderStatusNew || s == OrderStatusReserved
}

// Supplier reservation statuses that carry shipment tracking
const (
	SupplierStatusSent      = "sent"
	SupplierStatusDelivered = "delivered"
)

// IsShippedSupplierStatus reports whether the supplier reservation status means the parcel left the warehouse
func IsShippedSupplierStatus(status string) bool {
	return status == SupplierStatusSent || status == SupplierStatusDelivered
}

// ProductStatus is the storefront product publication state
type ProductStatus string

const (
	ProductStatusActive ProductStatus = "active"
	ProductStatusDraft  ProductStatus = "draft"
)
