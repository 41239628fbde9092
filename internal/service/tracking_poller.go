package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/repository"
	"github.com/kamranshah125/turum/internal/shopify"
	"github.com/kamranshah125/turum/pkg/metrics"
)

const (
	unknownCarrier    = "Unknown"
	trackingSearchURL = "https://www.google.com/search?q="
)

// PollReport summarizes one tracking poll pass
type PollReport struct {
	Checked       int
	StatusChanged int
	Fulfilled     int
	Failed        int
}

// TrackingPoller follows open supplier reservations and fulfills shipped orders
type TrackingPoller struct {
	orders     repository.IntegrationOrderRepository
	supplier   Supplier
	storefront Storefront
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewTrackingPoller creates a tracking poller
func NewTrackingPoller(orders repository.IntegrationOrderRepository, supplier Supplier, storefront Storefront, m *metrics.Metrics, logger *zap.Logger) *TrackingPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingPoller{
		orders:     orders,
		supplier:   supplier,
		storefront: storefront,
		metrics:    m,
		logger:     logger,
	}
}

// Run checks every open order with a reservation. A failing order is logged and skipped.
func (p *TrackingPoller) Run(ctx context.Context) (*PollReport, error) {
	orders, err := p.orders.ListOpenWithReservation(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	p.logger.Info("Checking pending reservations", zap.Int("orders", len(orders)))

	report := &PollReport{}
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := p.poll(ctx, o, report); err != nil {
			report.Failed++
			p.logger.Error("Reservation check failed",
				zap.Int64("integration_order_id", o.ID),
				zap.Int64("order_id", o.ShopifyOrderID),
				zap.Error(err),
			)
		}
	}
	p.logger.Info("Reservation check complete",
		zap.Int("checked", report.Checked),
		zap.Int("status_changed", report.StatusChanged),
		zap.Int("fulfilled", report.Fulfilled),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (p *TrackingPoller) poll(ctx context.Context, o *domain.IntegrationOrder, report *PollReport) error {
	reservationID := *o.SupplierReservationID
	logger := p.logger.With(zap.Int64("order_id", o.ShopifyOrderID), zap.String("reservation_id", reservationID))

	res, err := p.supplier.GetReservation(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("fetch reservation: %w", err)
	}

	status := strings.TrimSpace(res.Status)
	if status != "" && (o.SupplierStatus == nil || *o.SupplierStatus != status) {
		if err := p.orders.UpdateSupplierStatus(ctx, o.ID, status); err != nil {
			return fmt.Errorf("store supplier status: %w", err)
		}
		o.SupplierStatus = &status
		report.StatusChanged++
		logger.Info("Supplier status changed", zap.String("status", status))
	}

	raw := strings.TrimSpace(res.TrackingURL)
	if !domain.IsShippedSupplierStatus(status) || raw == "" {
		return nil
	}

	carrier, number := ParseTracking(raw)
	if err := p.orders.UpdateTracking(ctx, o.ID, carrier, number, raw); err != nil {
		return fmt.Errorf("store tracking: %w", err)
	}
	if o.Status != domain.OrderStatusReserved {
		logger.Warn("Shipped reservation for an order that is not reserved", zap.String("status", string(o.Status)))
		return nil
	}

	tracking := shopify.TrackingInfo{Number: number, URL: FulfillmentURL(raw, number), Company: carrier}
	err = p.storefront.FulfillOrder(ctx, o.ShopifyOrderID, tracking)
	p.metrics.IncFulfillment(err == nil)
	if err != nil {
		return fmt.Errorf("fulfill storefront order: %w", err)
	}
	if err := p.orders.MarkFulfilled(ctx, o.ID); err != nil {
		return fmt.Errorf("mark fulfilled: %w", err)
	}
	o.Status = domain.OrderStatusFulfilled
	report.Fulfilled++
	logger.Info("Order fulfilled", zap.String("carrier", carrier), zap.String("tracking_number", number))
	return nil
}

// ParseTracking splits the supplier's "carrier\nnumber" field. Without a line break the
// whole field is the tracking number and the carrier is unknown.
func ParseTracking(raw string) (carrier, number string) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "\r\n", "\n")
	first, rest, found := strings.Cut(raw, "\n")
	if !found {
		return unknownCarrier, raw
	}
	return strings.TrimSpace(first), strings.TrimSpace(rest)
}

// FulfillmentURL returns raw when it is an http(s) URL, otherwise a search URL for number
func FulfillmentURL(raw, number string) string {
	if isHTTPURL(strings.TrimSpace(raw)) {
		return strings.TrimSpace(raw)
	}
	return trackingSearchURL + url.QueryEscape(number)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
