package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/pkg/metrics"
)

const (
	draftPageSize           = 50
	draftVariantsPerProduct = 20
)

// SourceTag is the storefront tag put on every product created from the supplier feed
func SourceTag(vendor string) string {
	return strings.ToLower(strings.TrimSpace(vendor))
}

// sourceProductsQuery matches active products created from the feed: tagged ones, which carry the
// supplier brand as vendor, and untagged ones created under the configured vendor.
func sourceProductsQuery(vendor string) string {
	return fmt.Sprintf("(tag:'%s' OR vendor:'%s') AND status:active", searchQuote(SourceTag(vendor)), searchQuote(vendor))
}

func searchQuote(term string) string {
	return strings.ReplaceAll(term, "'", "\\'")
}

// StaleDrafter drafts active storefront products created from the supplier feed that left it
type StaleDrafter struct {
	storefront Storefront
	supplier   Supplier
	vendor     string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewStaleDrafter creates a drafter for products of vendor
func NewStaleDrafter(storefront Storefront, supplier Supplier, vendor string, m *metrics.Metrics, logger *zap.Logger) *StaleDrafter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaleDrafter{
		storefront: storefront,
		supplier:   supplier,
		vendor:     vendor,
		metrics:    m,
		logger:     logger,
	}
}

// DraftStale pages through the active feed products and drafts every product whose SKUs
// are all missing from activeSKUs. Products without any SKU are left alone.
func (d *StaleDrafter) DraftStale(ctx context.Context, activeSKUs map[string]struct{}) (int, error) {
	query := sourceProductsQuery(d.vendor)
	drafted := 0
	cursor := ""
	for {
		page, err := d.storefront.ListProducts(ctx, query, cursor, draftPageSize, draftVariantsPerProduct)
		if err != nil {
			d.metrics.AddDrafted(drafted)
			return drafted, fmt.Errorf("list storefront products: %w", err)
		}

		for _, p := range page.Products {
			if !isStale(p.SKUs, activeSKUs) {
				continue
			}
			if err := d.storefront.UpdateProductStatus(ctx, p.ID, domain.ProductStatusDraft); err != nil {
				d.logger.Warn("Failed to draft stale product", zap.Int64("product_id", p.ID), zap.String("title", p.Title), zap.Error(err))
				continue
			}
			drafted++
			d.logger.Info("Drafted stale product", zap.Int64("product_id", p.ID), zap.String("title", p.Title), zap.Strings("skus", p.SKUs))
		}

		if !page.HasNextPage || page.EndCursor == "" {
			break
		}
		cursor = page.EndCursor
	}
	d.metrics.AddDrafted(drafted)
	return drafted, nil
}

// DraftSKUIfMissing drafts the storefront product carrying sku when the supplier no longer lists it.
// It reports whether the product was drafted.
func (d *StaleDrafter) DraftSKUIfMissing(ctx context.Context, sku string) (bool, error) {
	ref, err := d.storefront.FindVariantBySKU(ctx, sku)
	if err != nil {
		return false, err
	}
	if ref == nil {
		d.logger.Info("SKU not found in storefront, nothing to draft", zap.String("sku", sku))
		return false, nil
	}

	product, err := d.supplier.GetProduct(ctx, sku)
	if err != nil {
		return false, err
	}
	if product != nil {
		d.logger.Info("SKU still listed by supplier, keeping product active", zap.String("sku", sku))
		return false, nil
	}

	if err := d.storefront.UpdateProductStatus(ctx, ref.ProductID, domain.ProductStatusDraft); err != nil {
		return false, err
	}
	d.metrics.AddDrafted(1)
	d.logger.Info("Drafted product missing from supplier", zap.String("sku", sku), zap.Int64("product_id", ref.ProductID))
	return true, nil
}

func isStale(skus []string, active map[string]struct{}) bool {
	if len(skus) == 0 {
		return false
	}
	for _, sku := range skus {
		if _, ok := active[sku]; ok {
			return false
		}
	}
	return true
}
