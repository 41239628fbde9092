package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/repository"
	"github.com/kamranshah125/turum/pkg/errors"
)

// ResolutionSource tells which path produced a supplier variant id
type ResolutionSource string

const (
	SourceMetafield  ResolutionSource = "metafield"
	SourceVariantMap ResolutionSource = "variant_map"
	SourceNameMatch  ResolutionSource = "name_match"
)

// Resolution is a storefront line item linked to a supplier variant
type Resolution struct {
	SupplierVariantID string
	Source            ResolutionSource
	// Product is set when resolution had to fetch the supplier product
	Product *domain.SupplierProduct
}

// VariantResolver maps storefront line items to supplier variant ids
type VariantResolver struct {
	storefront Storefront
	supplier   Supplier
	variantMap repository.VariantMapRepository
	logger     *zap.Logger
}

// NewVariantResolver creates a resolver. variantMap may be nil.
func NewVariantResolver(storefront Storefront, supplier Supplier, variantMap repository.VariantMapRepository, logger *zap.Logger) *VariantResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VariantResolver{
		storefront: storefront,
		supplier:   supplier,
		variantMap: variantMap,
		logger:     logger,
	}
}

// Resolve finds the supplier variant for a line item. A line item that cannot be matched
// yields an *errors.ErrValidation; any other error is a remote or storage failure.
func (r *VariantResolver) Resolve(ctx context.Context, item domain.LineItem) (*Resolution, error) {
	sku := strings.TrimSpace(item.SKU)
	if sku == "" {
		return nil, &errors.ErrValidation{Message: fmt.Sprintf("Item %d has no SKU.", item.ID)}
	}

	if item.VariantID != nil {
		id, err := r.storefront.GetVariantMetafield(ctx, *item.VariantID, LinkMetafieldNamespace, LinkMetafieldKey)
		if err != nil {
			r.logger.Warn("Variant link lookup failed, falling back to name matching",
				zap.Int64("variant_id", *item.VariantID), zap.Error(err))
		} else if id != "" {
			r.logger.Debug("Resolved variant via link metafield",
				zap.Int64("variant_id", *item.VariantID), zap.String("supplier_variant_id", id))
			return &Resolution{SupplierVariantID: id, Source: SourceMetafield}, nil
		}
	}

	size := normalizeSize(item.VariantTitle)
	if r.variantMap != nil {
		m, err := r.variantMap.GetBySKUAndSize(ctx, sku, size)
		switch {
		case err == nil:
			return &Resolution{SupplierVariantID: m.SupplierVariantID, Source: SourceVariantMap}, nil
		case !errors.IsNotFound(err):
			r.logger.Warn("Variant map lookup failed", zap.String("sku", sku), zap.Error(err))
		}
	}

	product, err := r.supplier.GetProduct(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("fetch supplier product %s: %w", sku, err)
	}
	noMatch := &errors.ErrValidation{
		Message: fmt.Sprintf("No matching Turum Variant found for SKU %s / Size '%s'", sku, item.VariantTitle),
	}
	if product == nil || len(product.Variants) == 0 {
		r.logger.Warn("Supplier product not found or has no variants", zap.String("sku", sku))
		return nil, noMatch
	}

	variant, ok := MatchSupplierVariant(product.Variants, item.VariantTitle)
	if !ok {
		return nil, noMatch
	}
	r.logger.Info("Resolved variant via name match",
		zap.String("sku", sku),
		zap.String("size", item.VariantTitle),
		zap.String("supplier_variant_id", variant.ID),
	)
	r.remember(ctx, sku, size, variant.ID, product.SKU)

	return &Resolution{SupplierVariantID: variant.ID, Source: SourceNameMatch, Product: product}, nil
}

// remember caches a confirmed name match; failures only cost a future fallback
func (r *VariantResolver) remember(ctx context.Context, sku, size, variantID, supplierSKU string) {
	if r.variantMap == nil {
		return
	}
	m := &domain.VariantMap{ShopifySKU: sku, ShopifySize: size, SupplierVariantID: variantID}
	if supplierSKU != "" {
		m.SupplierSKU = &supplierSKU
	}
	if err := r.variantMap.Upsert(ctx, m); err != nil {
		r.logger.Warn("Failed to store variant map", zap.String("sku", sku), zap.Error(err))
	}
}

// MatchSupplierVariant compares size labels case- and whitespace-insensitively.
// An empty storefront size matches the first variant.
func MatchSupplierVariant(variants []domain.SupplierVariant, storefrontSize string) (domain.SupplierVariant, bool) {
	want := normalizeSize(storefrontSize)
	for _, v := range variants {
		if want == "" || normalizeSize(v.SizeLabel()) == want {
			return v, true
		}
	}
	return domain.SupplierVariant{}, false
}

func normalizeSize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
