package service

import (
	"context"
	"fmt"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/pkg/errors"
)

// StockValidator checks requested quantities against live supplier stock
type StockValidator struct {
	supplier Supplier
}

// NewStockValidator creates a stock validator
func NewStockValidator(supplier Supplier) *StockValidator {
	return &StockValidator{supplier: supplier}
}

// Validate checks one resolved line item. product may be nil, in which case it is fetched;
// the product that was checked is returned so callers can reuse it.
// Shortages and variants gone from the feed are *errors.ErrValidation.
func (v *StockValidator) Validate(ctx context.Context, sku, variantID string, quantity int, product *domain.SupplierProduct) (*domain.SupplierProduct, error) {
	if product == nil {
		p, err := v.supplier.GetProduct(ctx, sku)
		if err != nil {
			return nil, fmt.Errorf("fetch supplier product %s: %w", sku, err)
		}
		product = p
	}

	var (
		variant domain.SupplierVariant
		found   bool
	)
	if product != nil {
		variant, found = product.FindVariant(variantID)
	}
	if !found {
		return product, &errors.ErrValidation{
			Message: fmt.Sprintf("Variant ID %s not found in Turum Product Feed for SKU %s.", variantID, sku),
		}
	}
	if variant.Stock < quantity {
		return product, &errors.ErrValidation{
			Message: fmt.Sprintf("Insufficient Stock for SKU %s (Variant %s). Requested: %d, Available: %d",
				sku, variantID, quantity, variant.Stock),
		}
	}
	return product, nil
}
