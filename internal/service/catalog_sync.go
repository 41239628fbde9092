package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/shopify"
	"github.com/kamranshah125/turum/pkg/errors"
)

const (
	defaultProductType = "Shoes"
	sizeOptionName     = "Size"
)

// SyncReport summarizes one catalog sync pass
type SyncReport struct {
	Seen    int
	Skipped int
	Created int
	Updated int
	Failed  int
	Drafted int
}

// CatalogSynchronizer mirrors the supplier feed into the storefront catalog
type CatalogSynchronizer struct {
	storefront Storefront
	supplier   Supplier
	reconciler *VariantReconciler
	drafter    *StaleDrafter
	pricer     Pricer
	vendor     string
	logger     *zap.Logger
}

// NewCatalogSynchronizer creates a synchronizer; vendor is used when a product has no brand
func NewCatalogSynchronizer(storefront Storefront, supplier Supplier, reconciler *VariantReconciler, drafter *StaleDrafter, pricer Pricer, vendor string, logger *zap.Logger) *CatalogSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogSynchronizer{
		storefront: storefront,
		supplier:   supplier,
		reconciler: reconciler,
		drafter:    drafter,
		pricer:     pricer,
		vendor:     vendor,
		logger:     logger,
	}
}

// Run performs one full pass: create or update every supplier product, then draft stale ones.
// Per-product failures are logged and counted; the pass continues with the next product.
func (s *CatalogSynchronizer) Run(ctx context.Context) (*SyncReport, error) {
	products, err := s.supplier.GetProductsFullList(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch supplier feed: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("supplier feed is empty")
	}
	s.logger.Info("Starting catalog sync", zap.Int("products", len(products)))

	report := &SyncReport{}
	active := make(map[string]struct{}, len(products))
	for i := range products {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := &products[i]
		p.SKU = strings.TrimSpace(p.SKU)
		if p.SKU == "" {
			report.Skipped++
			continue
		}
		report.Seen++
		active[p.SKU] = struct{}{}

		created, err := s.syncProduct(ctx, p)
		switch {
		case err != nil:
			report.Failed++
			s.logger.Warn("Catalog sync: product failed", zap.String("sku", p.SKU), zap.Error(err))
		case created:
			report.Created++
		default:
			report.Updated++
		}
	}

	if s.drafter != nil {
		drafted, err := s.drafter.DraftStale(ctx, active)
		report.Drafted = drafted
		if err != nil {
			return report, fmt.Errorf("draft stale products: %w", err)
		}
	}

	s.logger.Info("Catalog sync complete",
		zap.Int("seen", report.Seen),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("drafted", report.Drafted),
	)
	return report, nil
}

// syncProduct finds or creates the storefront product and reconciles its variants.
// It reports whether the product was created.
func (s *CatalogSynchronizer) syncProduct(ctx context.Context, p *domain.SupplierProduct) (bool, error) {
	ref, err := s.storefront.FindVariantBySKU(ctx, p.SKU)
	if err != nil {
		return false, fmt.Errorf("look up storefront sku: %w", err)
	}

	if ref != nil {
		variants, err := s.storefront.GetProductVariants(ctx, ref.ProductID)
		if err != nil {
			return false, err
		}
		res, err := s.reconciler.Reconcile(ctx, ref.ProductID, p, variants, false)
		if err != nil {
			return false, err
		}
		s.logReconcile(p.SKU, ref.ProductID, res, false)
		return false, nil
	}

	product, err := s.createProduct(ctx, p)
	if err != nil {
		return false, err
	}
	variants := product.Variants
	if len(variants) == 0 {
		if variants, err = s.storefront.GetProductVariants(ctx, product.ID); err != nil {
			return true, err
		}
	}
	res, err := s.reconciler.Reconcile(ctx, product.ID, p, variants, true)
	if err != nil {
		return true, err
	}
	s.logReconcile(p.SKU, product.ID, res, true)
	return true, nil
}

// createProduct creates the product, retrying once without images when the storefront rejects them
func (s *CatalogSynchronizer) createProduct(ctx context.Context, p *domain.SupplierProduct) (*domain.StorefrontProduct, error) {
	payload := s.productPayload(p)
	created, err := s.storefront.CreateProduct(ctx, payload)
	if err != nil && len(payload.Images) > 0 && isImageRejection(err) {
		s.logger.Warn("Storefront rejected product images, retrying without images", zap.String("sku", p.SKU), zap.Error(err))
		payload.Images = nil
		created, err = s.storefront.CreateProduct(ctx, payload)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("Created storefront product", zap.String("sku", p.SKU), zap.Int64("product_id", created.ID))
	return created, nil
}

func (s *CatalogSynchronizer) productPayload(p *domain.SupplierProduct) shopify.RESTProduct {
	title := strings.TrimSpace(p.Name)
	if title == "" {
		title = p.SKU
	}
	product := shopify.RESTProduct{
		Title:       title,
		BodyHTML:    p.Description,
		Vendor:      firstNonEmpty(p.Brand, s.vendor),
		ProductType: firstNonEmpty(p.Category, defaultProductType),
		Tags:        SourceTag(s.vendor),
		Options:     []shopify.RESTOption{{Name: sizeOptionName}},
	}

	seen := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		label := v.OptionLabel()
		if seen[label] {
			s.logger.Debug("Duplicate supplier size skipped", zap.String("sku", p.SKU), zap.String("size", label))
			continue
		}
		seen[label] = true
		product.Variants = append(product.Variants, shopify.RESTVariant{
			Option1:             label,
			Price:               s.pricer.PriceString(v.Price),
			SKU:                 p.SKU,
			InventoryManagement: "shopify",
		})
	}
	for _, src := range p.Images {
		product.Images = append(product.Images, shopify.RESTImage{Src: src})
	}
	return product
}

func (s *CatalogSynchronizer) logReconcile(sku string, productID int64, res *ReconcileResult, created bool) {
	s.logger.Info("Reconciled variants",
		zap.String("sku", sku),
		zap.Int64("product_id", productID),
		zap.Bool("created", created),
		zap.Int("matched", res.Matched),
		zap.Int("unmatched", res.Unmatched),
		zap.Int("variant_batch_failures", res.VariantBatchFailures),
		zap.Int("variant_fallbacks", res.VariantFallbacks),
		zap.Int("inventory_batch_failures", res.InventoryBatchFailures),
		zap.Int("remediated", res.Remediated),
	)
}

// isImageRejection recognizes the 422 the storefront returns for an unusable image URL
func isImageRejection(err error) bool {
	if errors.RemoteStatus(err) != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "image")
}
