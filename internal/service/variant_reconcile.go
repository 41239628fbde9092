package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/shopify"
	"github.com/kamranshah125/turum/pkg/metrics"
)

// DefaultBatchDelay is the pause between two consecutive batch calls of the same kind
const DefaultBatchDelay = 500 * time.Millisecond

// ReconcileResult summarizes one product's variant reconciliation
type ReconcileResult struct {
	Matched                int
	Unmatched              int
	VariantBatches         int
	VariantBatchFailures   int
	VariantFallbacks       int // variants updated one by one after their batch was rejected
	InventoryBatches       int
	InventoryBatchFailures int
	Remediated             int
}

// VariantReconciler pushes supplier price, stock and link data onto storefront variants
type VariantReconciler struct {
	storefront Storefront
	pricer     Pricer
	batchDelay time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu         sync.Mutex
	locationID int64
}

// NewVariantReconciler creates a reconciler; the primary location is looked up once per instance
func NewVariantReconciler(storefront Storefront, pricer Pricer, batchDelay time.Duration, m *metrics.Metrics, logger *zap.Logger) *VariantReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VariantReconciler{
		storefront: storefront,
		pricer:     pricer,
		batchDelay: batchDelay,
		metrics:    m,
		logger:     logger,
	}
}

// PrimaryLocation returns the first active non-legacy location, falling back to the first one
func (r *VariantReconciler) PrimaryLocation(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locationID != 0 {
		return r.locationID, nil
	}

	locations, err := r.storefront.ListLocations(ctx)
	if err != nil {
		return 0, err
	}
	if len(locations) == 0 {
		return 0, fmt.Errorf("storefront has no locations")
	}
	r.locationID = locations[0].ID
	for _, l := range locations {
		if l.Active && !l.Legacy {
			r.locationID = l.ID
			break
		}
	}
	r.logger.Info("Using primary location", zap.Int64("location_id", r.locationID))
	return r.locationID, nil
}

// inventoryEntry keeps the numeric ids behind one batch entry for remediation
type inventoryEntry struct {
	inventoryItemID int64
	quantity        int
}

// Reconcile matches supplier variants to the product's storefront variants by size and submits
// price/link updates, then quantities. created marks variants that still need inventory activation.
func (r *VariantReconciler) Reconcile(ctx context.Context, productID int64, product *domain.SupplierProduct, variants []domain.StorefrontVariant, created bool) (*ReconcileResult, error) {
	logger := r.logger.With(zap.String("sku", product.SKU), zap.Int64("product_id", productID))

	locationID, err := r.PrimaryLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve primary location: %w", err)
	}
	locationGID := shopify.GID("Location", locationID)

	result := &ReconcileResult{}
	var (
		updates  []shopify.ProductVariantsBulkInput
		entries  []inventoryEntry
		toActive []int64
	)
	for _, sv := range product.Variants {
		label := sv.OptionLabel()
		target, ok := matchStorefrontVariant(variants, label)
		if !ok {
			result.Unmatched++
			logger.Debug("No storefront variant for supplier size", zap.String("size", label), zap.String("supplier_variant_id", sv.ID))
			continue
		}
		result.Matched++

		updates = append(updates, shopify.ProductVariantsBulkInput{
			ID:    shopify.GID("ProductVariant", target.ID),
			Price: r.pricer.PriceString(sv.Price),
			Metafields: []shopify.MetafieldInput{{
				Namespace: LinkMetafieldNamespace,
				Key:       LinkMetafieldKey,
				Type:      linkMetafieldType,
				Value:     sv.ID,
			}},
		})
		if target.InventoryItemID == 0 {
			logger.Warn("Storefront variant has no inventory item", zap.Int64("variant_id", target.ID))
			continue
		}
		entries = append(entries, inventoryEntry{inventoryItemID: target.InventoryItemID, quantity: max(sv.Stock, 0)})
		if created {
			toActive = append(toActive, target.InventoryItemID)
		}
	}

	for i, batch := range chunk(updates, shopify.MaxVariantsPerBulkUpdate) {
		if i > 0 && !r.pause(ctx) {
			return result, ctx.Err()
		}
		result.VariantBatches++
		err := r.storefront.BulkUpdateVariants(ctx, productID, batch)
		r.metrics.IncBatch(metrics.BatchVariants, err == nil)
		if err != nil {
			result.VariantBatchFailures++
			logger.Error("Variant batch failed", zap.Int("batch", i+1), zap.Int("size", len(batch)), zap.Error(err))
			var rejected *shopify.UserErrorsError
			if stderrors.As(err, &rejected) {
				result.VariantFallbacks += r.updateEach(ctx, batch, logger.With(zap.Int("batch", i+1)))
			}
			continue
		}
		logger.Info("Variant batch updated", zap.Int("batch", i+1), zap.Int("size", len(batch)))
	}

	for _, itemID := range toActive {
		if err := r.storefront.ActivateInventory(ctx, itemID, locationID); err != nil {
			logger.Warn("Inventory activation failed", zap.Int64("inventory_item_id", itemID), zap.Error(err))
		}
	}

	for i, batch := range chunk(entries, shopify.MaxInventoryPerBatch) {
		if i > 0 && !r.pause(ctx) {
			return result, ctx.Err()
		}
		result.InventoryBatches++
		ok := r.submitInventory(ctx, batch, locationID, locationGID, result, logger.With(zap.Int("batch", i+1)))
		r.metrics.IncBatch(metrics.BatchInventory, ok)
		if !ok {
			result.InventoryBatchFailures++
		}
	}

	return result, nil
}

// updateEach applies a rejected batch variant by variant so one invalid entry does not hold back the rest.
// It returns the number of variants whose price and link were both written.
func (r *VariantReconciler) updateEach(ctx context.Context, batch []shopify.ProductVariantsBulkInput, logger *zap.Logger) int {
	updated := 0
	for _, in := range batch {
		variantID, err := shopify.ParseGID(in.ID)
		if err != nil {
			logger.Warn("Skipping variant with malformed id", zap.String("gid", in.ID), zap.Error(err))
			continue
		}
		ok := true
		if err := r.storefront.UpdateVariantPrice(ctx, variantID, in.Price); err != nil {
			ok = false
			logger.Warn("Variant price update failed", zap.Int64("variant_id", variantID), zap.String("price", in.Price), zap.Error(err))
		}
		for _, mf := range in.Metafields {
			if err := r.storefront.SetVariantMetafield(ctx, variantID, mf.Namespace, mf.Key, mf.Value); err != nil {
				ok = false
				logger.Warn("Variant link update failed", zap.Int64("variant_id", variantID), zap.Error(err))
			}
		}
		if ok {
			updated++
		}
	}
	logger.Info("Rejected variant batch applied one by one", zap.Int("size", len(batch)), zap.Int("updated", updated))
	return updated
}

// submitInventory sends one inventory batch and repairs entries the location does not stock yet
func (r *VariantReconciler) submitInventory(ctx context.Context, batch []inventoryEntry, locationID int64, locationGID string, result *ReconcileResult, logger *zap.Logger) bool {
	quantities := make([]shopify.InventoryQuantityInput, 0, len(batch))
	for _, e := range batch {
		quantities = append(quantities, shopify.InventoryQuantityInput{
			InventoryItemID: shopify.GID("InventoryItem", e.inventoryItemID),
			LocationID:      locationGID,
			Quantity:        e.quantity,
		})
	}

	userErrors, err := r.storefront.SetInventoryQuantities(ctx, quantities)
	if err != nil {
		logger.Error("Inventory batch failed", zap.Int("size", len(batch)), zap.Error(err))
		return false
	}
	if len(userErrors) == 0 {
		logger.Info("Inventory batch updated", zap.Int("size", len(batch)))
		return true
	}

	var unrelated []shopify.UserError
	ok := true
	for _, ue := range userErrors {
		idx, found := quantityIndex(ue.Field)
		if !isNotStocked(ue) || !found || idx >= len(batch) {
			unrelated = append(unrelated, ue)
			continue
		}
		e := batch[idx]
		if err := r.storefront.ActivateInventory(ctx, e.inventoryItemID, locationID); err != nil {
			logger.Warn("Inventory activation failed", zap.Int64("inventory_item_id", e.inventoryItemID), zap.Error(err))
		}
		if err := r.storefront.SetInventoryLevel(ctx, e.inventoryItemID, locationID, e.quantity); err != nil {
			ok = false
			logger.Error("Single inventory set failed", zap.Int64("inventory_item_id", e.inventoryItemID), zap.Error(err))
			continue
		}
		result.Remediated++
		logger.Info("Inventory item activated and set", zap.Int64("inventory_item_id", e.inventoryItemID), zap.Int("quantity", e.quantity))
	}

	if len(unrelated) > 0 {
		logger.Error("Inventory batch reported errors", zap.Int("size", len(batch)), zap.String("errors", shopify.FormatUserErrors(unrelated)))
		return false
	}
	return ok
}

func (r *VariantReconciler) pause(ctx context.Context) bool {
	if r.batchDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(r.batchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// matchStorefrontVariant compares the size label with option1 or the title; first match wins
func matchStorefrontVariant(variants []domain.StorefrontVariant, label string) (domain.StorefrontVariant, bool) {
	for _, v := range variants {
		if v.Option1 == label || v.Title == label {
			return v, true
		}
	}
	return domain.StorefrontVariant{}, false
}

func isNotStocked(ue shopify.UserError) bool {
	if ue.Code == shopify.ErrCodeItemNotStocked {
		return true
	}
	return strings.Contains(strings.ToLower(ue.Message), "not stocked")
}

// quantityIndex extracts N from a user error field path like ["input","quantities","N","inventoryItemId"]
func quantityIndex(field []string) (int, bool) {
	for i := 0; i+1 < len(field); i++ {
		if field[i] != "quantities" {
			continue
		}
		n, err := strconv.Atoi(field[i+1])
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// chunk splits items into consecutive slices of at most size elements
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
