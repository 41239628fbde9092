package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/shopify"
)

// ShopifyService implements Storefront on top of the Admin API client
type ShopifyService struct {
	client *shopify.Client
	logger *zap.Logger
}

// NewShopifyService creates a new Shopify service
func NewShopifyService(client *shopify.Client, logger *zap.Logger) *ShopifyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShopifyService{
		client: client,
		logger: logger,
	}
}

// FindVariantBySKU returns the first variant whose SKU equals sku exactly, or nil
func (s *ShopifyService) FindVariantBySKU(ctx context.Context, sku string) (*domain.StorefrontVariantRef, error) {
	variables := map[string]interface{}{"query": shopify.SKUSearch(sku)}
	resp, err := s.client.Execute(ctx, shopify.ProductVariantBySKUQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("find variant by sku: %w", err)
	}

	var result struct {
		ProductVariants struct {
			Edges []struct {
				Node variantSearchNode `json:"node"`
			} `json:"edges"`
		} `json:"productVariants"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse variant search response: %w", err)
	}

	// Search is fuzzy: "sku:ABC" also matches "ABC-2", which may rank first
	for _, edge := range result.ProductVariants.Edges {
		if edge.Node.SKU == sku {
			return edge.Node.ref()
		}
	}
	return nil, nil
}

type variantSearchNode struct {
	ID            string `json:"id"`
	SKU           string `json:"sku"`
	Title         string `json:"title"`
	InventoryItem struct {
		ID string `json:"id"`
	} `json:"inventoryItem"`
	Product struct {
		ID               string `json:"id"`
		LegacyResourceID string `json:"legacyResourceId"`
		Title            string `json:"title"`
	} `json:"product"`
}

func (n variantSearchNode) ref() (*domain.StorefrontVariantRef, error) {
	productID, err := strconv.ParseInt(n.Product.LegacyResourceID, 10, 64)
	if err != nil {
		if productID, err = shopify.ParseGID(n.Product.ID); err != nil {
			return nil, err
		}
	}
	variantID, err := shopify.ParseGID(n.ID)
	if err != nil {
		return nil, err
	}
	ref := &domain.StorefrontVariantRef{
		ProductID: productID,
		VariantID: variantID,
		Title:     n.Product.Title,
	}
	if n.InventoryItem.ID != "" {
		if ref.InventoryItemID, err = shopify.ParseGID(n.InventoryItem.ID); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// GetProductVariants returns every variant of a product
func (s *ShopifyService) GetProductVariants(ctx context.Context, productID int64) ([]domain.StorefrontVariant, error) {
	var out shopify.VariantsEnvelope
	path := fmt.Sprintf("/products/%d/variants.json", productID)
	if err := s.client.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get variants of product %d: %w", productID, err)
	}
	return toStorefrontVariants(out.Variants), nil
}

func toStorefrontVariants(in []shopify.RESTVariant) []domain.StorefrontVariant {
	variants := make([]domain.StorefrontVariant, 0, len(in))
	for _, v := range in {
		variants = append(variants, domain.StorefrontVariant{
			ID:              v.ID,
			ProductID:       v.ProductID,
			SKU:             v.SKU,
			Option1:         v.Option1,
			Title:           v.Title,
			Price:           v.Price,
			InventoryItemID: v.InventoryItemID,
		})
	}
	return variants
}

// ListLocations returns the shop's inventory locations
func (s *ShopifyService) ListLocations(ctx context.Context) ([]domain.Location, error) {
	var out shopify.LocationsEnvelope
	if err := s.client.Do(ctx, http.MethodGet, "/locations.json", nil, &out); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	locations := make([]domain.Location, 0, len(out.Locations))
	for _, l := range out.Locations {
		locations = append(locations, domain.Location{ID: l.ID, Name: l.Name, Active: l.Active, Legacy: l.Legacy})
	}
	return locations, nil
}

// SetInventoryLevel sets the available quantity of one item at one location
func (s *ShopifyService) SetInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, quantity int) error {
	body := shopify.InventoryLevelSet{LocationID: locationID, InventoryItemID: inventoryItemID, Available: quantity}
	if err := s.client.Do(ctx, http.MethodPost, "/inventory_levels/set.json", body, nil); err != nil {
		return fmt.Errorf("set inventory level for item %d: %w", inventoryItemID, err)
	}
	return nil
}

// CreateProduct creates a product with its variants and returns it as created
func (s *ShopifyService) CreateProduct(ctx context.Context, product shopify.RESTProduct) (*domain.StorefrontProduct, error) {
	var out shopify.ProductEnvelope
	if err := s.client.Do(ctx, http.MethodPost, "/products.json", shopify.ProductEnvelope{Product: product}, &out); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if out.Product.ID == 0 {
		return nil, fmt.Errorf("create product: no product in response")
	}
	return &domain.StorefrontProduct{
		ID:       out.Product.ID,
		GID:      shopify.GID("Product", out.Product.ID),
		Title:    out.Product.Title,
		Status:   domain.ProductStatus(out.Product.Status),
		Vendor:   out.Product.Vendor,
		Variants: toStorefrontVariants(out.Product.Variants),
	}, nil
}

// UpdateProductStatus moves a product between active and draft
func (s *ShopifyService) UpdateProductStatus(ctx context.Context, productID int64, status domain.ProductStatus) error {
	body := shopify.ProductEnvelope{Product: shopify.RESTProduct{ID: productID, Status: string(status)}}
	if err := s.client.Do(ctx, http.MethodPut, fmt.Sprintf("/products/%d.json", productID), body, nil); err != nil {
		return fmt.Errorf("update product %d status: %w", productID, err)
	}
	return nil
}

// UpdateVariantPrice sets the price of a single variant
func (s *ShopifyService) UpdateVariantPrice(ctx context.Context, variantID int64, price string) error {
	body := shopify.VariantEnvelope{Variant: shopify.RESTVariant{ID: variantID, Price: price}}
	if err := s.client.Do(ctx, http.MethodPut, fmt.Sprintf("/variants/%d.json", variantID), body, nil); err != nil {
		return fmt.Errorf("update variant %d: %w", variantID, err)
	}
	return nil
}

// BulkUpdateVariants updates price and link metafield of up to 100 variants of one product
func (s *ShopifyService) BulkUpdateVariants(ctx context.Context, productID int64, variants []shopify.ProductVariantsBulkInput) error {
	variables := map[string]interface{}{
		"productId": shopify.GID("Product", productID),
		"variants":  variants,
	}
	resp, err := s.client.Execute(ctx, shopify.ProductVariantsBulkUpdateMutation, variables)
	if err != nil {
		return fmt.Errorf("productVariantsBulkUpdate: %w", err)
	}

	var result struct {
		ProductVariantsBulkUpdate struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse productVariantsBulkUpdate response: %w", err)
	}
	if len(result.ProductVariantsBulkUpdate.UserErrors) > 0 {
		return &shopify.UserErrorsError{Mutation: "productVariantsBulkUpdate", Errors: result.ProductVariantsBulkUpdate.UserErrors}
	}
	return nil
}

// SetInventoryQuantities sets absolute "available" quantities; per-entry problems come back as user errors
func (s *ShopifyService) SetInventoryQuantities(ctx context.Context, quantities []shopify.InventoryQuantityInput) ([]shopify.UserError, error) {
	variables := map[string]interface{}{
		"input": shopify.InventorySetQuantitiesInput{
			Name:                  "available",
			Reason:                "correction",
			IgnoreCompareQuantity: true,
			Quantities:            quantities,
		},
	}
	resp, err := s.client.Execute(ctx, shopify.InventorySetQuantitiesMutation, variables)
	if err != nil {
		return nil, fmt.Errorf("inventorySetQuantities: %w", err)
	}

	var result struct {
		InventorySetQuantities struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"inventorySetQuantities"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse inventorySetQuantities response: %w", err)
	}
	return result.InventorySetQuantities.UserErrors, nil
}

// ActivateInventory starts tracking an inventory item at a location
func (s *ShopifyService) ActivateInventory(ctx context.Context, inventoryItemID, locationID int64) error {
	variables := map[string]interface{}{
		"inventoryItemId": shopify.GID("InventoryItem", inventoryItemID),
		"locationId":      shopify.GID("Location", locationID),
	}
	resp, err := s.client.Execute(ctx, shopify.InventoryActivateMutation, variables)
	if err != nil {
		return fmt.Errorf("inventoryActivate: %w", err)
	}

	var result struct {
		InventoryActivate struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"inventoryActivate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse inventoryActivate response: %w", err)
	}
	if len(result.InventoryActivate.UserErrors) > 0 {
		return fmt.Errorf("inventoryActivate userErrors: %s", shopify.FormatUserErrors(result.InventoryActivate.UserErrors))
	}
	return nil
}

// GetVariantMetafield returns the metafield value, or "" when the variant has none
func (s *ShopifyService) GetVariantMetafield(ctx context.Context, variantID int64, namespace, key string) (string, error) {
	variables := map[string]interface{}{
		"id":        shopify.GID("ProductVariant", variantID),
		"namespace": namespace,
		"key":       key,
	}
	resp, err := s.client.Execute(ctx, shopify.VariantMetafieldQuery, variables)
	if err != nil {
		return "", fmt.Errorf("get variant metafield: %w", err)
	}

	var result struct {
		ProductVariant *struct {
			Metafield *struct {
				Value string `json:"value"`
			} `json:"metafield"`
		} `json:"productVariant"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return "", fmt.Errorf("parse variant metafield response: %w", err)
	}
	if result.ProductVariant == nil || result.ProductVariant.Metafield == nil {
		return "", nil
	}
	return strings.TrimSpace(result.ProductVariant.Metafield.Value), nil
}

// SetVariantMetafield writes a single_line_text_field metafield on a variant
func (s *ShopifyService) SetVariantMetafield(ctx context.Context, variantID int64, namespace, key, value string) error {
	variables := map[string]interface{}{
		"metafields": []shopify.MetafieldsSetInput{{
			OwnerID:   shopify.GID("ProductVariant", variantID),
			Namespace: namespace,
			Key:       key,
			Type:      linkMetafieldType,
			Value:     value,
		}},
	}
	resp, err := s.client.Execute(ctx, shopify.MetafieldsSetMutation, variables)
	if err != nil {
		return fmt.Errorf("metafieldsSet: %w", err)
	}

	var result struct {
		MetafieldsSet struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse metafieldsSet response: %w", err)
	}
	if len(result.MetafieldsSet.UserErrors) > 0 {
		return fmt.Errorf("metafieldsSet userErrors: %s", shopify.FormatUserErrors(result.MetafieldsSet.UserErrors))
	}
	s.logger.Info("Set variant metafield", zap.Int64("variant_id", variantID), zap.String("key", namespace+"."+key))
	return nil
}

// CancelOrder cancels an order and notifies the customer
func (s *ShopifyService) CancelOrder(ctx context.Context, orderID int64, reason string) error {
	body := shopify.CancelOrderRequest{Reason: reason, Email: true}
	if err := s.client.Do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel.json", orderID), body, nil); err != nil {
		s.logger.Error("Failed to cancel order", zap.Int64("order_id", orderID), zap.Error(err))
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	s.logger.Info("Order cancelled", zap.Int64("order_id", orderID), zap.String("reason", reason))
	return nil
}

// FulfillOrder fulfills the order's open fulfillment order with tracking info and notifies the customer
func (s *ShopifyService) FulfillOrder(ctx context.Context, orderID int64, tracking shopify.TrackingInfo) error {
	var fos shopify.FulfillmentOrdersEnvelope
	if err := s.client.Do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/fulfillment_orders.json", orderID), nil, &fos); err != nil {
		return fmt.Errorf("get fulfillment orders of %d: %w", orderID, err)
	}
	fo, ok := pickFulfillmentOrder(fos.FulfillmentOrders)
	if !ok {
		return fmt.Errorf("no fulfillment orders found for order %d", orderID)
	}

	body := shopify.FulfillmentEnvelope{Fulfillment: shopify.Fulfillment{
		LineItemsByFulfillmentOrder: []shopify.LineItemsByFulfillmentOrder{{FulfillmentOrderID: fo.ID}},
		TrackingInfo:                tracking,
		NotifyCustomer:              true,
	}}
	if err := s.client.Do(ctx, http.MethodPost, "/fulfillments.json", body, nil); err != nil {
		return fmt.Errorf("create fulfillment for order %d: %w", orderID, err)
	}
	s.logger.Info("Order fulfilled",
		zap.Int64("order_id", orderID),
		zap.Int64("fulfillment_order_id", fo.ID),
		zap.String("carrier", tracking.Company),
	)
	return nil
}

// pickFulfillmentOrder prefers the first open one and falls back to the first
func pickFulfillmentOrder(fos []shopify.FulfillmentOrder) (shopify.FulfillmentOrder, bool) {
	if len(fos) == 0 {
		return shopify.FulfillmentOrder{}, false
	}
	for _, fo := range fos {
		if fo.Status == "open" || fo.Status == "in_progress" {
			return fo, true
		}
	}
	return fos[0], true
}

// ListProducts returns one page of products matching a search query
func (s *ShopifyService) ListProducts(ctx context.Context, query, after string, pageSize, variantsPerProduct int) (*ProductPage, error) {
	variables := map[string]interface{}{
		"first":         pageSize,
		"query":         query,
		"variantsFirst": variantsPerProduct,
	}
	if after != "" {
		variables["after"] = after
	}
	resp, err := s.client.Execute(ctx, shopify.VendorProductsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var result struct {
		Products struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Edges []struct {
				Node struct {
					ID               string `json:"id"`
					LegacyResourceID string `json:"legacyResourceId"`
					Title            string `json:"title"`
					Status           string `json:"status"`
					Vendor           string `json:"vendor"`
					Variants         struct {
						Edges []struct {
							Node struct {
								SKU string `json:"sku"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"variants"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse products response: %w", err)
	}

	page := &ProductPage{
		HasNextPage: result.Products.PageInfo.HasNextPage,
		EndCursor:   result.Products.PageInfo.EndCursor,
	}
	for _, edge := range result.Products.Edges {
		n := edge.Node
		id, err := strconv.ParseInt(n.LegacyResourceID, 10, 64)
		if err != nil {
			if id, err = shopify.ParseGID(n.ID); err != nil {
				return nil, err
			}
		}
		p := domain.StorefrontProduct{
			ID:     id,
			GID:    n.ID,
			Title:  n.Title,
			Status: domain.ProductStatus(strings.ToLower(n.Status)),
			Vendor: n.Vendor,
		}
		for _, v := range n.Variants.Edges {
			if sku := strings.TrimSpace(v.Node.SKU); sku != "" {
				p.SKUs = append(p.SKUs, sku)
			}
		}
		page.Products = append(page.Products, p)
	}
	return page, nil
}
