package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/shopify"
	"github.com/kamranshah125/turum/internal/turum"
	"github.com/kamranshah125/turum/pkg/errors"
)

type fakeSupplier struct {
	mu               sync.Mutex
	products         map[string]*domain.SupplierProduct
	productErr       error
	feed             []domain.SupplierProduct
	reservationID    string
	reservationErr   error
	reservations     [][]turum.ReservationItem
	reservationState map[string]*turum.Reservation
	reservationErrs  map[string]error
	address          *turum.AccountAddress
	addressUpdates   []turum.AccountAddress
	updateAddressErr error
	getProductCalls  int
}

func newFakeSupplier() *fakeSupplier {
	return &fakeSupplier{
		products:         map[string]*domain.SupplierProduct{},
		reservationID:    "res-1",
		reservationState: map[string]*turum.Reservation{},
		reservationErrs:  map[string]error{},
	}
}

func (f *fakeSupplier) Login(context.Context) (string, error) { return "token", nil }

func (f *fakeSupplier) CreateReservation(_ context.Context, items []turum.ReservationItem) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations = append(f.reservations, items)
	if f.reservationErr != nil {
		return "", f.reservationErr
	}
	return f.reservationID, nil
}

func (f *fakeSupplier) GetReservation(_ context.Context, id string) (*turum.Reservation, error) {
	if err := f.reservationErrs[id]; err != nil {
		return nil, err
	}
	r, ok := f.reservationState[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s unknown", id)
	}
	return r, nil
}

func (f *fakeSupplier) GetProduct(_ context.Context, sku string) (*domain.SupplierProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getProductCalls++
	if f.productErr != nil {
		return nil, f.productErr
	}
	return f.products[sku], nil
}

func (f *fakeSupplier) GetProductsFullList(context.Context) ([]domain.SupplierProduct, error) {
	return f.feed, nil
}

func (f *fakeSupplier) GetAccountAddress(context.Context) (*turum.AccountAddress, error) {
	return f.address, nil
}

func (f *fakeSupplier) UpdateAddress(_ context.Context, addr turum.AccountAddress) error {
	f.addressUpdates = append(f.addressUpdates, addr)
	return f.updateAddressErr
}

type statusUpdate struct {
	productID int64
	status    domain.ProductStatus
}

type inventorySet struct {
	inventoryItemID int64
	locationID      int64
	quantity        int
}

type fakeStorefront struct {
	mu sync.Mutex

	metafields     map[int64]string
	metafieldErr   error
	variantsBySKU  map[string]*domain.StorefrontVariantRef
	productVariant map[int64][]domain.StorefrontVariant
	locations      []domain.Location
	locationCalls  int

	createErrs     []error
	createdPayload []shopify.RESTProduct
	nextProductID  int64

	bulkCalls      [][]shopify.ProductVariantsBulkInput
	bulkErr        error
	priceUpdates   map[int64]string
	priceErrs      map[int64]error
	inventoryCalls [][]shopify.InventoryQuantityInput
	inventoryErrs  func(call int, batch []shopify.InventoryQuantityInput) []shopify.UserError
	activations    []int64
	levelSets      []inventorySet

	statusUpdates []statusUpdate
	pages         []*ProductPage
	searchCreated bool // ListProducts searches created products instead of serving pages
	pageQueries   []string
	pageCursors   []string

	cancelled    []int64
	cancelReason string
	cancelErr    error
	fulfilled    map[int64]shopify.TrackingInfo
	fulfillErr   error
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{
		metafields:     map[int64]string{},
		variantsBySKU:  map[string]*domain.StorefrontVariantRef{},
		productVariant: map[int64][]domain.StorefrontVariant{},
		locations:      []domain.Location{{ID: 77, Name: "Warehouse", Active: true}},
		nextProductID:  500,
		priceUpdates:   map[int64]string{},
		priceErrs:      map[int64]error{},
		fulfilled:      map[int64]shopify.TrackingInfo{},
	}
}

func (f *fakeStorefront) FindVariantBySKU(_ context.Context, sku string) (*domain.StorefrontVariantRef, error) {
	return f.variantsBySKU[sku], nil
}

func (f *fakeStorefront) GetProductVariants(_ context.Context, productID int64) ([]domain.StorefrontVariant, error) {
	return f.productVariant[productID], nil
}

func (f *fakeStorefront) ListLocations(context.Context) ([]domain.Location, error) {
	f.locationCalls++
	return f.locations, nil
}

func (f *fakeStorefront) SetInventoryLevel(_ context.Context, inventoryItemID, locationID int64, quantity int) error {
	f.levelSets = append(f.levelSets, inventorySet{inventoryItemID, locationID, quantity})
	return nil
}

func (f *fakeStorefront) CreateProduct(_ context.Context, product shopify.RESTProduct) (*domain.StorefrontProduct, error) {
	f.createdPayload = append(f.createdPayload, product)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	id := f.nextProductID
	f.nextProductID++
	product.ID = id
	f.createdPayload[len(f.createdPayload)-1] = product
	created := &domain.StorefrontProduct{ID: id, Title: product.Title, Status: domain.ProductStatusActive, Vendor: product.Vendor}
	for i, v := range product.Variants {
		created.Variants = append(created.Variants, domain.StorefrontVariant{
			ID:              id*100 + int64(i),
			ProductID:       id,
			SKU:             v.SKU,
			Option1:         v.Option1,
			Title:           v.Option1,
			Price:           v.Price,
			InventoryItemID: id*1000 + int64(i),
		})
	}
	return created, nil
}

func (f *fakeStorefront) UpdateProductStatus(_ context.Context, productID int64, status domain.ProductStatus) error {
	f.statusUpdates = append(f.statusUpdates, statusUpdate{productID, status})
	return nil
}

func (f *fakeStorefront) UpdateVariantPrice(_ context.Context, variantID int64, price string) error {
	if err := f.priceErrs[variantID]; err != nil {
		return err
	}
	f.priceUpdates[variantID] = price
	return nil
}

func (f *fakeStorefront) BulkUpdateVariants(_ context.Context, _ int64, variants []shopify.ProductVariantsBulkInput) error {
	f.bulkCalls = append(f.bulkCalls, variants)
	return f.bulkErr
}

func (f *fakeStorefront) SetInventoryQuantities(_ context.Context, quantities []shopify.InventoryQuantityInput) ([]shopify.UserError, error) {
	f.inventoryCalls = append(f.inventoryCalls, quantities)
	if f.inventoryErrs != nil {
		return f.inventoryErrs(len(f.inventoryCalls)-1, quantities), nil
	}
	return nil, nil
}

func (f *fakeStorefront) ActivateInventory(_ context.Context, inventoryItemID, _ int64) error {
	f.activations = append(f.activations, inventoryItemID)
	return nil
}

func (f *fakeStorefront) GetVariantMetafield(_ context.Context, variantID int64, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metafieldErr != nil {
		return "", f.metafieldErr
	}
	return f.metafields[variantID], nil
}

func (f *fakeStorefront) SetVariantMetafield(_ context.Context, variantID int64, _, _, value string) error {
	f.metafields[variantID] = value
	return nil
}

func (f *fakeStorefront) CancelOrder(_ context.Context, orderID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	f.cancelReason = reason
	return f.cancelErr
}

func (f *fakeStorefront) FulfillOrder(_ context.Context, orderID int64, tracking shopify.TrackingInfo) error {
	if f.fulfillErr != nil {
		return f.fulfillErr
	}
	f.fulfilled[orderID] = tracking
	return nil
}

func (f *fakeStorefront) ListProducts(_ context.Context, query, after string, _, _ int) (*ProductPage, error) {
	f.pageQueries = append(f.pageQueries, query)
	f.pageCursors = append(f.pageCursors, after)
	if f.searchCreated {
		return f.searchCreatedProducts(query), nil
	}
	idx := len(f.pageCursors) - 1
	if idx >= len(f.pages) {
		return &ProductPage{}, nil
	}
	return f.pages[idx], nil
}

// searchCreatedProducts evaluates the tag and vendor terms of a product search against created
// products that were not drafted since
func (f *fakeStorefront) searchCreatedProducts(query string) *ProductPage {
	drafted := make(map[int64]bool)
	for _, u := range f.statusUpdates {
		drafted[u.productID] = u.status == domain.ProductStatusDraft
	}
	page := &ProductPage{}
	for _, p := range f.createdPayload {
		if p.ID == 0 || drafted[p.ID] {
			continue
		}
		tagged := p.Tags != "" && strings.Contains(query, "tag:'"+p.Tags+"'")
		vendored := strings.Contains(query, "vendor:'"+p.Vendor+"'")
		if !tagged && !vendored {
			continue
		}
		product := domain.StorefrontProduct{ID: p.ID, Title: p.Title, Status: domain.ProductStatusActive, Vendor: p.Vendor}
		if len(p.Variants) > 0 {
			product.SKUs = []string{p.Variants[0].SKU}
		}
		page.Products = append(page.Products, product)
	}
	return page
}

// fakeOrderRepo mirrors the claim and transition rules of the postgres repository
type fakeOrderRepo struct {
	mu          sync.Mutex
	nextID      int64
	rows        map[int64]*domain.IntegrationOrder // by shopify order id
	claimedAt   map[int64]time.Time                // by shopify order id
	reserveErrs []error                            // returned by successive MarkReserved calls
	reserveCtxs []context.Context
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, rows: map[int64]*domain.IntegrationOrder{}, claimedAt: map[int64]time.Time{}}
}

func (r *fakeOrderRepo) Claim(_ context.Context, shopifyOrderID int64, payload json.RawMessage, policy domain.ClaimPolicy) (*domain.IntegrationOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[shopifyOrderID]
	if !ok {
		row = &domain.IntegrationOrder{
			ID:             r.nextID,
			ShopifyOrderID: shopifyOrderID,
			Status:         domain.OrderStatusNew,
			RawPayload:     payload,
			Attempts:       1,
			CreatedAt:      time.Now(),
		}
		r.nextID++
		r.rows[shopifyOrderID] = row
		r.claimedAt[shopifyOrderID] = time.Now()
		cp := *row
		return &cp, nil
	}
	retryable := row.Status == domain.OrderStatusFailed && row.Attempts < policy.MaxAttempts
	abandoned := row.Status == domain.OrderStatusNew && row.SupplierReservationID == nil &&
		time.Since(r.claimedAt[shopifyOrderID]) > policy.Lease
	if !retryable && !abandoned {
		return nil, nil
	}
	row.Status = domain.OrderStatusNew
	row.Attempts++
	row.ErrorMessage = nil
	r.claimedAt[shopifyOrderID] = time.Now()
	cp := *row
	return &cp, nil
}

func (r *fakeOrderRepo) GetByShopifyOrderID(_ context.Context, shopifyOrderID int64) (*domain.IntegrationOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[shopifyOrderID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "integration_order", ID: fmt.Sprint(shopifyOrderID)}
	}
	cp := *row
	return &cp, nil
}

func (r *fakeOrderRepo) byID(id int64) *domain.IntegrationOrder {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *fakeOrderRepo) transition(id int64, from, to domain.OrderStatus, apply func(*domain.IntegrationOrder)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.byID(id)
	if row == nil || row.Status != from {
		return &errors.ErrInvalidStateTransition{From: from, To: to}
	}
	row.Status = to
	if apply != nil {
		apply(row)
	}
	return nil
}

func (r *fakeOrderRepo) MarkReserved(ctx context.Context, id int64, reservationID string) error {
	r.mu.Lock()
	r.reserveCtxs = append(r.reserveCtxs, ctx)
	var err error
	if len(r.reserveErrs) > 0 {
		err, r.reserveErrs = r.reserveErrs[0], r.reserveErrs[1:]
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.transition(id, domain.OrderStatusNew, domain.OrderStatusReserved, func(o *domain.IntegrationOrder) {
		o.SupplierReservationID = &reservationID
	})
}

func (r *fakeOrderRepo) MarkCancelled(_ context.Context, id int64, reason string) error {
	return r.transition(id, domain.OrderStatusNew, domain.OrderStatusCancelled, func(o *domain.IntegrationOrder) {
		o.ErrorMessage = &reason
	})
}

func (r *fakeOrderRepo) MarkFailed(_ context.Context, id int64, reason string) error {
	return r.transition(id, domain.OrderStatusNew, domain.OrderStatusFailed, func(o *domain.IntegrationOrder) {
		o.ErrorMessage = &reason
	})
}

func (r *fakeOrderRepo) MarkFulfilled(_ context.Context, id int64) error {
	return r.transition(id, domain.OrderStatusReserved, domain.OrderStatusFulfilled, nil)
}

func (r *fakeOrderRepo) UpdateSupplierStatus(_ context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.byID(id)
	if row == nil {
		return &errors.ErrNotFound{Resource: "integration_order"}
	}
	row.SupplierStatus = &status
	return nil
}

func (r *fakeOrderRepo) UpdateTracking(_ context.Context, id int64, carrier, trackingNumber, trackingURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.byID(id)
	if row == nil {
		return &errors.ErrNotFound{Resource: "integration_order"}
	}
	row.Carrier, row.TrackingNumber, row.TrackingURL = &carrier, &trackingNumber, &trackingURL
	return nil
}

func (r *fakeOrderRepo) ListOpenWithReservation(context.Context) ([]*domain.IntegrationOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.IntegrationOrder
	for id := int64(1); id < r.nextID; id++ {
		row := r.byID(id)
		if row != nil && row.Status.IsOpen() && row.SupplierReservationID != nil {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) List(context.Context, int, int) ([]*domain.IntegrationOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.IntegrationOrder, 0, len(r.rows))
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

// insert stores a row directly, bypassing Claim
func (r *fakeOrderRepo) insert(o domain.IntegrationOrder) *domain.IntegrationOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = r.nextID
	r.nextID++
	r.rows[o.ShopifyOrderID] = &o
	return &o
}

type fakeVariantMapRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.VariantMap
	err  error
}

func newFakeVariantMapRepo() *fakeVariantMapRepo {
	return &fakeVariantMapRepo{rows: map[string]*domain.VariantMap{}}
}

func (r *fakeVariantMapRepo) GetBySKUAndSize(_ context.Context, sku, size string) (*domain.VariantMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	m, ok := r.rows[sku+"|"+size]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "variant_map", ID: sku}
	}
	return m, nil
}

func (r *fakeVariantMapRepo) ListBySKU(_ context.Context, sku string) ([]*domain.VariantMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.VariantMap
	for _, m := range r.rows {
		if m.ShopifySKU == sku {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeVariantMapRepo) Upsert(_ context.Context, m *domain.VariantMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[m.ShopifySKU+"|"+m.ShopifySize] = m
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }
