package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/repository"
	apperrors "github.com/kamranshah125/turum/pkg/errors"
)

type fakeSupplier struct {
	token    string
	loginErr error
	products map[string]*domain.SupplierProduct
	feed     []domain.SupplierProduct
}

func (f *fakeSupplier) Login(context.Context) (string, error) { return f.token, f.loginErr }

func (f *fakeSupplier) GetProduct(_ context.Context, sku string) (*domain.SupplierProduct, error) {
	return f.products[sku], nil
}

func (f *fakeSupplier) GetProductsFullList(context.Context) ([]domain.SupplierProduct, error) {
	return f.feed, nil
}

type fakeOrders struct {
	repository.IntegrationOrderRepository
	rows          []*domain.IntegrationOrder
	limit, offset int
}

func (f *fakeOrders) List(_ context.Context, limit, offset int) ([]*domain.IntegrationOrder, error) {
	f.limit, f.offset = limit, offset
	return f.rows, nil
}

type fakeVariantMaps struct {
	repository.VariantMapRepository
	maps []*domain.VariantMap
	err  error
}

func (f *fakeVariantMaps) ListBySKU(context.Context, string) ([]*domain.VariantMap, error) {
	return f.maps, f.err
}

func serve(method, target, route string, h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, route, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHandleTurumAuth(t *testing.T) {
	w := serve(http.MethodGet, "/a", "/a", HandleTurumAuth(&fakeSupplier{token: "abcdefghijkl"}, zap.NewNop()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","token_preview":"abcdefgh..."}`, w.Body.String())

	w = serve(http.MethodGet, "/a", "/a", HandleTurumAuth(&fakeSupplier{loginErr: errors.New("turum login failed: connection refused")}, zap.NewNop()))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)

	w = serve(http.MethodGet, "/a", "/a", HandleTurumAuth(&fakeSupplier{
		loginErr: &apperrors.ErrUnauthorized{Message: "turum login rejected the configured credentials (status 401)"},
	}, zap.NewNop()))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"credentials_rejected"`)
}

func TestHandleTurumProduct(t *testing.T) {
	supplier := &fakeSupplier{products: map[string]*domain.SupplierProduct{"ABC": {SKU: "ABC", Name: "Runner"}}}

	w := serve(http.MethodGet, "/p/ABC", "/p/:sku", HandleTurumProduct(supplier, zap.NewNop()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Runner")

	w = serve(http.MethodGet, "/p/NOPE", "/p/:sku", HandleTurumProduct(supplier, zap.NewNop()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleTurumCatalog(t *testing.T) {
	supplier := &fakeSupplier{feed: []domain.SupplierProduct{{SKU: "A"}, {SKU: "B"}}}
	w := serve(http.MethodGet, "/all", "/all", HandleTurumCatalog(supplier, zap.NewNop()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestHandleListReservations(t *testing.T) {
	reservation := "res-1"
	orders := &fakeOrders{rows: []*domain.IntegrationOrder{{
		ID: 1, ShopifyOrderID: 1001, Status: domain.OrderStatusReserved,
		SupplierReservationID: &reservation, Attempts: 1,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}}

	w := serve(http.MethodGet, "/r?limit=9999&offset=-3", "/r", HandleListReservations(orders, zap.NewNop()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, orders.limit)
	assert.Equal(t, 0, orders.offset)
	assert.Contains(t, w.Body.String(), `"supplier_reservation_id":"res-1"`)
	assert.Contains(t, w.Body.String(), `"status":"reserved"`)
	assert.Contains(t, w.Body.String(), `"created_at":"2026-01-02T03:04:05Z"`)

	serve(http.MethodGet, "/r?limit=10&offset=20", "/r", HandleListReservations(orders, zap.NewNop()))
	assert.Equal(t, 10, orders.limit)
	assert.Equal(t, 20, orders.offset)
}

func TestHandleVariantMapping(t *testing.T) {
	maps := &fakeVariantMaps{maps: []*domain.VariantMap{{ShopifySKU: "ABC", ShopifySize: "42", SupplierVariantID: "v-42"}}}
	w := serve(http.MethodGet, "/m/ABC", "/m/:sku", HandleVariantMapping(maps, zap.NewNop()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"supplier_variant_id":"v-42"`)

	w = serve(http.MethodGet, "/m/XYZ", "/m/:sku", HandleVariantMapping(&fakeVariantMaps{}, zap.NewNop()))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(http.MethodGet, "/m/XYZ", "/m/:sku", HandleVariantMapping(&fakeVariantMaps{err: errors.New("db down")}, zap.NewNop()))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
