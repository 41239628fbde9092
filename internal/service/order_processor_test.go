package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamranshah125/turum/internal/config"
	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/internal/turum"
	"github.com/kamranshah125/turum/pkg/errors"
	"github.com/kamranshah125/turum/pkg/retry"
)

type processorFixture struct {
	storefront *fakeStorefront
	supplier   *fakeSupplier
	orders     *fakeOrderRepo
	maps       *fakeVariantMapRepo
	processor  *OrderProcessor
}

func newProcessorFixture(maxAttempts int) *processorFixture {
	f := &processorFixture{
		storefront: newFakeStorefront(),
		supplier:   newFakeSupplier(),
		orders:     newFakeOrderRepo(),
		maps:       newFakeVariantMapRepo(),
	}
	f.processor = NewOrderProcessor(OrderProcessorDeps{
		Orders:     f.orders,
		Storefront: f.storefront,
		Supplier:   f.supplier,
		Resolver:   NewVariantResolver(f.storefront, f.supplier, f.maps, nil),
		Stock:      NewStockValidator(f.supplier),
		Address:    NewAddressPropagator(f.supplier, config.TurumConfig{DefaultCountry: "NL", DefaultPhone: "+310000000"}, nil),
	}, OrderPolicy{
		MaxAttempts: maxAttempts,
		ClaimLease:  time.Hour,
		Persist:     retry.Policy{Attempts: 3, Wait: time.Millisecond},
	}, nil)
	return f
}

func twoItemOrder() *domain.ShopifyOrder {
	return &domain.ShopifyOrder{
		ID:   1001,
		Name: "#1001",
		LineItems: []domain.LineItem{
			{ID: 1, SKU: "SKU-A", VariantID: int64Ptr(11), VariantTitle: "42", Quantity: 1},
			{ID: 2, SKU: "SKU-B", VariantID: int64Ptr(22), VariantTitle: "43", Quantity: 2},
		},
		ShippingAddress: &domain.ShippingAddress{
			FirstName: "Jan", LastName: "Jansen", Address1: "Damrak 1", City: "Amsterdam", Zip: "1012", CountryCode: "NL",
		},
	}
}

func payloadOf(t *testing.T, order *domain.ShopifyOrder) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(order)
	require.NoError(t, err)
	return b
}

func TestOrderProcessor_ReservesWithFastPathAndNameMatch(t *testing.T) {
	f := newProcessorFixture(1)
	f.storefront.metafields[11] = "a-42"
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 5))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-42", "42", 5), variant("b-43", "43", 5))

	order := twoItemOrder()
	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.OrderStatusReserved, record.Status)
	require.NotNil(t, record.SupplierReservationID)
	assert.Equal(t, "res-1", *record.SupplierReservationID)

	require.Len(t, f.supplier.reservations, 1)
	assert.Equal(t, []turum.ReservationItem{
		{VariantID: "a-42", Quantity: 1},
		{VariantID: "b-43", Quantity: 2},
	}, f.supplier.reservations[0])

	stored, err := f.orders.GetByShopifyOrderID(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReserved, stored.Status)
	assert.Empty(t, f.storefront.cancelled)

	require.Len(t, f.supplier.addressUpdates, 1)
	shipping := f.supplier.addressUpdates[0].Shipping
	assert.Equal(t, "Jan Jansen", shipping.Name)
	assert.Equal(t, "NL", shipping.Country)
	assert.Equal(t, "+310000000", shipping.PhoneNumber)
}

func TestOrderProcessor_DuplicateDeliveriesReserveOnce(t *testing.T) {
	f := newProcessorFixture(1)
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 5))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 5))
	order := twoItemOrder()
	payload := payloadOf(t, order)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.processor.Process(context.Background(), order, payload)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := f.processor.Process(context.Background(), order, payload)
	require.NoError(t, err)

	assert.Len(t, f.orders.rows, 1)
	assert.Len(t, f.supplier.reservations, 1)
}

func TestOrderProcessor_CancelsOnInsufficientStock(t *testing.T) {
	f := newProcessorFixture(1)
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 0))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 1))

	order := twoItemOrder()
	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, record.Status)
	assert.Empty(t, f.supplier.reservations, "no reservation may be made for a short order")
	assert.Equal(t, []int64{1001}, f.storefront.cancelled)
	assert.Equal(t, CancelReasonInventoryShortage, f.storefront.cancelReason)

	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t,
		"Insufficient Stock for SKU SKU-A (Variant a-42). Requested: 1, Available: 0, "+
			"Insufficient Stock for SKU SKU-B (Variant b-43). Requested: 2, Available: 1",
		*record.ErrorMessage)

	// a redelivery of a cancelled order is a no-op
	again, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, f.storefront.cancelled, 1)
}

func TestOrderProcessor_CollectsEveryLineItemFailure(t *testing.T) {
	f := newProcessorFixture(1)
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 5))
	order := twoItemOrder()
	order.LineItems = append(order.LineItems, domain.LineItem{ID: 3, Quantity: 1})

	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, record.Status)
	assert.Equal(t,
		"No matching Turum Variant found for SKU SKU-A / Size '42', Item 3 has no SKU.",
		*record.ErrorMessage)
}

func TestOrderProcessor_CancellationCallFailureStillCancels(t *testing.T) {
	f := newProcessorFixture(1)
	f.storefront.cancelErr = fmt.Errorf("storefront down")
	order := twoItemOrder()

	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, record.Status)
}

func TestOrderProcessor_ReservationFailureMarksFailedAndAllowsRetry(t *testing.T) {
	f := newProcessorFixture(2)
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 5))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 5))
	f.supplier.reservationErr = fmt.Errorf("no reservation ID returned from Turum")
	order := twoItemOrder()

	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, record.Status)
	assert.Contains(t, *record.ErrorMessage, "no reservation ID returned")

	f.supplier.reservationErr = nil
	record, err = f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.OrderStatusReserved, record.Status)
	assert.Equal(t, 2, record.Attempts)

	// attempts exhausted: nothing left to do
	again, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, f.supplier.reservations, 2)
}

func TestOrderProcessor_RecordsReservationAfterTransientWriteFailure(t *testing.T) {
	f := newProcessorFixture(3)
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 5))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 5))
	f.orders.reserveErrs = []error{fmt.Errorf("db connection reset")}
	order := twoItemOrder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	record, err := f.processor.Process(ctx, order, payloadOf(t, order))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.OrderStatusReserved, record.Status)
	assert.Len(t, f.supplier.reservations, 1)

	require.Len(t, f.orders.reserveCtxs, 2)
	for _, c := range f.orders.reserveCtxs {
		assert.Nil(t, c.Done(), "the reservation write must not be cancellable by the worker context")
	}

	stored, err := f.orders.GetByShopifyOrderID(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReserved, stored.Status)
	require.NotNil(t, stored.SupplierReservationID)
	assert.Equal(t, "res-1", *stored.SupplierReservationID)

	open, err := f.orders.ListOpenWithReservation(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestOrderProcessor_ConflictingReservationIsNotRetried(t *testing.T) {
	f := newProcessorFixture(1)
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 5))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 5))
	f.orders.reserveErrs = []error{&errors.ErrConflict{Message: "reservation res-1 already recorded"}}
	order := twoItemOrder()

	_, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Contains(t, err.Error(), "res-1")
	assert.Len(t, f.orders.reserveCtxs, 1)
}

func TestOrderProcessor_TakesOverAbandonedClaim(t *testing.T) {
	f := newProcessorFixture(1)
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 5))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 5))
	dbDown := fmt.Errorf("db connection reset")
	f.orders.reserveErrs = []error{dbDown, dbDown, dbDown}
	order := twoItemOrder()

	_, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.Error(t, err)
	stored, err := f.orders.GetByShopifyOrderID(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, stored.Status)
	assert.Nil(t, stored.SupplierReservationID)

	// inside the lease a redelivery leaves the claim alone
	again, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Nil(t, again)

	f.orders.claimedAt[1001] = time.Now().Add(-2 * time.Hour)
	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.OrderStatusReserved, record.Status)
	assert.Equal(t, 2, record.Attempts)
	assert.Len(t, f.supplier.reservations, 2)
}

func TestNewOrderProcessor_PolicyDefaults(t *testing.T) {
	p := NewOrderProcessor(OrderProcessorDeps{}, OrderPolicy{}, nil)
	assert.Equal(t, 1, p.policy.MaxAttempts)
	assert.Equal(t, domain.DefaultClaimLease, p.policy.ClaimLease)
	assert.Equal(t, retry.DefaultPolicy, p.policy.Persist)
}

func TestOrderProcessor_RemoteLookupFailureMarksFailed(t *testing.T) {
	f := newProcessorFixture(1)
	f.supplier.productErr = &errors.ErrRemote{Service: "turum", StatusCode: 502, Body: "bad gateway"}
	order := twoItemOrder()

	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, record.Status)
	assert.Empty(t, f.storefront.cancelled, "a supplier outage must not cancel the customer order")
}

func TestOrderProcessor_AddressFailureDoesNotBlockReservation(t *testing.T) {
	f := newProcessorFixture(1)
	f.supplier.products["SKU-A"] = sneaker("SKU-A", variant("a-42", "42", 5))
	f.supplier.products["SKU-B"] = sneaker("SKU-B", variant("b-43", "43", 5))
	f.supplier.updateAddressErr = fmt.Errorf("address endpoint down")
	order := twoItemOrder()

	record, err := f.processor.Process(context.Background(), order, payloadOf(t, order))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReserved, record.Status)
	assert.Nil(t, record.ErrorMessage)
}

func TestAddressPropagator_KeepsBillingIdentity(t *testing.T) {
	supplier := newFakeSupplier()
	supplier.address = &turum.AccountAddress{Billing: &turum.BillingAddress{CompanyName: "Acme B.V.", VATID: "NL123"}}
	p := NewAddressPropagator(supplier, config.TurumConfig{DefaultCountry: "NL", BillingCompany: "Fallback"}, nil)

	res := p.Propagate(context.Background(), &domain.ShopifyOrder{ID: 1, ShippingAddress: &domain.ShippingAddress{
		FirstName: "Ana", Address1: "Calle 1", Address2: "2B", City: "Madrid", Zip: "28001", Country: "Spain", Province: "Madrid", Phone: "+34111",
	}})
	require.NoError(t, res.Err)
	assert.True(t, res.Attempted)

	require.Len(t, supplier.addressUpdates, 1)
	got := supplier.addressUpdates[0]
	assert.Equal(t, "Acme B.V.", got.Billing.CompanyName)
	assert.Equal(t, "NL123", got.Billing.VATID)
	assert.Equal(t, "Spain", got.Billing.Country)
	assert.Equal(t, "Ana", got.Shipping.Name)
	assert.Equal(t, "2B", got.Shipping.Street2)
	assert.Equal(t, "Madrid", got.Shipping.State)
	assert.Equal(t, "+34111", got.Shipping.PhoneNumber)

	assert.False(t, p.Propagate(context.Background(), &domain.ShopifyOrder{ID: 2}).Attempted)
}
