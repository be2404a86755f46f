// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/mohinranait/koholi/services/storefront/store/badgerstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordingNotifier struct {
	mu     sync.Mutex
	orders []datatypes.Order
}

func (n *recordingNotifier) OrderPlaced(o datatypes.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
}

type recordingCustomers struct {
	phones []string
}

func (c *recordingCustomers) EnsureCustomer(_ context.Context, phone string) (*datatypes.User, bool, error) {
	c.phones = append(c.phones, phone)
	return datatypes.NewPhoneUser(phone), true, nil
}

type fixture struct {
	svc       *Service
	store     *badgerstore.Store
	notifier  *recordingNotifier
	customers *recordingCustomers
	metrics   *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		store:     st,
		notifier:  &recordingNotifier{},
		customers: &recordingCustomers{},
		metrics:   observability.NewMetrics(prometheus.NewRegistry()),
	}
	f.svc = NewService(st, f.customers, WithNotifier(f.notifier), WithMetrics(f.metrics))
	return f
}

func (f *fixture) product(t *testing.T, slug string, price float64, status datatypes.Status) *datatypes.Product {
	t.Helper()
	p := &datatypes.Product{Name: slug, Slug: slug, Price: price, Image: "https://img/" + slug, Category: "sarees", Status: status}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func placeReq(productID string) datatypes.PlaceOrderRequest {
	req := datatypes.PlaceOrderRequest{ProductID: productID, Phone: "01712345678"}
	req.Normalize()
	return req
}

// =============================================================================
// Place
// =============================================================================

func TestPlace_SnapshotsProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "silk-saree", 2500, datatypes.StatusActive)

	o, err := f.svc.Place(ctx, placeReq(p.ID.Hex()))
	require.NoError(t, err)
	assert.Equal(t, p.ID, o.ProductID)
	assert.Equal(t, "silk-saree", o.ProductName)
	assert.Equal(t, p.Image, o.ProductImg)
	assert.Equal(t, 2500.0, o.Price)
	assert.Equal(t, datatypes.OrderPending, o.Status)
	assert.Equal(t, datatypes.DefaultCustomerName, o.CustomerName)
	assert.Equal(t, datatypes.DefaultOrderAddress, o.Address)

	// Later price changes do not rewrite the order.
	p.Price = 9999
	require.NoError(t, f.store.Products().Update(ctx, p))
	stored, err := f.store.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, stored.Price)

	assert.Equal(t, []string{"01712345678"}, f.customers.phones)
	require.Len(t, f.notifier.orders, 1)
	assert.Equal(t, o.ID, f.notifier.orders[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrdersCreatedTotal))
}

func TestPlace_UnavailableProduct(t *testing.T) {
	f := newFixture(t)
	inactive := f.product(t, "retired", 100, datatypes.StatusInactive)

	cases := map[string]string{
		"missing":   datatypes.NewID().Hex(),
		"inactive":  inactive.ID.Hex(),
		"malformed": "xyz",
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Place(context.Background(), datatypes.PlaceOrderRequest{ProductID: id, Phone: "01712345678"})
			assert.ErrorIs(t, err, ErrProductUnavailable)
		})
	}
	assert.Empty(t, f.notifier.orders)
}

// =============================================================================
// List
// =============================================================================

func TestList_JoinsProductSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := f.product(t, "kept", 100, datatypes.StatusActive)
	gone := f.product(t, "gone", 200, datatypes.StatusActive)

	_, err := f.svc.Place(ctx, placeReq(kept.ID.Hex()))
	require.NoError(t, err)
	_, err = f.svc.Place(ctx, placeReq(gone.ID.Hex()))
	require.NoError(t, err)
	require.NoError(t, f.store.Products().Delete(ctx, gone.ID))

	views, err := f.svc.List(ctx, datatypes.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, views, 2)

	byName := map[string]datatypes.OrderView{}
	for _, v := range views {
		byName[v.ProductName] = v
	}
	require.NotNil(t, byName["kept"].Product)
	assert.Equal(t, 100.0, byName["kept"].Product.Price)
	assert.Nil(t, byName["gone"].Product)
}

func TestList_Empty(t *testing.T) {
	f := newFixture(t)
	views, err := f.svc.List(context.Background(), datatypes.OrderFilter{Phone: "01999999999"})
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

// =============================================================================
// Update
// =============================================================================

func strPtr(s string) *string { return &s }

func TestUpdate_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "p", 100, datatypes.StatusActive)

	o, err := f.svc.Place(ctx, placeReq(p.ID.Hex()))
	require.NoError(t, err)
	id := o.ID.Hex()

	o, err = f.svc.Update(ctx, id, datatypes.UpdateOrderRequest{Status: datatypes.OrderConfirmed, AdminMessage: strPtr("Packed")})
	require.NoError(t, err)
	assert.Equal(t, datatypes.OrderConfirmed, o.Status)
	assert.Equal(t, "Packed", o.AdminMessage)

	// Message only.
	o, err = f.svc.Update(ctx, id, datatypes.UpdateOrderRequest{AdminMessage: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, datatypes.OrderConfirmed, o.Status)
	assert.Empty(t, o.AdminMessage)

	// Same status is allowed.
	_, err = f.svc.Update(ctx, id, datatypes.UpdateOrderRequest{Status: datatypes.OrderConfirmed})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, id, datatypes.UpdateOrderRequest{Status: datatypes.OrderPending})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	o, err = f.svc.Update(ctx, id, datatypes.UpdateOrderRequest{Status: datatypes.OrderDelivered})
	require.NoError(t, err)
	assert.Equal(t, datatypes.OrderDelivered, o.Status)

	_, err = f.svc.Update(ctx, id, datatypes.UpdateOrderRequest{Status: datatypes.OrderCancelled})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderTransitionsTotal.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderTransitionsTotal.WithLabelValues("confirmed", "delivered")))
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(context.Background(), datatypes.NewID().Hex(), datatypes.UpdateOrderRequest{})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Update(context.Background(), "bad", datatypes.UpdateOrderRequest{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// gatedOrders holds each Get until every expected reader has loaded the
// order, so concurrent updates all start from the same snapshot.
type gatedOrders struct {
	store.Orders
	readers sync.WaitGroup
}

func (g *gatedOrders) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Order, error) {
	o, err := g.Orders.Get(ctx, id)
	g.readers.Done()
	g.readers.Wait()
	return o, err
}

type gatedStore struct {
	store.Store
	orders *gatedOrders
}

func (s *gatedStore) Orders() store.Orders { return s.orders }

func TestUpdate_ConcurrentTerminalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "p", 100, datatypes.StatusActive)
	o, err := f.svc.Place(ctx, placeReq(p.ID.Hex()))
	require.NoError(t, err)

	gated := &gatedStore{Store: f.store, orders: &gatedOrders{Orders: f.store.Orders()}}
	gated.orders.readers.Add(2)
	svc := NewService(gated, nil)

	targets := []datatypes.OrderStatus{datatypes.OrderCancelled, datatypes.OrderDelivered}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Update(ctx, o.ID.Hex(), datatypes.UpdateOrderRequest{Status: to})
		}()
	}
	wg.Wait()

	var winner datatypes.OrderStatus
	failures := 0
	for i, err := range errs {
		if err == nil {
			winner = targets[i]
			continue
		}
		failures++
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	require.Equal(t, 1, failures, "exactly one update must lose")

	stored, err := f.store.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, stored.Status)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "p", 100, datatypes.StatusActive)
	o, err := f.svc.Place(ctx, placeReq(p.ID.Hex()))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, o.ID.Hex()))
	assert.ErrorIs(t, f.svc.Delete(ctx, o.ID.Hex()), store.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, "bad"), store.ErrNotFound)
}

// =============================================================================
// Stats
// =============================================================================

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Categories().Create(ctx, &datatypes.Category{Name: "Sarees", Slug: "sarees", Status: datatypes.StatusActive}))
	a := f.product(t, "a", 100, datatypes.StatusActive)
	b := f.product(t, "b", 250, datatypes.StatusActive)

	oa, err := f.svc.Place(ctx, placeReq(a.ID.Hex()))
	require.NoError(t, err)
	ob, err := f.svc.Place(ctx, placeReq(b.ID.Hex()))
	require.NoError(t, err)
	_, err = f.svc.Place(ctx, placeReq(b.ID.Hex()))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, oa.ID.Hex(), datatypes.UpdateOrderRequest{Status: datatypes.OrderDelivered})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, ob.ID.Hex(), datatypes.UpdateOrderRequest{Status: datatypes.OrderDelivered})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalProducts)
	assert.EqualValues(t, 1, stats.TotalCategories)
	assert.EqualValues(t, 3, stats.TotalOrders)
	assert.EqualValues(t, 2, stats.OrdersByStatus[datatypes.OrderDelivered])
	assert.EqualValues(t, 1, stats.OrdersByStatus[datatypes.OrderPending])
	assert.EqualValues(t, 0, stats.OrdersByStatus[datatypes.OrderCancelled])
	assert.Equal(t, 350.0, stats.Revenue)
}

func TestStats_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Stats(ctx)
	assert.Error(t, err)
}

// =============================================================================
// Tracing
// =============================================================================

func TestPlace_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	f := newFixture(t)
	p := f.product(t, "jamdani", 1500, datatypes.StatusActive)

	_, err := f.svc.Place(context.Background(), placeReq(p.ID.Hex()))
	require.NoError(t, err)
	_, err = f.svc.Place(context.Background(), placeReq("000000000000000000000000"))
	require.ErrorIs(t, err, ErrProductUnavailable)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "orders.Place", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Len(t, spans[1].Events(), 1, "error recorded as event")
}
