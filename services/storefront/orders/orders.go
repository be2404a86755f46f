// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orders implements order placement, the admin status workflow and
// the dashboard summary.
//
// # Placement
//
// The client sends only a product id and contact details. The product's
// name, image and price are copied onto the order at placement time so
// later catalog edits do not rewrite order history. The customer's phone is
// registered as a user if it has not been seen before.
//
// # Status Workflow
//
//	pending ──► confirmed ──► delivered
//	   │            │
//	   │            └───────► cancelled
//	   ├──────────────────────► delivered
//	   └──────────────────────► cancelled
//
// delivered and cancelled are terminal. Re-applying the current status is
// allowed so an admin can update only the message.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/mohinranait/koholi/services/storefront/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("koholi.orders")

var (
	// ErrProductUnavailable is returned when an order references a product
	// that does not exist or is inactive.
	ErrProductUnavailable = errors.New("product is not available")

	// ErrInvalidTransition is returned for a status change the workflow
	// does not allow.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Customers registers order phone numbers as users. *accounts.Service
// satisfies it.
type Customers interface {
	EnsureCustomer(ctx context.Context, phone string) (*datatypes.User, bool, error)
}

// Notifier is told about every placed order. *notify.OrderNotifier
// satisfies it. OrderPlaced must not block.
type Notifier interface {
	OrderPlaced(o datatypes.Order)
}

// Service coordinates order operations across the store.
type Service struct {
	store     store.Store
	customers Customers
	notifier  Notifier
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the placed-order notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. customers may be nil, in which case
// placement does not register users.
func NewService(st store.Store, customers Customers, opts ...Option) *Service {
	s := &Service{
		store:     st,
		customers: customers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Place creates a pending order. req must already be normalized and
// validated.
func (s *Service) Place(ctx context.Context, req datatypes.PlaceOrderRequest) (*datatypes.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Place",
		trace.WithAttributes(attribute.String("order.product_id", req.ProductID)))
	defer span.End()

	order, err := s.place(ctx, req)
	if err != nil {
		endWithError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID.Hex()))
	span.SetStatus(codes.Ok, "")
	return order, nil
}

func (s *Service) place(ctx context.Context, req datatypes.PlaceOrderRequest) (*datatypes.Order, error) {
	productID, err := datatypes.ParseID(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProductUnavailable, err)
	}
	product, err := s.store.Products().Get(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product.Status != datatypes.StatusActive {
		return nil, ErrProductUnavailable
	}

	if s.customers != nil {
		if _, _, err := s.customers.EnsureCustomer(ctx, req.Phone); err != nil {
			return nil, fmt.Errorf("register customer: %w", err)
		}
	}

	order := &datatypes.Order{
		ProductID:    product.ID,
		ProductName:  product.Name,
		ProductImg:   product.Image,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		Price:        product.Price,
		Status:       datatypes.OrderPending,
	}
	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.metrics.RecordOrderCreated()
	s.logger.Info("order placed",
		"order_id", order.ID.Hex(),
		"product_id", product.ID.Hex(),
		"price", order.Price,
	)
	if s.notifier != nil {
		s.notifier.OrderPlaced(*order)
	}
	return order, nil
}

// List returns orders newest first, each joined with a summary of its
// product when the product still exists.
func (s *Service) List(ctx context.Context, f datatypes.OrderFilter) ([]datatypes.OrderView, error) {
	list, err := s.store.Orders().List(ctx, f)
	if err != nil {
		return nil, err
	}

	products := make(map[string]*datatypes.ProductSummary)
	views := make([]datatypes.OrderView, 0, len(list))
	for _, o := range list {
		key := o.ProductID.Hex()
		summary, seen := products[key]
		if !seen {
			p, err := s.store.Products().Get(ctx, o.ProductID)
			switch {
			case err == nil:
				summary = p.Summary()
			case errors.Is(err, store.ErrNotFound):
				summary = nil
			default:
				return nil, fmt.Errorf("load product %s: %w", key, err)
			}
			products[key] = summary
		}
		views = append(views, datatypes.OrderView{Order: o, Product: summary})
	}
	return views, nil
}

// Update applies an admin status change and/or message. An empty Status
// keeps the current status; a non-nil AdminMessage replaces the message.
func (s *Service) Update(ctx context.Context, id string, req datatypes.UpdateOrderRequest) (*datatypes.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Update",
		trace.WithAttributes(
			attribute.String("order.id", id),
			attribute.String("order.status", string(req.Status)),
		))
	defer span.End()

	order, err := s.update(ctx, id, req)
	if err != nil {
		endWithError(span, err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return order, nil
}

func (s *Service) update(ctx context.Context, id string, req datatypes.UpdateOrderRequest) (*datatypes.Order, error) {
	oid, err := datatypes.ParseID(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	order, err := s.store.Orders().Get(ctx, oid)
	if err != nil {
		return nil, err
	}

	from, to := order.Status, order.Status
	if req.Status != "" {
		if !from.CanTransitionTo(req.Status) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, req.Status)
		}
		to = req.Status
	}

	// The write only lands if the status is still the one checked above.
	order, err = s.store.Orders().UpdateStatus(ctx, oid, from, to, req.AdminMessage)
	if errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("%w: order changed concurrently, no longer %s", ErrInvalidTransition, from)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderTransition(string(from), string(order.Status))
	if from != order.Status {
		s.logger.Info("order status changed",
			"order_id", order.ID.Hex(),
			"from", from,
			"to", order.Status,
		)
	}
	return order, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	oid, err := datatypes.ParseID(id)
	if err != nil {
		return store.ErrNotFound
	}
	return s.store.Orders().Delete(ctx, oid)
}

// Stats computes the dashboard summary. The counts run concurrently and the
// first failure cancels the rest.
func (s *Service) Stats(ctx context.Context) (*datatypes.DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "orders.Stats")
	defer span.End()

	var stats datatypes.DashboardStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.store.Products().Count(gctx)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		stats.TotalProducts = n
		return nil
	})
	g.Go(func() error {
		n, err := s.store.Categories().Count(gctx)
		if err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		stats.TotalCategories = n
		return nil
	})
	g.Go(func() error {
		n, err := s.store.Orders().Count(gctx)
		if err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		stats.TotalOrders = n
		return nil
	})
	g.Go(func() error {
		byStatus, err := s.store.Orders().CountByStatus(gctx)
		if err != nil {
			return fmt.Errorf("count orders by status: %w", err)
		}
		stats.OrdersByStatus = byStatus
		return nil
	})
	g.Go(func() error {
		revenue, err := s.store.Orders().Revenue(gctx)
		if err != nil {
			return fmt.Errorf("sum revenue: %w", err)
		}
		stats.Revenue = revenue
		return nil
	})

	if err := g.Wait(); err != nil {
		endWithError(span, err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return &stats, nil
}

func endWithError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
