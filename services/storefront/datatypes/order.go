// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is an order's fulfilment state.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status in display order.
var OrderStatuses = []OrderStatus{OrderPending, OrderConfirmed, OrderDelivered, OrderCancelled}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled, OrderDelivered},
	OrderConfirmed: {OrderDelivered, OrderCancelled},
}

// CanTransitionTo reports whether an order may move from s to next.
// Re-applying the current status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

const (
	DefaultCustomerName = "Not provided"
	DefaultOrderAddress = "No address"
)

// Order is a single-product purchase request. Product name, image and price
// are snapshotted when the order is placed.
type Order struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	ProductID    primitive.ObjectID `json:"productId" bson:"productId"`
	ProductName  string             `json:"productName" bson:"productName"`
	ProductImg   string             `json:"productImg" bson:"productImg"`
	CustomerName string             `json:"customerName" bson:"customerName"`
	Phone        string             `json:"phone" bson:"phone"`
	Address      string             `json:"address" bson:"address"`
	Price        float64            `json:"price" bson:"price"`
	Status       OrderStatus        `json:"status" bson:"status"`
	AdminMessage string             `json:"adminMessage" bson:"adminMessage"`
	Timestamps   `bson:",inline"`
}

// OrderView is an order as returned by GET /api/orders.
type OrderView struct {
	Order
	Product *ProductSummary `json:"product,omitempty"`
}

// PlaceOrderRequest is the body of POST /api/orders.
type PlaceOrderRequest struct {
	ProductID    string `json:"productId" validate:"required,mongodb"`
	CustomerName string `json:"customerName" validate:"max=100"`
	Phone        string `json:"phone" validate:"required,bdphone"`
	Address      string `json:"address" validate:"max=300"`
}

// Normalize trims input, canonicalises the phone number and fills in the
// customer name and address defaults.
func (r *PlaceOrderRequest) Normalize() {
	r.ProductID = strings.TrimSpace(r.ProductID)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.Address = strings.TrimSpace(r.Address)
	r.Phone = normalizePhone(r.Phone)
	if r.CustomerName == "" {
		r.CustomerName = DefaultCustomerName
	}
	if r.Address == "" {
		r.Address = DefaultOrderAddress
	}
}

// Validate checks the normalized request.
func (r *PlaceOrderRequest) Validate() error {
	return validateStruct(r)
}

// UpdateOrderRequest is the body of PUT /api/orders/:id. An empty Status
// leaves the status unchanged; a non-nil AdminMessage replaces the message.
type UpdateOrderRequest struct {
	Status       OrderStatus `json:"status" validate:"omitempty,oneof=pending confirmed delivered cancelled"`
	AdminMessage *string     `json:"adminMessage" validate:"omitempty,max=1000"`
}

// Validate checks the request.
func (r *UpdateOrderRequest) Validate() error {
	return validateStruct(r)
}

// OrderFilter selects orders for listing.
type OrderFilter struct {
	// Search matches customer name, product name or phone.
	Search string
	Status string
	// Phone restricts results to a single customer.
	Phone string
}

// Matches reports whether o passes the filter.
func (f OrderFilter) Matches(o *Order) bool {
	if !matchEnum(f.Status, string(o.Status)) {
		return false
	}
	if f.Phone != "" && o.Phone != f.Phone {
		return false
	}
	if f.Search != "" &&
		!containsFold(o.CustomerName, f.Search) &&
		!containsFold(o.ProductName, f.Search) &&
		!containsFold(o.Phone, f.Search) {
		return false
	}
	return true
}

// DashboardStats is the admin overview returned by GET /api/dashboard/stats.
type DashboardStats struct {
	TotalProducts   int64                 `json:"totalProducts"`
	TotalCategories int64                 `json:"totalCategories"`
	TotalOrders     int64                 `json:"totalOrders"`
	OrdersByStatus  map[OrderStatus]int64 `json:"ordersByStatus"`
	// Revenue is the sum of delivered order prices.
	Revenue float64 `json:"revenue"`
}
