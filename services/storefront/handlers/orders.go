// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/middleware"
	"github.com/mohinranait/koholi/services/storefront/orders"
)

var orderErrors = errorMessages{notFound: "Order not found"}

// PlaceOrder handles POST /api/orders.
func PlaceOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PlaceOrderRequest
		if !bindRequest(c, &req) {
			return
		}
		order, err := svc.Place(c.Request.Context(), req)
		if errors.Is(err, orders.ErrProductUnavailable) {
			respondError(c, http.StatusBadRequest, "Product is not available")
			return
		}
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to create order"})
			return
		}
		respondData(c, http.StatusCreated, order)
	}
}

// ListOrders handles GET /api/orders?search&status&phone. Admins see every
// order; customers only see orders placed with their own phone.
func ListOrders(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := datatypes.OrderFilter{
			Search: c.Query("search"),
			Status: c.Query("status"),
			Phone:  c.Query("phone"),
		}
		info := middleware.GetAuthInfo(c)
		if info == nil {
			respondError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !info.IsAdmin() {
			f.Phone = info.Phone
		}
		views, err := svc.List(c.Request.Context(), f)
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch orders"})
			return
		}
		respondData(c, http.StatusOK, views)
	}
}

// UpdateOrder handles PUT /api/orders/:id.
func UpdateOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateOrderRequest
		if !bindRequest(c, &req) {
			return
		}
		order, err := svc.Update(c.Request.Context(), c.Param("id"), req)
		if errors.Is(err, orders.ErrInvalidTransition) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			respondStoreError(c, err, with(orderErrors, "Failed to update order"))
			return
		}
		respondData(c, http.StatusOK, order)
	}
}

// DeleteOrder handles DELETE /api/orders/:id.
func DeleteOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondStoreError(c, err, with(orderErrors, "Failed to delete order"))
			return
		}
		respondMessage(c, "Order deleted successfully")
	}
}

// DashboardStats handles GET /api/dashboard/stats.
func DashboardStats(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch dashboard stats"})
			return
		}
		respondData(c, http.StatusOK, stats)
	}
}
