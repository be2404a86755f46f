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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/pkg/extensions"
	"github.com/mohinranait/koholi/services/storefront/accounts"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/middleware"
	"github.com/mohinranait/koholi/services/storefront/store"
)

var userErrors = errorMessages{
	notFound:  "User not found",
	duplicate: "Phone number already exists",
}

// Revoker ends a session. *session.Manager satisfies it.
type Revoker interface {
	Revoke(ctx context.Context, info *extensions.AuthInfo) error
}

// =============================================================================
// Auth
// =============================================================================

// Login handles POST /api/auth/login.
func Login(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Phone) == "" {
			respondError(c, http.StatusBadRequest, "Phone number is required")
			return
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		res, err := svc.Login(c.Request.Context(), req)
		switch {
		case errors.Is(err, accounts.ErrInactive):
			respondError(c, http.StatusForbidden, "Account is inactive")
		case err != nil:
			slog.Error("login failed", "error", err, "request_id", middleware.GetRequestID(c))
			respondError(c, http.StatusInternalServerError, "Login failed")
		default:
			respondData(c, http.StatusOK, res)
		}
	}
}

// Me handles GET /api/auth/me.
func Me(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := middleware.GetAuthInfo(c)
		if info == nil {
			respondError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		u, err := svc.Me(c.Request.Context(), info.UserID)
		if errors.Is(err, accounts.ErrInactive) {
			respondError(c, http.StatusForbidden, "Account is inactive")
			return
		}
		if err != nil {
			respondStoreError(c, err, with(userErrors, "Failed to fetch user"))
			return
		}
		respondData(c, http.StatusOK, u.Session())
	}
}

// Logout handles POST /api/auth/logout. The token stays revoked until it
// would have expired.
func Logout(revoker Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := middleware.GetAuthInfo(c)
		if info == nil {
			respondError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if err := revoker.Revoke(c.Request.Context(), info); err != nil {
			slog.Error("logout failed", "error", err, "request_id", middleware.GetRequestID(c))
			respondError(c, http.StatusInternalServerError, "Logout failed")
			return
		}
		respondMessage(c, "Logged out successfully")
	}
}

// =============================================================================
// Users
// =============================================================================

// ListUsers handles GET /api/users?search&role&status.
func ListUsers(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := datatypes.UserFilter{
			Search: c.Query("search"),
			Role:   c.Query("role"),
			Status: c.Query("status"),
		}
		list, err := users.List(c.Request.Context(), f)
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch users"})
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

// CreateUser handles POST /api/users.
func CreateUser(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateUserRequest
		if !bindRequest(c, &req) {
			return
		}
		u := req.User()
		if err := users.Create(c.Request.Context(), u); err != nil {
			respondStoreError(c, err, with(userErrors, "Failed to create user"))
			return
		}
		respondData(c, http.StatusCreated, u)
	}
}

// UpdateUser handles PUT /api/users/:id. Omitted fields are unchanged.
func UpdateUser(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, userErrors.notFound)
		if !ok {
			return
		}
		var req datatypes.UpdateUserRequest
		if !bindRequest(c, &req) {
			return
		}
		ctx := c.Request.Context()
		u, err := users.Get(ctx, id)
		if err != nil {
			respondStoreError(c, err, with(userErrors, "Failed to update user"))
			return
		}
		req.Apply(u)
		if err := users.Update(ctx, u); err != nil {
			respondStoreError(c, err, with(userErrors, "Failed to update user"))
			return
		}
		respondData(c, http.StatusOK, u)
	}
}

// DeleteUser handles DELETE /api/users/:id.
func DeleteUser(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, userErrors.notFound)
		if !ok {
			return
		}
		if err := users.Delete(c.Request.Context(), id); err != nil {
			respondStoreError(c, err, with(userErrors, "Failed to delete user"))
			return
		}
		respondMessage(c, "User deleted successfully")
	}
}
