// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware for the storefront API.
//
// # Authentication Flow
//
// Authenticate runs on every /api route. It extracts a bearer token from
// the Authorization header, validates it with the configured AuthProvider
// and, on success, stores the AuthInfo in the gin context. Requests without
// a valid token continue anonymously; RequireSession and RequireRole turn
// that into 401 or 403 on the routes that need it.
//
//	Request
//	   │
//	   ▼
//	Authenticate ──► provider.Validate(ctx, token) ──► SetAuthInfo
//	   │
//	   ▼
//	RequireCurrentRole("admin")   (admin routes only)
//	   │
//	   ▼
//	Handler (retrieves via GetAuthInfo)
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/pkg/extensions"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the gin context key for the caller's AuthInfo.
const authInfoKey = "koholi_auth_info"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated caller in the gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the authenticated caller, or nil for anonymous
// requests.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// Authenticate creates a middleware that resolves the caller's session.
//
// # Description
//
// Validates the bearer token (possibly empty) with provider. A valid token
// attaches AuthInfo to the context. An invalid, expired or revoked token
// leaves the request anonymous so that public routes keep working for
// clients holding a stale token. Provider failures other than
// extensions.ErrUnauthorized are logged at warn level.
//
// # Inputs
//
//   - provider: Validates tokens. Must not be nil.
//   - logger: Receives provider failures. Nil uses slog.Default().
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware that never aborts.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func Authenticate(provider extensions.AuthProvider, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		switch {
		case err == nil && authInfo != nil:
			SetAuthInfo(c, authInfo)
		case err != nil && !errors.Is(err, extensions.ErrUnauthorized):
			logger.Warn("session validation failed",
				"error", err,
				"path", c.Request.URL.Path,
				"request_id", GetRequestID(c))
		}
		c.Next()
	}
}

// RequireSession aborts with 401 unless the request carries a valid session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetAuthInfo(c) == nil {
			abortJSON(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		c.Next()
	}
}

// RequireRole aborts with 401 for anonymous requests and 403 when the
// caller does not hold role. Only the session claim is consulted; use
// RequireCurrentRole to also check the user record.
//
// # Examples
//
//	admin := api.Group("", middleware.RequireRole(extensions.RoleAdmin))
//	admin.POST("/categories", handlers.CreateCategory(st))
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := checkClaim(c, role); !ok {
			return
		}
		c.Next()
	}
}

// RoleSource reports a user's role as currently stored. active is false
// when the user was deleted or deactivated; err is reserved for backend
// failures.
type RoleSource interface {
	CurrentRole(ctx context.Context, userID string) (role string, active bool, err error)
}

// RequireCurrentRole is RequireRole plus a lookup of the user record, so a
// demoted or deactivated account loses access before its token expires.
//
// # Description
//
// The session claim is checked first. Callers that pass it are looked up
// in source: a missing or inactive user gets 401, a user whose stored role
// no longer matches gets 403 and a lookup failure gets 500.
//
// # Inputs
//
//   - role: The required role.
//   - source: Resolves stored roles. Must not be nil.
//   - logger: Receives lookup failures. Nil uses slog.Default().
func RequireCurrentRole(role string, source RoleSource, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		info, ok := checkClaim(c, role)
		if !ok {
			return
		}
		current, active, err := source.CurrentRole(c.Request.Context(), info.UserID)
		switch {
		case err != nil:
			logger.Error("role lookup failed",
				"error", err,
				"user_id", info.UserID,
				"request_id", GetRequestID(c))
			abortJSON(c, http.StatusInternalServerError, "Failed to verify permissions")
			return
		case !active:
			abortJSON(c, http.StatusUnauthorized, "Authentication required")
			return
		case current != role:
			abortJSON(c, http.StatusForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// checkClaim aborts unless the session claims role.
func checkClaim(c *gin.Context, role string) (*extensions.AuthInfo, bool) {
	info := GetAuthInfo(c)
	if info == nil {
		abortJSON(c, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	if !info.HasRole(role) {
		abortJSON(c, http.StatusForbidden, "Insufficient permissions")
		return nil, false
	}
	return info, true
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive per RFC 7235. Returns "" when the header is
// missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// abortJSON writes the API error envelope and stops the chain.
func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
