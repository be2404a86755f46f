// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/pkg/extensions"
)

// Audit records every state-changing request made with a session. Reads
// are not audited. Audit failures never affect the response.
//
// Mount it after Authenticate so the caller is known. Failed audit writes
// are logged to logger; nil uses slog.Default().
func Audit(auditor extensions.AuditLogger, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		c.Next()

		if auditor == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			return
		}
		info := GetAuthInfo(c)
		if info == nil {
			return
		}

		outcome := "success"
		if c.Writer.Status() >= http.StatusBadRequest {
			outcome = "failure"
		}
		event := extensions.AuditEvent{
			Timestamp:    time.Now().UTC(),
			UserID:       info.UserID,
			Action:       c.Request.Method,
			ResourceType: resourceType(c.FullPath()),
			ResourceID:   c.Param("id"),
			Outcome:      outcome,
			Metadata: map[string]any{
				"status":     c.Writer.Status(),
				"role":       info.Role,
				"request_id": GetRequestID(c),
			},
		}
		if err := auditor.Log(c.Request.Context(), event); err != nil {
			logger.Warn("audit log write failed",
				"error", err,
				"action", event.Action,
				"resource", event.ResourceType,
				"request_id", GetRequestID(c))
		}
	}
}

// resourceType returns the first path segment after /api, e.g. "orders"
// for /api/orders/:id.
func resourceType(route string) string {
	route = strings.TrimPrefix(route, "/api/")
	route = strings.TrimPrefix(route, "/")
	if i := strings.IndexByte(route, '/'); i >= 0 {
		route = route[:i]
	}
	if route == "" {
		return "unknown"
	}
	return route
}
