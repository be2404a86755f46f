// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent records one administrative change, e.g. an order status update
// or a catalog deletion.
type AuditEvent struct {
	// Timestamp is when the action completed. Filled by Log when zero.
	Timestamp time.Time

	// UserID of the admin who acted. Empty for anonymous storefront actions.
	UserID string

	// Action is a verb such as "create", "update", "delete", "status_change".
	Action string

	// ResourceType is the collection name, e.g. "order", "product".
	ResourceType string

	// ResourceID is the hex ObjectID of the affected document.
	ResourceID string

	// Outcome is "success" or "failure".
	Outcome string

	// Metadata carries action-specific details such as from/to status.
	Metadata map[string]any
}

// AuditLogger records administrative actions.
//
// Log must not block request handling for long; implementations that ship
// events elsewhere should buffer.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
}

// SlogAuditLogger writes audit events as structured log entries under the
// "audit" message.
type SlogAuditLogger struct {
	Logger *slog.Logger
}

// Log writes event to the configured slog logger (or slog.Default).
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"action", event.Action,
		"resource_type", event.ResourceType,
		"resource_id", event.ResourceID,
		"user_id", event.UserID,
		"outcome", event.Outcome,
		"at", event.Timestamp,
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}
	logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// NopAuditLogger discards events.
type NopAuditLogger struct{}

// Log does nothing.
func (l *NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

var (
	_ AuditLogger = (*SlogAuditLogger)(nil)
	_ AuditLogger = (*NopAuditLogger)(nil)
)
