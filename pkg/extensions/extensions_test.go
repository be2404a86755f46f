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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// AuthInfo
// =============================================================================

func TestAuthInfo_Roles(t *testing.T) {
	admin := &AuthInfo{UserID: "u1", Role: RoleAdmin}
	user := &AuthInfo{UserID: "u2", Role: RoleUser}
	var none *AuthInfo

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.HasRole(RoleAdmin))
	assert.False(t, user.IsAdmin())
	assert.True(t, user.HasRole(RoleUser))
	assert.False(t, none.IsAdmin())
	assert.False(t, none.HasRole(RoleUser))
}

func TestStaticAuthProvider_ReturnsCopy(t *testing.T) {
	p := &StaticAuthProvider{Info: AuthInfo{UserID: "admin", Role: RoleAdmin}}

	info, err := p.Validate(context.Background(), "")
	require.NoError(t, err)
	info.Role = RoleUser

	again, err := p.Validate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, again.Role)
}

// =============================================================================
// Audit
// =============================================================================

func TestSlogAuditLogger_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := &SlogAuditLogger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := logger.Log(context.Background(), AuditEvent{
		UserID:       "u1",
		Action:       "status_change",
		ResourceType: "order",
		ResourceID:   "abc",
		Outcome:      "success",
		Metadata:     map[string]any{"from": "pending", "to": "confirmed"},
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "audit", entry["msg"])
	assert.Equal(t, "status_change", entry["action"])
	assert.Equal(t, "order", entry["resource_type"])
	assert.Equal(t, "confirmed", entry["to"])
	assert.NotEmpty(t, entry["at"])
}

func TestNopAuditLogger(t *testing.T) {
	assert.NoError(t, (&NopAuditLogger{}).Log(context.Background(), AuditEvent{}))
}

func TestServiceOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Nil(t, opts.AuthProvider)
	assert.IsType(t, &SlogAuditLogger{}, opts.AuditLogger)

	p := &StaticAuthProvider{}
	withAuth := opts.WithAuth(p).WithAudit(&NopAuditLogger{})
	assert.Same(t, p, withAuth.AuthProvider)
	assert.IsType(t, &NopAuditLogger{}, withAuth.AuditLogger)
	assert.Nil(t, opts.AuthProvider, "original options are unchanged")
}
