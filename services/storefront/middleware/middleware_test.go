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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mohinranait/koholi/pkg/extensions"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// mockAuthProvider is a configurable mock for testing.
type mockAuthProvider struct {
	authInfo  *extensions.AuthInfo
	err       error
	lastToken string
}

func (m *mockAuthProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	return m.authInfo, nil
}

// newAuthRouter mounts Authenticate plus extra middleware in front of a
// handler that reports the resolved caller.
func newAuthRouter(provider extensions.AuthProvider, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Authenticate(provider, nil))
	handlers := append(extra, func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, info.UserID)
	})
	r.GET("/", handlers...)
	return r
}

func doRequest(r http.Handler, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

// =============================================================================
// extractBearerToken Tests
// =============================================================================

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer ABC123", "ABC123"},
		{"Bearer   spaced  ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(c))
		})
	}
}

// =============================================================================
// Authenticate Tests
// =============================================================================

func TestAuthenticate_ValidToken(t *testing.T) {
	provider := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u1", Role: extensions.RoleUser}}
	w := doRequest(newAuthRouter(provider), "Bearer good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
	assert.Equal(t, "good", provider.lastToken)
}

func TestAuthenticate_InvalidTokenIsAnonymous(t *testing.T) {
	provider := &mockAuthProvider{err: fmt.Errorf("expired: %w", extensions.ErrUnauthorized)}
	w := doRequest(newAuthRouter(provider), "Bearer stale")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestAuthenticate_ProviderFailureIsAnonymous(t *testing.T) {
	provider := &mockAuthProvider{err: errors.New("store down")}
	w := doRequest(newAuthRouter(provider), "Bearer x")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestRequireSession(t *testing.T) {
	anon := &mockAuthProvider{err: extensions.ErrUnauthorized}
	w := doRequest(newAuthRouter(anon, RequireSession()), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Authentication required"}`, w.Body.String())

	user := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u1", Role: extensions.RoleUser}}
	w = doRequest(newAuthRouter(user, RequireSession()), "Bearer t")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		provider *mockAuthProvider
		want     int
	}{
		{"anonymous", &mockAuthProvider{err: extensions.ErrUnauthorized}, http.StatusUnauthorized},
		{"user", &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u", Role: extensions.RoleUser}}, http.StatusForbidden},
		{"admin", &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "a", Role: extensions.RoleAdmin}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(newAuthRouter(tt.provider, RequireRole(extensions.RoleAdmin)), "Bearer t")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

type staticRoles struct {
	role   string
	active bool
	err    error
}

func (s staticRoles) CurrentRole(context.Context, string) (string, bool, error) {
	return s.role, s.active, s.err
}

func TestRequireCurrentRole(t *testing.T) {
	admin := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "a", Role: extensions.RoleAdmin}}
	user := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u", Role: extensions.RoleUser}}

	tests := []struct {
		name     string
		provider *mockAuthProvider
		roles    staticRoles
		want     int
	}{
		{"still admin", admin, staticRoles{role: extensions.RoleAdmin, active: true}, http.StatusOK},
		{"demoted", admin, staticRoles{role: extensions.RoleUser, active: true}, http.StatusForbidden},
		{"deactivated", admin, staticRoles{role: extensions.RoleAdmin, active: false}, http.StatusUnauthorized},
		{"lookup failure", admin, staticRoles{err: errors.New("db down")}, http.StatusInternalServerError},
		{"claim checked first", user, staticRoles{role: extensions.RoleAdmin, active: true}, http.StatusForbidden},
		{"anonymous", &mockAuthProvider{err: extensions.ErrUnauthorized}, staticRoles{role: extensions.RoleAdmin, active: true}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			w := doRequest(newAuthRouter(tt.provider, RequireCurrentRole(extensions.RoleAdmin, tt.roles, logger)), "Bearer t")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// =============================================================================
// RequestID / RequestLogger Tests
// =============================================================================

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

func TestRequestLogger_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(RequestID(), RequestLogger(nil, metrics))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204")))
}

// =============================================================================
// Rate limit Tests
// =============================================================================

func TestLocalLimiter_Burst(t *testing.T) {
	l := NewLocalLimiter(60, 2)
	defer l.Stop()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "other clients have their own bucket")
}

func TestLocalLimiter_Sweep(t *testing.T) {
	l := NewLocalLimiter(60, 1)
	defer l.Stop()
	_, _ = l.Allow(context.Background(), "a")

	l.sweep(time.Now().Add(time.Minute))
	assert.Len(t, l.visitors, 1)

	l.sweep(time.Now().Add(10 * time.Minute))
	assert.Empty(t, l.visitors)

	l.Stop()
	l.Stop()
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_Middleware(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	l := NewLocalLimiter(60, 1)
	defer l.Stop()

	r := gin.New()
	r.POST("/login", RateLimit(l, nil, metrics), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("/login")))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimit(failingLimiter{}, nil, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRedisLimiter_Integration requires a running Redis. It uses
// KOHOLI_TEST_REDIS_ADDR or localhost:6379 and skips when unreachable.
func TestRedisLimiter_Integration(t *testing.T) {
	addr := os.Getenv("KOHOLI_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 500 * time.Millisecond})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	l := NewRedisLimiter(client, "koholi:test:"+uuid.NewString()+":", 60, 1)

	ok, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok, "fresh bucket")

	ok, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok, "burst of one exhausted")

	time.Sleep(1100 * time.Millisecond)
	ok, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok, "refilled after a second")
}

// =============================================================================
// Audit Tests
// =============================================================================

type recordingAuditor struct {
	events []extensions.AuditEvent
	err    error
}

func (r *recordingAuditor) Log(_ context.Context, event extensions.AuditEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func newAuditRouter(provider extensions.AuthProvider, auditor extensions.AuditLogger, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(Authenticate(provider, nil), Audit(auditor, logger))
	r.GET("/api/orders", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PUT("/api/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.DELETE("/api/products/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r
}

func auditRequest(r http.Handler, method, path string) {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer admin")
	r.ServeHTTP(httptest.NewRecorder(), req)
}

func TestAudit_RecordsWrites(t *testing.T) {
	provider := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u1", Role: "admin"}}
	auditor := &recordingAuditor{}
	r := newAuditRouter(provider, auditor, nil)

	auditRequest(r, http.MethodGet, "/api/orders")
	auditRequest(r, http.MethodPut, "/api/orders/abc")
	auditRequest(r, http.MethodDelete, "/api/products/xyz")

	require.Len(t, auditor.events, 2, "reads are not audited")

	assert.Equal(t, "u1", auditor.events[0].UserID)
	assert.Equal(t, http.MethodPut, auditor.events[0].Action)
	assert.Equal(t, "orders", auditor.events[0].ResourceType)
	assert.Equal(t, "abc", auditor.events[0].ResourceID)
	assert.Equal(t, "success", auditor.events[0].Outcome)

	assert.Equal(t, "products", auditor.events[1].ResourceType)
	assert.Equal(t, "failure", auditor.events[1].Outcome)
	assert.Equal(t, http.StatusNotFound, auditor.events[1].Metadata["status"])
}

func TestAudit_SkipsAnonymous(t *testing.T) {
	provider := &mockAuthProvider{err: errors.New("bad token")}
	auditor := &recordingAuditor{}
	r := newAuditRouter(provider, auditor, nil)

	auditRequest(r, http.MethodPut, "/api/orders/abc")
	assert.Empty(t, auditor.events)
}

func TestAudit_LogsWriteFailures(t *testing.T) {
	provider := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u1", Role: "admin"}}
	auditor := &recordingAuditor{err: errors.New("audit sink unavailable")}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	r := gin.New()
	r.Use(RequestID(), Authenticate(provider, nil), Audit(auditor, logger))
	r.PUT("/api/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPut, "/api/orders/abc", nil)
	req.Header.Set("Authorization", "Bearer admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "audit failures do not change the response")
	require.Len(t, auditor.events, 1)
	out := logs.String()
	assert.Contains(t, out, `"msg":"audit log write failed"`)
	assert.Contains(t, out, "audit sink unavailable")
	assert.Contains(t, out, `"request_id":"`+w.Header().Get(RequestIDHeader)+`"`)
}

func TestResourceType(t *testing.T) {
	assert.Equal(t, "social-proof", resourceType("/api/social-proof/:id"))
	assert.Equal(t, "auth", resourceType("/api/auth/logout"))
	assert.Equal(t, "unknown", resourceType(""))
}
