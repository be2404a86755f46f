// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storefront

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/pkg/extensions"
	"github.com/mohinranait/koholi/pkg/logging"
	"github.com/mohinranait/koholi/services/storefront/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.GinMode = gin.TestMode
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Auth.Secret = strings.Repeat("k", 32)
	cfg.Database.InMemory = true
	return cfg
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestNew_ShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Secret = "short"

	_, err := New(cfg, nil, WithLogger(quietLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions")
}

func TestNew_UnknownMediaBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Media.Backend = "ftp"

	_, err := New(cfg, nil, WithLogger(quietLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}

func TestNew_ServesHealthAndMetrics(t *testing.T) {
	svc, err := New(testConfig(), nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer svc.(*service).cleanup()

	w := get(t, svc.Router(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = get(t, svc.Router(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Telemetry.Metrics = false

	svc, err := New(cfg, nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer svc.(*service).cleanup()

	assert.Equal(t, http.StatusNotFound, get(t, svc.Router(), "/metrics").Code)
}

func TestNew_CustomAuthProvider(t *testing.T) {
	opts := extensions.DefaultOptions().
		WithAuth(&extensions.StaticAuthProvider{Info: extensions.AuthInfo{UserID: "dev", Role: extensions.RoleAdmin}}).
		WithAudit(&extensions.NopAuditLogger{})

	svc, err := New(testConfig(), &opts, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer svc.(*service).cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_StdoutTracing(t *testing.T) {
	cfg := testConfig()
	cfg.Telemetry.OTelEndpoint = config.TraceStdout

	svc, err := New(cfg, nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	s := svc.(*service)
	defer s.cleanup()

	assert.NotNil(t, s.tracerCleanup)
	assert.Equal(t, http.StatusOK, get(t, svc.Router(), "/health").Code)
}

func TestNew_LocalLimiterByDefault(t *testing.T) {
	svc, err := New(testConfig(), nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	s := svc.(*service)
	defer s.cleanup()

	assert.NotNil(t, s.limiter)
	assert.Nil(t, s.redis)
	assert.Equal(t, "cloudinary", s.uploader.Backend())
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_StopsOnCancel(t *testing.T) {
	svc, err := New(testConfig(), nil, WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// =============================================================================
// Component Tests
// =============================================================================

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "json"}, "test")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, logger.Level())
	require.NoError(t, logger.Close())

	_, err = NewLogger(config.LoggingConfig{Level: "loud"}, "test")
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	st, err := OpenStore(context.Background(), config.DatabaseConfig{Backend: config.BackendBadger, InMemory: true}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, st.Ping(context.Background()))
	require.NoError(t, st.Close())

	_, err = OpenStore(context.Background(), config.DatabaseConfig{Backend: "sqlite"}, slog.Default())
	assert.Error(t, err)
}

func TestApplyReload_ChangesLevel(t *testing.T) {
	logger := quietLogger()
	s := &service{config: testConfig(), logger: logger}

	next := testConfig()
	next.Logging.Level = "debug"
	s.applyReload(next)
	assert.Equal(t, logging.LevelDebug, logger.Level())

	next.Logging.Level = "nonsense"
	s.applyReload(next)
	assert.Equal(t, logging.LevelDebug, logger.Level(), "invalid level is ignored")
}
