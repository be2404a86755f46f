// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestRecordHTTP(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordHTTP("GET", "/api/products", 200, 20*time.Millisecond)
	m.RecordHTTP("GET", "/api/products", 200, 30*time.Millisecond)
	m.RecordHTTP("GET", "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/products", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestRecordOrderTransition_IgnoresSameStatus(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordOrderTransition("pending", "confirmed")
	m.RecordOrderTransition("confirmed", "confirmed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderTransitionsTotal.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OrderTransitionsTotal))
}

func TestRecordCounters(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordOrderCreated()
	m.RecordLogin("success")
	m.RecordUpload("s3", false)
	m.RecordRotation()
	m.RecordRotation()
	m.RecordRateLimited("/api/auth/login")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MediaUploadsTotal.WithLabelValues("s3", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SocialProofRotationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("/api/auth/login")))
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTP("GET", "/", 200, time.Millisecond)
		m.RecordOrderCreated()
		m.RecordOrderTransition("a", "b")
		m.RecordLogin("x")
		m.RecordUpload("gcs", true)
		m.RecordRotation()
		m.RecordRateLimited("/")
	})
}
