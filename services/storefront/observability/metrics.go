// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the storefront.
//
// # Description
//
// Metrics cover HTTP traffic plus the business events an operator watches:
//   - Orders placed and order status transitions
//   - Login attempts by outcome
//   - Media uploads by backend and outcome
//   - Social-proof rotations
//   - Requests rejected by the rate limiter
//
// # Integration
//
// Metrics are exposed at /metrics. NewMetrics registers against the given
// registerer so tests can use a private registry.
//
// # Thread Safety
//
// All metric operations are thread-safe. Every Record method is a no-op on a
// nil *Metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "koholi"

// Metrics holds every storefront metric.
type Metrics struct {
	// HTTPRequestsTotal counts requests.
	// Labels: method, route (gin route template), status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration measures handler latency.
	// Labels: method, route
	HTTPRequestDuration *prometheus.HistogramVec

	// OrdersCreatedTotal counts placed orders.
	OrdersCreatedTotal prometheus.Counter

	// OrderTransitionsTotal counts status changes.
	// Labels: from, to
	OrderTransitionsTotal *prometheus.CounterVec

	// LoginsTotal counts phone logins.
	// Labels: outcome (success, created, inactive, invalid)
	LoginsTotal *prometheus.CounterVec

	// MediaUploadsTotal counts uploads.
	// Labels: backend (cloudinary, gcs, s3), outcome (success, error)
	MediaUploadsTotal *prometheus.CounterVec

	// SocialProofRotationsTotal counts notifications pushed by the rotator.
	SocialProofRotationsTotal prometheus.Counter

	// RateLimitedTotal counts rejected requests.
	// Labels: route
	RateLimitedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg. Pass
// prometheus.DefaultRegisterer in production.
//
// # Limitations
//
//   - Panics if called twice with the same registerer (duplicate
//     registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),

		OrdersCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "orders",
				Name:      "created_total",
				Help:      "Total orders placed",
			},
		),

		OrderTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "orders",
				Name:      "transitions_total",
				Help:      "Order status transitions by from and to status",
			},
			[]string{"from", "to"},
		),

		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "logins_total",
				Help:      "Phone login attempts by outcome",
			},
			[]string{"outcome"},
		),

		MediaUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "media",
				Name:      "uploads_total",
				Help:      "Media uploads by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),

		SocialProofRotationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "social_proof",
				Name:      "rotations_total",
				Help:      "Social-proof notifications broadcast by the rotator",
			},
		),

		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}
}

// RecordHTTP records one completed request.
func (m *Metrics) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordOrderCreated counts a placed order.
func (m *Metrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.OrdersCreatedTotal.Inc()
}

// RecordOrderTransition counts a status change. Re-applying the same status
// is not a transition and is ignored.
func (m *Metrics) RecordOrderTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.OrderTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpload counts a media upload.
func (m *Metrics) RecordUpload(backend string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.MediaUploadsTotal.WithLabelValues(backend, outcome).Inc()
}

// RecordRotation counts a broadcast notification.
func (m *Metrics) RecordRotation() {
	if m == nil {
		return
	}
	m.SocialProofRotationsTotal.Inc()
}

// RecordRateLimited counts a rejected request.
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}
