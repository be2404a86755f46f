// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the pluggable seams of the storefront service:
// how requests are authenticated and where admin actions are audited.
//
// The service wires JWT session tokens and slog auditing by default. Tests
// and local development substitute StaticAuthProvider and NopAuditLogger.
package extensions

// ServiceOptions bundles the extension points passed to the storefront
// service constructor.
type ServiceOptions struct {
	// AuthProvider validates session tokens. When nil the service builds a
	// JWT provider from its config.
	AuthProvider AuthProvider

	// AuditLogger records admin actions. Default: SlogAuditLogger.
	AuditLogger AuditLogger
}

// DefaultOptions returns options with slog auditing and no preset auth
// provider.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuditLogger: &SlogAuditLogger{},
	}
}

// WithAuth returns a copy of opts using provider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts using logger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
