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
	"errors"
	"time"
)

// ErrUnauthorized is returned when a session token is missing, malformed,
// expired or revoked. Providers wrap it with detail:
//
//	return nil, fmt.Errorf("token revoked: %w", extensions.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when an authenticated caller lacks the role an
// operation requires.
var ErrForbidden = errors.New("forbidden")

// Role names stored on users and carried in session tokens.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// AuthInfo is the identity attached to a request after its session token
// has been validated.
type AuthInfo struct {
	// UserID is the hex ObjectID of the user document. Never empty.
	UserID string

	// Phone is the login phone number in normalized local form.
	Phone string

	// Role is RoleAdmin or RoleUser.
	Role string

	// TokenID is the session token's jti, used for logout revocation.
	TokenID string

	// ExpiresAt is when the session token stops being accepted.
	ExpiresAt time.Time
}

// HasRole reports whether the caller holds role.
func (a *AuthInfo) HasRole(role string) bool {
	return a != nil && a.Role == role
}

// IsAdmin reports whether the caller is an administrator.
func (a *AuthInfo) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// AuthProvider validates a bearer token and returns the caller's identity.
//
// An empty token must return ErrUnauthorized (possibly wrapped).
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// StaticAuthProvider authenticates every request as a fixed identity.
// It backs `koholi serve --insecure-admin` for local UI development and
// is used by handler tests.
type StaticAuthProvider struct {
	Info AuthInfo
}

// Validate returns the static identity regardless of token.
func (p *StaticAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	info := p.Info
	return &info, nil
}

var _ AuthProvider = (*StaticAuthProvider)(nil)
