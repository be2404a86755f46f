// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session issues and validates phone-login session tokens.
//
// Tokens are HS256 JWTs whose subject is the user's ObjectID and which carry
// the phone and role. Logout records the token's jti in the store's
// revocation list until the token would have expired.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mohinranait/koholi/pkg/extensions"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

const defaultIssuer = "koholi"

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// Config configures a Manager.
type Config struct {
	// Secret signs tokens. At least MinSecretLength bytes.
	Secret []byte

	// TTL is the token lifetime. Default: DefaultTTL.
	TTL time.Duration

	// Issuer is the iss claim. Default: "koholi".
	Issuer string
}

// Manager issues session tokens and validates them for the auth middleware.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	revoked store.Sessions
	now     func() time.Time
}

var _ extensions.AuthProvider = (*Manager)(nil)

// NewManager creates a Manager. revoked may be nil, in which case logout is
// a no-op and tokens stay valid until they expire.
func NewManager(cfg Config, revoked store.Sessions) (*Manager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	return &Manager{
		secret:  cfg.Secret,
		ttl:     cfg.TTL,
		issuer:  cfg.Issuer,
		revoked: revoked,
		now:     time.Now,
	}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new token for u.
func (m *Manager) Issue(u *datatypes.User) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.Hex(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Phone: u.Phone,
		Role:  u.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	// NumericDate has second precision; report what the token says.
	return signed, claims.ExpiresAt.Time, nil
}

// Validate parses token, checks signature, issuer and expiry, and rejects
// revoked tokens. Every failure wraps extensions.ErrUnauthorized except
// revocation-store errors.
func (m *Manager) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing session token: %w", extensions.ErrUnauthorized)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %v: %w", err, extensions.ErrUnauthorized)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("invalid session token: %w", extensions.ErrUnauthorized)
	}

	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("session token revoked: %w", extensions.ErrUnauthorized)
		}
	}

	return &extensions.AuthInfo{
		UserID:    claims.Subject,
		Phone:     claims.Phone,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates the session described by info.
func (m *Manager) Revoke(ctx context.Context, info *extensions.AuthInfo) error {
	if info == nil || info.TokenID == "" {
		return errors.New("session has no token id")
	}
	if m.revoked == nil {
		return nil
	}
	return m.revoked.Revoke(ctx, info.TokenID, info.ExpiresAt)
}
