// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package accounts implements phone login and customer lookup.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/mohinranait/koholi/services/storefront/store"
)

// ErrInactive is returned when an inactive user tries to log in.
var ErrInactive = errors.New("account is inactive")

// Issuer signs session tokens. *session.Manager satisfies it.
type Issuer interface {
	Issue(u *datatypes.User) (string, time.Time, error)
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expiresAt"`
	User      datatypes.SessionUser `json:"user"`
}

// Service owns the users collection on behalf of login and ordering.
type Service struct {
	users   store.Users
	issuer  Issuer
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. metrics may be nil.
func NewService(users store.Users, issuer Issuer, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:   users,
		issuer:  issuer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// EnsureCustomer returns the user registered under phone, creating a
// placeholder user when none exists. created reports whether a user was
// inserted by this call.
func (s *Service) EnsureCustomer(ctx context.Context, phone string) (*datatypes.User, bool, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	u = datatypes.NewPhoneUser(phone)
	err = s.users.Create(ctx, u)
	switch {
	case err == nil:
		s.logger.Info("customer created", "user_id", u.ID.Hex())
		return u, true, nil
	case errors.Is(err, store.ErrDuplicate):
		// Lost a race with a concurrent request for the same phone.
		u, err = s.users.GetByPhone(ctx, phone)
		if err != nil {
			return nil, false, fmt.Errorf("lookup user after conflict: %w", err)
		}
		return u, false, nil
	default:
		return nil, false, fmt.Errorf("create user: %w", err)
	}
}

// Login finds or creates the user for req.Phone, stamps lastLogin and
// issues a session token. req must already be normalized and validated.
func (s *Service) Login(ctx context.Context, req datatypes.LoginRequest) (*LoginResult, error) {
	u, created, err := s.EnsureCustomer(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if u.Status != datatypes.StatusActive {
		s.metrics.RecordLogin("inactive")
		return nil, ErrInactive
	}

	now := s.now().UTC()
	u.LastLogin = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}

	token, expiresAt, err := s.issuer.Issue(u)
	if err != nil {
		return nil, err
	}

	outcome := "success"
	if created {
		outcome = "created"
	}
	s.metrics.RecordLogin(outcome)
	s.logger.Info("user logged in", "user_id", u.ID.Hex(), "role", u.Role, "new_user", created)

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u.Session()}, nil
}

// Me returns the current user for a session. Deleted or deactivated users
// yield ErrNotFound and ErrInactive so stale tokens stop working for
// account views.
func (s *Service) Me(ctx context.Context, userID string) (*datatypes.User, error) {
	id, err := datatypes.ParseID(userID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status != datatypes.StatusActive {
		return nil, ErrInactive
	}
	return u, nil
}

// CurrentRole reports the stored role of userID. Deleted and inactive users
// report active=false with no error.
func (s *Service) CurrentRole(ctx context.Context, userID string) (string, bool, error) {
	u, err := s.Me(ctx, userID)
	switch {
	case err == nil:
		return u.Role, true, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrInactive):
		return "", false, nil
	default:
		return "", false, err
	}
}
