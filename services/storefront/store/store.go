// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the persistence interfaces used by the storefront
// handlers.
//
// Two implementations exist: mongostore (MongoDB, the production backend)
// and badgerstore (embedded BadgerDB, used for single-binary deployments,
// development and tests). Both assign ObjectIDs and maintain createdAt and
// updatedAt on Create and Update, and both report unique-key violations as
// ErrDuplicate.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write would violate a unique index
	// (category slug, product slug, user phone).
	ErrDuplicate = errors.New("duplicate key")

	// ErrConflict is returned by a conditional write whose precondition no
	// longer holds because the document changed underneath it.
	ErrConflict = errors.New("write conflict")
)

// Categories persists catalog categories.
type Categories interface {
	List(ctx context.Context, f datatypes.CategoryFilter) ([]datatypes.Category, error)
	Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Category, error)
	GetBySlug(ctx context.Context, slug string) (*datatypes.Category, error)
	Create(ctx context.Context, c *datatypes.Category) error
	Update(ctx context.Context, c *datatypes.Category) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

// Products persists catalog products.
type Products interface {
	List(ctx context.Context, f datatypes.ProductFilter) ([]datatypes.Product, error)
	Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Product, error)
	GetBySlug(ctx context.Context, slug string) (*datatypes.Product, error)
	Create(ctx context.Context, p *datatypes.Product) error
	Update(ctx context.Context, p *datatypes.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

// Orders persists customer orders.
type Orders interface {
	List(ctx context.Context, f datatypes.OrderFilter) ([]datatypes.Order, error)
	Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Order, error)
	Create(ctx context.Context, o *datatypes.Order) error
	Update(ctx context.Context, o *datatypes.Order) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)

	// UpdateStatus sets the status to "to", and the admin message when
	// message is non-nil, only if the stored status is still "from". It
	// returns ErrConflict when the status changed since the caller read it.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to datatypes.OrderStatus, message *string) (*datatypes.Order, error)

	// CountByStatus returns the number of orders per status. Every known
	// status is present in the result, zero or not.
	CountByStatus(ctx context.Context) (map[datatypes.OrderStatus]int64, error)

	// Revenue returns the sum of delivered order prices.
	Revenue(ctx context.Context) (float64, error)
}

// Users persists customers and administrators.
type Users interface {
	List(ctx context.Context, f datatypes.UserFilter) ([]datatypes.User, error)
	Get(ctx context.Context, id primitive.ObjectID) (*datatypes.User, error)
	GetByPhone(ctx context.Context, phone string) (*datatypes.User, error)
	Create(ctx context.Context, u *datatypes.User) error
	Update(ctx context.Context, u *datatypes.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

// SocialProofs persists storefront notifications.
type SocialProofs interface {
	List(ctx context.Context, f datatypes.SocialProofFilter) ([]datatypes.SocialProof, error)
	Get(ctx context.Context, id primitive.ObjectID) (*datatypes.SocialProof, error)
	Create(ctx context.Context, sp *datatypes.SocialProof) error
	Update(ctx context.Context, sp *datatypes.SocialProof) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Settings persists the AppConfig and SiteSettings singletons. The getters
// create the document with defaults when it does not exist yet.
type Settings interface {
	AppConfig(ctx context.Context) (*datatypes.AppConfig, error)
	SaveAppConfig(ctx context.Context, c *datatypes.AppConfig) error
	SiteSettings(ctx context.Context) (*datatypes.SiteSettings, error)
	SaveSiteSettings(ctx context.Context, s *datatypes.SiteSettings) error
}

// Sessions is the session-token revocation list. Entries expire on their
// own once the token would have expired anyway.
type Sessions interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Store groups every repository behind one handle.
type Store interface {
	Categories() Categories
	Products() Products
	Orders() Orders
	Users() Users
	SocialProofs() SocialProofs
	Settings() Settings
	Sessions() Sessions

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
