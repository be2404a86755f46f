// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is a store.Store backed by BadgerDB.
type Store struct {
	db *db

	categories   *categoryRepo
	products     *productRepo
	orders       *orderRepo
	users        *userRepo
	socialProofs *socialProofRepo
	settings     *settingsRepo
	sessions     *sessionRepo
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	d, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return newStore(d, time.Now), nil
}

// OpenInMemory opens an empty in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

func newStore(d *db, now func() time.Time) *Store {
	return &Store{
		db: d,
		categories: &categoryRepo{c: &collection[datatypes.Category]{
			db: d, name: "categories", now: now, byUpdated: true,
			id:     func(c *datatypes.Category) *primitive.ObjectID { return &c.ID },
			stamps: func(c *datatypes.Category) *datatypes.Timestamps { return &c.Timestamps },
			unique: []uniqueIndex[datatypes.Category]{
				{field: "slug", value: func(c *datatypes.Category) string { return c.Slug }},
			},
		}},
		products: &productRepo{c: &collection[datatypes.Product]{
			db: d, name: "products", now: now, byUpdated: true,
			id:     func(p *datatypes.Product) *primitive.ObjectID { return &p.ID },
			stamps: func(p *datatypes.Product) *datatypes.Timestamps { return &p.Timestamps },
			unique: []uniqueIndex[datatypes.Product]{
				{field: "slug", value: func(p *datatypes.Product) string { return p.Slug }},
			},
		}},
		orders: &orderRepo{c: &collection[datatypes.Order]{
			db: d, name: "orders", now: now,
			id:     func(o *datatypes.Order) *primitive.ObjectID { return &o.ID },
			stamps: func(o *datatypes.Order) *datatypes.Timestamps { return &o.Timestamps },
		}},
		users: &userRepo{c: &collection[datatypes.User]{
			db: d, name: "users", now: now,
			id:     func(u *datatypes.User) *primitive.ObjectID { return &u.ID },
			stamps: func(u *datatypes.User) *datatypes.Timestamps { return &u.Timestamps },
			unique: []uniqueIndex[datatypes.User]{
				{field: "phone", value: func(u *datatypes.User) string { return u.Phone }},
			},
		}},
		socialProofs: &socialProofRepo{c: &collection[datatypes.SocialProof]{
			db: d, name: "socialproofs", now: now,
			id:     func(sp *datatypes.SocialProof) *primitive.ObjectID { return &sp.ID },
			stamps: func(sp *datatypes.SocialProof) *datatypes.Timestamps { return &sp.Timestamps },
		}},
		settings: &settingsRepo{
			app: &singleton[datatypes.AppConfig]{
				db: d, key: []byte("doc/appconfigs/singleton"), now: now,
				defaults: datatypes.DefaultAppConfig,
				id:       func(c *datatypes.AppConfig) *primitive.ObjectID { return &c.ID },
				stamps:   func(c *datatypes.AppConfig) *datatypes.Timestamps { return &c.Timestamps },
			},
			site: &singleton[datatypes.SiteSettings]{
				db: d, key: []byte("doc/sitesettings/singleton"), now: now,
				defaults: datatypes.DefaultSiteSettings,
				id:       func(s *datatypes.SiteSettings) *primitive.ObjectID { return &s.ID },
				stamps:   func(s *datatypes.SiteSettings) *datatypes.Timestamps { return &s.Timestamps },
			},
		},
		sessions: &sessionRepo{db: d},
	}
}

func (s *Store) Categories() store.Categories { return s.categories }
func (s *Store) Products() store.Products { return s.products }
func (s *Store) Orders() store.Orders { return s.orders }
func (s *Store) Users() store.Users { return s.users }
func (s *Store) SocialProofs() store.SocialProofs { return s.socialProofs }
func (s *Store) Settings() store.Settings { return s.settings }
func (s *Store) Sessions() store.Sessions { return s.sessions }

// Ping fails once the database has been closed.
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return ctx.Err()
}

// Close stops value log GC and closes the database.
func (s *Store) Close() error {
	return s.db.close()
}

// =============================================================================
// Catalog
// =============================================================================

type categoryRepo struct {
	c *collection[datatypes.Category]
}

func (r *categoryRepo) List(ctx context.Context, f datatypes.CategoryFilter) ([]datatypes.Category, error) {
	return r.c.list(ctx, f.Matches, 0)
}

func (r *categoryRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Category, error) {
	return r.c.get(ctx, id)
}

func (r *categoryRepo) GetBySlug(ctx context.Context, slug string) (*datatypes.Category, error) {
	return r.c.getBy(ctx, "slug", slug)
}

func (r *categoryRepo) Create(ctx context.Context, c *datatypes.Category) error {
	return r.c.insert(ctx, c)
}

func (r *categoryRepo) Update(ctx context.Context, c *datatypes.Category) error {
	return r.c.replace(ctx, c)
}

func (r *categoryRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return r.c.remove(ctx, id)
}

func (r *categoryRepo) Count(ctx context.Context) (int64, error) {
	return r.c.count(ctx)
}

type productRepo struct {
	c *collection[datatypes.Product]
}

func (r *productRepo) List(ctx context.Context, f datatypes.ProductFilter) ([]datatypes.Product, error) {
	return r.c.list(ctx, f.Matches, f.Limit)
}

func (r *productRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Product, error) {
	return r.c.get(ctx, id)
}

func (r *productRepo) GetBySlug(ctx context.Context, slug string) (*datatypes.Product, error) {
	return r.c.getBy(ctx, "slug", slug)
}

func (r *productRepo) Create(ctx context.Context, p *datatypes.Product) error {
	return r.c.insert(ctx, p)
}

func (r *productRepo) Update(ctx context.Context, p *datatypes.Product) error {
	return r.c.replace(ctx, p)
}

func (r *productRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return r.c.remove(ctx, id)
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	return r.c.count(ctx)
}

// =============================================================================
// Orders
// =============================================================================

type orderRepo struct {
	c *collection[datatypes.Order]
}

func (r *orderRepo) List(ctx context.Context, f datatypes.OrderFilter) ([]datatypes.Order, error) {
	return r.c.list(ctx, f.Matches, 0)
}

func (r *orderRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Order, error) {
	return r.c.get(ctx, id)
}

func (r *orderRepo) Create(ctx context.Context, o *datatypes.Order) error {
	return r.c.insert(ctx, o)
}

func (r *orderRepo) Update(ctx context.Context, o *datatypes.Order) error {
	return r.c.replace(ctx, o)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to datatypes.OrderStatus, message *string) (*datatypes.Order, error) {
	return r.c.modify(ctx, id, func(o *datatypes.Order) error {
		if o.Status != from {
			return fmt.Errorf("order %s is %s, not %s: %w", id.Hex(), o.Status, from, store.ErrConflict)
		}
		o.Status = to
		if message != nil {
			o.AdminMessage = *message
		}
		return nil
	})
}

func (r *orderRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return r.c.remove(ctx, id)
}

func (r *orderRepo) Count(ctx context.Context) (int64, error) {
	return r.c.count(ctx)
}

func (r *orderRepo) CountByStatus(ctx context.Context) (map[datatypes.OrderStatus]int64, error) {
	counts := make(map[datatypes.OrderStatus]int64, len(datatypes.OrderStatuses))
	for _, st := range datatypes.OrderStatuses {
		counts[st] = 0
	}
	_, err := r.c.scan(ctx, func(o *datatypes.Order) bool {
		counts[o.Status]++
		return false
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *orderRepo) Revenue(ctx context.Context) (float64, error) {
	var total float64
	_, err := r.c.scan(ctx, func(o *datatypes.Order) bool {
		if o.Status == datatypes.OrderDelivered {
			total += o.Price
		}
		return false
	})
	return total, err
}

// =============================================================================
// Users
// =============================================================================

type userRepo struct {
	c *collection[datatypes.User]
}

func (r *userRepo) List(ctx context.Context, f datatypes.UserFilter) ([]datatypes.User, error) {
	return r.c.list(ctx, f.Matches, 0)
}

func (r *userRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.User, error) {
	return r.c.get(ctx, id)
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*datatypes.User, error) {
	return r.c.getBy(ctx, "phone", phone)
}

func (r *userRepo) Create(ctx context.Context, u *datatypes.User) error {
	return r.c.insert(ctx, u)
}

func (r *userRepo) Update(ctx context.Context, u *datatypes.User) error {
	return r.c.replace(ctx, u)
}

func (r *userRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return r.c.remove(ctx, id)
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	return r.c.count(ctx)
}

// =============================================================================
// Social proof
// =============================================================================

type socialProofRepo struct {
	c *collection[datatypes.SocialProof]
}

func (r *socialProofRepo) List(ctx context.Context, f datatypes.SocialProofFilter) ([]datatypes.SocialProof, error) {
	return r.c.list(ctx, f.Matches, 0)
}

func (r *socialProofRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.SocialProof, error) {
	return r.c.get(ctx, id)
}

func (r *socialProofRepo) Create(ctx context.Context, sp *datatypes.SocialProof) error {
	return r.c.insert(ctx, sp)
}

func (r *socialProofRepo) Update(ctx context.Context, sp *datatypes.SocialProof) error {
	return r.c.replace(ctx, sp)
}

func (r *socialProofRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return r.c.remove(ctx, id)
}

// =============================================================================
// Settings and sessions
// =============================================================================

type settingsRepo struct {
	app  *singleton[datatypes.AppConfig]
	site *singleton[datatypes.SiteSettings]
}

func (r *settingsRepo) AppConfig(ctx context.Context) (*datatypes.AppConfig, error) {
	return r.app.get(ctx)
}

func (r *settingsRepo) SaveAppConfig(ctx context.Context, c *datatypes.AppConfig) error {
	return r.app.save(ctx, c)
}

func (r *settingsRepo) SiteSettings(ctx context.Context) (*datatypes.SiteSettings, error) {
	return r.site.get(ctx)
}

func (r *settingsRepo) SaveSiteSettings(ctx context.Context, s *datatypes.SiteSettings) error {
	return r.site.save(ctx, s)
}

type sessionRepo struct {
	db *db
}

func revokedKey(tokenID string) []byte {
	return []byte("rev/" + tokenID)
}

// Revoke records tokenID until expiresAt. Already expired tokens are not
// stored.
func (r *sessionRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(revokedKey(tokenID), []byte{1}).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("revoke session %s: %w", tokenID, err)
	}
	return nil
}

func (r *sessionRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(revokedKey(tokenID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", tokenID, err)
	}
	return true, nil
}
