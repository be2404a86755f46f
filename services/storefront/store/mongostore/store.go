// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mongostore implements store.Store on MongoDB.
//
// Collection names match the ones the storefront has always used
// (categories, products, orders, users, socialproofs, appconfigs,
// sitesettings) so an existing database can be served without migration.
// Revoked session tokens live in revokedtokens, expired by a TTL index.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config holds connection settings.
type Config struct {
	// URI is a standard MongoDB connection string.
	URI string

	// Database is the database name. Default: "koholi".
	Database string

	// ConnectTimeout bounds the initial connect and ping. Default: 10s.
	ConnectTimeout time.Duration
}

// Store is a store.Store backed by MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger

	categories   *categoryRepo
	products     *productRepo
	orders       *orderRepo
	users        *userRepo
	socialProofs *socialProofRepo
	settings     *settingsRepo
	sessions     *sessionRepo
}

var _ store.Store = (*Store)(nil)

// Open connects, verifies the connection and ensures indexes exist.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "koholi"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetAppName("koholi").
		SetServerSelectionTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := newStore(client, client.Database(cfg.Database), logger, time.Now)
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("connected to mongo", "database", cfg.Database)
	return s, nil
}

var (
	byUpdated = bson.D{{Key: "updatedAt", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	byCreated = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
)

func newStore(client *mongo.Client, db *mongo.Database, logger *slog.Logger, now func() time.Time) *Store {
	return &Store{
		client: client,
		db:     db,
		logger: logger,
		categories: &categoryRepo{c: &collection[datatypes.Category]{
			coll: db.Collection("categories"), sort: byUpdated, now: now,
			id:     func(c *datatypes.Category) *primitive.ObjectID { return &c.ID },
			stamps: func(c *datatypes.Category) *datatypes.Timestamps { return &c.Timestamps },
		}},
		products: &productRepo{c: &collection[datatypes.Product]{
			coll: db.Collection("products"), sort: byUpdated, now: now,
			id:     func(p *datatypes.Product) *primitive.ObjectID { return &p.ID },
			stamps: func(p *datatypes.Product) *datatypes.Timestamps { return &p.Timestamps },
		}},
		orders: &orderRepo{c: &collection[datatypes.Order]{
			coll: db.Collection("orders"), sort: byCreated, now: now,
			id:     func(o *datatypes.Order) *primitive.ObjectID { return &o.ID },
			stamps: func(o *datatypes.Order) *datatypes.Timestamps { return &o.Timestamps },
		}},
		users: &userRepo{c: &collection[datatypes.User]{
			coll: db.Collection("users"), sort: byCreated, now: now,
			id:     func(u *datatypes.User) *primitive.ObjectID { return &u.ID },
			stamps: func(u *datatypes.User) *datatypes.Timestamps { return &u.Timestamps },
		}},
		socialProofs: &socialProofRepo{c: &collection[datatypes.SocialProof]{
			coll: db.Collection("socialproofs"), sort: byCreated, now: now,
			id:     func(sp *datatypes.SocialProof) *primitive.ObjectID { return &sp.ID },
			stamps: func(sp *datatypes.SocialProof) *datatypes.Timestamps { return &sp.Timestamps },
		}},
		settings: &settingsRepo{
			app: &singleton[datatypes.AppConfig]{
				coll: db.Collection("appconfigs"), now: now,
				defaults: datatypes.DefaultAppConfig,
				id:       func(c *datatypes.AppConfig) *primitive.ObjectID { return &c.ID },
				stamps:   func(c *datatypes.AppConfig) *datatypes.Timestamps { return &c.Timestamps },
			},
			site: &singleton[datatypes.SiteSettings]{
				coll: db.Collection("sitesettings"), now: now,
				defaults: datatypes.DefaultSiteSettings,
				id:       func(s *datatypes.SiteSettings) *primitive.ObjectID { return &s.ID },
				stamps:   func(s *datatypes.SiteSettings) *datatypes.Timestamps { return &s.Timestamps },
			},
		},
		sessions: &sessionRepo{coll: db.Collection("revokedtokens"), now: now},
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		"categories": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
		},
		"products": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}}},
		},
		"users": {
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: unique},
		},
		"orders": {
			{Keys: bson.D{{Key: "phone", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"revokedtokens": {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Categories() store.Categories { return s.categories }
func (s *Store) Products() store.Products { return s.products }
func (s *Store) Orders() store.Orders { return s.orders }
func (s *Store) Users() store.Users { return s.users }
func (s *Store) SocialProofs() store.SocialProofs { return s.socialProofs }
func (s *Store) Settings() store.Settings { return s.settings }
func (s *Store) Sessions() store.Sessions { return s.sessions }

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database. Used by tests and `koholi seed --reset`.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// contains matches value as a case-insensitive literal substring.
func contains(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

// searchAny matches search in any of fields. It is a no-op for an empty
// search.
func searchAny(q bson.M, search string, fields ...string) {
	if search == "" {
		return
	}
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: contains(search)})
	}
	q["$or"] = or
}

// enum adds an equality filter unless value is empty or "all".
func enum(q bson.M, field, value string) {
	if value != "" && value != datatypes.FilterAll {
		q[field] = value
	}
}

// =============================================================================
// Catalog
// =============================================================================

type categoryRepo struct {
	c *collection[datatypes.Category]
}

func (r *categoryRepo) List(ctx context.Context, f datatypes.CategoryFilter) ([]datatypes.Category, error) {
	q := bson.M{}
	enum(q, "status", f.Status)
	searchAny(q, f.Search, "name", "slug")
	return r.c.list(ctx, q, 0)
}

func (r *categoryRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Category, error) {
	return r.c.find(ctx, bson.M{"_id": id})
}

func (r *categoryRepo) GetBySlug(ctx context.Context, slug string) (*datatypes.Category, error) {
	return r.c.find(ctx, bson.M{"slug": slug})
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
	return r.c.count(ctx, bson.M{})
}

type productRepo struct {
	c *collection[datatypes.Product]
}

func (r *productRepo) List(ctx context.Context, f datatypes.ProductFilter) ([]datatypes.Product, error) {
	q := bson.M{}
	enum(q, "category", f.Category)
	enum(q, "status", f.Status)
	searchAny(q, f.Search, "name", "description")
	return r.c.list(ctx, q, f.Limit)
}

func (r *productRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Product, error) {
	return r.c.find(ctx, bson.M{"_id": id})
}

func (r *productRepo) GetBySlug(ctx context.Context, slug string) (*datatypes.Product, error) {
	return r.c.find(ctx, bson.M{"slug": slug})
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
	return r.c.count(ctx, bson.M{})
}

// =============================================================================
// Orders
// =============================================================================

type orderRepo struct {
	c *collection[datatypes.Order]
}

func (r *orderRepo) List(ctx context.Context, f datatypes.OrderFilter) ([]datatypes.Order, error) {
	q := bson.M{}
	enum(q, "status", f.Status)
	if f.Phone != "" {
		q["phone"] = f.Phone
	}
	searchAny(q, f.Search, "customerName", "productName", "phone")
	return r.c.list(ctx, q, 0)
}

func (r *orderRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.Order, error) {
	return r.c.find(ctx, bson.M{"_id": id})
}

func (r *orderRepo) Create(ctx context.Context, o *datatypes.Order) error {
	return r.c.insert(ctx, o)
}

func (r *orderRepo) Update(ctx context.Context, o *datatypes.Order) error {
	return r.c.replace(ctx, o)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to datatypes.OrderStatus, message *string) (*datatypes.Order, error) {
	set := bson.M{
		"status":    to,
		"updatedAt": r.c.now().UTC().Truncate(time.Millisecond),
	}
	if message != nil {
		set["adminMessage"] = *message
	}

	o := new(datatypes.Order)
	err := r.c.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the order is gone or its status moved on.
		if _, ferr := r.Get(ctx, id); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("order %s is no longer %s: %w", id.Hex(), from, store.ErrConflict)
	}
	if err != nil {
		return nil, mapErr("update orders", err)
	}
	return o, nil
}

func (r *orderRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return r.c.remove(ctx, id)
}

func (r *orderRepo) Count(ctx context.Context) (int64, error) {
	return r.c.count(ctx, bson.M{})
}

func (r *orderRepo) CountByStatus(ctx context.Context) (map[datatypes.OrderStatus]int64, error) {
	cur, err := r.c.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate order status: %w", err)
	}
	var rows []struct {
		Status datatypes.OrderStatus `bson:"_id"`
		N      int64                 `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode order status: %w", err)
	}

	counts := make(map[datatypes.OrderStatus]int64, len(datatypes.OrderStatuses))
	for _, st := range datatypes.OrderStatuses {
		counts[st] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

func (r *orderRepo) Revenue(ctx context.Context) (float64, error) {
	cur, err := r.c.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: datatypes.OrderDelivered}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$price"}}},
		}}},
	})
	if err != nil {
		return 0, fmt.Errorf("aggregate revenue: %w", err)
	}
	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode revenue: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// =============================================================================
// Users
// =============================================================================

type userRepo struct {
	c *collection[datatypes.User]
}

func (r *userRepo) List(ctx context.Context, f datatypes.UserFilter) ([]datatypes.User, error) {
	q := bson.M{}
	enum(q, "role", f.Role)
	enum(q, "status", f.Status)
	searchAny(q, f.Search, "name", "phone", "address")
	return r.c.list(ctx, q, 0)
}

func (r *userRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.User, error) {
	return r.c.find(ctx, bson.M{"_id": id})
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*datatypes.User, error) {
	return r.c.find(ctx, bson.M{"phone": phone})
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
	return r.c.count(ctx, bson.M{})
}

// =============================================================================
// Social proof
// =============================================================================

type socialProofRepo struct {
	c *collection[datatypes.SocialProof]
}

func (r *socialProofRepo) List(ctx context.Context, f datatypes.SocialProofFilter) ([]datatypes.SocialProof, error) {
	q := bson.M{}
	enum(q, "status", f.Status)
	searchAny(q, f.Search, "title", "beforeText", "afterText")
	return r.c.list(ctx, q, 0)
}

func (r *socialProofRepo) Get(ctx context.Context, id primitive.ObjectID) (*datatypes.SocialProof, error) {
	return r.c.find(ctx, bson.M{"_id": id})
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
	coll *mongo.Collection
	now  func() time.Time
}

func (r *sessionRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !expiresAt.After(r.now()) {
		return nil
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": tokenID},
		bson.M{"$set": bson.M{"expiresAt": expiresAt.UTC()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("revoke session %s: %w", tokenID, err)
	}
	return nil
}

// IsRevoked also checks expiresAt because the TTL monitor only runs about
// once a minute.
func (r *sessionRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"_id":       tokenID,
		"expiresAt": bson.M{"$gt": r.now().UTC()},
	})
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", tokenID, err)
	}
	return n > 0, nil
}
