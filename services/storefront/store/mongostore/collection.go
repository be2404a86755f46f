// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collection maps store operations for documents of type T onto a MongoDB
// collection.
type collection[T any] struct {
	coll   *mongo.Collection
	sort   bson.D
	id     func(*T) *primitive.ObjectID
	stamps func(*T) *datatypes.Timestamps
	now    func() time.Time
}

// mapErr translates driver errors into store sentinels.
func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, store.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (c *collection[T]) find(ctx context.Context, filter bson.M) (*T, error) {
	doc := new(T)
	if err := c.coll.FindOne(ctx, filter).Decode(doc); err != nil {
		return nil, mapErr("find "+c.coll.Name(), err)
	}
	return doc, nil
}

func (c *collection[T]) insert(ctx context.Context, doc *T) error {
	id := c.id(doc)
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
	c.stamps(doc).Touch(c.now())
	_, err := c.coll.InsertOne(ctx, doc)
	return mapErr("insert "+c.coll.Name(), err)
}

// replace overwrites an existing document. createdAt is taken from the
// stored copy when the caller did not carry it over.
func (c *collection[T]) replace(ctx context.Context, doc *T) error {
	id := *c.id(doc)
	ts := c.stamps(doc)
	if ts.CreatedAt.IsZero() {
		old, err := c.find(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		ts.CreatedAt = c.stamps(old).CreatedAt
	}
	ts.Touch(c.now())

	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return mapErr("replace "+c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *collection[T]) remove(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr("delete "+c.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *collection[T]) list(ctx context.Context, filter bson.M, limit int) ([]T, error) {
	opts := options.Find().SetSort(c.sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr("list "+c.coll.Name(), err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr("decode "+c.coll.Name(), err)
	}
	return out, nil
}

func (c *collection[T]) count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, mapErr("count "+c.coll.Name(), err)
	}
	return n, nil
}

// singleton is a collection expected to hold exactly one document.
type singleton[T any] struct {
	coll     *mongo.Collection
	defaults func() *T
	id       func(*T) *primitive.ObjectID
	stamps   func(*T) *datatypes.Timestamps
	now      func() time.Time
}

// get returns the document, inserting the defaults atomically when the
// collection is empty.
func (s *singleton[T]) get(ctx context.Context) (*T, error) {
	def := s.defaults()
	*s.id(def) = primitive.NewObjectID()
	s.stamps(def).Touch(s.now())

	doc := new(T)
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{},
		bson.M{"$setOnInsert": def},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After).
			SetSort(bson.D{{Key: "_id", Value: 1}}),
	).Decode(doc)
	if err != nil {
		return nil, mapErr("get "+s.coll.Name(), err)
	}
	return doc, nil
}

// save upserts doc, keeping the stored id and createdAt when present.
func (s *singleton[T]) save(ctx context.Context, doc *T) error {
	existing, err := s.get(ctx)
	if err != nil {
		return err
	}
	*s.id(doc) = *s.id(existing)
	s.stamps(doc).CreatedAt = s.stamps(existing).CreatedAt
	s.stamps(doc).Touch(s.now())

	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": *s.id(doc)}, doc, options.Replace().SetUpsert(true))
	return mapErr("save "+s.coll.Name(), err)
}
