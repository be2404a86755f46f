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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// uniqueIndex declares a field whose value must be unique within a
// collection. Empty values are not indexed.
type uniqueIndex[T any] struct {
	field string
	value func(*T) string
}

// collection stores documents of type T as JSON values.
type collection[T any] struct {
	db     *db
	name   string
	id     func(*T) *primitive.ObjectID
	stamps func(*T) *datatypes.Timestamps
	unique []uniqueIndex[T]
	now    func() time.Time

	// byUpdated sorts listings by updatedAt before createdAt.
	byUpdated bool
}

func (c *collection[T]) docPrefix() []byte {
	return []byte("doc/" + c.name + "/")
}

func (c *collection[T]) docKey(id primitive.ObjectID) []byte {
	return []byte("doc/" + c.name + "/" + id.Hex())
}

func (c *collection[T]) idxKey(field, value string) []byte {
	return []byte("idx/" + c.name + "/" + field + "/" + value)
}

func (c *collection[T]) load(txn *badger.Txn, id primitive.ObjectID) (*T, error) {
	item, err := txn.Get(c.docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.name, id.Hex(), err)
	}
	doc := new(T)
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, doc)
	}); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", c.name, id.Hex(), err)
	}
	return doc, nil
}

func (c *collection[T]) get(ctx context.Context, id primitive.ObjectID) (*T, error) {
	var doc *T
	err := c.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		doc, err = c.load(txn, id)
		return err
	})
	return doc, err
}

// getBy resolves a document through one of its unique indexes.
func (c *collection[T]) getBy(ctx context.Context, field, value string) (*T, error) {
	if value == "" {
		return nil, store.ErrNotFound
	}
	var doc *T
	err := c.db.view(ctx, func(txn *badger.Txn) error {
		id, err := c.lookup(txn, field, value)
		if err != nil {
			return err
		}
		doc, err = c.load(txn, id)
		return err
	})
	return doc, err
}

func (c *collection[T]) lookup(txn *badger.Txn, field, value string) (primitive.ObjectID, error) {
	item, err := txn.Get(c.idxKey(field, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return primitive.NilObjectID, store.ErrNotFound
	}
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("get %s index %s: %w", c.name, field, err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("read %s index %s: %w", c.name, field, err)
	}
	return primitive.ObjectIDFromHex(string(raw))
}

// claim points the index entry for value at id, failing with
// store.ErrDuplicate when another document owns it.
func (c *collection[T]) claim(txn *badger.Txn, field, value string, id primitive.ObjectID) error {
	if value == "" {
		return nil
	}
	owner, err := c.lookup(txn, field, value)
	switch {
	case err == nil && owner != id:
		return fmt.Errorf("%s %s %q: %w", c.name, field, value, store.ErrDuplicate)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}
	return txn.Set(c.idxKey(field, value), []byte(id.Hex()))
}

// release drops the index entry for value if id owns it.
func (c *collection[T]) release(txn *badger.Txn, field, value string, id primitive.ObjectID) error {
	if value == "" {
		return nil
	}
	owner, err := c.lookup(txn, field, value)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != id {
		return nil
	}
	return txn.Delete(c.idxKey(field, value))
}

func (c *collection[T]) put(txn *badger.Txn, doc *T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	return txn.Set(c.docKey(*c.id(doc)), data)
}

// insert assigns an id when missing, stamps the document and stores it.
func (c *collection[T]) insert(ctx context.Context, doc *T) error {
	id := c.id(doc)
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
	c.stamps(doc).Touch(c.now())

	return c.db.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(c.docKey(*id)); err == nil {
			return fmt.Errorf("%s %s: %w", c.name, id.Hex(), store.ErrDuplicate)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		for _, u := range c.unique {
			if err := c.claim(txn, u.field, u.value(doc), *id); err != nil {
				return err
			}
		}
		return c.put(txn, doc)
	})
}

// replace overwrites an existing document, moving unique index entries
// whose value changed. createdAt is preserved from the stored copy.
func (c *collection[T]) replace(ctx context.Context, doc *T) error {
	id := *c.id(doc)
	return c.db.update(ctx, func(txn *badger.Txn) error {
		old, err := c.load(txn, id)
		if err != nil {
			return err
		}
		for _, u := range c.unique {
			before, after := u.value(old), u.value(doc)
			if before == after {
				continue
			}
			if err := c.release(txn, u.field, before, id); err != nil {
				return err
			}
			if err := c.claim(txn, u.field, after, id); err != nil {
				return err
			}
		}
		ts := c.stamps(doc)
		ts.CreatedAt = c.stamps(old).CreatedAt
		ts.Touch(c.now())
		return c.put(txn, doc)
	})
}

// modify applies fn to the stored document inside one read-write
// transaction. A concurrent commit to the same key makes the transaction
// conflict and replay, so fn always sees the latest copy. fn must not change
// unique fields.
func (c *collection[T]) modify(ctx context.Context, id primitive.ObjectID, fn func(*T) error) (*T, error) {
	var doc *T
	err := c.db.update(ctx, func(txn *badger.Txn) error {
		var err error
		doc, err = c.load(txn, id)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		c.stamps(doc).Touch(c.now())
		return c.put(txn, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *collection[T]) remove(ctx context.Context, id primitive.ObjectID) error {
	return c.db.update(ctx, func(txn *badger.Txn) error {
		old, err := c.load(txn, id)
		if err != nil {
			return err
		}
		for _, u := range c.unique {
			if err := c.release(txn, u.field, u.value(old), id); err != nil {
				return err
			}
		}
		return txn.Delete(c.docKey(id))
	})
}

// scan decodes every document accepted by keep. A nil keep accepts all.
func (c *collection[T]) scan(ctx context.Context, keep func(*T) bool) ([]T, error) {
	var out []T
	err := c.db.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         c.docPrefix(),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", c.name, err)
			}
			if keep == nil || keep(&doc) {
				out = append(out, doc)
			}
		}
		return nil
	})
	return out, err
}

// list returns matching documents newest first, truncated to limit when it
// is positive.
func (c *collection[T]) list(ctx context.Context, keep func(*T) bool, limit int) ([]T, error) {
	docs, err := c.scan(ctx, keep)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := c.stamps(&docs[i]), c.stamps(&docs[j])
		if c.byUpdated && !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return c.id(&docs[i]).Hex() > c.id(&docs[j]).Hex()
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	if docs == nil {
		docs = []T{}
	}
	return docs, nil
}

func (c *collection[T]) count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: c.docPrefix()})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// singleton is a collection holding exactly one document under a fixed key.
type singleton[T any] struct {
	db       *db
	key      []byte
	defaults func() *T
	id       func(*T) *primitive.ObjectID
	stamps   func(*T) *datatypes.Timestamps
	now      func() time.Time
}

func (s *singleton[T]) read(txn *badger.Txn) (*T, error) {
	item, err := txn.Get(s.key)
	if err != nil {
		return nil, err
	}
	doc := new(T)
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, doc)
	}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return doc, nil
}

func (s *singleton[T]) write(txn *badger.Txn, doc *T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	return txn.Set(s.key, data)
}

// get returns the stored document, creating it from defaults first when
// absent.
func (s *singleton[T]) get(ctx context.Context) (*T, error) {
	var doc *T
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		doc, err = s.read(txn)
		return err
	})
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, err
	}

	err = s.db.update(ctx, func(txn *badger.Txn) error {
		existing, err := s.read(txn)
		if err == nil {
			doc = existing
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		doc = s.defaults()
		*s.id(doc) = primitive.NewObjectID()
		s.stamps(doc).Touch(s.now())
		return s.write(txn, doc)
	})
	return doc, err
}

// save upserts doc, keeping the stored id and createdAt when present.
func (s *singleton[T]) save(ctx context.Context, doc *T) error {
	return s.db.update(ctx, func(txn *badger.Txn) error {
		existing, err := s.read(txn)
		switch {
		case err == nil:
			*s.id(doc) = *s.id(existing)
			s.stamps(doc).CreatedAt = s.stamps(existing).CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			if s.id(doc).IsZero() {
				*s.id(doc) = primitive.NewObjectID()
			}
		default:
			return err
		}
		s.stamps(doc).Touch(s.now())
		return s.write(txn, doc)
	})
}
