// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storetest is a conformance suite run against every store.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The suite closes it when the test ends.
type Factory func(t *testing.T) store.Store

// Run exercises every repository of the store returned by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CategoryCRUD", testCategoryCRUD},
		{"CategoryDuplicateSlug", testCategoryDuplicateSlug},
		{"CategoryListOrder", testCategoryListOrder},
		{"ProductFilters", testProductFilters},
		{"ProductSearchIsLiteral", testProductSearchIsLiteral},
		{"OrderAggregates", testOrderAggregates},
		{"OrderPhoneFilter", testOrderPhoneFilter},
		{"OrderUpdateStatus", testOrderUpdateStatus},
		{"UserPhoneUnique", testUserPhoneUnique},
		{"SocialProofUpdate", testSocialProofUpdate},
		{"SettingsGetOrCreate", testSettingsGetOrCreate},
		{"SessionRevocation", testSessionRevocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

func testCategoryCRUD(t *testing.T, s store.Store) {
	c := ctx(t)
	cats := s.Categories()

	cat := &datatypes.Category{Name: "Saree", Slug: "saree", Status: datatypes.StatusActive}
	require.NoError(t, cats.Create(c, cat))
	assert.False(t, cat.ID.IsZero())
	assert.False(t, cat.CreatedAt.IsZero())

	got, err := cats.GetBySlug(c, "saree")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, got.ID)
	assert.Equal(t, "Saree", got.Name)

	got.Slug = "sarees"
	got.Name = "Sarees"
	require.NoError(t, cats.Update(c, got))

	_, err = cats.GetBySlug(c, "saree")
	assert.ErrorIs(t, err, store.ErrNotFound)
	moved, err := cats.Get(c, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "sarees", moved.Slug)
	assert.True(t, moved.CreatedAt.Equal(cat.CreatedAt))

	n, err := cats.Count(c)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, cats.Delete(c, cat.ID))
	assert.ErrorIs(t, cats.Delete(c, cat.ID), store.ErrNotFound)
	_, err = cats.Get(c, cat.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ghost := &datatypes.Category{ID: datatypes.NewID(), Name: "Ghost", Slug: "ghost"}
	assert.ErrorIs(t, cats.Update(c, ghost), store.ErrNotFound)
}

func testCategoryDuplicateSlug(t *testing.T, s store.Store) {
	c := ctx(t)
	cats := s.Categories()

	require.NoError(t, cats.Create(c, &datatypes.Category{Name: "Saree", Slug: "saree", Status: datatypes.StatusActive}))
	err := cats.Create(c, &datatypes.Category{Name: "Saree 2", Slug: "saree", Status: datatypes.StatusActive})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	other := &datatypes.Category{Name: "Panjabi", Slug: "panjabi", Status: datatypes.StatusActive}
	require.NoError(t, cats.Create(c, other))
	other.Slug = "saree"
	assert.ErrorIs(t, cats.Update(c, other), store.ErrDuplicate)

	// The failed update must not have released the original slug.
	got, err := cats.GetBySlug(c, "panjabi")
	require.NoError(t, err)
	assert.Equal(t, "Panjabi", got.Name)
}

func testCategoryListOrder(t *testing.T, s store.Store) {
	c := ctx(t)
	cats := s.Categories()

	first := &datatypes.Category{Name: "First", Slug: "first", Status: datatypes.StatusActive}
	second := &datatypes.Category{Name: "Second", Slug: "second", Status: datatypes.StatusInactive}
	require.NoError(t, cats.Create(c, first))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cats.Create(c, second))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cats.Update(c, first))

	all, err := cats.List(c, datatypes.CategoryFilter{Status: datatypes.FilterAll})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Slug, "most recently updated first")

	active, err := cats.List(c, datatypes.CategoryFilter{Status: "active"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "first", active[0].Slug)

	found, err := cats.List(c, datatypes.CategoryFilter{Search: "SEC"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "second", found[0].Slug)
}

func seedProducts(t *testing.T, s store.Store) {
	c := ctx(t)
	products := []datatypes.Product{
		{Name: "Cotton Saree", Slug: "cotton-saree", Price: 1200, Category: "saree", Status: datatypes.StatusActive, Description: "Soft (handloom) cotton"},
		{Name: "Silk Saree", Slug: "silk-saree", Price: 4500, Category: "saree", Status: datatypes.StatusInactive},
		{Name: "Eid Panjabi", Slug: "eid-panjabi", Price: 2200, Category: "panjabi", Status: datatypes.StatusActive},
	}
	for i := range products {
		require.NoError(t, s.Products().Create(c, &products[i]))
	}
}

func testProductFilters(t *testing.T, s store.Store) {
	c := ctx(t)
	seedProducts(t, s)
	products := s.Products()

	saree, err := products.List(c, datatypes.ProductFilter{Category: "saree"})
	require.NoError(t, err)
	assert.Len(t, saree, 2)

	active, err := products.List(c, datatypes.ProductFilter{Category: "saree", Status: "active"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "cotton-saree", active[0].Slug)

	limited, err := products.List(c, datatypes.ProductFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	byDesc, err := products.List(c, datatypes.ProductFilter{Search: "handloom"})
	require.NoError(t, err)
	require.Len(t, byDesc, 1)

	none, err := products.List(c, datatypes.ProductFilter{Category: "lehenga"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	p, err := products.GetBySlug(c, "eid-panjabi")
	require.NoError(t, err)
	assert.Equal(t, 2200.0, p.Price)

	n, err := products.Count(c)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func testProductSearchIsLiteral(t *testing.T, s store.Store) {
	c := ctx(t)
	seedProducts(t, s)

	found, err := s.Products().List(c, datatypes.ProductFilter{Search: "(handloom)"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	none, err := s.Products().List(c, datatypes.ProductFilter{Search: ".*"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testOrderAggregates(t *testing.T, s store.Store) {
	c := ctx(t)
	orders := []datatypes.Order{
		{ProductID: datatypes.NewID(), ProductName: "Saree", Phone: "01712345678", Price: 1000, Status: datatypes.OrderDelivered},
		{ProductID: datatypes.NewID(), ProductName: "Saree", Phone: "01712345678", Price: 500, Status: datatypes.OrderDelivered},
		{ProductID: datatypes.NewID(), ProductName: "Panjabi", Phone: "01812345678", Price: 900, Status: datatypes.OrderPending},
		{ProductID: datatypes.NewID(), ProductName: "Panjabi", Phone: "01812345678", Price: 700, Status: datatypes.OrderCancelled},
	}
	for i := range orders {
		require.NoError(t, s.Orders().Create(c, &orders[i]))
	}

	byStatus, err := s.Orders().CountByStatus(c)
	require.NoError(t, err)
	assert.EqualValues(t, 2, byStatus[datatypes.OrderDelivered])
	assert.EqualValues(t, 1, byStatus[datatypes.OrderPending])
	assert.EqualValues(t, 1, byStatus[datatypes.OrderCancelled])
	assert.Contains(t, byStatus, datatypes.OrderConfirmed)
	assert.EqualValues(t, 0, byStatus[datatypes.OrderConfirmed])

	revenue, err := s.Orders().Revenue(c)
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, revenue, 0.001)

	n, err := s.Orders().Count(c)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func testOrderPhoneFilter(t *testing.T, s store.Store) {
	c := ctx(t)
	first := &datatypes.Order{ProductName: "Saree", CustomerName: "Rahim", Phone: "01712345678", Status: datatypes.OrderPending}
	second := &datatypes.Order{ProductName: "Panjabi", CustomerName: "Rahim", Phone: "01712345678", Status: datatypes.OrderConfirmed}
	other := &datatypes.Order{ProductName: "Saree", CustomerName: "Karim", Phone: "01812345678", Status: datatypes.OrderPending}
	require.NoError(t, s.Orders().Create(c, first))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Orders().Create(c, second))
	require.NoError(t, s.Orders().Create(c, other))

	mine, err := s.Orders().List(c, datatypes.OrderFilter{Phone: "01712345678"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	pending, err := s.Orders().List(c, datatypes.OrderFilter{Search: "saree", Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	o, err := s.Orders().Get(c, first.ID)
	require.NoError(t, err)
	o.Status = datatypes.OrderConfirmed
	o.AdminMessage = "Ships tomorrow"
	require.NoError(t, s.Orders().Update(c, o))

	o, err = s.Orders().Get(c, first.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OrderConfirmed, o.Status)
	assert.Equal(t, "Ships tomorrow", o.AdminMessage)
}

func testOrderUpdateStatus(t *testing.T, s store.Store) {
	c := ctx(t)
	o := &datatypes.Order{ProductName: "Saree", Phone: "01712345678", Status: datatypes.OrderPending, AdminMessage: "New"}
	require.NoError(t, s.Orders().Create(c, o))

	// A nil message leaves the stored one alone.
	got, err := s.Orders().UpdateStatus(c, o.ID, datatypes.OrderPending, datatypes.OrderConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OrderConfirmed, got.Status)
	assert.Equal(t, "New", got.AdminMessage)
	assert.True(t, got.CreatedAt.Equal(o.CreatedAt))

	// Stale "from" is rejected and nothing is written.
	msg := "Gone"
	_, err = s.Orders().UpdateStatus(c, o.ID, datatypes.OrderPending, datatypes.OrderCancelled, &msg)
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err = s.Orders().Get(c, o.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OrderConfirmed, got.Status)
	assert.Equal(t, "New", got.AdminMessage)

	got, err = s.Orders().UpdateStatus(c, o.ID, datatypes.OrderConfirmed, datatypes.OrderDelivered, &msg)
	require.NoError(t, err)
	assert.Equal(t, datatypes.OrderDelivered, got.Status)
	assert.Equal(t, "Gone", got.AdminMessage)

	_, err = s.Orders().UpdateStatus(c, datatypes.NewID(), datatypes.OrderPending, datatypes.OrderConfirmed, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUserPhoneUnique(t *testing.T, s store.Store) {
	c := ctx(t)
	users := s.Users()

	u := datatypes.NewPhoneUser("01712345678")
	require.NoError(t, users.Create(c, u))
	assert.ErrorIs(t, users.Create(c, datatypes.NewPhoneUser("01712345678")), store.ErrDuplicate)

	got, err := users.GetByPhone(c, "01712345678")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	now := time.Now().UTC().Truncate(time.Millisecond)
	got.LastLogin = &now
	got.Phone = "01912345678"
	require.NoError(t, users.Update(c, got))

	_, err = users.GetByPhone(c, "01712345678")
	assert.ErrorIs(t, err, store.ErrNotFound)
	moved, err := users.GetByPhone(c, "01912345678")
	require.NoError(t, err)
	require.NotNil(t, moved.LastLogin)
	assert.True(t, moved.LastLogin.Equal(now))

	// The old phone is free again.
	require.NoError(t, users.Create(c, datatypes.NewPhoneUser("01712345678")))

	admins, err := users.List(c, datatypes.UserFilter{Role: datatypes.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, admins)

	all, err := users.List(c, datatypes.UserFilter{Search: "0191"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testSocialProofUpdate(t *testing.T, s store.Store) {
	c := ctx(t)
	sp := &datatypes.SocialProof{BeforeText: "Rahim from Dhaka", AfterText: "just bought", Title: "Saree", Status: datatypes.StatusActive}
	require.NoError(t, s.SocialProofs().Create(c, sp))
	require.NoError(t, s.SocialProofs().Create(c, &datatypes.SocialProof{Title: "Panjabi", Status: datatypes.StatusInactive}))

	active, err := s.SocialProofs().List(c, datatypes.SocialProofFilter{Status: "active"})
	require.NoError(t, err)
	require.Len(t, active, 1)

	sp.Status = datatypes.StatusInactive
	require.NoError(t, s.SocialProofs().Update(c, sp))
	active, err = s.SocialProofs().List(c, datatypes.SocialProofFilter{Status: "active"})
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.SocialProofs().Delete(c, sp.ID))
	_, err = s.SocialProofs().Get(c, sp.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSettingsGetOrCreate(t *testing.T, s store.Store) {
	c := ctx(t)
	settings := s.Settings()

	cfg, err := settings.AppConfig(c)
	require.NoError(t, err)
	assert.Equal(t, datatypes.DefaultSMTPHost, cfg.SMTP.Host)
	assert.Equal(t, datatypes.DefaultSMTPPort, cfg.SMTP.Port)
	assert.False(t, cfg.ID.IsZero())

	again, err := settings.AppConfig(c)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, again.ID)

	cfg.Crisp = datatypes.CrispConfig{WebsiteID: "abc", Enabled: true}
	require.NoError(t, settings.SaveAppConfig(c, cfg))
	again, err = settings.AppConfig(c)
	require.NoError(t, err)
	assert.Equal(t, "abc", again.Crisp.WebsiteID)
	assert.Equal(t, cfg.ID, again.ID)

	site, err := settings.SiteSettings(c)
	require.NoError(t, err)
	assert.Equal(t, "Koholi", site.SiteName)
	assert.True(t, site.MarqueStatus)

	fresh := datatypes.DefaultSiteSettings()
	fresh.Marque = "Free delivery in Dhaka"
	require.NoError(t, settings.SaveSiteSettings(c, fresh))
	site, err = settings.SiteSettings(c)
	require.NoError(t, err)
	assert.Equal(t, "Free delivery in Dhaka", site.Marque)
	assert.Equal(t, fresh.ID, site.ID)
}

func testSessionRevocation(t *testing.T, s store.Store) {
	c := ctx(t)
	sessions := s.Sessions()

	revoked, err := sessions.IsRevoked(c, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, sessions.Revoke(c, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = sessions.IsRevoked(c, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, sessions.Revoke(c, "jti-2", time.Now().Add(-time.Minute)))
	revoked, err = sessions.IsRevoked(c, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
