// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package seed

import (
	"context"
	"testing"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store/badgerstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_SeedsOnce(t *testing.T) {
	st, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	res, err := Catalog(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, Result{CategoriesCreated: 3, ProductsCreated: 9}, res)

	res, err = Catalog(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, Result{CategoriesSkipped: 3, ProductsSkipped: 9}, res)

	n, err := st.Products().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 9, n)
}

func TestCatalog_ProductsBelongToSeededCategories(t *testing.T) {
	st, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	_, err = Catalog(ctx, st)
	require.NoError(t, err)

	p, err := st.Products().GetBySlug(ctx, "modern-sofa-set")
	require.NoError(t, err)
	assert.Equal(t, "furniture", p.Category)
	assert.Equal(t, datatypes.StatusActive, p.Status)
	assert.EqualValues(t, 45000, p.Price)

	for _, slug := range []string{"furniture", "electronics", "fashion"} {
		list, err := st.Products().List(ctx, datatypes.ProductFilter{Category: slug})
		require.NoError(t, err)
		assert.Len(t, list, 3, slug)
	}
}

func TestCatalog_KeepsExistingEntries(t *testing.T) {
	st, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	custom := &datatypes.Category{Name: "My Furniture", Slug: "furniture", Status: datatypes.StatusInactive}
	require.NoError(t, st.Categories().Create(ctx, custom))

	res, err := Catalog(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CategoriesCreated)
	assert.Equal(t, 1, res.CategoriesSkipped)

	got, err := st.Categories().GetBySlug(ctx, "furniture")
	require.NoError(t, err)
	assert.Equal(t, "My Furniture", got.Name)
}
