// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package seed loads the demo catalog into an empty or partially filled
// store. Entries are matched by slug, so seeding twice changes nothing.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohinranait/koholi/pkg/validation"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
)

const placeholderCategoryImage = "/placeholder.svg?height=300&width=400"
const placeholderProductImage = "/placeholder.svg?height=300&width=300"

// Categories is the demo category set.
var Categories = []datatypes.Category{
	{Name: "Furniture", Slug: "furniture", Image: placeholderCategoryImage, Status: datatypes.StatusActive},
	{Name: "Electronics", Slug: "electronics", Image: placeholderCategoryImage, Status: datatypes.StatusActive},
	{Name: "Fashion", Slug: "fashion", Image: placeholderCategoryImage, Status: datatypes.StatusActive},
}

// Products is the demo product set, three per category.
var Products = []datatypes.Product{
	{Name: "Modern Sofa Set", Price: 45000, Category: "furniture", Priority: 1,
		Description: "Comfortable 3-seater modern sofa with premium fabric upholstery."},
	{Name: "Dining Table", Price: 25000, Category: "furniture", Priority: 2,
		Description: "6-seater wooden dining table with elegant design."},
	{Name: "Office Chair", Price: 8000, Category: "furniture", Priority: 3,
		Description: "Ergonomic office chair with lumbar support."},

	{Name: "Smartphone", Price: 35000, Category: "electronics", Priority: 1,
		Description: "Latest smartphone with advanced camera and long battery life."},
	{Name: "Laptop", Price: 65000, Category: "electronics", Priority: 2,
		Description: "High-performance laptop for work and gaming."},
	{Name: "Headphones", Price: 5000, Category: "electronics", Priority: 3,
		Description: "Wireless noise-cancelling headphones."},

	{Name: "Casual T-Shirt", Price: 1200, Category: "fashion", Priority: 1,
		Description: "Comfortable cotton t-shirt for everyday wear."},
	{Name: "Jeans", Price: 2500, Category: "fashion", Priority: 2,
		Description: "Premium denim jeans with perfect fit."},
	{Name: "Sneakers", Price: 4500, Category: "fashion", Priority: 3,
		Description: "Comfortable sports sneakers for daily use."},
}

// Result counts what a Catalog call inserted and skipped.
type Result struct {
	CategoriesCreated int
	CategoriesSkipped int
	ProductsCreated   int
	ProductsSkipped   int
}

// Catalog inserts every demo category and product whose slug is not yet
// taken.
func Catalog(ctx context.Context, st store.Store) (Result, error) {
	var res Result

	for _, c := range Categories {
		created, err := createIfMissing(ctx, func() error {
			_, err := st.Categories().GetBySlug(ctx, c.Slug)
			return err
		}, func() error {
			return st.Categories().Create(ctx, &c)
		})
		if err != nil {
			return res, fmt.Errorf("seed category %s: %w", c.Slug, err)
		}
		if created {
			res.CategoriesCreated++
		} else {
			res.CategoriesSkipped++
		}
	}

	for _, p := range Products {
		p.Slug = validation.Slugify(p.Name)
		p.Image = placeholderProductImage
		p.Status = datatypes.StatusActive
		created, err := createIfMissing(ctx, func() error {
			_, err := st.Products().GetBySlug(ctx, p.Slug)
			return err
		}, func() error {
			return st.Products().Create(ctx, &p)
		})
		if err != nil {
			return res, fmt.Errorf("seed product %s: %w", p.Slug, err)
		}
		if created {
			res.ProductsCreated++
		} else {
			res.ProductsSkipped++
		}
	}
	return res, nil
}

// createIfMissing runs create when lookup reports store.ErrNotFound. A
// concurrent insert of the same slug counts as skipped.
func createIfMissing(ctx context.Context, lookup, create func() error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := lookup()
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}
	if err := create(); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
