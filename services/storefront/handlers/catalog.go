// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
)

var (
	categoryErrors = errorMessages{
		notFound:  "Category not found",
		duplicate: "Category slug already exists",
	}
	productErrors = errorMessages{
		notFound:  "Product not found",
		duplicate: "Product slug already exists",
	}
)

// =============================================================================
// Categories
// =============================================================================

// ListCategories handles GET /api/categories?search&status.
func ListCategories(categories store.Categories) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := datatypes.CategoryFilter{
			Search: c.Query("search"),
			Status: c.Query("status"),
		}
		list, err := categories.List(c.Request.Context(), f)
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch categories"})
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

// GetCategoryBySlug handles GET /api/categories/slug/:slug.
func GetCategoryBySlug(categories store.Categories) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := categories.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondStoreError(c, err, with(categoryErrors, "Failed to fetch categories"))
			return
		}
		respondData(c, http.StatusOK, cat)
	}
}

// CreateCategory handles POST /api/categories.
func CreateCategory(categories store.Categories) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CategoryRequest
		if !bindRequest(c, &req) {
			return
		}
		var cat datatypes.Category
		req.Apply(&cat)
		if err := categories.Create(c.Request.Context(), &cat); err != nil {
			respondStoreError(c, err, with(categoryErrors, "Failed to create category"))
			return
		}
		respondData(c, http.StatusCreated, cat)
	}
}

// UpdateCategory handles PUT /api/categories/:id.
func UpdateCategory(categories store.Categories) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, categoryErrors.notFound)
		if !ok {
			return
		}
		var req datatypes.CategoryRequest
		if !bindRequest(c, &req) {
			return
		}
		ctx := c.Request.Context()
		cat, err := categories.Get(ctx, id)
		if err != nil {
			respondStoreError(c, err, with(categoryErrors, "Failed to update category"))
			return
		}
		req.Apply(cat)
		if err := categories.Update(ctx, cat); err != nil {
			respondStoreError(c, err, with(categoryErrors, "Failed to update category"))
			return
		}
		respondData(c, http.StatusOK, cat)
	}
}

// DeleteCategory handles DELETE /api/categories/:id.
func DeleteCategory(categories store.Categories) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, categoryErrors.notFound)
		if !ok {
			return
		}
		if err := categories.Delete(c.Request.Context(), id); err != nil {
			respondStoreError(c, err, with(categoryErrors, "Failed to delete category"))
			return
		}
		respondMessage(c, "Category deleted successfully")
	}
}

// =============================================================================
// Products
// =============================================================================

// ListProducts handles GET /api/products?search&category&status&limit. A
// limit that is not a positive integer is ignored.
func ListProducts(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := datatypes.ProductFilter{
			Search:   c.Query("search"),
			Category: c.Query("category"),
			Status:   c.Query("status"),
		}
		if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
			f.Limit = n
		}
		list, err := products.List(c.Request.Context(), f)
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch products"})
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

// GetProduct handles GET /api/products/:id.
func GetProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, productErrors.notFound)
		if !ok {
			return
		}
		p, err := products.Get(c.Request.Context(), id)
		if err != nil {
			respondStoreError(c, err, with(productErrors, "Failed to fetch product"))
			return
		}
		respondData(c, http.StatusOK, p)
	}
}

// GetProductBySlug handles GET /api/products/slug/:slug.
func GetProductBySlug(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := products.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondStoreError(c, err, with(productErrors, "Failed to fetch product"))
			return
		}
		respondData(c, http.StatusOK, p)
	}
}

// CreateProduct handles POST /api/products.
func CreateProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ProductRequest
		if !bindRequest(c, &req) {
			return
		}
		var p datatypes.Product
		req.Apply(&p)
		if err := products.Create(c.Request.Context(), &p); err != nil {
			respondStoreError(c, err, with(productErrors, "Failed to create product"))
			return
		}
		respondData(c, http.StatusCreated, p)
	}
}

// UpdateProduct handles PUT /api/products/:id. A body without a slug keeps
// the stored one so renaming a product does not move its URL.
func UpdateProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, productErrors.notFound)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		p, err := products.Get(ctx, id)
		if err != nil {
			respondStoreError(c, err, with(productErrors, "Failed to update product"))
			return
		}
		req := datatypes.ProductRequest{Slug: p.Slug}
		if !bindRequest(c, &req) {
			return
		}
		req.Apply(p)
		if err := products.Update(ctx, p); err != nil {
			respondStoreError(c, err, with(productErrors, "Failed to update product"))
			return
		}
		respondData(c, http.StatusOK, p)
	}
}

// DeleteProduct handles DELETE /api/products/:id.
func DeleteProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, productErrors.notFound)
		if !ok {
			return
		}
		if err := products.Delete(c.Request.Context(), id); err != nil {
			respondStoreError(c, err, with(productErrors, "Failed to delete product"))
			return
		}
		respondMessage(c, "Product deleted successfully")
	}
}
