// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"

	"github.com/mohinranait/koholi/pkg/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog item. Category holds the owning category's slug.
// Higher Priority values are featured first by the storefront.
type Product struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Name        string             `json:"name" bson:"name"`
	Slug        string             `json:"slug" bson:"slug"`
	Price       float64            `json:"price" bson:"price"`
	Image       string             `json:"image" bson:"image"`
	Category    string             `json:"category" bson:"category"`
	Description string             `json:"description" bson:"description"`
	Status      Status             `json:"status" bson:"status"`
	Priority    int                `json:"priority" bson:"priority"`
	Link        string             `json:"link" bson:"link"`
	Timestamps  `bson:",inline"`
}

// Summary returns the fields embedded in order listings.
func (p *Product) Summary() *ProductSummary {
	return &ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price, Image: p.Image}
}

// ProductSummary is the subset of a product shown next to an order.
type ProductSummary struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Price float64            `json:"price"`
	Image string             `json:"image"`
}

// ProductRequest is the body of POST and PUT /api/products.
type ProductRequest struct {
	Name        string   `json:"name" validate:"required,min=3,max=200"`
	Slug        string   `json:"slug" validate:"required,slug,max=220"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Image       string   `json:"image" validate:"required,max=2048"`
	Category    string   `json:"category" validate:"required,max=120"`
	Description string   `json:"description" validate:"max=5000"`
	Status      Status   `json:"status" validate:"required,oneof=active inactive"`
	Priority    int      `json:"priority" validate:"gte=0"`
	Link        string   `json:"link" validate:"omitempty,url,max=2048"`
}

// Normalize trims input, derives a missing slug from the name and defaults
// the status to active.
func (r *ProductRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Image = strings.TrimSpace(r.Image)
	r.Category = validation.NormalizeSlug(r.Category)
	r.Description = strings.TrimSpace(r.Description)
	r.Link = strings.TrimSpace(r.Link)
	if strings.TrimSpace(r.Slug) == "" {
		r.Slug = validation.Slugify(r.Name)
	} else {
		r.Slug = validation.NormalizeSlug(r.Slug)
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
}

// Validate checks the normalized request.
func (r *ProductRequest) Validate() error {
	return validateStruct(r)
}

// Apply copies the request onto p.
func (r *ProductRequest) Apply(p *Product) {
	p.Name = r.Name
	p.Slug = r.Slug
	if r.Price != nil {
		p.Price = *r.Price
	}
	p.Image = r.Image
	p.Category = r.Category
	p.Description = r.Description
	p.Status = r.Status
	p.Priority = r.Priority
	p.Link = r.Link
}

// ProductFilter selects products for listing.
type ProductFilter struct {
	// Search matches name or description, case-insensitively.
	Search string
	// Category is a category slug, "all" or empty.
	Category string
	// Status is "active", "inactive", "all" or empty.
	Status string
	// Limit caps the result size when positive.
	Limit int
}

// Matches reports whether p passes the filter. Limit is applied by the store.
func (f ProductFilter) Matches(p *Product) bool {
	if !matchEnum(f.Category, p.Category) || !matchEnum(f.Status, string(p.Status)) {
		return false
	}
	if f.Search != "" && !containsFold(p.Name, f.Search) && !containsFold(p.Description, f.Search) {
		return false
	}
	return true
}
