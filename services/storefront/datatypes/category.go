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

// Category groups products on the storefront. Products reference a
// category by slug.
type Category struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	Name       string             `json:"name" bson:"name"`
	Slug       string             `json:"slug" bson:"slug"`
	Image      string             `json:"image" bson:"image"`
	Status     Status             `json:"status" bson:"status"`
	Timestamps `bson:",inline"`
}

// CategoryRequest is the body of POST and PUT /api/categories.
type CategoryRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Slug   string `json:"slug" validate:"required,slug,max=120"`
	Image  string `json:"image" validate:"max=2048"`
	Status Status `json:"status" validate:"required,oneof=active inactive"`
}

// Normalize trims input, lowercases the slug (deriving it from the name when
// empty) and defaults the status to active.
func (r *CategoryRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Image = strings.TrimSpace(r.Image)
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
func (r *CategoryRequest) Validate() error {
	return validateStruct(r)
}

// Apply copies the request onto c.
func (r *CategoryRequest) Apply(c *Category) {
	c.Name = r.Name
	c.Slug = r.Slug
	c.Image = r.Image
	c.Status = r.Status
}

// CategoryFilter selects categories for listing.
type CategoryFilter struct {
	// Search matches name or slug, case-insensitively.
	Search string
	// Status is "active", "inactive", "all" or empty.
	Status string
}

// Matches reports whether c passes the filter.
func (f CategoryFilter) Matches(c *Category) bool {
	if !matchEnum(f.Status, string(c.Status)) {
		return false
	}
	if f.Search != "" && !containsFold(c.Name, f.Search) && !containsFold(c.Slug, f.Search) {
		return false
	}
	return true
}
