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

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SocialProof is a storefront toast such as "Rahim from Dhaka / just bought /
// Cotton Panjabi".
type SocialProof struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	BeforeText string             `json:"beforeText" bson:"beforeText"`
	AfterText  string             `json:"afterText" bson:"afterText"`
	Title      string             `json:"title" bson:"title"`
	Image      string             `json:"image" bson:"image"`
	Status     Status             `json:"status" bson:"status"`
	Timestamps `bson:",inline"`
}

// SocialProofRequest is the body of POST /api/social-proof.
type SocialProofRequest struct {
	BeforeText string `json:"beforeText" validate:"max=200"`
	AfterText  string `json:"afterText" validate:"max=200"`
	Title      string `json:"title" validate:"required,max=200"`
	Image      string `json:"image" validate:"max=2048"`
	Status     Status `json:"status" validate:"required,oneof=active inactive"`
}

// Normalize trims the text fields and defaults the status to active.
func (r *SocialProofRequest) Normalize() {
	r.BeforeText = strings.TrimSpace(r.BeforeText)
	r.AfterText = strings.TrimSpace(r.AfterText)
	r.Title = strings.TrimSpace(r.Title)
	r.Image = strings.TrimSpace(r.Image)
	if r.Status == "" {
		r.Status = StatusActive
	}
}

// Validate checks the normalized request.
func (r *SocialProofRequest) Validate() error {
	return validateStruct(r)
}

// SocialProof builds the document described by the request.
func (r *SocialProofRequest) SocialProof() *SocialProof {
	return &SocialProof{
		BeforeText: r.BeforeText,
		AfterText:  r.AfterText,
		Title:      r.Title,
		Image:      r.Image,
		Status:     r.Status,
	}
}

// SocialProofPatch is the body of PATCH /api/social-proof/:id.
type SocialProofPatch struct {
	BeforeText *string `json:"beforeText" validate:"omitempty,max=200"`
	AfterText  *string `json:"afterText" validate:"omitempty,max=200"`
	Title      *string `json:"title" validate:"omitempty,min=1,max=200"`
	Image      *string `json:"image" validate:"omitempty,max=2048"`
	Status     *Status `json:"status" validate:"omitempty,oneof=active inactive"`
}

// Normalize trims the provided fields.
func (p *SocialProofPatch) Normalize() {
	trimPtr(p.BeforeText)
	trimPtr(p.AfterText)
	trimPtr(p.Title)
	trimPtr(p.Image)
}

// Validate checks the normalized patch.
func (p *SocialProofPatch) Validate() error {
	return validateStruct(p)
}

// Apply copies the provided fields onto sp.
func (p *SocialProofPatch) Apply(sp *SocialProof) {
	if p.BeforeText != nil {
		sp.BeforeText = *p.BeforeText
	}
	if p.AfterText != nil {
		sp.AfterText = *p.AfterText
	}
	if p.Title != nil {
		sp.Title = *p.Title
	}
	if p.Image != nil {
		sp.Image = *p.Image
	}
	if p.Status != nil {
		sp.Status = *p.Status
	}
}

// SocialProofFilter selects notifications for listing.
type SocialProofFilter struct {
	// Search matches title, beforeText or afterText.
	Search string
	Status string
}

// Matches reports whether sp passes the filter.
func (f SocialProofFilter) Matches(sp *SocialProof) bool {
	if !matchEnum(f.Status, string(sp.Status)) {
		return false
	}
	if f.Search != "" &&
		!containsFold(sp.Title, f.Search) &&
		!containsFold(sp.BeforeText, f.Search) &&
		!containsFold(sp.AfterText, f.Search) {
		return false
	}
	return true
}
