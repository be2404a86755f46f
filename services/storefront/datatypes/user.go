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
	"time"

	"github.com/mohinranait/koholi/pkg/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Placeholder profile values for users created by phone login or by placing
// an order.
const (
	DefaultUserName    = "User"
	DefaultUserAddress = "Not provided"
)

// User is a customer or administrator, identified by phone number.
type User struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	Name       string             `json:"name" bson:"name"`
	Phone      string             `json:"phone" bson:"phone"`
	Address    string             `json:"address" bson:"address"`
	Role       string             `json:"role" bson:"role"`
	Status     Status             `json:"status" bson:"status"`
	LastLogin  *time.Time         `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	Timestamps `bson:",inline"`
}

// NewPhoneUser returns the placeholder user created the first time phone is
// seen.
func NewPhoneUser(phone string) *User {
	return &User{
		Name:    DefaultUserName,
		Phone:   phone,
		Address: DefaultUserAddress,
		Role:    RoleUser,
		Status:  StatusActive,
	}
}

// Session returns the public view of u used in login responses.
func (u *User) Session() SessionUser {
	return SessionUser{
		ID:     u.ID.Hex(),
		Name:   u.Name,
		Phone:  u.Phone,
		Role:   u.Role,
		Status: u.Status,
	}
}

// SessionUser is the user object returned by the auth endpoints.
type SessionUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Role   string `json:"role"`
	Status Status `json:"status"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Phone string `json:"phone" validate:"required,bdphone"`
}

// Normalize canonicalises the phone number.
func (r *LoginRequest) Normalize() {
	r.Phone = normalizePhone(r.Phone)
}

// Validate checks the normalized request.
func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Name    string `json:"name" validate:"required,personname"`
	Phone   string `json:"phone" validate:"required,bdphone"`
	Address string `json:"address" validate:"required,min=10,max=200"`
	Role    string `json:"role" validate:"required,oneof=admin user"`
	Status  Status `json:"status" validate:"required,oneof=active inactive"`
}

// Normalize trims input and applies the role and status defaults.
func (r *CreateUserRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = normalizePhone(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	if r.Role == "" {
		r.Role = RoleUser
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
}

// Validate checks the normalized request.
func (r *CreateUserRequest) Validate() error {
	return validateStruct(r)
}

// User builds the document described by the request.
func (r *CreateUserRequest) User() *User {
	return &User{Name: r.Name, Phone: r.Phone, Address: r.Address, Role: r.Role, Status: r.Status}
}

// UpdateUserRequest is the body of PUT /api/users/:id. Nil fields are left
// unchanged.
type UpdateUserRequest struct {
	Name    *string `json:"name" validate:"omitempty,personname"`
	Phone   *string `json:"phone" validate:"omitempty,bdphone"`
	Address *string `json:"address" validate:"omitempty,min=10,max=200"`
	Role    *string `json:"role" validate:"omitempty,oneof=admin user"`
	Status  *Status `json:"status" validate:"omitempty,oneof=active inactive"`
}

// Normalize trims the provided fields.
func (r *UpdateUserRequest) Normalize() {
	trimPtr(r.Name)
	trimPtr(r.Address)
	if r.Phone != nil {
		*r.Phone = normalizePhone(*r.Phone)
	}
}

// Validate checks the normalized request.
func (r *UpdateUserRequest) Validate() error {
	return validateStruct(r)
}

// Apply copies the provided fields onto u.
func (r *UpdateUserRequest) Apply(u *User) {
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.Phone != nil {
		u.Phone = *r.Phone
	}
	if r.Address != nil {
		u.Address = *r.Address
	}
	if r.Role != nil {
		u.Role = *r.Role
	}
	if r.Status != nil {
		u.Status = *r.Status
	}
}

// UserFilter selects users for listing.
type UserFilter struct {
	// Search matches name, phone or address.
	Search string
	Role   string
	Status string
}

// Matches reports whether u passes the filter.
func (f UserFilter) Matches(u *User) bool {
	if !matchEnum(f.Role, u.Role) || !matchEnum(f.Status, string(u.Status)) {
		return false
	}
	if f.Search != "" &&
		!containsFold(u.Name, f.Search) &&
		!containsFold(u.Phone, f.Search) &&
		!containsFold(u.Address, f.Search) {
		return false
	}
	return true
}

// normalizePhone returns the canonical local form of phone, or the trimmed
// input when it cannot be parsed so that validation reports it.
func normalizePhone(phone string) string {
	if p, err := validation.NormalizePhone(phone); err == nil {
		return p
	}
	return strings.TrimSpace(phone)
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
