// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the storefront's documents, request payloads and
// list filters.
//
// Documents carry both json and bson tags with the same camelCase names so
// they round-trip unchanged between the HTTP API, MongoDB and the embedded
// Badger store. Identifiers are MongoDB ObjectIDs in every backend; they
// marshal to JSON as 24-character hex strings.
//
// Request types validate themselves with go-playground/validator tags plus
// the custom tags registered in init (bdphone, personname, slug).
package datatypes

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mohinranait/koholi/pkg/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the visibility flag shared by categories, products, users and
// social-proof notifications.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// FilterAll is the query-string value meaning "no filter" for enum filters.
const FilterAll = "all"

// validate is shared by every request type in this package.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("bdphone", func(fl validator.FieldLevel) bool {
		return validation.IsPhone(fl.Field().String())
	})
	_ = validate.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return validation.IsPersonName(fl.Field().String())
	})
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && validation.NormalizeSlug(s) == s
	})
}

// ValidationError is a request validation failure with a user-facing message
// per offending field.
type ValidationError struct {
	Fields map[string]string
}

// Error lists the fields in name order.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// validateStruct runs the shared validator and converts its errors into a
// *ValidationError keyed by JSON field name.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[jsonFieldPath(fe.Namespace())] = describe(fe)
	}
	return out
}

// jsonFieldPath drops the root type name from a namespace such as
// "AppConfigRequest.cloudinary.cloudName".
func jsonFieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "bdphone":
		return "must be a valid Bangladeshi phone number (e.g. 01712345678)"
	case "personname":
		return "must be 2-50 letters and spaces"
	case "slug":
		return "must be lowercase letters, digits and hyphens"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// NewID returns a fresh document identifier.
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// ParseID parses a hex ObjectID from a path parameter.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", hex, err)
	}
	return id, nil
}

// Timestamps is embedded by every document.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Touch sets UpdatedAt to now and CreatedAt too when it is unset.
func (t *Timestamps) Touch(now time.Time) {
	now = now.UTC().Truncate(time.Millisecond)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// containsFold reports whether substr occurs in s, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// matchEnum reports whether value passes an enum filter where "" and "all"
// mean no filter.
func matchEnum(filter, value string) bool {
	return filter == "" || filter == FilterAll || filter == value
}
