// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for user-facing fields.
//
// Phone numbers double as login identities and as the lookup key for a
// customer's orders, so every path that accepts a phone number normalizes it
// here before it reaches the store.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// phonePattern matches Bangladeshi mobile numbers in local form.
// Operators use prefixes 013 through 019; the total length is 11 digits.
var phonePattern = regexp.MustCompile(`^01[3-9]\d{8}$`)

// namePattern allows ASCII letters and spaces only.
var namePattern = regexp.MustCompile(`^[a-zA-Z\s]+$`)

// ValidatePhone validates a Bangladeshi mobile number in local form
// (e.g. 01712345678).
//
// Example:
//
//	if err := validation.ValidatePhone(phone); err != nil {
//	    return fmt.Errorf("invalid phone: %w", err)
//	}
func ValidatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("invalid phone number %q (expected e.g. 01712345678)", phone)
	}
	return nil
}

// IsPhone reports whether phone is a valid Bangladeshi mobile number.
func IsPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizePhone strips separators and the +880 country prefix, then
// validates the result.
//
// Accepted inputs include "01712345678", "+880 1712-345678" and
// "8801712345678"; all normalize to "01712345678".
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+' || r == '.':
			// separators
		default:
			return "", fmt.Errorf("invalid phone number %q", phone)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "880") && len(digits) == 13 {
		digits = "0" + digits[3:]
	}
	if err := ValidatePhone(digits); err != nil {
		return "", err
	}
	return digits, nil
}

// IsPersonName reports whether name is 2-50 characters of letters and spaces.
func IsPersonName(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 50 {
		return false
	}
	return namePattern.MatchString(name)
}
