// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"unicode"
)

// Slugify converts a display name into a URL slug.
//
// Letters and digits are lowercased and kept; every other run of characters
// collapses into a single hyphen. Leading and trailing hyphens are trimmed.
// Non-ASCII letters are dropped, so a name written entirely in another
// script yields an empty slug and callers must ask for one explicitly.
//
//	Slugify("Modern Sofa Set")  // "modern-sofa-set"
//	Slugify("  T-Shirt (XL) ")  // "t-shirt-xl"
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// NormalizeSlug trims and lowercases an explicit slug and re-slugifies it so
// stored slugs never contain spaces or punctuation.
func NormalizeSlug(slug string) string {
	return Slugify(strings.ToLower(strings.TrimSpace(slug)))
}
