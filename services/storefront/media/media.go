// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package media validates uploaded images and stores them with a
// third-party host.
//
// Three backends implement Uploader: Cloudinary (credentials read from the
// AppConfig document on every upload, so admins can rotate them without a
// restart), Google Cloud Storage and S3-compatible object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxUploadSize is the largest accepted file, in bytes.
const MaxUploadSize = 10 << 20

// DefaultFolder is the folder (or key prefix) uploads are stored under.
const DefaultFolder = "koholi"

var (
	// ErrDisabled is returned when the selected backend is switched off.
	ErrDisabled = errors.New("media upload service is disabled")

	// ErrIncompleteCredentials is returned when the backend is enabled but
	// missing credentials.
	ErrIncompleteCredentials = errors.New("media upload credentials are incomplete")

	// ErrFileTooLarge is returned for files over MaxUploadSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedType is returned for anything but the allowed image
	// types.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrInvalidCredentials is returned when the host rejects the
	// configured credentials.
	ErrInvalidCredentials = errors.New("invalid media host credentials")

	// ErrNetwork is returned when the host cannot be reached.
	ErrNetwork = errors.New("network error reaching media host")
)

// allowedTypes are the accepted MIME types. image/jpg is not a registered
// type but some browsers send it.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedTypes returns the accepted MIME types.
func AllowedTypes() []string {
	return []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}
}

// File is a validated upload.
type File struct {
	// Name is the client-supplied file name.
	Name string

	// ContentType is the type sniffed from Data.
	ContentType string

	Data []byte
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)

	// Backend names the implementation for logs and metrics.
	Backend() string
}

// Inspect validates an upload. Both the declared Content-Type (when
// present) and the type sniffed from the content must be allowed images.
func Inspect(name, declared string, data []byte) (File, error) {
	if len(data) > MaxUploadSize {
		return File{}, fmt.Errorf("%d bytes exceeds %d: %w", len(data), MaxUploadSize, ErrFileTooLarge)
	}
	if declared = baseType(declared); declared != "" && !allowedTypes[declared] {
		return File{}, fmt.Errorf("declared %s: %w", declared, ErrUnsupportedType)
	}
	sniffed := baseType(mimetype.Detect(data).String())
	if !allowedTypes[sniffed] {
		return File{}, fmt.Errorf("content is %s: %w", sniffed, ErrUnsupportedType)
	}
	return File{Name: name, ContentType: sniffed, Data: data}, nil
}

func baseType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

// ObjectName returns "<folder>/<uuid>_<sanitised name>".
func ObjectName(folder, filename string) string {
	name := SanitizeFilename(filename)
	if folder == "" {
		return uuid.NewString() + "_" + name
	}
	return strings.Trim(folder, "/") + "/" + uuid.NewString() + "_" + name
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}

// publicURL joins base and an object name.
func publicURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}

// classify wraps transport failures in ErrNetwork and credential rejections
// in ErrInvalidCredentials.
func classify(backend string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return fmt.Errorf("%s upload: %v: %w", backend, err, ErrNetwork)
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"api key", "api_key", "cloud_name", "signature", "invalidaccesskeyid", "accessdenied", "credentials"} {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%s upload: %v: %w", backend, err, ErrInvalidCredentials)
		}
	}
	return fmt.Errorf("%s upload: %w", backend, err)
}
