// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
)

// ConfigSource provides the current AppConfig. store.Settings satisfies it.
type ConfigSource interface {
	AppConfig(ctx context.Context) (*datatypes.AppConfig, error)
}

// cloudinaryPut performs the actual upload and returns the secure URL.
type cloudinaryPut func(ctx context.Context, creds datatypes.CloudinaryConfig, folder, publicID string, f File) (string, error)

// CloudinaryUploader uploads to Cloudinary with credentials from AppConfig.
type CloudinaryUploader struct {
	settings ConfigSource
	folder   string
	put      cloudinaryPut
}

// NewCloudinaryUploader reads credentials from settings on every upload.
// An empty folder uses DefaultFolder.
func NewCloudinaryUploader(settings ConfigSource, folder string) *CloudinaryUploader {
	if folder == "" {
		folder = DefaultFolder
	}
	return &CloudinaryUploader{settings: settings, folder: folder, put: putCloudinary}
}

// Backend returns "cloudinary".
func (u *CloudinaryUploader) Backend() string { return "cloudinary" }

// Upload stores f and returns its HTTPS URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, f File) (string, error) {
	cfg, err := u.settings.AppConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load app config: %w", err)
	}
	creds := cfg.Cloudinary
	if !creds.Enabled {
		return "", fmt.Errorf("cloudinary: %w", ErrDisabled)
	}
	if !creds.Complete() {
		return "", fmt.Errorf("cloudinary: %w", ErrIncompleteCredentials)
	}

	// Cloudinary appends the extension itself.
	name := ObjectName("", f.Name)
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		name = name[:dot]
	}
	return u.put(ctx, creds, u.folder, name, f)
}

func putCloudinary(ctx context.Context, creds datatypes.CloudinaryConfig, folder, publicID string, f File) (string, error) {
	cld, err := cloudinary.NewFromParams(creds.CloudName, creds.APIKey, creds.APISecret)
	if err != nil {
		return "", classify("cloudinary", err)
	}
	cld.Config.URL.Secure = true

	res, err := cld.Upload.Upload(ctx, bytes.NewReader(f.Data), uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "image",
	})
	if err != nil {
		return "", classify("cloudinary", err)
	}
	if res.Error.Message != "" {
		return "", classify("cloudinary", errors.New(res.Error.Message))
	}
	if res.SecureURL == "" {
		return "", errors.New("cloudinary upload: response has no secure_url")
	}
	return res.SecureURL, nil
}
