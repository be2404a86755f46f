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
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	Bucket string

	// CredentialsFile is a service account key. Empty uses Application
	// Default Credentials.
	CredentialsFile string

	// PublicBaseURL prefixes object names in returned URLs.
	// Default: https://storage.googleapis.com/<bucket>
	PublicBaseURL string

	// Folder prefixes object names. Default: DefaultFolder.
	Folder string
}

// GCSUploader writes uploads as GCS objects.
type GCSUploader struct {
	client *storage.Client
	cfg    GCSConfig
}

// NewGCSUploader creates the storage client.
func NewGCSUploader(ctx context.Context, cfg GCSConfig) (*GCSUploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required: %w", ErrIncompleteCredentials)
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("gcs: service account key %s: %w", cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return newGCSUploader(client, cfg), nil
}

func newGCSUploader(client *storage.Client, cfg GCSConfig) *GCSUploader {
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	return &GCSUploader{client: client, cfg: cfg}
}

// Backend returns "gcs".
func (u *GCSUploader) Backend() string { return "gcs" }

// Upload writes f under the configured folder and returns its public URL.
func (u *GCSUploader) Upload(ctx context.Context, f File) (string, error) {
	name := ObjectName(u.cfg.Folder, f.Name)

	w := u.client.Bucket(u.cfg.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = f.ContentType
	w.CacheControl = "public, max-age=31536000, immutable"

	if _, err := io.Copy(w, bytes.NewReader(f.Data)); err != nil {
		_ = w.Close()
		return "", classify("gcs", err)
	}
	if err := w.Close(); err != nil {
		return "", classify("gcs", err)
	}
	return publicURL(u.cfg.PublicBaseURL, name), nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	if u.client == nil {
		return errors.New("gcs: client not initialised")
	}
	return u.client.Close()
}
