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
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket string
	Region string

	// Endpoint is an optional custom endpoint for MinIO, R2 and similar.
	// Setting it switches to path-style addressing.
	Endpoint string

	// AccessKeyID and SecretAccessKey are optional static credentials. When
	// empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// PublicBaseURL prefixes keys in returned URLs.
	// Default: https://<bucket>.s3.<region>.amazonaws.com
	PublicBaseURL string

	// Folder prefixes keys. Default: DefaultFolder.
	Folder string
}

// S3Uploader writes uploads with PutObject.
type S3Uploader struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Uploader loads AWS configuration and creates the client.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("s3: bucket and region are required: %w", ErrIncompleteCredentials)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("s3: access key id and secret must be set together: %w", ErrIncompleteCredentials)
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if cfg.PublicBaseURL == "" {
		if cfg.Endpoint != "" {
			cfg.PublicBaseURL = publicURL(cfg.Endpoint, cfg.Bucket)
		} else {
			cfg.PublicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	return &S3Uploader{client: client, cfg: cfg}, nil
}

// Backend returns "s3".
func (u *S3Uploader) Backend() string { return "s3" }

// Upload stores f under the configured folder and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, f File) (string, error) {
	key := ObjectName(u.cfg.Folder, f.Name)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.cfg.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(f.Data),
		ContentType:  aws.String(f.ContentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", classify("s3", err)
	}
	return publicURL(u.cfg.PublicBaseURL, key), nil
}
