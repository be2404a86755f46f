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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 64)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 64)...)
)

// =============================================================================
// Inspect
// =============================================================================

func TestInspect(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		data     []byte
		wantType string
		wantErr  error
	}{
		{"png", "image/png", pngBytes, "image/png", nil},
		{"jpeg declared as jpg", "image/jpg", jpegBytes, "image/jpeg", nil},
		{"gif without header", "", gifBytes, "image/gif", nil},
		{"declared with params", "image/png; charset=binary", pngBytes, "image/png", nil},
		{"text disguised as png", "image/png", []byte("hello world"), "", ErrUnsupportedType},
		{"declared pdf", "application/pdf", pngBytes, "", ErrUnsupportedType},
		{"too large", "image/png", make([]byte, MaxUploadSize+1), "", ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Inspect("photo.png", tt.declared, tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, f.ContentType)
			assert.Equal(t, "photo.png", f.Name)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.png":             "photo.png",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\pic 1.jpg`: "pic_1.jpg",
		"...":                   "upload",
		"":                      "upload",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
	long := strings.Repeat("a", 150) + ".png"
	assert.Len(t, SanitizeFilename(long), 100)
	assert.True(t, strings.HasSuffix(SanitizeFilename(long), ".png"))
}

func TestObjectName(t *testing.T) {
	name := ObjectName("koholi/", "My Photo.png")
	assert.True(t, strings.HasPrefix(name, "koholi/"))
	assert.True(t, strings.HasSuffix(name, "_My_Photo.png"))
	assert.NotEqual(t, name, ObjectName("koholi", "My Photo.png"))
	assert.False(t, strings.Contains(ObjectName("", "a.png"), "/"))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("s3", nil))
	assert.ErrorIs(t, classify("cloudinary", errors.New("Invalid api_key 123")), ErrInvalidCredentials)
	assert.NotErrorIs(t, classify("s3", errors.New("boom")), ErrInvalidCredentials)
}

// =============================================================================
// Cloudinary
// =============================================================================

type fakeSettings struct {
	cfg *datatypes.AppConfig
	err error
}

func (f *fakeSettings) AppConfig(context.Context) (*datatypes.AppConfig, error) {
	return f.cfg, f.err
}

func TestCloudinaryUploader(t *testing.T) {
	enabled := datatypes.CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", Enabled: true}

	tests := []struct {
		name    string
		creds   datatypes.CloudinaryConfig
		wantErr error
	}{
		{"disabled", datatypes.CloudinaryConfig{CloudName: "demo"}, ErrDisabled},
		{"incomplete", datatypes.CloudinaryConfig{CloudName: "demo", Enabled: true}, ErrIncompleteCredentials},
		{"ok", enabled, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := &fakeSettings{cfg: &datatypes.AppConfig{Cloudinary: tt.creds}}
			u := NewCloudinaryUploader(settings, "")

			var gotFolder, gotID string
			u.put = func(_ context.Context, creds datatypes.CloudinaryConfig, folder, publicID string, f File) (string, error) {
				gotFolder, gotID = folder, publicID
				return "https://res.cloudinary.com/demo/image/upload/" + folder + "/" + publicID + ".png", nil
			}

			url, err := u.Upload(context.Background(), File{Name: "saree.png", ContentType: "image/png", Data: pngBytes})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, gotID, "no upload attempted")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultFolder, gotFolder)
			assert.True(t, strings.HasSuffix(gotID, "_saree"), gotID)
			assert.Contains(t, url, "res.cloudinary.com")
		})
	}
}

func TestCloudinaryUploader_SettingsError(t *testing.T) {
	u := NewCloudinaryUploader(&fakeSettings{err: errors.New("db down")}, "shop")
	_, err := u.Upload(context.Background(), File{Name: "a.png", Data: pngBytes})
	assert.Error(t, err)
	assert.Equal(t, "cloudinary", u.Backend())
}

// =============================================================================
// S3
// =============================================================================

func TestS3Uploader_PutObject(t *testing.T) {
	var (
		mu        sync.Mutex
		gotPath   string
		gotType   string
		gotBody   []byte
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotMethod, gotPath, gotType, gotBody = r.Method, r.URL.Path, r.Header.Get("Content-Type"), body
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := NewS3Uploader(context.Background(), S3Config{
		Bucket:          "media",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", u.Backend())

	url, err := u.Upload(context.Background(), File{Name: "a b.png", ContentType: "image/png", Data: pngBytes})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.True(t, strings.HasPrefix(gotPath, "/media/koholi/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, "_a_b.png"), gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.True(t, bytes.Contains(gotBody, pngBytes[:8]))
	assert.Equal(t, srv.URL+gotPath, url)
}

func TestNewS3Uploader_Validation(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrIncompleteCredentials)

	_, err = NewS3Uploader(context.Background(), S3Config{Bucket: "b", Region: "us-east-1", AccessKeyID: "only"})
	assert.ErrorIs(t, err, ErrIncompleteCredentials)
}

// =============================================================================
// GCS
// =============================================================================

func TestNewGCSUploader_Validation(t *testing.T) {
	_, err := NewGCSUploader(context.Background(), GCSConfig{})
	assert.ErrorIs(t, err, ErrIncompleteCredentials)

	_, err = NewGCSUploader(context.Background(), GCSConfig{Bucket: "b", CredentialsFile: "/nonexistent/key.json"})
	assert.Error(t, err)
}

func TestGCSUploader_Defaults(t *testing.T) {
	u := newGCSUploader(nil, GCSConfig{Bucket: "koholi-media"})
	assert.Equal(t, "https://storage.googleapis.com/koholi-media", u.cfg.PublicBaseURL)
	assert.Equal(t, DefaultFolder, u.cfg.Folder)
	assert.Equal(t, "gcs", u.Backend())
	assert.Error(t, u.Close())
}
