// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/services/storefront/media"
	"github.com/mohinranait/koholi/services/storefront/middleware"
	"github.com/mohinranait/koholi/services/storefront/observability"
)

// multipartOverhead is the allowance for form boundaries and headers on
// top of the file itself.
const multipartOverhead = 1 << 20

var backendNames = map[string]string{
	"cloudinary": "Cloudinary",
	"gcs":        "Cloud Storage",
	"s3":         "S3",
}

// UploadMedia handles POST /api/media. The multipart field "file" must be
// an image no larger than media.MaxUploadSize. Responds with the public URL.
func UploadMedia(uploader media.Uploader, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, media.MaxUploadSize+multipartOverhead)

		header, err := c.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				respondError(c, http.StatusBadRequest, "File size too large. Maximum 10MB allowed")
				return
			}
			respondError(c, http.StatusBadRequest, "No file provided")
			return
		}
		if header.Size > media.MaxUploadSize {
			respondError(c, http.StatusBadRequest, "File size too large. Maximum 10MB allowed")
			return
		}

		src, err := header.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "No file provided")
			return
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, media.MaxUploadSize+1))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Upload failed")
			return
		}

		file, err := media.Inspect(header.Filename, header.Header.Get("Content-Type"), data)
		switch {
		case errors.Is(err, media.ErrFileTooLarge):
			respondError(c, http.StatusBadRequest, "File size too large. Maximum 10MB allowed")
			return
		case err != nil:
			respondError(c, http.StatusBadRequest, "Invalid file type. Only images are allowed")
			return
		}

		url, err := uploader.Upload(c.Request.Context(), file)
		metrics.RecordUpload(uploader.Backend(), err == nil)
		if err != nil {
			status, msg := uploadFailure(uploader.Backend(), err)
			slog.Error("media upload failed",
				"backend", uploader.Backend(),
				"error", err,
				"request_id", middleware.GetRequestID(c))
			respondError(c, status, msg)
			return
		}

		slog.Info("media uploaded", "backend", uploader.Backend(), "bytes", len(file.Data), "type", file.ContentType)
		respondData(c, http.StatusOK, url)
	}
}

// uploadFailure returns the status and message for an uploader error.
func uploadFailure(backend string, err error) (int, string) {
	name := backendNames[backend]
	if name == "" {
		name = backend
	}
	switch {
	case errors.Is(err, media.ErrDisabled):
		return http.StatusBadRequest, fmt.Sprintf("%s service is disabled", name)
	case errors.Is(err, media.ErrIncompleteCredentials):
		return http.StatusInternalServerError, fmt.Sprintf("%s credentials are incomplete", name)
	case errors.Is(err, media.ErrInvalidCredentials):
		return http.StatusInternalServerError, fmt.Sprintf("Invalid %s API credentials", name)
	case errors.Is(err, media.ErrNetwork):
		return http.StatusInternalServerError, "Network error. Please try again"
	default:
		return http.StatusInternalServerError, "Upload failed. Please try again"
	}
}
