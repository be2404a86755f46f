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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/media"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondStoreError(t *testing.T) {
	msgs := errorMessages{notFound: "Thing not found", duplicate: "Thing exists", failed: "Failed to do thing"}
	tests := []struct {
		name    string
		err     error
		msgs    errorMessages
		status  int
		message string
	}{
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), msgs, http.StatusNotFound, "Thing not found"},
		{"duplicate", store.ErrDuplicate, msgs, http.StatusBadRequest, "Thing exists"},
		{"validation", &datatypes.ValidationError{Fields: map[string]string{"name": "is required"}}, msgs, http.StatusBadRequest, "validation failed: name: is required"},
		{"unexpected", errors.New("disk full"), msgs, http.StatusInternalServerError, "Failed to do thing"},
		{"not found without message", store.ErrNotFound, errorMessages{failed: "Failed"}, http.StatusInternalServerError, "Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondStoreError(c, tt.err, tt.msgs)

			assert.Equal(t, tt.status, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Error)
		})
	}
}

func TestResponse_EmptyListKeepsData(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondData(c, http.StatusOK, []datatypes.Category{})
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestUploadFailure(t *testing.T) {
	tests := []struct {
		backend string
		err     error
		status  int
		message string
	}{
		{"cloudinary", media.ErrDisabled, http.StatusBadRequest, "Cloudinary service is disabled"},
		{"cloudinary", media.ErrIncompleteCredentials, http.StatusInternalServerError, "Cloudinary credentials are incomplete"},
		{"cloudinary", fmt.Errorf("x: %w", media.ErrInvalidCredentials), http.StatusInternalServerError, "Invalid Cloudinary API credentials"},
		{"s3", media.ErrInvalidCredentials, http.StatusInternalServerError, "Invalid S3 API credentials"},
		{"gcs", media.ErrNetwork, http.StatusInternalServerError, "Network error. Please try again"},
		{"gcs", errors.New("boom"), http.StatusInternalServerError, "Upload failed. Please try again"},
	}
	for _, tt := range tests {
		status, msg := uploadFailure(tt.backend, tt.err)
		assert.Equal(t, tt.status, status, tt.message)
		assert.Equal(t, tt.message, msg)
	}
}
