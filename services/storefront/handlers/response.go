// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the storefront and admin HTTP API.
//
// Every endpoint answers with the same JSON envelope:
//
//	{"success": true,  "data": ...}
//	{"success": true,  "message": "Category deleted successfully"}
//	{"success": false, "error": "Category not found"}
//
// Handlers are constructors returning gin.HandlerFunc closures over the
// dependencies they use. Authorization is applied by middleware in the
// routes package, never inside a handler.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/middleware"
	"github.com/mohinranait/koholi/services/storefront/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Response is the API envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// request is implemented by every decoded body. Normalize is optional.
type request interface {
	Validate() error
}

type normalizer interface {
	Normalize()
}

// errorMessages are the user-facing strings for one resource.
type errorMessages struct {
	notFound  string
	duplicate string
	failed    string
}

// with returns msgs with the fallback message set.
func with(msgs errorMessages, failed string) errorMessages {
	msgs.failed = failed
	return msgs
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: msg})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// bindRequest decodes the JSON body into req, normalizes it and validates
// it. On failure it writes a 400 and returns false.
func bindRequest(c *gin.Context, req request) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if n, ok := req.(normalizer); ok {
		n.Normalize()
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// pathID parses the :id parameter. Malformed ids are reported as missing
// documents.
func pathID(c *gin.Context, notFound string) (primitive.ObjectID, bool) {
	id, err := datatypes.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, notFound)
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondStoreError maps store sentinels onto HTTP statuses. Unexpected
// errors are logged and reported as 500 with msgs.failed.
func respondStoreError(c *gin.Context, err error, msgs errorMessages) {
	switch {
	case errors.Is(err, store.ErrNotFound) && msgs.notFound != "":
		respondError(c, http.StatusNotFound, msgs.notFound)
	case errors.Is(err, store.ErrDuplicate) && msgs.duplicate != "":
		respondError(c, http.StatusBadRequest, msgs.duplicate)
	case datatypes.IsValidationError(err):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		slog.Error(msgs.failed,
			"error", err,
			"path", c.FullPath(),
			"request_id", middleware.GetRequestID(c))
		respondError(c, http.StatusInternalServerError, msgs.failed)
	}
}
