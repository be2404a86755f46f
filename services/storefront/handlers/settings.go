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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mohinranait/koholi/services/storefront/store"
)

// GetAppConfig handles GET /api/app-config. The document is created with
// defaults on first read.
func GetAppConfig(settings store.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := settings.AppConfig(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch app config"})
			return
		}
		respondData(c, http.StatusOK, cfg)
	}
}

// GetPublicAppConfig handles GET /api/app-config/public. Only the chat
// widget settings are exposed.
func GetPublicAppConfig(settings store.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := settings.AppConfig(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch app config"})
			return
		}
		respondData(c, http.StatusOK, cfg.Public())
	}
}

// UpdateAppConfig handles PUT /api/app-config. The body is decoded onto the
// stored document, so fields it does not mention keep their values.
func UpdateAppConfig(settings store.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := settings.AppConfig(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to update app config"})
			return
		}
		if !bindRequest(c, cfg) {
			return
		}
		if err := settings.SaveAppConfig(c.Request.Context(), cfg); err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to update app config"})
			return
		}
		respondData(c, http.StatusOK, cfg)
	}
}

// GetSiteSettings handles GET /api/site-settings.
func GetSiteSettings(settings store.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := settings.SiteSettings(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch site settings"})
			return
		}
		respondData(c, http.StatusOK, s)
	}
}

// UpdateSiteSettings handles PUT /api/site-settings. Like UpdateAppConfig
// it only changes the fields present in the body.
func UpdateSiteSettings(settings store.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := settings.SiteSettings(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to update site settings"})
			return
		}
		if !bindRequest(c, s) {
			return
		}
		if err := settings.SaveSiteSettings(c.Request.Context(), s); err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to update site settings"})
			return
		}
		respondData(c, http.StatusOK, s)
	}
}
