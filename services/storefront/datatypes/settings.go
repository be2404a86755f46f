// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// CloudinaryConfig holds media host credentials.
type CloudinaryConfig struct {
	CloudName string `json:"cloudName" bson:"cloudName" validate:"max=200"`
	APIKey    string `json:"apiKey" bson:"apiKey" validate:"max=200"`
	APISecret string `json:"apiSecret" bson:"apiSecret" validate:"max=200"`
	Enabled   bool   `json:"enabled" bson:"enabled"`
}

// Complete reports whether every credential is set.
func (c CloudinaryConfig) Complete() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// SMTPConfig holds the outgoing mail account.
type SMTPConfig struct {
	User     string `json:"user" bson:"user" validate:"omitempty,email"`
	Password string `json:"password" bson:"password" validate:"max=200"`
	Host     string `json:"host" bson:"host" validate:"max=255"`
	Port     int    `json:"port" bson:"port" validate:"gte=1,lte=65535"`
	Enabled  bool   `json:"enabled" bson:"enabled"`
}

// Complete reports whether every connection field is set.
func (c SMTPConfig) Complete() bool {
	return c.User != "" && c.Password != "" && c.Host != "" && c.Port != 0
}

// CrispConfig configures the storefront chat widget.
type CrispConfig struct {
	WebsiteID string `json:"websiteId" bson:"websiteId" validate:"max=200"`
	Enabled   bool   `json:"enabled" bson:"enabled"`
}

// AppConfig is the singleton holding third-party integration settings.
type AppConfig struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	Cloudinary CloudinaryConfig   `json:"cloudinary" bson:"cloudinary"`
	SMTP       SMTPConfig         `json:"smtp" bson:"smtp"`
	Crisp      CrispConfig        `json:"crisp" bson:"crisp"`
	Timestamps `bson:",inline"`
}

// DefaultAppConfig returns the document created on first read.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		SMTP: SMTPConfig{Host: DefaultSMTPHost, Port: DefaultSMTPPort},
	}
}

// Public returns the subset exposed to anonymous clients.
func (c *AppConfig) Public() PublicAppConfig {
	return PublicAppConfig{Crisp: c.Crisp}
}

// Normalize trims credentials and restores the SMTP host and port defaults.
func (c *AppConfig) Normalize() {
	c.Cloudinary.CloudName = strings.TrimSpace(c.Cloudinary.CloudName)
	c.Cloudinary.APIKey = strings.TrimSpace(c.Cloudinary.APIKey)
	c.Cloudinary.APISecret = strings.TrimSpace(c.Cloudinary.APISecret)
	c.SMTP.User = strings.TrimSpace(c.SMTP.User)
	c.SMTP.Host = strings.TrimSpace(c.SMTP.Host)
	c.Crisp.WebsiteID = strings.TrimSpace(c.Crisp.WebsiteID)
	if c.SMTP.Host == "" {
		c.SMTP.Host = DefaultSMTPHost
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = DefaultSMTPPort
	}
}

// Validate checks field formats and requires every field of an enabled
// block.
func (c *AppConfig) Validate() error {
	err := validateStruct(c)
	ve, ok := err.(*ValidationError)
	if err != nil && !ok {
		return err
	}
	if ve == nil {
		ve = &ValidationError{Fields: map[string]string{}}
	}
	if c.Cloudinary.Enabled && !c.Cloudinary.Complete() {
		ve.Fields["cloudinary"] = "all Cloudinary fields are required when enabled"
	}
	if c.SMTP.Enabled && !c.SMTP.Complete() {
		ve.Fields["smtp"] = "all SMTP fields are required when enabled"
	}
	if c.Crisp.Enabled && c.Crisp.WebsiteID == "" {
		ve.Fields["crisp.websiteId"] = "is required when Crisp is enabled"
	}
	if len(ve.Fields) == 0 {
		return nil
	}
	return ve
}

// PublicAppConfig is returned by GET /api/app-config/public.
type PublicAppConfig struct {
	Crisp CrispConfig `json:"crisp"`
}

// SocialMedia links shown in the storefront footer.
type SocialMedia struct {
	Facebook  string `json:"facebook" bson:"facebook" validate:"omitempty,url"`
	Twitter   string `json:"twitter" bson:"twitter" validate:"omitempty,url"`
	Instagram string `json:"instagram" bson:"instagram" validate:"omitempty,url"`
	Youtube   string `json:"youtube" bson:"youtube" validate:"omitempty,url"`
}

// SiteSettings is the singleton holding storefront branding and contact
// details. Marque is the scrolling announcement banner.
type SiteSettings struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id"`
	Logo            string             `json:"logo" bson:"logo" validate:"max=2048"`
	SiteName        string             `json:"siteName" bson:"siteName" validate:"required,max=100"`
	MetaTitle       string             `json:"metaTitle" bson:"metaTitle" validate:"max=200"`
	MetaDescription string             `json:"metaDescription" bson:"metaDescription" validate:"max=500"`
	Address         string             `json:"address" bson:"address" validate:"max=300"`
	Marque          string             `json:"marque" bson:"marque" validate:"max=500"`
	MarqueStatus    bool               `json:"marqueStatus" bson:"marqueStatus"`
	Phone           string             `json:"phone" bson:"phone" validate:"max=50"`
	Email           string             `json:"email" bson:"email" validate:"omitempty,email"`
	SocialMedia     SocialMedia        `json:"socialMedia" bson:"socialMedia"`
	Timestamps      `bson:",inline"`
}

// DefaultSiteSettings returns the document created on first read.
func DefaultSiteSettings() *SiteSettings {
	return &SiteSettings{
		SiteName:     "Koholi",
		MetaTitle:    "Koholi",
		MarqueStatus: true,
	}
}

// Normalize trims free-text fields.
func (s *SiteSettings) Normalize() {
	s.SiteName = strings.TrimSpace(s.SiteName)
	s.MetaTitle = strings.TrimSpace(s.MetaTitle)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
}

// Validate checks the settings.
func (s *SiteSettings) Validate() error {
	return validateStruct(s)
}
