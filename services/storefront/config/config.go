// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the storefront server configuration.
//
// Configuration comes from a YAML file layered over Default(), then from
// KOHOLI_* environment variables:
//
//	Default() → koholi.yaml → KOHOLI_* env → Validate()
//
// Settings edited from the admin panel (Cloudinary, SMTP, Crisp, site
// branding) live in the database, not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mohinranait/koholi/pkg/logging"
	"github.com/mohinranait/koholi/services/storefront/session"
	"gopkg.in/yaml.v3"
)

// Database backends.
const (
	BackendBadger = "badger"
	BackendMongo  = "mongo"
)

// Media backends.
const (
	MediaCloudinary = "cloudinary"
	MediaGCS        = "gcs"
	MediaS3         = "s3"
)

// TraceStdout as the OTel endpoint prints spans to stderr instead of
// exporting them.
const TraceStdout = "stdout"

// DefaultPath is the config file used when none is given.
const DefaultPath = "koholi.yaml"

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Media       MediaConfig       `yaml:"media"`
	SocialProof SocialProofConfig `yaml:"social_proof"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies are the proxy CIDRs whose X-Forwarded-For is honoured
	// when resolving client IPs for rate limiting.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	// Backend is "badger" (embedded) or "mongo".
	Backend       string `yaml:"backend"`
	BadgerPath    string `yaml:"badger_path"`
	InMemory      bool   `yaml:"in_memory"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type AuthConfig struct {
	// Secret signs session tokens. At least 32 bytes.
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	Issuer   string        `yaml:"issuer"`
}

type RateLimitConfig struct {
	LoginPerMinute int `yaml:"login_per_minute"`
	LoginBurst     int `yaml:"login_burst"`
	// RedisAddr switches the login limiter to a shared Redis bucket.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type MediaConfig struct {
	// Backend is "cloudinary", "gcs" or "s3".
	Backend string    `yaml:"backend"`
	Folder  string    `yaml:"folder"`
	GCS     GCSConfig `yaml:"gcs"`
	S3      S3Config  `yaml:"s3"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

type SocialProofConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type TelemetryConfig struct {
	// OTelEndpoint is an OTLP gRPC collector address, or "stdout". Empty
	// disables tracing.
	OTelEndpoint string `yaml:"otel_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Metrics      bool   `yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	// Format is "auto", "json" or "text". Auto picks JSON when stderr is
	// not a terminal.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration. Auth.Secret is empty and must
// be supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			GinMode:         "release",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Backend:       BackendBadger,
			BadgerPath:    "./data/koholi",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "koholi",
		},
		Auth: AuthConfig{
			TokenTTL: session.DefaultTTL,
			Issuer:   "koholi",
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: 10,
			LoginBurst:     5,
		},
		Media: MediaConfig{
			Backend: MediaCloudinary,
			Folder:  "koholi",
		},
		SocialProof: SocialProofConfig{
			Interval: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "koholi-storefront",
			Metrics:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML. The file holds secrets and is created
// with mode 0600.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// envVar maps one KOHOLI_* variable onto a field.
type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func setString(field func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setDuration(field func(c *Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func setBool(field func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

var envVars = []envVar{
	{"KOHOLI_PORT", setInt(func(c *Config) *int { return &c.Server.Port })},
	{"KOHOLI_GIN_MODE", setString(func(c *Config) *string { return &c.Server.GinMode })},
	{"KOHOLI_DB_BACKEND", setString(func(c *Config) *string { return &c.Database.Backend })},
	{"KOHOLI_BADGER_PATH", setString(func(c *Config) *string { return &c.Database.BadgerPath })},
	{"KOHOLI_DB_IN_MEMORY", setBool(func(c *Config) *bool { return &c.Database.InMemory })},
	{"KOHOLI_MONGO_URI", setString(func(c *Config) *string { return &c.Database.MongoURI })},
	{"KOHOLI_MONGO_DATABASE", setString(func(c *Config) *string { return &c.Database.MongoDatabase })},
	{"KOHOLI_AUTH_SECRET", setString(func(c *Config) *string { return &c.Auth.Secret })},
	{"KOHOLI_TOKEN_TTL", setDuration(func(c *Config) *time.Duration { return &c.Auth.TokenTTL })},
	{"KOHOLI_REDIS_ADDR", setString(func(c *Config) *string { return &c.RateLimit.RedisAddr })},
	{"KOHOLI_REDIS_PASSWORD", setString(func(c *Config) *string { return &c.RateLimit.RedisPassword })},
	{"KOHOLI_MEDIA_BACKEND", setString(func(c *Config) *string { return &c.Media.Backend })},
	{"KOHOLI_GCS_BUCKET", setString(func(c *Config) *string { return &c.Media.GCS.Bucket })},
	{"KOHOLI_S3_BUCKET", setString(func(c *Config) *string { return &c.Media.S3.Bucket })},
	{"KOHOLI_S3_REGION", setString(func(c *Config) *string { return &c.Media.S3.Region })},
	{"KOHOLI_S3_ENDPOINT", setString(func(c *Config) *string { return &c.Media.S3.Endpoint })},
	{"KOHOLI_SOCIAL_PROOF_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.SocialProof.Interval })},
	{"KOHOLI_OTEL_ENDPOINT", setString(func(c *Config) *string { return &c.Telemetry.OTelEndpoint })},
	{"KOHOLI_LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
	{"KOHOLI_LOG_DIR", setString(func(c *Config) *string { return &c.Logging.Dir })},
	{"KOHOLI_LOG_FORMAT", setString(func(c *Config) *string { return &c.Logging.Format })},
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if err := ev.set(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("invalid %s: %w", ev.name, err)
		}
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.gin_mode must be debug, release or test"))
	}

	switch c.Database.Backend {
	case BackendBadger:
		if c.Database.BadgerPath == "" && !c.Database.InMemory {
			errs = append(errs, errors.New("database.badger_path is required unless in_memory is set"))
		}
	case BackendMongo:
		if c.Database.MongoURI == "" {
			errs = append(errs, errors.New("database.mongo_uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.backend %q must be badger or mongo", c.Database.Backend))
	}

	if len(c.Auth.Secret) < session.MinSecretLength {
		errs = append(errs, fmt.Errorf("auth.secret must be at least %d bytes (set KOHOLI_AUTH_SECRET)", session.MinSecretLength))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}

	if c.RateLimit.LoginPerMinute <= 0 || c.RateLimit.LoginBurst <= 0 {
		errs = append(errs, errors.New("rate_limit.login_per_minute and login_burst must be positive"))
	}

	switch c.Media.Backend {
	case MediaCloudinary:
	case MediaGCS:
		if c.Media.GCS.Bucket == "" {
			errs = append(errs, errors.New("media.gcs.bucket is required for the gcs backend"))
		}
	case MediaS3:
		if c.Media.S3.Bucket == "" || c.Media.S3.Region == "" {
			errs = append(errs, errors.New("media.s3.bucket and media.s3.region are required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("media.backend %q must be cloudinary, gcs or s3", c.Media.Backend))
	}

	if c.SocialProof.Interval <= 0 {
		errs = append(errs, errors.New("social_proof.interval must be positive"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "", "auto", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be auto, json or text", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	out.Auth.Secret = redact(c.Auth.Secret)
	out.RateLimit.RedisPassword = redact(c.RateLimit.RedisPassword)
	out.Media.S3.SecretAccessKey = redact(c.Media.S3.SecretAccessKey)
	out.Database.MongoURI = redactURI(c.Database.MongoURI)
	return &out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// redactURI hides the password in a user:pass@host connection string.
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return uri
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return uri
	}
	return scheme + "://" + user + ":********@" + host
}
