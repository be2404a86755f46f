// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storefront wires the Koholi storefront API server together.
//
// The service owns every long-lived component and their shutdown order:
//
//	config ──► logger ──► store ──► sessions ──► accounts, orders, uploader
//	                        │                               │
//	                        └──► rotator, login limiter ────┴──► gin router
//
// # Usage
//
//	cfg, err := config.Load("koholi.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := storefront.New(cfg, nil, storefront.WithConfigPath("koholi.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = svc.Run(ctx)
//
// Extension points (a custom AuthProvider or AuditLogger) are passed through
// extensions.ServiceOptions, the same way tests substitute a
// StaticAuthProvider.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"github.com/mohinranait/koholi/pkg/extensions"
	"github.com/mohinranait/koholi/pkg/logging"
	"github.com/mohinranait/koholi/services/storefront/accounts"
	"github.com/mohinranait/koholi/services/storefront/config"
	"github.com/mohinranait/koholi/services/storefront/media"
	"github.com/mohinranait/koholi/services/storefront/middleware"
	"github.com/mohinranait/koholi/services/storefront/notify"
	"github.com/mohinranait/koholi/services/storefront/observability"
	"github.com/mohinranait/koholi/services/storefront/orders"
	"github.com/mohinranait/koholi/services/storefront/routes"
	"github.com/mohinranait/koholi/services/storefront/session"
	"github.com/mohinranait/koholi/services/storefront/socialproof"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/mohinranait/koholi/services/storefront/store/badgerstore"
	"github.com/mohinranait/koholi/services/storefront/store/mongostore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is a runnable storefront API server.
type Service interface {
	// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
	// releases every resource. A Service cannot be run twice.
	Run(ctx context.Context) error

	// Router exposes the configured engine, mainly for tests.
	Router() *gin.Engine
}

// Option customizes New.
type Option func(*service)

// WithConfigPath enables live reloading of the logging section from path.
func WithConfigPath(path string) Option {
	return func(s *service) { s.configPath = path }
}

// WithLogger replaces the logger built from the logging section. The
// service does not close it.
func WithLogger(logger *logging.Logger) Option {
	return func(s *service) {
		s.logger = logger
		s.ownsLogger = false
	}
}

// WithStore replaces the configured database. The service closes it on
// shutdown.
func WithStore(st store.Store) Option {
	return func(s *service) { s.store = st }
}

// WithUploader replaces the configured media backend.
func WithUploader(u media.Uploader) Option {
	return func(s *service) { s.uploader = u }
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config     *config.Config
	configPath string
	opts       extensions.ServiceOptions

	logger     *logging.Logger
	ownsLogger bool

	store         store.Store
	sessions      *session.Manager
	registry      *prometheus.Registry
	metrics       *observability.Metrics
	notifier      *notify.OrderNotifier
	rotator       *socialproof.Rotator
	uploader      media.Uploader
	limiter       middleware.Limiter
	redis         *redis.Client
	router        *gin.Engine
	tracerCleanup func(context.Context)
}

// New builds every component from cfg. opts may be nil.
//
// On error everything created so far is released.
func New(cfg *config.Config, opts *extensions.ServiceOptions, options ...Option) (Service, error) {
	if cfg == nil {
		return nil, errors.New("storefront: config is required")
	}
	s := &service{config: cfg, ownsLogger: true}
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}
	for _, opt := range options {
		opt(s)
	}

	if s.logger == nil {
		logger, err := NewLogger(cfg.Logging, cfg.Telemetry.ServiceName)
		if err != nil {
			return nil, err
		}
		s.logger = logger
	}
	slog.SetDefault(s.logger.Slog())

	if err := s.init(); err != nil {
		s.cleanup()
		return nil, err
	}
	return s, nil
}

func (s *service) init() error {
	ctx := context.Background()
	log := s.logger.Slog()

	if s.config.Telemetry.OTelEndpoint != "" {
		cleanup, err := s.initTracer(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if s.config.Telemetry.Metrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.metrics = observability.NewMetrics(s.registry)
	}

	if s.store == nil {
		st, err := OpenStore(ctx, s.config.Database, log)
		if err != nil {
			return err
		}
		s.store = st
	}

	sessions, err := session.NewManager(session.Config{
		Secret: []byte(s.config.Auth.Secret),
		TTL:    s.config.Auth.TokenTTL,
		Issuer: s.config.Auth.Issuer,
	}, s.store.Sessions())
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}
	s.sessions = sessions

	if s.uploader == nil {
		uploader, err := newUploader(ctx, s.config.Media, s.store.Settings())
		if err != nil {
			return fmt.Errorf("failed to initialize media backend: %w", err)
		}
		s.uploader = uploader
	}

	s.notifier = notify.NewOrderNotifier(s.store.Settings(), log)
	s.rotator = socialproof.NewRotator(s.store.SocialProofs(),
		socialproof.Config{Interval: s.config.SocialProof.Interval}, log, s.metrics)
	s.initLimiter(ctx)
	s.initRouter()
	return nil
}

// Router returns the configured engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is done. A config watcher adjusts the log level when
// a config path was given.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.config.Server.Port, err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := s.rotator.Start(gctx); err != nil {
		ln.Close()
		return err
	}

	g.Go(func() error {
		s.logger.Info("Starting storefront server", "addr", ln.Addr().String(),
			"database", s.config.Database.Backend, "media", s.uploader.Backend())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.configPath != "" {
		g.Go(func() error {
			if err := config.Watch(gctx, s.configPath, s.applyReload); err != nil {
				s.logger.Warn("Config watcher stopped, live reload disabled", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down storefront server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// applyReload applies the parts of a reloaded config that can change
// without a restart. Only the log level qualifies.
func (s *service) applyReload(cfg *config.Config) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		s.logger.Warn("Ignoring invalid log level", "level", cfg.Logging.Level)
		return
	}
	if level != s.logger.Level() {
		s.logger.SetLevel(level)
		s.logger.Info("Log level changed", "level", level.String())
	}
	if cfg.Server.Port != s.config.Server.Port || cfg.Database != s.config.Database {
		s.logger.Warn("Server and database changes take effect after a restart")
	}
}

// =============================================================================
// Component Initialization
// =============================================================================

// NewLogger builds the process logger from the logging section. Format
// "auto" writes JSON unless stderr is a terminal.
func NewLogger(cfg config.LoggingConfig, service string) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var jsonOut bool
	switch cfg.Format {
	case "json":
		jsonOut = true
	case "text":
		jsonOut = false
	default:
		fd := os.Stderr.Fd()
		jsonOut = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Dir,
		Service: service,
		JSON:    jsonOut,
	}), nil
}

// OpenStore opens the configured database backend.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		st, err := mongostore.Open(ctx, mongostore.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo store: %w", err)
		}
		logger.Info("Connected to MongoDB", "database", cfg.MongoDatabase)
		return st, nil

	case config.BackendBadger, "":
		if cfg.InMemory {
			logger.Warn("Using in-memory database, data is lost on shutdown")
			return badgerstore.OpenInMemory()
		}
		bcfg := badgerstore.DefaultConfig(cfg.BadgerPath)
		bcfg.Logger = logger
		st, err := badgerstore.Open(bcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		logger.Info("Opened embedded database", "path", cfg.BadgerPath)
		return st, nil

	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

func newUploader(ctx context.Context, cfg config.MediaConfig, settings media.ConfigSource) (media.Uploader, error) {
	switch cfg.Backend {
	case config.MediaGCS:
		return media.NewGCSUploader(ctx, media.GCSConfig{
			Bucket:          cfg.GCS.Bucket,
			CredentialsFile: cfg.GCS.CredentialsFile,
			PublicBaseURL:   cfg.GCS.PublicBaseURL,
			Folder:          cfg.Folder,
		})
	case config.MediaS3:
		return media.NewS3Uploader(ctx, media.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			Folder:          cfg.Folder,
		})
	case config.MediaCloudinary, "":
		return media.NewCloudinaryUploader(settings, cfg.Folder), nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// initLimiter picks the login limiter. A Redis address that does not answer
// at startup is still used: the limiter fails open and recovers when Redis
// comes back.
func (s *service) initLimiter(ctx context.Context) {
	rl := s.config.RateLimit
	if rl.LoginPerMinute <= 0 {
		return
	}
	if rl.RedisAddr == "" {
		s.limiter = middleware.NewLocalLimiter(rl.LoginPerMinute, rl.LoginBurst)
		return
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr:     rl.RedisAddr,
		Password: rl.RedisPassword,
		DB:       rl.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.redis.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn("Redis not reachable, login rate limiting is disabled until it is",
			"addr", rl.RedisAddr, "error", err)
	}
	s.limiter = middleware.NewRedisLimiter(s.redis, "koholi:login:", rl.LoginPerMinute, rl.LoginBurst)
}

func (s *service) initTracer(ctx context.Context) (func(context.Context), error) {
	exporter, closeExporter, err := s.newSpanExporter(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(s.config.Telemetry.ServiceName)))
	if err != nil {
		closeExporter()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
		closeExporter()
	}
	return cleanup, nil
}

// newSpanExporter returns the OTLP gRPC exporter, or a stderr printer for
// config.TraceStdout. The returned func releases the connection.
func (s *service) newSpanExporter(ctx context.Context) (sdktrace.SpanExporter, func(), error) {
	endpoint := s.config.Telemetry.OTelEndpoint
	if endpoint == config.TraceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, func() {}, nil
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return exporter, func() { conn.Close() }, nil
}

func (s *service) initRouter() {
	gin.SetMode(s.config.Server.GinMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	if s.tracerCleanup != nil {
		s.router.Use(otelgin.Middleware(s.config.Telemetry.ServiceName))
	}
	if err := s.router.SetTrustedProxies(s.config.Server.TrustedProxies); err != nil {
		s.logger.Warn("Invalid trusted proxies, trusting none", "error", err)
		_ = s.router.SetTrustedProxies(nil)
	}

	auth := s.opts.AuthProvider
	if auth == nil {
		auth = s.sessions
	}

	log := s.logger.Slog()
	acct := accounts.NewService(s.store.Users(), s.sessions, s.metrics, log)

	deps := routes.Deps{
		Store:        s.store,
		Auth:         auth,
		Revoker:      s.sessions,
		Accounts:     acct,
		Orders:       orders.NewService(s.store, acct, orders.WithNotifier(s.notifier), orders.WithMetrics(s.metrics), orders.WithLogger(log)),
		Uploader:     s.uploader,
		Rotation:     s.rotator,
		LoginLimiter: s.limiter,
		Auditor:      s.opts.AuditLogger,
		Metrics:      s.metrics,
		Logger:       log,
	}
	if s.opts.AuthProvider == nil {
		deps.Roles = acct
	}
	if s.registry != nil {
		deps.Gatherer = s.registry
	}
	routes.SetupRoutes(s.router, deps)
}

// cleanup releases components in reverse dependency order. Safe on a
// partially initialized service.
func (s *service) cleanup() {
	if s.rotator != nil {
		s.rotator.Stop()
	}
	if s.notifier != nil {
		s.notifier.Wait()
	}
	if stopper, ok := s.limiter.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Redis client close error", "error", err)
		}
	}
	if closer, ok := s.uploader.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("Media backend close error", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	if s.ownsLogger && s.logger != nil {
		_ = s.logger.Close()
	}
}

// Compile-time interface check.
var _ Service = (*service)(nil)
