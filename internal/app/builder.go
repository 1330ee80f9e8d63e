package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/studio-roster/internal/api"
	"github.com/stacklok/studio-roster/internal/config"
	"github.com/stacklok/studio-roster/internal/httpclient"
	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/service"
	"github.com/stacklok/studio-roster/internal/service/inmemory"
	"github.com/stacklok/studio-roster/internal/studio"
	pkgsync "github.com/stacklok/studio-roster/internal/sync"
	"github.com/stacklok/studio-roster/internal/sync/coordinator"
	"github.com/stacklok/studio-roster/internal/sync/trigger"
	"github.com/stacklok/studio-roster/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":12000"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	pipelineTracerName = "github.com/stacklok/studio-roster/sync"
)

// RosterAppOptions is a function that configures the roster app builder
type RosterAppOptions func(*rosterAppConfig) error

// rosterAppConfig collects everything needed to assemble a RosterApp.
// Component overrides exist for tests; production leaves them nil.
type rosterAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	studioClient studio.Client
	pipeline     pkgsync.Pipeline

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...RosterAppOptions) (*rosterAppConfig, error) {
	cfg := &rosterAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewRosterApp assembles the roster server from the given options
func NewRosterApp(
	ctx context.Context,
	opts ...RosterAppOptions,
) (*RosterApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	store := roster.NewStore()
	trig := trigger.New()

	rosterMetrics, syncMetrics, err := buildMetrics(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build metrics: %w", err)
	}

	syncCoordinator := buildSyncComponents(cfg, store, trig, rosterMetrics, syncMetrics)

	rosterService := inmemory.New(store, trig,
		inmemory.WithStatusProvider(syncCoordinator),
		inmemory.WithRosterMetrics(rosterMetrics),
	)

	httpServer, err := buildHTTPServer(ctx, cfg, rosterService)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &RosterApp{
		config: cfg.config,
		components: &AppComponents{
			SyncCoordinator: syncCoordinator,
			RosterService:   rosterService,
			Store:           store,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStudioClient allows injecting a custom studio API client (for testing)
func WithStudioClient(c studio.Client) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		cfg.studioClient = c
		return nil
	}
}

// WithPipeline allows injecting a custom refresh pipeline (for testing)
func WithPipeline(p pkgsync.Pipeline) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		cfg.pipeline = p
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for roster, sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for pipeline and HTTP spans
func WithTracerProvider(tp trace.TracerProvider) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler exposes a Prometheus scrape handler at /metrics
func WithMetricsHandler(h http.Handler) RosterAppOptions {
	return func(cfg *rosterAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildMetrics creates the roster and sync instruments. Both are nil when no
// meter provider is configured.
func buildMetrics(b *rosterAppConfig) (*telemetry.RosterMetrics, *telemetry.SyncMetrics, error) {
	if b.meterProvider == nil {
		return nil, nil, nil
	}

	rosterMetrics, err := telemetry.NewRosterMetrics(b.meterProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create roster metrics: %w", err)
	}

	syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	slog.Info("Roster and sync metrics enabled")
	return rosterMetrics, syncMetrics, nil
}

// buildSyncComponents builds the studio client, pipeline and coordinator
func buildSyncComponents(
	b *rosterAppConfig,
	store *roster.Store,
	trig *trigger.Trigger,
	rosterMetrics *telemetry.RosterMetrics,
	syncMetrics *telemetry.SyncMetrics,
) coordinator.Coordinator {
	slog.Info("Initializing sync components")

	if b.pipeline == nil {
		if b.studioClient == nil {
			b.studioClient = studio.NewClient(
				httpclient.NewDefaultClient(b.config.GetRequestTimeout()),
				b.config,
			)
		}

		var pipelineOpts []pkgsync.Option
		if b.tracerProvider != nil {
			pipelineOpts = append(pipelineOpts, pkgsync.WithTracer(b.tracerProvider.Tracer(pipelineTracerName)))
		}
		b.pipeline = pkgsync.NewPipeline(b.studioClient, b.config, pipelineOpts...)
	}

	coordOpts := []coordinator.Option{
		coordinator.WithInterval(b.config.GetRefreshInterval()),
	}
	if syncMetrics != nil {
		coordOpts = append(coordOpts, coordinator.WithSyncMetrics(syncMetrics))
	}
	if rosterMetrics != nil {
		coordOpts = append(coordOpts, coordinator.WithRosterMetrics(rosterMetrics))
	}

	syncCoordinator := coordinator.New(b.pipeline, store, trig, coordOpts...)
	slog.Info("Sync components initialized successfully",
		"interval", b.config.GetRefreshInterval(),
		"concurrency", b.config.Refresh.Concurrency)

	return syncCoordinator
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *rosterAppConfig,
	svc service.RosterService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{
			telemetry.TracingMiddleware(b.tracerProvider),
		}, b.middlewares...)
		slog.Info("HTTP tracing middleware enabled")
	}

	// Metrics go first so every request is counted
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
		slog.Info("HTTP metrics middleware enabled")
	}

	router := api.NewServer(svc,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(b.metricsHandler),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
