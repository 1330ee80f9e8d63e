package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/studio-roster/internal/config"
	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/service/mocks"
	pkgsync "github.com/stacklok/studio-roster/internal/sync"
	syncmocks "github.com/stacklok/studio-roster/internal/sync/mocks"
)

// createValidTestConfig creates a minimal valid config for testing
func createValidTestConfig() *config.Config {
	return &config.Config{
		Studio: config.StudioConfig{
			BaseURL:           "https://studio.example.com/api",
			CompanyID:         "42",
			Email:             "frontdesk@example.com",
			Timezone:          "America/Phoenix",
			RequestTimeout:    "5s",
			RequestsPerSecond: 10,
		},
		Refresh: config.RefreshConfig{
			Interval:    "30m",
			Concurrency: 2,
		},
	}
}

func TestBaseConfigDefaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig()))
	require.NoError(t, err)
	require.NotNil(t, built)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.Equal(t, defaultReadTimeout, built.readTimeout)
	assert.Equal(t, defaultWriteTimeout, built.writeTimeout)
	assert.Equal(t, defaultIdleTimeout, built.idleTimeout)
	assert.Nil(t, built.middlewares)
}

func TestBaseConfigOptionError(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(
		WithConfig(createValidTestConfig()),
		WithAddress(":"),
	)
	require.Error(t, err)
	require.Nil(t, built)
}

func TestWithConfig(t *testing.T) {
	t.Parallel()
	cfg := &rosterAppConfig{}
	testConfig := createValidTestConfig()

	err := WithConfig(testConfig)(cfg)

	require.NoError(t, err)
	assert.Same(t, testConfig, cfg.config)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "valid address", address: ":9999", want: ":9999"},
		{name: "valid address with host", address: "127.0.0.1:9999", want: "127.0.0.1:9999"},
		{name: "localhost is accepted", address: "localhost:12000", want: "localhost:12000"},
		{name: "invalid empty address", address: "", wantErr: true},
		{name: "invalid empty port", address: ":", wantErr: true},
		{name: "missing port separator", address: "12000", wantErr: true},
		{name: "port out of range", address: "localhost:999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &rosterAppConfig{}
			err := WithAddress(tt.address)(cfg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.address)
		})
	}
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()
	cfg := &rosterAppConfig{}
	middleware1 := func(next http.Handler) http.Handler { return next }
	middleware2 := func(next http.Handler) http.Handler { return next }

	err := WithMiddlewares(middleware1, middleware2)(cfg)

	require.NoError(t, err)
	assert.Len(t, cfg.middlewares, 2)
}

func TestWithPipeline(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	cfg := &rosterAppConfig{}
	pipeline := syncmocks.NewMockPipeline(ctrl)

	require.NoError(t, WithPipeline(pipeline)(cfg))
	assert.Equal(t, pipeline, cfg.pipeline)
}

func TestBuildHTTPServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name           string
		config         *rosterAppConfig
		wantAddr       string
		wantReadTO     time.Duration
		wantWriteTO    time.Duration
		wantIdleTO     time.Duration
		wantMiddleware int
	}{
		{
			name: "with default middlewares",
			config: &rosterAppConfig{
				address:        ":12000",
				requestTimeout: 10 * time.Second,
				readTimeout:    10 * time.Second,
				writeTimeout:   15 * time.Second,
				idleTimeout:    60 * time.Second,
			},
			wantAddr:       ":12000",
			wantReadTO:     10 * time.Second,
			wantWriteTO:    15 * time.Second,
			wantIdleTO:     60 * time.Second,
			wantMiddleware: 5,
		},
		{
			name: "with custom middlewares",
			config: &rosterAppConfig{
				address: ":9090",
				middlewares: []func(http.Handler) http.Handler{
					func(next http.Handler) http.Handler { return next },
				},
				requestTimeout: 5 * time.Second,
				readTimeout:    5 * time.Second,
				writeTimeout:   10 * time.Second,
				idleTimeout:    30 * time.Second,
			},
			wantAddr:       ":9090",
			wantReadTO:     5 * time.Second,
			wantWriteTO:    10 * time.Second,
			wantIdleTO:     30 * time.Second,
			wantMiddleware: 1,
		},
		{
			name: "metrics middleware is prepended",
			config: &rosterAppConfig{
				address:        "127.0.0.1:3000",
				requestTimeout: 20 * time.Second,
				readTimeout:    20 * time.Second,
				writeTimeout:   30 * time.Second,
				idleTimeout:    120 * time.Second,
				meterProvider:  sdkmetric.NewMeterProvider(),
			},
			wantAddr:       "127.0.0.1:3000",
			wantReadTO:     20 * time.Second,
			wantWriteTO:    30 * time.Second,
			wantIdleTO:     120 * time.Second,
			wantMiddleware: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			server, err := buildHTTPServer(ctx, tt.config, mocks.NewMockRosterService(ctrl))

			require.NoError(t, err)
			require.NotNil(t, server)
			assert.Equal(t, tt.wantAddr, server.Addr)
			assert.Equal(t, tt.wantReadTO, server.ReadTimeout)
			assert.Equal(t, tt.wantWriteTO, server.WriteTimeout)
			assert.Equal(t, tt.wantIdleTO, server.IdleTimeout)
			assert.NotNil(t, server.Handler)
			assert.Len(t, tt.config.middlewares, tt.wantMiddleware)
		})
	}
}

func TestNewRosterApp_NilConfig(t *testing.T) {
	t.Parallel()

	app, err := NewRosterApp(context.Background())
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewRosterApp_DefaultPipeline(t *testing.T) {
	t.Parallel()

	app, err := NewRosterApp(context.Background(), WithConfig(createValidTestConfig()))
	require.NoError(t, err)
	require.NotNil(t, app)
	t.Cleanup(app.cancelFunc)

	assert.NotNil(t, app.components.SyncCoordinator)
	assert.NotNil(t, app.components.RosterService)
	assert.NotNil(t, app.components.Store)
	assert.Equal(t, defaultHTTPAddress, app.GetHTTPServer().Addr)
}

// TestNewRosterApp_EndToEnd drives a refresh through the assembled app and
// reads the result back through its HTTP handler.
func TestNewRosterApp_EndToEnd(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	students := []roster.Student{
		{
			Name:         "Ada Lovelace",
			Belt:         "Yellow Belt",
			StartTime:    time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
			StartDisplay: "07:00 am",
			EndDisplay:   "09:00 am",
		},
	}

	ran := make(chan struct{}, 4)
	pipeline := syncmocks.NewMockPipeline(ctrl)
	pipeline.EXPECT().Run(gomock.Any()).DoAndReturn(func(context.Context) (*pkgsync.Result, *pkgsync.Error) {
		defer func() {
			select {
			case ran <- struct{}{}:
			default:
			}
		}()
		return &pkgsync.Result{RunID: "run-1", Students: students, ParticipantCount: 3}, nil
	}).MinTimes(1)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	app, err := NewRosterApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithAddress("127.0.0.1:0"),
		WithPipeline(pipeline),
		WithMeterProvider(provider),
		WithMetricsHandler(metricsHandler),
	)
	require.NoError(t, err)

	handler := app.GetHTTPServer().Handler
	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/readiness").Code)

	done := make(chan error, 1)
	go func() { done <- app.components.SyncCoordinator.Start(app.ctx) }()
	t.Cleanup(func() {
		_ = app.components.SyncCoordinator.Stop()
		app.cancelFunc()
		<-done
	})

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("startup refresh did not run")
	}

	require.Eventually(t, func() bool {
		return get("/readiness").Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	rr := get("/api/students")
	require.Equal(t, http.StatusOK, rr.Code)
	var got []roster.Student
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Ada Lovelace", got[0].Name)

	rr = get("/api/status")
	require.Equal(t, http.StatusOK, rr.Code)
	var syncStatus map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &syncStatus))
	assert.Equal(t, "Complete", syncStatus["phase"])
	assert.Equal(t, "run-1", syncStatus["lastRunId"])

	assert.Equal(t, http.StatusOK, get("/metrics").Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["roster_students"], "roster gauge should be recorded")
	assert.True(t, names["roster_refresh_duration_seconds"], "refresh duration should be recorded")
	assert.True(t, names["roster_http_requests"], "http metrics should be recorded")
}
