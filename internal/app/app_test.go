package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/studio-roster/internal/roster"
	mocksvc "github.com/stacklok/studio-roster/internal/service/mocks"
	coordmocks "github.com/stacklok/studio-roster/internal/sync/coordinator/mocks"
)

// blockingCoordinator returns a mock coordinator whose Start blocks until its
// context is cancelled. started flips once Start has been entered.
func blockingCoordinator(ctrl *gomock.Controller, started *atomic.Bool) *coordmocks.MockCoordinator {
	coord := coordmocks.NewMockCoordinator(ctrl)
	coord.EXPECT().Start(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		started.Store(true)
		<-ctx.Done()
		return nil
	}).AnyTimes()
	coord.EXPECT().Stop().Return(nil).AnyTimes()
	return coord
}

// createTestApp builds a RosterApp around mocked components, bypassing
// NewRosterApp so tests control the coordinator
func createTestApp(t *testing.T, ctrl *gomock.Controller, addr string, started *atomic.Bool) *RosterApp {
	t.Helper()

	mockSvc := mocksvc.NewMockRosterService(ctrl)
	mockSvc.EXPECT().CheckReadiness(gomock.Any()).Return(nil).AnyTimes()

	cfg := createValidTestConfig()
	ctx := context.Background()
	appCtx, cancel := context.WithCancel(ctx)

	appCfg := &rosterAppConfig{
		config:         cfg,
		address:        addr,
		requestTimeout: 10 * time.Second,
		readTimeout:    10 * time.Second,
		writeTimeout:   15 * time.Second,
		idleTimeout:    60 * time.Second,
	}

	server, err := buildHTTPServer(ctx, appCfg, mockSvc)
	require.NoError(t, err)

	return &RosterApp{
		config: cfg,
		components: &AppComponents{
			SyncCoordinator: blockingCoordinator(ctrl, started),
			RosterService:   mockSvc,
			Store:           roster.NewStore(),
		},
		httpServer: server,
		ctx:        appCtx,
		cancelFunc: cancel,
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestRosterApp_StartAndStop(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	var started atomic.Bool
	addr := freeAddr(t)
	app := createTestApp(t, ctrl, addr, &started)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Eventually(t, started.Load, time.Second, 10*time.Millisecond, "sync coordinator should be started")

	resp, err := http.Get("http://" + addr + "/readiness")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}

	assert.ErrorIs(t, app.ctx.Err(), context.Canceled, "stop must cancel the app context")
}

func TestRosterApp_Stop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
		start   bool
	}{
		{name: "graceful shutdown with normal timeout", timeout: 5 * time.Second, start: true},
		{name: "graceful shutdown with short timeout", timeout: time.Second, start: true},
		{name: "stop without starting first", timeout: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			var started atomic.Bool
			app := createTestApp(t, ctrl, freeAddr(t), &started)

			if tt.start {
				go func() { _ = app.Start() }()
				require.Eventually(t, started.Load, 5*time.Second, 10*time.Millisecond)
			}

			require.NoError(t, app.Stop(tt.timeout))
		})
	}
}

func TestRosterApp_StopReportsCoordinatorError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	var started atomic.Bool
	app := createTestApp(t, ctrl, freeAddr(t), &started)

	coord := coordmocks.NewMockCoordinator(ctrl)
	coord.EXPECT().Stop().Return(errors.New("stuck"))
	app.components.SyncCoordinator = coord

	// A coordinator failure is logged; the HTTP server still shuts down
	require.NoError(t, app.Stop(time.Second))
}

func TestRosterApp_StopIdempotent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	var started atomic.Bool
	app := createTestApp(t, ctrl, freeAddr(t), &started)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()
	require.Eventually(t, started.Load, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case <-errChan:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after first Stop()")
	}

	// A second stop must not panic
	_ = app.Stop(5 * time.Second)
}

func TestRosterApp_StopWithNilCancelFunc(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	var started atomic.Bool
	app := createTestApp(t, ctrl, ":0", &started)
	app.cancelFunc = nil

	require.NoError(t, app.Stop(5*time.Second))
}

func TestRosterApp_Getters(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	var started atomic.Bool
	app := createTestApp(t, ctrl, ":12000", &started)

	cfg := app.GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "42", cfg.Studio.CompanyID)

	server := app.GetHTTPServer()
	require.NotNil(t, server)
	assert.Equal(t, ":12000", server.Addr)
}

func TestRosterApp_StartError_AddressInUse(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var started atomic.Bool
	app := createTestApp(t, ctrl, listener.Addr().String(), &started)
	t.Cleanup(app.cancelFunc)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case startErr := <-errChan:
		require.Error(t, startErr)
		assert.Contains(t, startErr.Error(), "HTTP server failed")
	case <-time.After(5 * time.Second):
		_ = app.Stop(time.Second)
		t.Fatal("Expected Start() to fail due to port in use")
	}
}
