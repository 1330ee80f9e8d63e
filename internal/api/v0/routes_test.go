package v0_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	v0 "github.com/stacklok/studio-roster/internal/api/v0"
	"github.com/stacklok/studio-roster/internal/service"
	"github.com/stacklok/studio-roster/internal/service/mocks"
)

func TestHealthRouter(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockSvc := mocks.NewMockRosterService(ctrl)
	mockSvc.EXPECT().CheckReadiness(gomock.Any()).Return(nil).AnyTimes()

	router := v0.HealthRouter(mockSvc)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantKey    string
	}{
		{name: "health endpoint", path: "/health", wantStatus: http.StatusOK, wantKey: "status"},
		{name: "readiness endpoint - ready", path: "/readiness", wantStatus: http.StatusOK, wantKey: "status"},
		{name: "version endpoint", path: "/version", wantStatus: http.StatusOK, wantKey: "go_version"},
		{name: "unknown endpoint", path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := http.NewRequest(http.MethodGet, tt.path, nil)
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantKey == "" {
				return
			}
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Contains(t, body, tt.wantKey)
		})
	}
}

func TestReadinessNotReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "no roster yet", err: service.ErrNotReady, wantMsg: "Roster not ready: roster not loaded yet"},
		{name: "wrapped error", err: fmt.Errorf("starting: %w", service.ErrNotReady), wantMsg: "Roster not ready: starting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockSvc := mocks.NewMockRosterService(ctrl)
			mockSvc.EXPECT().CheckReadiness(gomock.Any()).Return(tt.err)

			rr := httptest.NewRecorder()
			v0.HealthRouter(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantMsg)
		})
	}
}
