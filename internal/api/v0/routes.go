// Package v0 provides the operational endpoints of the roster API: liveness,
// readiness and build version.
package v0

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/studio-roster/internal/api/common"
	"github.com/stacklok/studio-roster/internal/service"
	"github.com/stacklok/studio-roster/internal/versions"
)

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc service.RosterService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
//
// @Summary		Health check
// @Description	Check if the roster API is alive
// @Tags			system
// @Produce		json
// @Success		200	{object}	common.StatusResponse
// @Router			/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, common.StatusResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once the first roster has been published
//
// @Summary		Readiness check
// @Description	Check if the roster API has data to serve
// @Tags			system
// @Produce		json
// @Success		200	{object}	common.StatusResponse
// @Failure		503	{object}	common.ErrorResponse
// @Router			/readiness [get]
func readinessHandler(svc service.RosterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			common.WriteErrorResponse(w, "Roster not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, common.StatusResponse{Status: "ready"}, http.StatusOK)
	}
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Tags			system
// @Produce		json
// @Success		200	{object}	versions.VersionInfo
// @Router			/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
