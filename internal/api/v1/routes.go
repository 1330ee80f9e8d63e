// Package v1 provides the roster query endpoints served under /api.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/studio-roster/internal/api/common"
	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/service"
)

// Routes handles HTTP requests for the roster endpoints.
type Routes struct {
	service service.RosterService
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc service.RosterService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates and configures the HTTP router for the roster endpoints.
func Router(svc service.RosterService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/students", routes.listStudents)
	r.Post("/forcerefresh", routes.forceRefresh)
	r.Get("/status", routes.syncStatus)

	return r
}

// listStudents handles GET /api/students
//
// @Summary		List students
// @Description	Get the students currently checked in, ordered by start time
// @Tags			roster
// @Produce		json
// @Param			belt	query		string	false	"Only return students holding this belt"
// @Success		200		{array}		roster.Student
// @Failure		400		{object}	common.ErrorResponse
// @Failure		500		{object}	common.ErrorResponse
// @Router			/api/students [get]
func (routes *Routes) listStudents(w http.ResponseWriter, r *http.Request) {
	var opts []service.Option[service.ListStudentsOptions]
	// Has distinguishes ?belt= from an absent parameter
	if query := r.URL.Query(); query.Has("belt") {
		opts = append(opts, service.WithBelt(query.Get("belt")))
	}

	students, err := routes.service.ListStudents(r.Context(), opts...)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOption) {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if students == nil {
		students = []roster.Student{}
	}
	common.WriteJSONResponse(w, students, http.StatusOK)
}

// forceRefresh handles POST /api/forcerefresh
//
// @Summary		Force a roster refresh
// @Description	Ask the refresh loop for an immediate run. The response does not wait for the run.
// @Tags			roster
// @Produce		json
// @Success		202	{object}	common.StatusResponse
// @Failure		500	{object}	common.ErrorResponse
// @Router			/api/forcerefresh [post]
func (routes *Routes) forceRefresh(w http.ResponseWriter, r *http.Request) {
	if err := routes.service.RequestRefresh(r.Context()); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Roster refresh requested", "remote_addr", r.RemoteAddr)
	common.WriteJSONResponse(w, common.StatusResponse{Status: "refresh requested"}, http.StatusAccepted)
}

// syncStatus handles GET /api/status
//
// @Summary		Refresh status
// @Tags			roster
// @Produce		json
// @Success		200	{object}	status.SyncStatus
// @Failure		503	{object}	common.ErrorResponse
// @Router			/api/status [get]
func (routes *Routes) syncStatus(w http.ResponseWriter, r *http.Request) {
	syncStatus, err := routes.service.GetSyncStatus(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, service.ErrStatusUnavailable) {
			code = http.StatusServiceUnavailable
		}
		common.WriteErrorResponse(w, err.Error(), code)
		return
	}

	common.WriteJSONResponse(w, syncStatus, http.StatusOK)
}
