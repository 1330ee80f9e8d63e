package app

import (
	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/service"
	"github.com/stacklok/studio-roster/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator runs the background roster refresh
	SyncCoordinator coordinator.Coordinator

	// RosterService serves reads and refresh requests to the API
	RosterService service.RosterService

	// Store holds the published roster snapshot
	Store *roster.Store
}
