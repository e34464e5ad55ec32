package sheets

import (
	"context"

	"capext/internal/core"
)

// Ports for outbound adapters.
type (
	// RosterExporter publishes a run's projected roster to a spreadsheet and
	// returns a reference to the written range.
	RosterExporter interface {
		ExportRoster(ctx context.Context, run core.Run) (ref string, err error)
	}
)
