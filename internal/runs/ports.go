// Package runs declares the ports through which projection runs are stored,
// read back for download and tracked through the export pipeline.
package runs

import (
	"context"
	"errors"

	"capext/internal/core"
)

// ErrNotFound is returned when a run ID is unknown to the store.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit is the number of runs shown in the history panel.
const DefaultListLimit = 20

type (
	// RunRecorder persists a finished run and assigns its ID.
	RunRecorder interface {
		RecordRun(ctx context.Context, run core.Run) (core.Run, error)
	}

	// RunReader loads a single run including its content.
	RunReader interface {
		GetRun(ctx context.Context, id int64) (core.Run, error)
	}

	// RunLister returns the most recent runs, newest first. Content is not
	// populated.
	RunLister interface {
		ListRuns(ctx context.Context, limit int) ([]core.Run, error)
	}

	// ExportTracker drives the export status of recorded runs.
	ExportTracker interface {
		// PendingExports returns up to limit runs still waiting for export,
		// oldest first, with content.
		PendingExports(ctx context.Context, limit int) ([]core.Run, error)
		MarkExported(ctx context.Context, id int64, ref string) error
		MarkExportError(ctx context.Context, id int64) error
	}

	// Store is the full set of run ports a backend provides.
	Store interface {
		RunRecorder
		RunReader
		RunLister
		ExportTracker
		Close() error
	}
)
