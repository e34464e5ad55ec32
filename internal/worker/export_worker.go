// Package worker exports recorded runs to Google Sheets.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capext/internal/amqp"
	"capext/internal/core"
	applog "capext/internal/log"
	"capext/internal/runs"
	"capext/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// Store is the part of the run store the worker needs.
type Store interface {
	runs.RunReader
	runs.ExportTracker
}

// Consumer delivers export messages until ctx is cancelled.
type Consumer interface {
	ConsumeRunExports(ctx context.Context, handler func(context.Context, *amqp.RunExportMessage) error) error
}

// ExportWorker moves pending runs to the spreadsheet.
type ExportWorker struct {
	store     Store
	exporter  sheets.RosterExporter
	batchSize int
	logger    *applog.Logger
}

func NewExportWorker(store Store, exporter sheets.RosterExporter, batchSize int, logger *applog.Logger) *ExportWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleExportMessage exports the run named by msg. Unknown and already
// exported runs are acknowledged without work; export failures are returned
// so the message is requeued.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.RunExportMessage) error {
	run, err := w.store.GetRun(ctx, msg.RunID)
	if errors.Is(err, runs.ErrNotFound) {
		w.logger.WarnContext(ctx, "Export requested for unknown run", applog.FieldRunID, msg.RunID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.ExportStatus == core.ExportDone {
		w.logger.DebugContext(ctx, "Run already exported", applog.FieldRunID, run.ID, applog.FieldExportRef, run.ExportRef)
		return nil
	}
	return w.export(ctx, run)
}

// ProcessPendingExports exports up to one batch of runs still pending. It is
// the backup path for messages that never reached the queue.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) (int, error) {
	pending, err := w.store.PendingExports(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending runs: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	exported := 0
	for _, run := range pending {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := w.export(ctx, run); err != nil {
			continue
		}
		exported++
	}
	return exported, nil
}

func (w *ExportWorker) export(ctx context.Context, run core.Run) error {
	ref, err := w.exporter.ExportRoster(ctx, run)
	if err != nil {
		w.logger.LogError(ctx, "Failed to export run", err, applog.OpExport,
			applog.NewFields().WithRun(run.ID, string(run.ExportStatus)))
		if merr := w.store.MarkExportError(ctx, run.ID); merr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark export error", applog.FieldRunID, run.ID, applog.FieldError, merr)
		}
		return fmt.Errorf("export run %d: %w", run.ID, err)
	}

	if err := w.store.MarkExported(ctx, run.ID, ref); err != nil {
		return fmt.Errorf("mark run %d exported: %w", run.ID, err)
	}
	w.logger.InfoContext(ctx, "Run exported", applog.FieldRunID, run.ID, applog.FieldExportRef, ref)
	return nil
}

// Run consumes export messages and polls for pending runs every interval
// until ctx is cancelled or the consumer fails.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeRunExports(ctx, w.HandleExportMessage)
	})

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		w.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *ExportWorker) poll(ctx context.Context) {
	if _, err := w.ProcessPendingExports(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Pending export poll failed", applog.FieldError, err)
	}
}
