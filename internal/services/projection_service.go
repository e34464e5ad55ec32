package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"capext/internal/core"
	applog "capext/internal/log"
	"capext/internal/runs"

	"golang.org/x/text/language"
)

// ExportPublisher queues a recorded run for export.
type ExportPublisher interface {
	PublishRunExport(ctx context.Context, runID int64) error
	Close() error
}

// ProjectionRequest is one uploaded roster to project.
type ProjectionRequest struct {
	FileName     string
	Content      string
	TargetDate   core.Date
	SkipExisting bool
}

// ProjectionService runs projections and records them in the run history.
type ProjectionService struct {
	store     runs.Store
	publisher ExportPublisher
	collation language.Tag
	logger    *applog.Logger
}

// NewProjectionService wires a run store and an optional export publisher.
// A nil publisher records every run with export status skipped.
func NewProjectionService(store runs.Store, publisher ExportPublisher, collation language.Tag, logger *applog.Logger) *ProjectionService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ProjectionService{
		store:     store,
		publisher: publisher,
		collation: collation,
		logger:    logger.WithComponent(applog.ComponentProjector),
	}
}

// Project projects req, records the run and queues it for export.
// Publish failures are logged only; the pending poll picks those runs up.
func (s *ProjectionService) Project(ctx context.Context, req ProjectionRequest) (core.Run, core.Projection, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return core.Run{}, core.Projection{}, core.ErrEmptyFileName
	}

	proj, err := core.Project(req.Content, req.TargetDate, core.Options{
		Collation:    s.collation,
		SkipExisting: req.SkipExisting,
	})
	if err != nil {
		return core.Run{}, core.Projection{}, err
	}

	fields := applog.NewFields().
		WithOperation(applog.OpProject).
		WithProjection(req.FileName, core.FormatDate(req.TargetDate), proj.OriginalCount, proj.AddedCount, len(proj.Skipped))
	s.logger.InfoContext(ctx, "Roster projected", fields.ToSlice()...)
	for _, issue := range proj.Skipped {
		s.logger.DebugContext(ctx, "Row skipped", "line", issue.Line, "reason", string(issue.Reason))
	}

	status := core.ExportSkipped
	if s.publisher != nil {
		status = core.ExportPending
	}
	run, err := s.store.RecordRun(ctx, core.Run{
		FileName:      req.FileName,
		OutputName:    core.OutputFileName(req.FileName),
		TargetDate:    req.TargetDate,
		OriginalCount: proj.OriginalCount,
		AddedCount:    proj.AddedCount,
		SkippedCount:  len(proj.Skipped),
		Content:       proj.Content,
		ExportStatus:  status,
	})
	if err != nil {
		return core.Run{}, proj, fmt.Errorf("record run: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRunExport(ctx, run.ID); err != nil {
			s.logger.LogError(ctx, "Failed to publish run export", err, applog.OpPublish,
				applog.NewFields().WithRun(run.ID, string(run.ExportStatus)))
		}
	}

	return run, proj, nil
}

// Run loads a recorded run.
func (s *ProjectionService) Run(ctx context.Context, id int64) (core.Run, error) {
	return s.store.GetRun(ctx, id)
}

// RecentRuns returns up to limit runs, newest first.
func (s *ProjectionService) RecentRuns(ctx context.Context, limit int) ([]core.Run, error) {
	return s.store.ListRuns(ctx, limit)
}

// Close closes the store and the publisher.
func (s *ProjectionService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
