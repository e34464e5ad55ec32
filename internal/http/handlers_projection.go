package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"capext/internal/core"
	applog "capext/internal/log"
	"capext/internal/runs"
	"capext/internal/services"
)

// previewRows bounds the table shown under a projection result.
const previewRows = 10

type resultView struct {
	RunID           int64
	FileName        string
	TargetDate      core.Date
	RowCount        int
	NewEntriesCount int
	OriginalCount   int
	Skipped         []core.RowIssue
	ExportStatus    core.ExportStatus
	DownloadURL     string
	Header          []string
	Preview         [][]string
	MoreRows        int
}

func newResultView(run core.Run, proj core.Projection) resultView {
	v := resultView{
		RunID:           run.ID,
		FileName:        run.OutputName,
		TargetDate:      run.TargetDate,
		RowCount:        proj.RowCount(),
		NewEntriesCount: proj.AddedCount,
		OriginalCount:   proj.OriginalCount,
		Skipped:         proj.Skipped,
		ExportStatus:    run.ExportStatus,
		DownloadURL:     fmt.Sprintf("/download/%d", run.ID),
	}

	table := core.Table(proj.Content)
	if len(table) > 0 {
		v.Header = table[0]
		rows := table[1:]
		if len(rows) > previewRows {
			v.MoreRows = len(rows) - previewRows
			rows = rows[:previewRows]
		}
		v.Preview = rows
	}
	return v
}

// handleProject projects an uploaded roster and renders the result partial.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	upload, errResp := ParseUpload(w, r, s.maxUploadBytes)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	run, proj, err := s.projector.Project(ctx, services.ProjectionRequest{
		FileName:     upload.FileName,
		Content:      upload.Content,
		TargetDate:   upload.TargetDate,
		SkipExisting: upload.SkipExisting,
	})
	switch {
	case errors.Is(err, core.ErrEmptyInput):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case errors.Is(err, core.ErrEmptyFileName):
		BadRequestError(msgMissingInput).Write(w)
		return
	case err != nil:
		logger.LogError(ctx, "Projection failed", err, applog.OpProject,
			applog.NewFields().WithProjection(upload.FileName, core.FormatDate(upload.TargetDate), 0, 0, 0))
		InternalServerError(msgUnexpected).Write(w)
		return
	}

	s.results.Put(run)
	s.appMetrics.projections.Add(1)

	if s.templates == nil {
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	view := newResultView(run, proj)
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "result.html", view); err != nil {
		logger.LogError(ctx, "Result template execution failed", err, applog.OpRender,
			applog.NewFields().WithRun(run.ID, string(run.ExportStatus)))
		InternalServerError(msgUnexpected).Write(w)
		return
	}

	resp := NewHTMXResponse().
		TriggerProjectionCompleted(run.ID, view.RowCount, view.NewEntriesCount).
		TriggerRunsRefresh()
	if n := len(proj.Skipped); n > 0 {
		resp.TriggerWarningNotification(fmt.Sprintf("%d new entries added, %d rows skipped", proj.AddedCount, n))
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("%d new entries added", proj.AddedCount))
	}
	resp.BodyHTML(buf.String()).Write(w)
}

// handleDownload serves a projected roster as a CSV attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		NotFoundError("Result not found.").Write(w)
		return
	}

	name, content, ok := s.lookupResult(r, id)
	if !ok {
		run, err := s.projector.Run(ctx, id)
		if errors.Is(err, runs.ErrNotFound) {
			NotFoundError("Result not found.").Write(w)
			return
		}
		if err != nil {
			logger.LogError(ctx, "Failed to load run", err, applog.OpDownload, applog.NewFields().WithRun(id, ""))
			InternalServerError(msgUnexpected).Write(w)
			return
		}
		s.results.Put(run)
		name, content = run.OutputName, run.Content
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(name))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func (s *Server) lookupResult(r *http.Request, id int64) (name, content string, ok bool) {
	res, found := s.results.Lookup(id)
	if !found {
		s.appMetrics.cacheMisses.Add(1)
		return "", "", false
	}
	s.appMetrics.cacheHits.Add(1)
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Result cache hit", applog.FieldRunID, id)
	return res.OutputName, res.Content, true
}
