package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ExportSkipped ExportStatus = "skipped"
	ExportPending ExportStatus = "pending"
	ExportDone    ExportStatus = "exported"
	ExportFailed  ExportStatus = "error"
)

type (
	ExportStatus string

	// CapacityEntry is one roster row: an employee's capacity for a month.
	CapacityEntry struct {
		Name         string
		Capacity     string
		Month        string // DD/MM/YYYY
		Year         string
		BusinessUnit string
	}

	// Run is the history record of a single projection.
	Run struct {
		ID            int64
		FileName      string
		OutputName    string
		TargetDate    Date
		OriginalCount int
		AddedCount    int
		SkippedCount  int
		Content       string
		ExportStatus  ExportStatus
		ExportRef     string
		CreatedAt     time.Time
	}
)

var (
	ErrEmptyInput    = errors.New("CSV file is empty or missing headers")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyFileName = errors.New("empty file name")
	ErrEmptyContent  = errors.New("empty run content")
)

// Fields returns the entry in output column order.
func (e CapacityEntry) Fields() []string {
	return []string{e.Name, e.Capacity, e.Month, e.Year, e.BusinessUnit}
}

func (s ExportStatus) IsValid() bool {
	switch s {
	case ExportSkipped, ExportPending, ExportDone, ExportFailed:
		return true
	default:
		return false
	}
}

// Validate checks a run before it is recorded.
func (r Run) Validate() error {
	if strings.TrimSpace(r.FileName) == "" {
		return ErrEmptyFileName
	}
	if r.Content == "" {
		return ErrEmptyContent
	}
	if err := r.TargetDate.Validate(); err != nil {
		return err
	}
	if !r.ExportStatus.IsValid() {
		return errors.New("invalid export status: " + string(r.ExportStatus))
	}
	return nil
}

// RowCount is the number of data rows in the run output.
func (r Run) RowCount() int {
	return countDataRows(r.Content)
}
