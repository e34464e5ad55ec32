// Package http provides HTTP server and handler implementations.
//
// This file implements the parsing and validation of roster uploads.

package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"capext/internal/core"
)

// User-facing validation messages.
const (
	msgInvalidCSV     = "Please upload a valid CSV file."
	msgMissingInput   = "Please provide both a CSV file and a target date."
	msgInvalidDate    = "Please provide a valid target date."
	msgReadFailed     = "Failed to read the file."
	msgTooLarge       = "The file is too large."
	msgInvalidRequest = "Invalid request format."
	msgUnexpected     = "Unexpected error during processing."
)

const utf8BOM = "\ufeff"

// UploadRequest is a validated roster upload.
type UploadRequest struct {
	FileName     string
	Content      string
	TargetDate   core.Date
	SkipExisting bool
}

// ParseUpload reads the multipart roster upload from r. On failure it
// returns the error response to send instead.
func ParseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (UploadRequest, *HTMXResponseBuilder) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return UploadRequest{}, RequestEntityTooLargeError(msgTooLarge)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return UploadRequest{}, BadRequestError(msgMissingInput)
		}
		return UploadRequest{}, BadRequestError(msgInvalidRequest)
	}

	dateValue := strings.TrimSpace(r.FormValue("target_date"))
	file, header, err := r.FormFile("file")
	if err != nil || dateValue == "" {
		if file != nil {
			file.Close()
		}
		return UploadRequest{}, BadRequestError(msgMissingInput)
	}
	defer file.Close()

	fileName := sanitizeFileName(header.Filename)
	if fileName == "" {
		return UploadRequest{}, BadRequestError(msgMissingInput)
	}
	if !isCSVUpload(fileName, header.Header.Get("Content-Type")) {
		return UploadRequest{}, BadRequestError(msgInvalidCSV)
	}

	target, err := core.ParseISODate(dateValue)
	if err != nil {
		return UploadRequest{}, BadRequestError(msgInvalidDate)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return UploadRequest{}, BadRequestError(msgReadFailed)
	}

	return UploadRequest{
		FileName:     fileName,
		Content:      strings.TrimPrefix(string(data), utf8BOM),
		TargetDate:   target,
		SkipExisting: parseCheckbox(r.FormValue("skip_existing")),
	}, nil
}

// isCSVUpload accepts a file named *.csv or sent as text/csv.
func isCSVUpload(fileName, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(fileName), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/csv"
}

func parseCheckbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}
