package http

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"capext/internal/core"
)

// uploadForm describes a multipart roster upload. Empty fields are omitted.
type uploadForm struct {
	fileName    string
	contentType string
	content     string
	targetDate  string
	skip        bool
}

func newUploadRequest(t *testing.T, f uploadForm) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if f.fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, f.fileName))
		ct := f.contentType
		if ct == "" {
			ct = "text/csv"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if f.targetDate != "" {
		if err := mw.WriteField("target_date", f.targetDate); err != nil {
			t.Fatal(err)
		}
	}
	if f.skip {
		if err := mw.WriteField("skip_existing", "on"); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/project", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseUpload(t *testing.T) {
	const roster = "Nom;Capacité;Mois;Année;BU\nAlice;80;01/01/2024;2024;Eng\n"

	tests := []struct {
		name       string
		form       uploadForm
		wantStatus int // 0 means success
		wantMsg    string
	}{
		{
			name: "valid upload",
			form: uploadForm{fileName: "roster.csv", content: roster, targetDate: "2024-03-01", skip: true},
		},
		{
			name: "text/csv with other extension",
			form: uploadForm{fileName: "export.txt", contentType: "text/csv; charset=utf-8", content: roster, targetDate: "2024-03-01"},
		},
		{
			name:       "not a csv",
			form:       uploadForm{fileName: "roster.xlsx", contentType: "application/vnd.ms-excel", content: roster, targetDate: "2024-03-01"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgInvalidCSV,
		},
		{
			name:       "missing file",
			form:       uploadForm{targetDate: "2024-03-01"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgMissingInput,
		},
		{
			name:       "missing date",
			form:       uploadForm{fileName: "roster.csv", content: roster},
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgMissingInput,
		},
		{
			name:       "malformed date",
			form:       uploadForm{fileName: "roster.csv", content: roster, targetDate: "01/03/2024"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			got, errResp := ParseUpload(w, newUploadRequest(t, tt.form), 1<<20)

			if tt.wantStatus == 0 {
				if errResp != nil {
					errResp.Write(w)
					t.Fatalf("unexpected error response %d: %s", w.Code, w.Body.String())
				}
				if got.Content != tt.form.content {
					t.Errorf("Content = %q, want %q", got.Content, tt.form.content)
				}
				if got.TargetDate != core.NewDate(2024, 3, 1) {
					t.Errorf("TargetDate = %v", got.TargetDate)
				}
				if got.SkipExisting != tt.form.skip {
					t.Errorf("SkipExisting = %v, want %v", got.SkipExisting, tt.form.skip)
				}
				return
			}

			if errResp == nil {
				t.Fatalf("expected error response, got %+v", got)
			}
			errResp.Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantMsg) {
				t.Errorf("body %q does not contain %q", w.Body.String(), tt.wantMsg)
			}
		})
	}
}

func TestParseUpload_StripsBOMAndPath(t *testing.T) {
	req := newUploadRequest(t, uploadForm{
		fileName:   "reports/roster.csv",
		content:    "\ufeffNom;Capacité;Mois;Année;BU\nAlice;80;01/01/2024;2024;Eng",
		targetDate: "2024-03-01",
	})
	got, errResp := ParseUpload(httptest.NewRecorder(), req, 1<<20)
	if errResp != nil {
		t.Fatal("unexpected error response")
	}
	if got.FileName != "roster.csv" {
		t.Errorf("FileName = %q, want roster.csv", got.FileName)
	}
	if strings.HasPrefix(got.Content, "\ufeff") {
		t.Error("byte order mark was not stripped")
	}
}

func TestParseUpload_TooLarge(t *testing.T) {
	req := newUploadRequest(t, uploadForm{
		fileName:   "roster.csv",
		content:    strings.Repeat("Alice;80;01/01/2024;2024;Eng\n", 200),
		targetDate: "2024-03-01",
	})
	w := httptest.NewRecorder()
	_, errResp := ParseUpload(w, req, 512)
	if errResp == nil {
		t.Fatal("expected oversized upload to be rejected")
	}
	errResp.Write(w)
	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 413 or 400", w.Code)
	}
}

func TestParseUpload_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/project", strings.NewReader("target_date=2024-03-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	_, errResp := ParseUpload(w, req, 1<<20)
	if errResp == nil {
		t.Fatal("expected error response")
	}
	errResp.Write(w)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), msgMissingInput) {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestIsCSVUpload(t *testing.T) {
	tests := []struct {
		name, contentType string
		want              bool
	}{
		{"roster.csv", "application/octet-stream", true},
		{"ROSTER.CSV", "", true},
		{"roster.txt", "text/csv", true},
		{"roster.txt", "text/csv; charset=utf-8", true},
		{"roster.txt", "text/plain", false},
		{"roster", "", false},
	}
	for _, tt := range tests {
		if got := isCSVUpload(tt.name, tt.contentType); got != tt.want {
			t.Errorf("isCSVUpload(%q, %q) = %v, want %v", tt.name, tt.contentType, got, tt.want)
		}
	}
}

func TestParseCheckbox(t *testing.T) {
	for _, v := range []string{"on", "true", "1", " YES "} {
		if !parseCheckbox(v) {
			t.Errorf("parseCheckbox(%q) = false", v)
		}
	}
	for _, v := range []string{"", "off", "no", "0"} {
		if parseCheckbox(v) {
			t.Errorf("parseCheckbox(%q) = true", v)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"roster.csv":         "roster.csv",
		"  roster.csv  ":     "roster.csv",
		"dir/sub/roster.csv": "roster.csv",
		`C:\tmp\roster.csv`:  "roster.csv",
		"ros\x00ter.csv":     "roster.csv",
		"":                   "",
		"/":                  "",
	}
	for in, want := range tests {
		if got := sanitizeFileName(in); got != want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirstOfNextMonth(t *testing.T) {
	got := firstOfNextMonth(time.Date(2024, time.December, 15, 10, 0, 0, 0, time.Local))
	if got.Format(time.DateOnly) != "2025-01-01" {
		t.Errorf("firstOfNextMonth = %s, want 2025-01-01", got.Format(time.DateOnly))
	}
}
