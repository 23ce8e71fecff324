package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voxsheet/voxsheet/internal/config"
	"github.com/voxsheet/voxsheet/internal/core"
)

// testConfig returns a config suitable for handler tests. The database
// URL is never dialed; handlers under test stay off pool-backed paths.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			RequestTimeout: 30 * time.Second,
		},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			BodyField:     "text",
			AuthorField:   "author",
			NumericFields: []string{"likes"},
			FlagFields:    []string{"verified"},
		},
		Generate: config.GenerateConfig{
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
		},
		Export: config.ExportConfig{
			AudioDir: t.TempDir(),
		},
		Rate: config.RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 100,
			UploadLimit:       10,
		},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig(t)
	service := core.NewService(nil, cfg, nil)
	return NewServer(service, cfg)
}

// multipartBody builds a multipart request body with a single file part.
func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// ============================================================
// Static + headers
// ============================================================

func TestIndexServed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "Voxsheet") {
		t.Error("index page missing app name")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "media-src 'self'") {
		t.Errorf("CSP = %q, want media-src 'self'", got)
	}
}

// ============================================================
// Preview
// ============================================================

func TestPreviewDecodesWithoutPersisting(t *testing.T) {
	srv := newTestServer(t)

	blob := "author,text,likes,verified\n" +
		"alice,hello world,3,true\n" +
		"bob,x,0,false\n" // body too short, dropped
	body, ct := multipartBody(t, "file", "posts.csv", blob)

	req := httptest.NewRequest(http.MethodPost, "/api/preview", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Kept    int `json:"kept"`
		Dropped int `json:"dropped"`
		Records []struct {
			ID     string            `json:"id"`
			Fields map[string]string `json:"fields"`
		} `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Kept != 1 || out.Dropped != 1 {
		t.Errorf("kept=%d dropped=%d, want 1/1", out.Kept, out.Dropped)
	}
	if len(out.Records) != 1 || out.Records[0].ID != "alice-1" {
		t.Errorf("records = %+v, want single alice-1", out.Records)
	}
}

func TestPreviewMissingFileField(t *testing.T) {
	srv := newTestServer(t)

	body, ct := multipartBody(t, "wrong", "posts.csv", "a,b\nc,d\n")
	req := httptest.NewRequest(http.MethodPost, "/api/preview", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.Upload.MaxFileSize = 64

	big := strings.Repeat("padding,", 100)
	body, ct := multipartBody(t, "file", "big.csv", big)
	req := httptest.NewRequest(http.MethodPost, "/api/preview", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

// ============================================================
// Generation endpoints
// ============================================================

func TestGenerateWithoutSynthesizer(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/batches/some-batch/generate",
		strings.NewReader(`{"record_ids":["a-1"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestJobEndpointsUnknownJob(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
	}{
		{"progress", http.MethodGet, "/api/jobs/nope/progress"},
		{"result", http.MethodGet, "/api/jobs/nope/result"},
		{"cancel", http.MethodPost, "/api/jobs/nope/cancel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out struct {
		Status  string `json:"status"`
		Limiter struct {
			MaxConcurrent int `json:"max_concurrent"`
		} `json:"limiter"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Status != "ok" {
		t.Errorf("status field = %q, want ok", out.Status)
	}
	if out.Limiter.MaxConcurrent != 2 {
		t.Errorf("limiter max = %d, want 2", out.Limiter.MaxConcurrent)
	}
}

// ============================================================
// Audio
// ============================================================

func TestAudioNotFound(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audio/some-batch/some-record", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
