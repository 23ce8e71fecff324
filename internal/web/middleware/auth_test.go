package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxsheet/voxsheet/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{
		RequireAPIKey: true,
		APIKeys:       []string{"secret-one", "secret-two"},
	}
	handler := APIKeyAuth(cfg)(okHandler())

	tests := []struct {
		name    string
		header  string
		value   string
		want    int
	}{
		{
			name:   "valid X-API-Key",
			header: "X-API-Key",
			value:  "secret-one",
			want:   http.StatusOK,
		},
		{
			name:   "second configured key",
			header: "X-API-Key",
			value:  "secret-two",
			want:   http.StatusOK,
		},
		{
			name:   "valid bearer token",
			header: "Authorization",
			value:  "Bearer secret-one",
			want:   http.StatusOK,
		},
		{
			name:   "wrong key",
			header: "X-API-Key",
			value:  "wrong",
			want:   http.StatusUnauthorized,
		},
		{
			name: "missing key",
			want: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/batches", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAPIKeyAuthDisabled(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: false}
	handler := APIKeyAuth(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/batches", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}
