package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSOriginHandling(t *testing.T) {
	tests := []struct {
		name      string
		allowed   []string
		origin    string
		wantAllow string
	}{
		{
			name:      "listed origin echoed",
			allowed:   []string{"https://chat.mindflow.example"},
			origin:    "https://chat.mindflow.example",
			wantAllow: "https://chat.mindflow.example",
		},
		{
			name:      "unlisted origin denied",
			allowed:   []string{"https://chat.mindflow.example"},
			origin:    "https://evil.example",
			wantAllow: "",
		},
		{
			name:      "wildcard echoes any origin",
			allowed:   []string{"*"},
			origin:    "https://widget.partner.example",
			wantAllow: "https://widget.partner.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := CORS(tt.allowed)
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("allow origin: want %q, got %q", tt.wantAllow, got)
			}
		})
	}
}

func TestCORSSetsMethodAndHeaderLists(t *testing.T) {
	mw := CORS([]string{"https://chat.mindflow.example"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://chat.mindflow.example")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected allow methods header")
	}
	if rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Fatal("expected allow headers header")
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	called := false
	mw := CORS([]string{"https://chat.mindflow.example"})
	req := httptest.NewRequest(http.MethodOptions, "/sessions/abc/messages", nil)
	req.Header.Set("Origin", "https://chat.mindflow.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if called {
		t.Fatal("preflight must not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
