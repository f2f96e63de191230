package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsAllowedOrigin(t *testing.T) {
	m := New([]string{"https://example.com/", " http://localhost:5173 "})

	testCases := []struct {
		name     string
		origin   string
		expected bool
	}{
		{"allowed origin with trailing slash in config", "https://example.com", true},
		{"allowed origin with spaces in config", "http://localhost:5173", true},
		{"disallowed origin", "https://evil.com", false},
		{"empty origin", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.IsAllowedOrigin(tc.origin); got != tc.expected {
				t.Errorf("Expected %v, got %v for origin %s", tc.expected, got, tc.origin)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("preflight from allowed origin", func(t *testing.T) {
		h := New([]string{"http://localhost:3000"}).Middleware(next)
		req := httptest.NewRequest(http.MethodOptions, "/expenses", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Fatalf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Fatal("missing allow methods")
		}
	})

	t.Run("preflight from unknown origin", func(t *testing.T) {
		h := New([]string{"http://localhost:3000"}).Middleware(next)
		req := httptest.NewRequest(http.MethodOptions, "/expenses", nil)
		req.Header.Set("Origin", "https://evil.com")
		req.Header.Set("Access-Control-Request-Method", "DELETE")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden || rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Fatalf("status = %d, allow origin = %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("wildcard simple request", func(t *testing.T) {
		h := New([]string{"*"}).Middleware(next)
		req := httptest.NewRequest(http.MethodGet, "/expenses", nil)
		req.Header.Set("Origin", "https://anything.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusTeapot || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("status = %d, allow origin = %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}
