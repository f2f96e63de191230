package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newDetector(t *testing.T, extra ...string) *Detector {
	t.Helper()
	d, err := NewDetector(extra...)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestNewDetectorRejectsBadCIDR(t *testing.T) {
	if _, err := NewDetector("10.0.0.0/99"); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
	d := newDetector(t, "203.0.113.0/24")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.4")
	if got := d.ExtractClientIP(r); got != "198.51.100.4" {
		t.Errorf("ExtractClientIP() = %q, want forwarded address", got)
	}
}

func TestExtractClientIP(t *testing.T) {
	d := newDetector(t, "10.0.0.0/24")
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:5555", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.2:80", "198.51.100.1", "198.51.100.1"},
		{"chain walked from the right", "127.0.0.1:80", "192.0.2.66, 198.51.100.1, 10.0.0.3", "198.51.100.1"},
		{"spoofed left entry ignored", "10.0.0.2:80", "1.2.3.4, 198.51.100.1", "198.51.100.1"},
		{"untrusted proxy ignored", "203.0.113.7:5555", "198.51.100.1", "203.0.113.7"},
		{"private peer not trusted by default", "172.17.0.5:4000", "198.51.100.1", "172.17.0.5"},
		{"garbage forwarded value", "127.0.0.1:80", "not-an-ip", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	d := newDetector(t)
	tests := []struct {
		name   string
		target string
		agent  string
		want   bool
	}{
		{"normal", "/expenses?category=Food", "Mozilla/5.0", false},
		{"curl is fine", "/expenses", "curl/8.0", false},
		{"traversal", "/expenses/../../etc/passwd", "", true},
		{"scanner agent", "/expenses", "sqlmap/1.7", true},
		{"php scan", "/index.php", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.URL.Path = tt.target
			r.Header.Set("User-Agent", tt.agent)
			if got := d.Inspect(r) != ""; got != tt.want {
				t.Errorf("Inspect() flagged = %v, want %v", got, tt.want)
			}
		})
	}
	if d.GetMetrics().SuspiciousRequests != 3 {
		t.Errorf("SuspiciousRequests = %d, want 3", d.GetMetrics().SuspiciousRequests)
	}
}

func TestInspectQueryAndMethod(t *testing.T) {
	d := newDetector(t)
	r := httptest.NewRequest(http.MethodGet, "/expenses?category=Food%27%20OR%20%271%27%3D%271", nil)
	if reason := d.Inspect(r); reason == "" {
		t.Error("encoded injection in query not flagged")
	}
	r = httptest.NewRequest("TRACE", "/expenses", nil)
	if reason := d.Inspect(r); reason != "unsupported method" {
		t.Errorf("Inspect() = %q", reason)
	}
}

func TestHasNonJSONBody(t *testing.T) {
	d := newDetector(t)
	tests := []struct {
		method string
		ct     string
		want   bool
	}{
		{http.MethodPost, "application/json; charset=utf-8", false},
		{http.MethodPost, "", false},
		{http.MethodPut, "text/plain", true},
		{http.MethodGet, "text/plain", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, "/expenses", nil)
		if tt.ct != "" {
			r.Header.Set("Content-Type", tt.ct)
		}
		if got := d.HasNonJSONBody(r); got != tt.want {
			t.Errorf("%s %q: HasNonJSONBody() = %v, want %v", tt.method, tt.ct, got, tt.want)
		}
	}
	if d.GetMetrics().NonJSONBodies != 1 {
		t.Errorf("NonJSONBodies = %d, want 1", d.GetMetrics().NonJSONBodies)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing headers: %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/expenses", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
		t.Fatalf("unexpected HSTS: %q", rec.Header().Get("Strict-Transport-Security"))
	}
}
