package security

import (
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"expenses/internal/log"
)

const maxURLLength = 2048

// DetectionMetrics counts what the detector has flagged since start.
type DetectionMetrics struct {
	SuspiciousRequests int64
	NonJSONBodies      int64
	InvalidIPAttempts  int64
}

// Detector flags hostile traffic and resolves the client address behind
// trusted proxies.
type Detector struct {
	suspicious     atomic.Int64
	nonJSON        atomic.Int64
	invalidIP      atomic.Int64
	trustedProxies []*net.IPNet
}

var (
	attackFragments = []string{
		"../", "..\\", ".env", ".git", ".ssh", "etc/passwd", "cmd.exe",
		"wp-admin", "phpmyadmin", ".php",
		"<script", "javascript:", "eval(",
		"union select", "' or ", "';--", "drop table",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "scanner",
	}
	// Methods the router never serves.
	unservedMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

// NewDetector trusts loopback plus the given CIDRs as proxies.
func NewDetector(trustedProxies ...string) (*Detector, error) {
	d := &Detector{}
	for _, cidr := range append([]string{"127.0.0.0/8", "::1/128"}, trustedProxies...) {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
		}
		d.trustedProxies = append(d.trustedProxies, network)
	}
	return d, nil
}

// Inspect returns why r looks hostile, or "" when it does not. Flagged
// requests are counted.
func (d *Detector) Inspect(r *http.Request) string {
	reason := inspect(r)
	if reason != "" {
		d.suspicious.Add(1)
	}
	return reason
}

func inspect(r *http.Request) string {
	if unservedMethods[r.Method] {
		return "unsupported method"
	}
	if len(r.URL.String()) > maxURLLength {
		return "url too long"
	}

	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	if q, err := url.QueryUnescape(r.URL.RawQuery); err == nil {
		target += " " + strings.ToLower(q)
	}
	for _, fragment := range attackFragments {
		if strings.Contains(target, fragment) {
			return "attack pattern " + fragment
		}
	}

	agent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			return "scanner user agent"
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); strings.Count(xff, ",") > 5 {
		return "forwarded chain too long"
	}
	return ""
}

// HasNonJSONBody reports a body-carrying request whose Content-Type is set
// to something other than JSON. A missing Content-Type is tolerated.
func (d *Detector) HasNonJSONBody(r *http.Request) bool {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return false
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json")) {
		return false
	}
	d.nonJSON.Add(1)
	return true
}

// ExtractClientIP returns the peer address unless the peer is a trusted
// proxy. Then X-Forwarded-For is walked from the right and the first hop
// that is not itself a trusted proxy wins.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil {
		d.invalidIP.Add(1)
		return peer
	}
	if !d.isTrustedProxy(ip) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			hopIP := net.ParseIP(hop)
			if hopIP == nil {
				return peer
			}
			if !d.isTrustedProxy(hopIP) {
				return hop
			}
		}
		return peer
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		NonJSONBodies:      d.nonJSON.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
	}
}

// Middleware logs flagged requests at warn level and passes them on.
// Nothing is rejected here.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.FromContext(ctx).WithComponent(log.ComponentSecurity)
		if reason := d.Inspect(r); reason != "" {
			logger.WarnContext(ctx, "Suspicious request detected",
				"reason", reason,
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		if d.HasNonJSONBody(r) {
			logger.DebugContext(ctx, "Request body is not JSON",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"content_type", r.Header.Get("Content-Type"))
		}
		next.ServeHTTP(w, r)
	})
}
