// Package security provides response hardening and request screening for the
// HTTP API.
package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	applog "moneymanager/internal/log"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}

	// Scanners only. API clients such as curl are legitimate here.
	suspiciousAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan",
	}

	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

const (
	maxURLLength = 2048
	maxProxyHops = 5
)

// Recorder counts rejected requests.
type Recorder interface {
	IncrSuspicious(reason string)
}

// Detector screens requests and resolves the client address behind trusted
// proxies.
type Detector struct {
	trustedProxies []*net.IPNet
}

// NewDetector trusts loopback and the private ranges as proxies.
func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
			parseCIDR("::1/128"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// Inspect returns a short reason when r looks like probing, or "" when it
// looks normal.
func (d *Detector) Inspect(r *http.Request) string {
	for _, m := range unusualMethods {
		if r.Method == m {
			return "method"
		}
	}
	if len(r.URL.String()) > maxURLLength {
		return "url_length"
	}

	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return "pattern"
		}
	}

	ua := strings.ToLower(r.UserAgent())
	for _, a := range suspiciousAgents {
		if strings.Contains(ua, a) {
			return "user_agent"
		}
	}

	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxProxyHops {
		return "proxy_hops"
	}
	return ""
}

// Middleware rejects suspicious requests with 400 before they reach a
// handler. rec may be nil.
func (d *Detector) Middleware(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := d.Inspect(r); reason != "" {
				logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity)
				logger.WarnContext(r.Context(), "Suspicious request rejected",
					"reason", reason,
					applog.FieldMethod, r.Method,
					applog.FieldPath, r.URL.Path,
					applog.FieldClientIP, d.ExtractClientIP(r))
				if rec != nil {
					rec.IncrSuspicious(reason)
				}
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
