package transport

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
)

// Allowlist restricts the trigger endpoints to known source IPs. The capture
// platform's callback hosts are the only expected callers.
type Allowlist struct {
	ips map[string]bool
}

// LoadAllowlist reads a newline-delimited file of IP addresses. Blank lines
// and lines starting with '#' are skipped.
func LoadAllowlist(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}

	a := &Allowlist{ips: make(map[string]bool)}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		a.ips[line] = true
	}
	return a, nil
}

// NewAllowlist builds an allowlist from literal addresses, for tests and
// programmatic wiring.
func NewAllowlist(ips ...string) *Allowlist {
	a := &Allowlist{ips: make(map[string]bool, len(ips))}
	for _, ip := range ips {
		a.ips[ip] = true
	}
	return a
}

// Middleware rejects requests whose source IP is not on the list.
func (a *Allowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !a.ips[host] {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
