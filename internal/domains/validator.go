// Package domains enforces a form's allow-list of submitting origins.
package domains

import (
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const rejectionMessage = "Form submissions are not allowed from this domain"

var ipv4Entry = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}(:\d+)?$`)

// Rejection is returned when the request origin is not on the allow-list.
type Rejection struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (r *Rejection) Error() string {
	return r.Message
}

// ValidateDomains checks the request's declared origin against allowed.
// It returns nil when the request may proceed.
func ValidateDomains(allowed []string, headers http.Header) *Rejection {
	if len(allowed) == 0 {
		return nil
	}

	origin := effectiveOrigin(headers)
	// Non-browser and privacy-restricted clients send no usable origin.
	if origin == "" || origin == "null" {
		return nil
	}

	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		for _, entry := range allowed {
			if matches(strings.ToLower(strings.TrimSpace(entry)), u) {
				return nil
			}
		}
	}

	return &Rejection{Status: http.StatusForbidden, Message: rejectionMessage}
}

func effectiveOrigin(headers http.Header) string {
	if origin := headers.Get("Origin"); origin != "" {
		return origin
	}
	if referer := headers.Get("Referer"); strings.HasPrefix(referer, "http") {
		return referer
	}
	return ""
}

func matches(entry string, origin *url.URL) bool {
	if entry == "" {
		return false
	}
	hostname := strings.ToLower(origin.Hostname())

	switch {
	case entry == "localhost" || strings.HasPrefix(entry, "localhost:"):
		return hostname == "localhost" || hostname == "127.0.0.1"
	case ipv4Entry.MatchString(entry):
		return stripPort(entry) == hostname
	}

	host := strings.TrimPrefix(hostname, "www.")
	domain := strings.TrimPrefix(entry, "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func stripPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}
