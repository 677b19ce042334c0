// Package urlutil builds the links the review app hands out: absolute file
// URLs in API responses and same-site redirect targets after form posts.
package urlutil

import (
	"net/http"
	"strings"
)

// Origin returns scheme://host of the request, honoring X-Forwarded-Proto.
// fallback is used when the request carries no host.
func Origin(r *http.Request, fallback string) string {
	base := trimBase(fallback)
	if r == nil {
		return base
	}
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return base
	}
	return trimBase(scheme(r) + "://" + host)
}

// Absolute joins base and path. Paths that are already absolute URLs pass
// through.
func Absolute(base, path string) string {
	base = trimBase(base)
	switch {
	case path == "":
		return base
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	case strings.HasPrefix(path, "/"):
		return base + path
	}
	return base + "/" + path
}

// LocalRedirect returns path when it stays on this site and "/" otherwise.
// Scheme-relative ("//host") and backslash forms are rejected.
func LocalRedirect(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return "/"
	}
	if strings.ContainsAny(path, "\r\n") {
		return "/"
	}
	return path
}

func scheme(r *http.Request) string {
	proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	if comma := strings.Index(proto, ","); comma >= 0 {
		proto = strings.TrimSpace(proto[:comma])
	}
	if proto == "http" || proto == "https" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
