// Package domain canonicalizes hostnames for identity comparisons.
package domain

import (
	"net/url"
	"strings"
)

// Normalize reduces a URL or bare hostname to its canonical comparable form:
// lower-cased host with a single leading "www." stripped, no port.
// "www.Example.com" and "example.com" normalize to the same value.
func Normalize(raw string) string {
	host := strings.TrimSpace(raw)
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Host != "" {
			host = u.Host
		}
	} else if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host, ".")
}

// SameDomain reports whether candidate belongs to base: an exact match or a
// subdomain (suffix "."+base). Both sides are normalized first.
func SameDomain(candidate, base string) bool {
	c := Normalize(candidate)
	b := Normalize(base)
	if c == "" || b == "" {
		return false
	}
	return c == b || strings.HasSuffix(c, "."+b)
}
