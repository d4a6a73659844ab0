// Package clientip resolves a best-effort originating address for a request.
//
// Forwarding headers are taken verbatim and are trivially spoofable by the
// caller. The result is a bucketing key, not an authenticated identity.
package clientip

import (
	"net"
	"strings"
)

// DefaultHeaders is the lookup order used when none is configured.
var DefaultHeaders = []string{
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// Source exposes the request data the resolver needs. huma.Context satisfies it.
type Source interface {
	Header(name string) string
	RemoteAddr() string
}

// Resolver picks the first present header from an ordered list, falling back
// to the connection address.
type Resolver struct {
	headers []string
}

// NewResolver creates a resolver using headers in order. An empty list uses DefaultHeaders.
func NewResolver(headers []string) *Resolver {
	if len(headers) == 0 {
		headers = DefaultHeaders
	}

	return &Resolver{headers: headers}
}

// Headers returns the lookup order.
func (r *Resolver) Headers() []string {
	return r.headers
}

// Resolve returns the identity for src, or "" when nothing is available.
func (r *Resolver) Resolve(src Source) string {
	for _, name := range r.headers {
		if v := src.Header(name); v != "" {
			return v
		}
	}

	addr := src.RemoteAddr()
	if addr == "" {
		return ""
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}

// ParseHeaderList splits a comma-separated header list, dropping blanks.
func ParseHeaderList(s string) []string {
	var headers []string

	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			headers = append(headers, name)
		}
	}

	return headers
}
