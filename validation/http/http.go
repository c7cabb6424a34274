// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package http provides validation and canonicalization for HTTP headers and
// OAuth 2.0 resource URIs.
package http

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ValidateHeaderName validates that a string is a valid HTTP header name per RFC 7230.
// It checks for CRLF injection, control characters, and ensures RFC token compliance.
func ValidateHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("header name cannot be empty")
	}

	// Length limit to prevent DoS
	if len(name) > 256 {
		return fmt.Errorf("header name exceeds maximum length of 256 bytes")
	}

	// Use httpguts validation (same as Go's HTTP/2 implementation)
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("invalid HTTP header name: contains invalid characters")
	}

	return nil
}

// ValidateHeaderValue validates that a string is a valid HTTP header value per RFC 7230.
// It checks for CRLF injection and control characters.
func ValidateHeaderValue(value string) error {
	if value == "" {
		return fmt.Errorf("header value cannot be empty")
	}

	// Length limit to prevent DoS (common HTTP server limit)
	if len(value) > 8192 {
		return fmt.Errorf("header value exceeds maximum length of 8192 bytes")
	}

	// Use httpguts validation
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid HTTP header value: contains control characters")
	}

	return nil
}

// ValidateResourceURI validates that a resource URI conforms to RFC 8707
// requirements for canonical URIs used in OAuth 2.0 resource indicators.
//
// A valid canonical URI must:
//   - Include a scheme (any scheme is accepted, e.g. https)
//   - Include a host
//   - Not contain fragments
func ValidateResourceURI(resourceURI string) error {
	if resourceURI == "" {
		return fmt.Errorf("resource URI cannot be empty")
	}

	parsed, err := url.Parse(resourceURI)
	if err != nil {
		return fmt.Errorf("invalid resource URI: %w", err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("resource URI must include a scheme (e.g., https://): %s", resourceURI)
	}

	if parsed.Host == "" {
		return fmt.Errorf("resource URI must include a host: %s", resourceURI)
	}

	if parsed.Fragment != "" {
		return fmt.Errorf("resource URI must not contain fragments (#): %s", resourceURI)
	}

	return nil
}

// CanonicalResourceURI canonicalizes a server URL into an RFC 8707 resource
// indicator: the fragment is dropped, scheme and host are lower-cased, and
// path and query are preserved as given.
func CanonicalResourceURI(serverURL string) (*url.URL, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("server URL must be absolute: %s", serverURL)
	}

	canonical := *parsed
	canonical.Fragment = ""
	canonical.Scheme = strings.ToLower(canonical.Scheme)
	canonical.Host = strings.ToLower(canonical.Host)
	return &canonical, nil
}

// IsResourceAllowed reports whether a requested resource falls within the
// scope of a configured resource identifier: same scheme and host, and the
// configured path must be a segment-wise prefix of the requested path.
// "https://srv.example/mcp" is allowed by "https://srv.example" and by
// "https://srv.example/mcp", but not by "https://srv.example/mc".
func IsResourceAllowed(requested, configured *url.URL) bool {
	if requested == nil || configured == nil {
		return false
	}
	if !strings.EqualFold(requested.Scheme, configured.Scheme) ||
		!strings.EqualFold(requested.Host, configured.Host) {
		return false
	}

	requestedSegs := pathSegments(requested.Path)
	configuredSegs := pathSegments(configured.Path)
	if len(configuredSegs) > len(requestedSegs) {
		return false
	}
	for i, seg := range configuredSegs {
		if requestedSegs[i] != seg {
			return false
		}
	}
	return true
}

// pathSegments splits a URL path into its non-empty segments.
func pathSegments(path string) []string {
	var segs []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}
