// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package http provides validation and canonicalization functions for HTTP
headers and OAuth 2.0 resource URIs.

# Header Validation

Validate HTTP header names and values per RFC 7230 before attaching
caller-supplied headers to outgoing requests:

	if err := http.ValidateHeaderName("X-Custom-Header"); err != nil {
		// Handle invalid header name
	}

	if err := http.ValidateHeaderValue("2025-06-18"); err != nil {
		// Handle invalid header value
	}

The validators check for:
  - CRLF injection attempts (\r\n sequences)
  - Control characters
  - RFC 7230 token compliance for header names
  - Length limits to prevent DoS (256 bytes for names, 8192 for values)

# Resource URIs

Resource indicators per RFC 8707 must be absolute URIs without fragments.
CanonicalResourceURI derives the canonical indicator from a server URL, and
IsResourceAllowed implements the segment-wise prefix check used to decide
whether a protected resource's advertised identifier covers a server URL:

	canonical, err := http.CanonicalResourceURI("https://SRV.example/mcp#frag")
	// canonical.String() == "https://srv.example/mcp"
*/
package http
