// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"

	validation "github.com/stacklok/authflow/validation/http"
)

// Fetch performs a single HTTP request. It has the shape of
// http.Client.Do so any client (or test double) plugs in directly.
type Fetch func(req *http.Request) (*http.Response, error)

// ProtocolVersionHeader is sent on every discovery request so servers can
// apply version-specific behavior.
const ProtocolVersionHeader = "MCP-Protocol-Version"

// defaultFetch issues requests through http.DefaultClient.
func defaultFetch(req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req)
}

// fetchOrDefault returns the given Fetch or the default one.
func fetchOrDefault(fetch Fetch) Fetch {
	if fetch != nil {
		return fetch
	}
	return defaultFetch
}

// protocolVersionOrDefault returns the configured protocol version or the
// latest version this library speaks.
func protocolVersionOrDefault(version string) string {
	if version != "" {
		return version
	}
	return mcp.LATEST_PROTOCOL_VERSION
}

// validateHeaders rejects caller-supplied headers that would corrupt the
// request (CRLF injection, control characters).
func validateHeaders(headers http.Header) error {
	for name, values := range headers {
		if err := validation.ValidateHeaderName(name); err != nil {
			return fmt.Errorf("header %q: %w", name, err)
		}
		for _, value := range values {
			if err := validation.ValidateHeaderValue(value); err != nil {
				return fmt.Errorf("header %q: %w", name, err)
			}
		}
	}
	return nil
}

// fetchWithCORSRetry issues a GET against target with the given headers.
// A transport-layer failure triggers one retry with all custom headers
// dropped: in browser-like environments a CORS preflight rejection
// surfaces as a transport error, and the bare request may still succeed.
// A second transport failure yields (nil, nil), meaning "no response";
// callers classify that per their own rules.
func fetchWithCORSRetry(ctx context.Context, fetch Fetch, target *url.URL, headers http.Header) (*http.Response, error) {
	resp, err := doGet(ctx, fetch, target, headers)
	if err == nil {
		return resp, nil
	}
	if len(headers) == 0 {
		return nil, nil
	}

	resp, err = doGet(ctx, fetch, target, nil)
	if err != nil {
		return nil, nil
	}
	return resp, nil
}

// doGet builds and sends a single GET request.
func doGet(ctx context.Context, fetch Fetch, target *url.URL, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", target, err)
	}
	for name, values := range headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	return fetch(req)
}
