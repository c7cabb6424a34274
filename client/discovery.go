// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stacklok/authflow/logger"
	"github.com/stacklok/authflow/oauth"
)

// ErrNoProtectedResourceMetadata indicates the resource server does not
// publish RFC 9728 Protected Resource Metadata at any well-known location.
var ErrNoProtectedResourceMetadata = errors.New("server does not implement OAuth 2.0 Protected Resource Metadata")

// DiscoveryKind distinguishes RFC 8414 OAuth metadata endpoints from OIDC
// discovery endpoints; the two payloads carry different obligations.
type DiscoveryKind string

// Discovery endpoint kinds.
const (
	DiscoveryKindOAuth DiscoveryKind = "oauth"
	DiscoveryKindOIDC  DiscoveryKind = "oidc"
)

// DiscoveryURL pairs a well-known metadata URL with its kind.
type DiscoveryURL struct {
	URL  *url.URL
	Kind DiscoveryKind
}

// DiscoveryOptions carries optional knobs for metadata discovery.
type DiscoveryOptions struct {
	// ProtocolVersion overrides the MCP-Protocol-Version header value.
	ProtocolVersion string

	// ResourceMetadataURL, when set, is fetched directly instead of probing
	// the well-known locations. Typically taken from a WWW-Authenticate
	// challenge's resource_metadata parameter.
	ResourceMetadataURL string

	// Headers are extra headers attached to every discovery request. They
	// are validated against RFC 7230 before use.
	Headers http.Header

	// Fetch overrides the HTTP transport.
	Fetch Fetch
}

// BuildDiscoveryURLs produces the ordered list of well-known URLs to probe
// for a given authorization server URL, per RFC 8414 Section 3.1 and OIDC
// Discovery 1.0 Section 4.1. OAuth endpoints come first; for issuers with a
// path component, path-aware URLs precede the root fallbacks. The function
// is pure.
func BuildDiscoveryURLs(authServerURL string) ([]DiscoveryURL, error) {
	issuer, err := url.Parse(authServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization server URL: %w", err)
	}
	if issuer.Scheme == "" || issuer.Host == "" {
		return nil, fmt.Errorf("authorization server URL must be absolute: %s", authServerURL)
	}

	origin := issuer.Scheme + "://" + issuer.Host
	mustParse := func(s string) *url.URL {
		u, err := url.Parse(s)
		if err != nil {
			// Inputs are origin + constant paths; parsing cannot fail.
			panic(fmt.Sprintf("building discovery URL %q: %v", s, err))
		}
		return u
	}

	path := strings.TrimSuffix(issuer.Path, "/")
	if path == "" {
		return []DiscoveryURL{
			{URL: mustParse(origin + oauth.WellKnownOAuthServerPath), Kind: DiscoveryKindOAuth},
			{URL: mustParse(origin + oauth.WellKnownOIDCPath), Kind: DiscoveryKindOIDC},
		}, nil
	}

	return []DiscoveryURL{
		// RFC 8414: well-known prefix inserted before the issuer path.
		{URL: mustParse(origin + oauth.WellKnownOAuthServerPath + path), Kind: DiscoveryKindOAuth},
		{URL: mustParse(origin + oauth.WellKnownOAuthServerPath), Kind: DiscoveryKindOAuth},
		{URL: mustParse(origin + oauth.WellKnownOIDCPath + path), Kind: DiscoveryKindOIDC},
		// OIDC Discovery 1.0: well-known suffix appended after the issuer path.
		{URL: mustParse(origin + path + oauth.WellKnownOIDCPath), Kind: DiscoveryKindOIDC},
	}, nil
}

// FetchProtectedResource fetches RFC 9728 Protected Resource Metadata for a
// server. The path-aware well-known URL is tried first; when it is absent
// (no response, or 404 on a non-root path) the root well-known URL is the
// fallback. ErrNoProtectedResourceMetadata means the server does not
// publish the document; a *oauth.TransportError means it was unreachable.
func FetchProtectedResource(ctx context.Context, serverURL string, opts DiscoveryOptions) (*oauth.ProtectedResourceMetadata, error) {
	fetch := fetchOrDefault(opts.Fetch)
	headers, err := discoveryHeaders(opts.ProtocolVersion, opts.Headers)
	if err != nil {
		return nil, err
	}

	var target *url.URL
	serverPath := "/"

	if opts.ResourceMetadataURL != "" {
		target, err = url.Parse(opts.ResourceMetadataURL)
		if err != nil {
			return nil, fmt.Errorf("invalid resource metadata URL: %w", err)
		}
	} else {
		server, err := url.Parse(serverURL)
		if err != nil {
			return nil, fmt.Errorf("invalid server URL: %w", err)
		}
		serverPath = server.Path
		path := strings.TrimSuffix(server.Path, "/")
		target = &url.URL{
			Scheme:   server.Scheme,
			Host:     server.Host,
			Path:     oauth.WellKnownOAuthResourcePath + path,
			RawQuery: server.RawQuery,
		}
	}

	resp, err := fetchWithCORSRetry(ctx, fetch, target, headers)
	if err != nil {
		return nil, err
	}

	// Path-aware discovery came up empty; retry at the origin root unless an
	// explicit metadata URL was given or the server URL had no path anyway.
	if opts.ResourceMetadataURL == "" && shouldFallBackToRoot(resp, serverPath) {
		if resp != nil {
			drain(resp)
		}
		root := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: oauth.WellKnownOAuthResourcePath}
		logger.Debugw("protected resource metadata absent at path-aware URL, falling back to root",
			"target", root.String())
		resp, err = fetchWithCORSRetry(ctx, fetch, root, headers)
		if err != nil {
			return nil, err
		}
		target = root
	}

	if resp == nil {
		return nil, &oauth.TransportError{URL: target.String(), Err: errors.New("no response")}
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoProtectedResourceMetadata
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, oauth.ParseErrorResponse(resp.StatusCode, body)
	}

	var metadata oauth.ProtectedResourceMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse protected resource metadata: %w", err)
	}
	return &metadata, nil
}

// FetchAuthorizationServer discovers authorization server metadata by
// probing the candidate URLs from BuildDiscoveryURLs in order. A 4xx
// response moves on to the next candidate; any other non-2xx response is
// fatal; a transport failure is fatal and names the candidate. An OIDC
// document that does not advertise S256 PKCE support is rejected as
// incompatible. Returns (nil, nil) when no candidate yields metadata;
// callers must fall back to the conventional endpoint paths.
func FetchAuthorizationServer(ctx context.Context, authServerURL string, opts DiscoveryOptions) (*oauth.AuthorizationServerMetadata, error) {
	candidates, err := BuildDiscoveryURLs(authServerURL)
	if err != nil {
		return nil, err
	}

	fetch := fetchOrDefault(opts.Fetch)
	headers, err := discoveryHeaders(opts.ProtocolVersion, opts.Headers)
	if err != nil {
		return nil, err
	}
	headers.Set("Accept", "application/json")

	for _, candidate := range candidates {
		resp, err := fetchWithCORSRetry(ctx, fetch, candidate.URL, headers)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, &oauth.TransportError{URL: candidate.URL.String(), Err: errors.New("no response")}
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			drain(resp)
			logger.Debugw("authorization server metadata not found, trying next candidate",
				"candidate", candidate.URL.String(), "status", resp.StatusCode)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			drain(resp)
			return nil, oauth.ParseErrorResponse(resp.StatusCode, body)
		}

		metadata, err := decodeAuthServerMetadata(resp, candidate.Kind)
		drain(resp)
		if err != nil {
			return nil, err
		}
		logger.Debugw("discovered authorization server metadata",
			"candidate", candidate.URL.String(), "kind", string(candidate.Kind))
		return metadata, nil
	}

	return nil, nil
}

// decodeAuthServerMetadata parses a successful discovery response per the
// candidate kind and enforces kind-specific obligations.
func decodeAuthServerMetadata(resp *http.Response, kind DiscoveryKind) (*oauth.AuthorizationServerMetadata, error) {
	var metadata oauth.AuthorizationServerMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse authorization server metadata: %w", err)
	}

	isOIDC := kind == DiscoveryKindOIDC
	if err := metadata.Validate(isOIDC); err != nil {
		return nil, fmt.Errorf("invalid authorization server metadata: %w", err)
	}

	// OIDC providers must offer S256: unlike plain RFC 8414 servers, their
	// discovery document is required to list every supported method, so
	// absence means the provider truly cannot do PKCE.
	if isOIDC && !metadata.SupportsPKCE() {
		return nil, fmt.Errorf("%w: OIDC provider does not advertise S256 code challenge support",
			oauth.ErrIncompatibleAuthServer)
	}

	return &metadata, nil
}

// discoveryHeaders builds the headers carried by every discovery request,
// merging in validated caller-supplied extras.
func discoveryHeaders(protocolVersion string, extra http.Header) (http.Header, error) {
	if err := validateHeaders(extra); err != nil {
		return nil, err
	}

	headers := http.Header{}
	for name, values := range extra {
		for _, value := range values {
			headers.Add(name, value)
		}
	}
	headers.Set(ProtocolVersionHeader, protocolVersionOrDefault(protocolVersion))
	return headers, nil
}

// shouldFallBackToRoot reports whether path-aware protected resource
// discovery should retry at the origin root.
func shouldFallBackToRoot(resp *http.Response, serverPath string) bool {
	if resp == nil {
		return true
	}
	return resp.StatusCode == http.StatusNotFound && serverPath != "/" && serverPath != ""
}

// drain releases a response body so the underlying connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
