// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"net/http"

	"github.com/stacklok/authflow/logger"
	"github.com/stacklok/authflow/oauth"
)

// Transport is an http.RoundTripper that authorizes requests to a protected
// server: it attaches the provider's stored access token and, on a 401,
// runs the Auth flow and retries once. When the flow needs the user's
// browser (AuthResultRedirect), the round trip fails with
// oauth.ErrUnauthorized and the caller retries after the user returns.
type Transport struct {
	// Base is the underlying round tripper; nil means http.DefaultTransport.
	Base http.RoundTripper

	// Provider owns the session state for the target server.
	Provider Provider

	// ServerURL is the protected server this transport fronts.
	ServerURL string

	// Scope optionally overrides the scope requested at authorization.
	Scope string

	// ProtocolVersion optionally overrides the MCP-Protocol-Version header
	// used during discovery.
	ProtocolVersion string
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx := req.Context()

	tokens, err := t.Provider.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}

	authed := req
	if tokens.Valid(0) {
		authed = req.Clone(ctx)
		authed.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}

	resp, err := base.RoundTrip(authed)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A consumed one-shot body cannot be replayed after authorization, so
	// hand the 401 back to the caller untouched.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	// The server rejected the credentials; its challenge may point at the
	// protected resource metadata to bootstrap discovery from.
	resourceMetadataURL := ExtractResourceMetadataURL(resp)
	drain(resp)

	logger.Debugw("request unauthorized, running authorization flow",
		"server", t.ServerURL, "resource_metadata", resourceMetadataURL)

	result, err := Auth(ctx, t.Provider, AuthOptions{
		ServerURL:           t.ServerURL,
		Scope:               t.Scope,
		ResourceMetadataURL: resourceMetadataURL,
		ProtocolVersion:     t.ProtocolVersion,
		Fetch:               base.RoundTrip,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oauth.ErrUnauthorized, err)
	}
	if result != AuthResultAuthorized {
		return nil, fmt.Errorf("%w: user authorization pending", oauth.ErrUnauthorized)
	}

	tokens, err = t.Provider.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if !tokens.Valid(0) {
		return nil, fmt.Errorf("%w: authorization flow saved no usable tokens", oauth.ErrUnauthorized)
	}

	retry := req.Clone(ctx)
	retry.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	if req.GetBody != nil {
		retry.Body, err = req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
	}
	return base.RoundTrip(retry)
}
