// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stacklok/authflow/logger"
	"github.com/stacklok/authflow/oauth"
)

// AddClientAuthentication mutates a pending token request to authenticate
// the client. Matches the ClientAuthenticator capability; when supplied, the
// built-in method selection is skipped entirely.
type AddClientAuthentication func(ctx context.Context, headers http.Header, params url.Values,
	serverURL string, metadata *oauth.AuthorizationServerMetadata) error

// StartAuthorizationOptions configures StartAuthorization.
type StartAuthorizationOptions struct {
	// Metadata is the discovered authorization server metadata, or nil when
	// discovery produced none; the conventional /authorize path is then used.
	Metadata *oauth.AuthorizationServerMetadata

	// ClientInformation holds the registered client credentials.
	ClientInformation oauth.ClientInformation

	// RedirectURL is where the server sends the user back.
	RedirectURL string

	// Scope is the requested scope (optional).
	Scope string

	// State is the opaque CSRF token (optional).
	State string

	// Resource is the RFC 8707 resource indicator (optional).
	Resource *url.URL
}

// StartAuthorizationResult is the outcome of StartAuthorization.
type StartAuthorizationResult struct {
	// AuthorizationURL is where the user agent must be sent.
	AuthorizationURL *url.URL

	// CodeVerifier must be persisted across the redirect for the exchange.
	CodeVerifier string
}

// StartAuthorization prepares an RFC 6749 authorization request secured with
// PKCE: it verifies the server supports the code response type and S256,
// generates a fresh verifier/challenge pair, and builds the authorization
// URL. No network I/O happens here; the caller persists the verifier and
// performs the redirect.
func StartAuthorization(serverURL string, opts StartAuthorizationOptions) (*StartAuthorizationResult, error) {
	var authorizationURL *url.URL
	var err error

	if opts.Metadata != nil {
		if !opts.Metadata.SupportsResponseType(oauth.ResponseTypeCode) {
			return nil, fmt.Errorf("%w: does not support response type %s",
				oauth.ErrIncompatibleAuthServer, oauth.ResponseTypeCode)
		}
		if !opts.Metadata.SupportsPKCE() {
			return nil, fmt.Errorf("%w: does not support code challenge method %s",
				oauth.ErrIncompatibleAuthServer, oauth.PKCEMethodS256)
		}
		authorizationURL, err = url.Parse(opts.Metadata.AuthorizationEndpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid authorization endpoint: %w", err)
		}
	} else {
		authorizationURL, err = conventionalEndpoint(serverURL, oauth.DefaultAuthorizationPath)
		if err != nil {
			return nil, err
		}
	}

	pair, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, err
	}

	// RFC 6749 leaves parameter order open, but keeping it stable makes
	// authorization URLs diffable in logs and bug reports.
	params := []struct{ key, value string }{
		{"response_type", oauth.ResponseTypeCode},
		{"client_id", opts.ClientInformation.ClientID},
		{"code_challenge", pair.Challenge},
		{"code_challenge_method", oauth.PKCEMethodS256},
		{"redirect_uri", opts.RedirectURL},
	}
	if opts.State != "" {
		params = append(params, struct{ key, value string }{"state", opts.State})
	}
	if opts.Scope != "" {
		params = append(params, struct{ key, value string }{"scope", opts.Scope})
		// OIDC providers only issue refresh tokens for offline_access when
		// the user explicitly consents.
		if hasScopeToken(opts.Scope, oauth.ScopeOfflineAccess) {
			params = append(params, struct{ key, value string }{"prompt", "consent"})
		}
	}
	if opts.Resource != nil {
		params = append(params, struct{ key, value string }{"resource", opts.Resource.String()})
	}

	var query strings.Builder
	for i, p := range params {
		if i > 0 {
			query.WriteByte('&')
		}
		query.WriteString(url.QueryEscape(p.key))
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(p.value))
	}
	authorizationURL.RawQuery = query.String()

	return &StartAuthorizationResult{
		AuthorizationURL: authorizationURL,
		CodeVerifier:     pair.Verifier,
	}, nil
}

// ExchangeAuthorizationOptions configures ExchangeAuthorization.
type ExchangeAuthorizationOptions struct {
	Metadata                *oauth.AuthorizationServerMetadata
	ClientInformation       oauth.ClientInformation
	AuthorizationCode       string
	CodeVerifier            string
	RedirectURI             string
	Resource                *url.URL
	AddClientAuthentication AddClientAuthentication
	Fetch                   Fetch
}

// ExchangeAuthorization exchanges an authorization code for tokens at the
// token endpoint (RFC 6749 Section 4.1.3), proving possession of the PKCE
// verifier.
func ExchangeAuthorization(ctx context.Context, serverURL string, opts ExchangeAuthorizationOptions) (*oauth.Tokens, error) {
	tokenURL, err := resolveTokenEndpoint(serverURL, opts.Metadata, oauth.GrantTypeAuthorizationCode)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("grant_type", oauth.GrantTypeAuthorizationCode)
	params.Set("code", opts.AuthorizationCode)
	params.Set("code_verifier", opts.CodeVerifier)
	params.Set("redirect_uri", opts.RedirectURI)

	headers := http.Header{}
	if err := authenticateTokenRequest(ctx, headers, params, serverURL, opts.Metadata,
		opts.ClientInformation, opts.AddClientAuthentication); err != nil {
		return nil, err
	}

	if opts.Resource != nil {
		params.Set("resource", opts.Resource.String())
	}

	return tokenRequest(ctx, fetchOrDefault(opts.Fetch), tokenURL, headers, params)
}

// RefreshAuthorizationOptions configures RefreshAuthorization.
type RefreshAuthorizationOptions struct {
	Metadata                *oauth.AuthorizationServerMetadata
	ClientInformation       oauth.ClientInformation
	RefreshToken            string
	Resource                *url.URL
	AddClientAuthentication AddClientAuthentication
	Fetch                   Fetch
}

// RefreshAuthorization exchanges a refresh token for fresh tokens (RFC 6749
// Section 6). When the server rotates nothing and omits refresh_token from
// its response, the original refresh token is carried forward on the result.
func RefreshAuthorization(ctx context.Context, serverURL string, opts RefreshAuthorizationOptions) (*oauth.Tokens, error) {
	tokenURL, err := resolveTokenEndpoint(serverURL, opts.Metadata, oauth.GrantTypeRefreshToken)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("grant_type", oauth.GrantTypeRefreshToken)
	params.Set("refresh_token", opts.RefreshToken)

	headers := http.Header{}
	if err := authenticateTokenRequest(ctx, headers, params, serverURL, opts.Metadata,
		opts.ClientInformation, opts.AddClientAuthentication); err != nil {
		return nil, err
	}

	if opts.Resource != nil {
		params.Set("resource", opts.Resource.String())
	}

	tokens, err := tokenRequest(ctx, fetchOrDefault(opts.Fetch), tokenURL, headers, params)
	if err != nil {
		return nil, err
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = opts.RefreshToken
	}
	return tokens, nil
}

// RegisterClientOptions configures RegisterClient.
type RegisterClientOptions struct {
	Metadata       *oauth.AuthorizationServerMetadata
	ClientMetadata oauth.ClientMetadata
	Fetch          Fetch
}

// RegisterClient performs RFC 7591 dynamic client registration and returns
// the full registration record. The client metadata is validated locally
// before it goes on the wire; registration endpoints tend to reject bad
// requests with little explanation.
func RegisterClient(ctx context.Context, serverURL string, opts RegisterClientOptions) (*oauth.ClientInformationFull, error) {
	var registrationURL *url.URL
	var err error

	if opts.Metadata != nil {
		if opts.Metadata.RegistrationEndpoint == "" {
			return nil, fmt.Errorf("%w: does not support dynamic client registration",
				oauth.ErrIncompatibleAuthServer)
		}
		registrationURL, err = url.Parse(opts.Metadata.RegistrationEndpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid registration endpoint: %w", err)
		}
	} else {
		registrationURL, err = conventionalEndpoint(serverURL, oauth.DefaultRegistrationPath)
		if err != nil {
			return nil, err
		}
	}

	if err := opts.ClientMetadata.Validate(); err != nil {
		return nil, err
	}
	if err := opts.ClientMetadata.ValidateRedirectURIs(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(opts.ClientMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := fetchOrDefault(opts.Fetch)(req)
	if err != nil {
		return nil, &oauth.TransportError{URL: registrationURL.String(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registration response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, oauth.ParseErrorResponse(resp.StatusCode, respBody)
	}

	var info oauth.ClientInformationFull
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, fmt.Errorf("failed to parse registration response: %w", err)
	}
	if info.ClientID == "" {
		return nil, fmt.Errorf("registration response is missing client_id")
	}

	logger.Debugw("registered OAuth client", "client_id", info.ClientID, "public", info.IsPublic())
	return &info, nil
}

// authenticateTokenRequest applies client authentication to a pending token
// request: the provider's authenticator when supplied, otherwise the method
// selected from server capabilities and credential availability.
func authenticateTokenRequest(ctx context.Context, headers http.Header, params url.Values,
	serverURL string, metadata *oauth.AuthorizationServerMetadata,
	info oauth.ClientInformation, custom AddClientAuthentication,
) error {
	if custom != nil {
		return custom(ctx, headers, params, serverURL, metadata)
	}

	var supported []string
	if metadata != nil {
		supported = metadata.TokenEndpointAuthMethodsSupported
	}
	method := selectClientAuthMethod(info, supported)
	logger.Debugw("selected client authentication method", "method", method)
	return applyClientAuthentication(method, info, headers, params)
}

// resolveTokenEndpoint picks the token endpoint from metadata or the
// conventional path, verifying the grant type is supported when the server
// advertises its grants.
func resolveTokenEndpoint(serverURL string, metadata *oauth.AuthorizationServerMetadata, grantType string) (*url.URL, error) {
	if metadata == nil {
		return conventionalEndpoint(serverURL, oauth.DefaultTokenPath)
	}

	if metadata.TokenEndpoint == "" {
		return nil, oauth.ErrMissingTokenEndpoint
	}
	if len(metadata.GrantTypesSupported) > 0 && !metadata.SupportsGrantType(grantType) {
		return nil, fmt.Errorf("%w: does not support grant type %s", oauth.ErrIncompatibleAuthServer, grantType)
	}

	tokenURL, err := url.Parse(metadata.TokenEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid token endpoint: %w", err)
	}
	return tokenURL, nil
}

// conventionalEndpoint resolves an origin-rooted default endpoint path
// against the server URL.
func conventionalEndpoint(serverURL, path string) (*url.URL, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization server URL: %w", err)
	}
	return base.ResolveReference(&url.URL{Path: path}), nil
}

// tokenRequest POSTs a form to the token endpoint and decodes the response.
func tokenRequest(ctx context.Context, fetch Fetch, tokenURL *url.URL, headers http.Header, params url.Values) (*oauth.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL.String(),
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	for name, values := range headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := fetch(req)
	if err != nil {
		return nil, &oauth.TransportError{URL: tokenURL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, oauth.ParseErrorResponse(resp.StatusCode, body)
	}

	var tokens oauth.Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("token response is missing access_token")
	}

	tokens.SetExpiry(time.Now())
	return &tokens, nil
}

// hasScopeToken reports whether a space-separated scope string contains the
// given token.
func hasScopeToken(scope, token string) bool {
	for _, s := range strings.Fields(scope) {
		if s == token {
			return true
		}
	}
	return false
}
