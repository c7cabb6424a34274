// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stacklok/authflow/logger"
	"github.com/stacklok/authflow/oauth"
	validation "github.com/stacklok/authflow/validation/http"
)

// AuthResult describes how an Auth invocation concluded.
type AuthResult string

// Auth outcomes.
const (
	// AuthResultAuthorized means valid tokens are saved on the provider.
	AuthResultAuthorized AuthResult = "AUTHORIZED"

	// AuthResultRedirect means the provider's redirect hook has been invoked
	// and the flow resumes when Auth is called again with the authorization
	// code from the callback.
	AuthResultRedirect AuthResult = "REDIRECT"
)

// AuthOptions configures an Auth invocation.
type AuthOptions struct {
	// ServerURL is the resource server the client wants to reach.
	ServerURL string

	// AuthorizationCode is the code delivered to the redirect URL, when the
	// user is returning from the authorization server.
	AuthorizationCode string

	// Scope overrides the scope requested at authorization. Defaults to the
	// provider's client metadata scope.
	Scope string

	// ResourceMetadataURL short-circuits protected resource discovery,
	// typically taken from a WWW-Authenticate challenge.
	ResourceMetadataURL string

	// ProtocolVersion overrides the MCP-Protocol-Version header value.
	ProtocolVersion string

	// Fetch overrides the HTTP transport.
	Fetch Fetch
}

// Auth orchestrates the full authorization lifecycle: protected resource
// discovery, authorization server discovery, dynamic registration when no
// client is stored, then code exchange, token refresh, or a fresh
// authorization redirect depending on the session state.
//
// When the server reports the stored credentials invalid, the matching
// session state is invalidated and the flow retried once: invalid_client
// and unauthorized_client drop everything, invalid_grant drops only the
// tokens. A second failure propagates.
func Auth(ctx context.Context, provider Provider, opts AuthOptions) (AuthResult, error) {
	result, err := authInternal(ctx, provider, opts)
	if err == nil {
		return result, nil
	}

	var scope InvalidationScope
	switch {
	case errors.Is(err, oauth.ErrInvalidClient) || errors.Is(err, oauth.ErrUnauthorizedClient):
		scope = InvalidateAll
	case errors.Is(err, oauth.ErrInvalidGrant):
		scope = InvalidateTokens
	default:
		return "", err
	}

	logger.Debugw("recovering from credential rejection", "cause", err.Error(), "invalidating", string(scope))
	if invalidator, ok := provider.(CredentialInvalidator); ok {
		if invErr := invalidator.InvalidateCredentials(ctx, scope); invErr != nil {
			return "", fmt.Errorf("failed to invalidate credentials: %w", invErr)
		}
	}
	return authInternal(ctx, provider, opts)
}

// authInternal runs one pass of the flow without recovery.
func authInternal(ctx context.Context, provider Provider, opts AuthOptions) (AuthResult, error) {
	discoveryOpts := DiscoveryOptions{
		ProtocolVersion:     opts.ProtocolVersion,
		ResourceMetadataURL: opts.ResourceMetadataURL,
		Fetch:               opts.Fetch,
	}

	// Protected resource metadata is optional: servers that don't publish it
	// are their own authorization server.
	authServerURL := opts.ServerURL
	resourceMetadata, err := FetchProtectedResource(ctx, opts.ServerURL, discoveryOpts)
	if err != nil {
		logger.Debugw("protected resource discovery failed, using server as authorization server",
			"server", opts.ServerURL, "cause", err.Error())
		resourceMetadata = nil
	} else if len(resourceMetadata.AuthorizationServers) > 0 {
		authServerURL = resourceMetadata.AuthorizationServers[0]
	}

	resource, err := selectResourceURL(ctx, opts.ServerURL, provider, resourceMetadata)
	if err != nil {
		return "", err
	}

	metadata, err := FetchAuthorizationServer(ctx, authServerURL, DiscoveryOptions{
		ProtocolVersion: opts.ProtocolVersion,
		Fetch:           opts.Fetch,
	})
	if err != nil {
		return "", err
	}

	info, err := provider.ClientInformation(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load client information: %w", err)
	}

	if info == nil {
		if opts.AuthorizationCode != "" {
			return "", fmt.Errorf("%w: authorization code present but no client information is stored",
				oauth.ErrStateMissing)
		}
		saver, ok := provider.(ClientInformationSaver)
		if !ok {
			return "", fmt.Errorf("%w: cannot persist dynamic client registration",
				oauth.ErrUnsupportedCapability)
		}

		full, err := RegisterClient(ctx, authServerURL, RegisterClientOptions{
			Metadata:       metadata,
			ClientMetadata: provider.ClientMetadata(),
			Fetch:          opts.Fetch,
		})
		if err != nil {
			return "", fmt.Errorf("failed to register client: %w", err)
		}
		if err := saver.SaveClientInformation(ctx, *full); err != nil {
			return "", fmt.Errorf("failed to save client information: %w", err)
		}
		info = &full.ClientInformation
	}

	var addAuth AddClientAuthentication
	if authenticator, ok := provider.(ClientAuthenticator); ok {
		addAuth = authenticator.AddClientAuthentication
	}

	if opts.AuthorizationCode != "" {
		verifier, err := provider.CodeVerifier(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load code verifier: %w", err)
		}

		tokens, err := ExchangeAuthorization(ctx, authServerURL, ExchangeAuthorizationOptions{
			Metadata:                metadata,
			ClientInformation:       *info,
			AuthorizationCode:       opts.AuthorizationCode,
			CodeVerifier:            verifier,
			RedirectURI:             provider.RedirectURL(),
			Resource:                resource,
			AddClientAuthentication: addAuth,
			Fetch:                   opts.Fetch,
		})
		if err != nil {
			return "", err
		}
		if err := provider.SaveTokens(ctx, *tokens); err != nil {
			return "", fmt.Errorf("failed to save tokens: %w", err)
		}
		return AuthResultAuthorized, nil
	}

	tokens, err := provider.Tokens(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load tokens: %w", err)
	}

	if tokens != nil && tokens.RefreshToken != "" {
		refreshed, err := RefreshAuthorization(ctx, authServerURL, RefreshAuthorizationOptions{
			Metadata:                metadata,
			ClientInformation:       *info,
			RefreshToken:            tokens.RefreshToken,
			Resource:                resource,
			AddClientAuthentication: addAuth,
			Fetch:                   opts.Fetch,
		})
		switch {
		case err == nil:
			if err := provider.SaveTokens(ctx, *refreshed); err != nil {
				return "", fmt.Errorf("failed to save refreshed tokens: %w", err)
			}
			return AuthResultAuthorized, nil
		case isHardRefreshFailure(err):
			return "", err
		default:
			// Transport hiccups and generic server failures are not worth
			// aborting over: fall through to a fresh authorization.
			logger.Debugw("token refresh failed, starting new authorization", "cause", err.Error())
		}
	}

	var state string
	if stateProvider, ok := provider.(StateProvider); ok {
		state, err = stateProvider.State(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get state: %w", err)
		}
	}

	scope := opts.Scope
	if scope == "" {
		scope = provider.ClientMetadata().Scope
	}

	started, err := StartAuthorization(authServerURL, StartAuthorizationOptions{
		Metadata:          metadata,
		ClientInformation: *info,
		RedirectURL:       provider.RedirectURL(),
		Scope:             scope,
		State:             state,
		Resource:          resource,
	})
	if err != nil {
		return "", err
	}

	// The verifier must be durable before the user leaves; the exchange on
	// the way back depends on it.
	if err := provider.SaveCodeVerifier(ctx, started.CodeVerifier); err != nil {
		return "", fmt.Errorf("failed to save code verifier: %w", err)
	}
	if err := provider.RedirectToAuthorization(ctx, started.AuthorizationURL); err != nil {
		return "", fmt.Errorf("failed to redirect to authorization: %w", err)
	}
	return AuthResultRedirect, nil
}

// isHardRefreshFailure reports whether a refresh error must abort the flow.
// Protocol errors other than server_error mean the grant itself is bad;
// anything else (transport, 5xx, malformed bodies) falls through to a new
// authorization.
func isHardRefreshFailure(err error) bool {
	var protoErr *oauth.Error
	if !errors.As(err, &protoErr) {
		return false
	}
	return protoErr.Code != oauth.CodeServerError
}

// selectResourceURL resolves the RFC 8707 resource indicator for a server.
// A provider-supplied validator is authoritative; otherwise the protected
// resource metadata's identifier is used after checking it covers the
// canonicalized server URL, and no metadata means no resource parameter.
func selectResourceURL(ctx context.Context, serverURL string, provider Provider,
	resourceMetadata *oauth.ProtectedResourceMetadata,
) (*url.URL, error) {
	canonical, err := validation.CanonicalResourceURI(serverURL)
	if err != nil {
		return nil, err
	}

	if validator, ok := provider.(ResourceValidator); ok {
		return validator.ValidateResourceURL(ctx, canonical, resourceMetadata)
	}

	if resourceMetadata == nil {
		return nil, nil
	}

	if err := validation.ValidateResourceURI(resourceMetadata.Resource); err != nil {
		return nil, fmt.Errorf("invalid resource in protected resource metadata: %w", err)
	}
	configured, err := url.Parse(resourceMetadata.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource in protected resource metadata: %w", err)
	}

	if !validation.IsResourceAllowed(canonical, configured) {
		return nil, fmt.Errorf("%w: metadata resource %s does not cover %s",
			oauth.ErrResourceMismatch, configured, canonical)
	}

	return configured, nil
}

// ExtractResourceMetadataURL pulls the RFC 9728 resource_metadata parameter
// from a 401 response's WWW-Authenticate Bearer challenge. Returns "" when
// the header is absent, uses another scheme, or has no such parameter.
func ExtractResourceMetadataURL(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return oauth.ResourceMetadataURL(resp.Header.Get("WWW-Authenticate"))
}
