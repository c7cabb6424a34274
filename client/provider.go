// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/stacklok/authflow/oauth"
)

// Provider is the session seam between the flow and the embedder: it owns
// every piece of persistent state (client registration, tokens, PKCE
// verifier) and the user-agent redirect. Implementations may be backed by
// memory, files, or remote storage; all methods taking a context may block.
//
// The flow never serializes concurrent invocations; a provider shared
// between goroutines must do its own locking.
type Provider interface {
	// RedirectURL returns the absolute redirect URL registered with the
	// authorization server.
	RedirectURL() string

	// ClientMetadata returns the RFC 7591 registration request body used
	// when dynamic registration is needed.
	ClientMetadata() oauth.ClientMetadata

	// ClientInformation loads the persisted client registration, or nil
	// when the client has never registered.
	ClientInformation(ctx context.Context) (*oauth.ClientInformation, error)

	// Tokens loads the current tokens, or nil when none are stored.
	Tokens(ctx context.Context) (*oauth.Tokens, error)

	// SaveTokens persists tokens after a successful exchange or refresh.
	SaveTokens(ctx context.Context, tokens oauth.Tokens) error

	// CodeVerifier loads the PKCE verifier saved before the pending redirect.
	CodeVerifier(ctx context.Context) (string, error)

	// SaveCodeVerifier persists the PKCE verifier. It is always called
	// before RedirectToAuthorization so the verifier survives the redirect
	// boundary.
	SaveCodeVerifier(ctx context.Context, verifier string) error

	// RedirectToAuthorization triggers the user-agent redirect to the
	// authorization URL.
	RedirectToAuthorization(ctx context.Context, authorizationURL *url.URL) error
}

// ClientInformationSaver is implemented by providers that can persist the
// result of dynamic client registration. Without it, Auth fails when no
// client information is stored and registration would be required.
type ClientInformationSaver interface {
	SaveClientInformation(ctx context.Context, info oauth.ClientInformationFull) error
}

// StateProvider is implemented by providers that supply a per-flow opaque
// state token for CSRF protection of the redirect.
type StateProvider interface {
	State(ctx context.Context) (string, error)
}

// ClientAuthenticator is implemented by providers that take full control of
// client authentication at the token endpoint. When present, the built-in
// auth-method selection is skipped entirely and the provider mutates the
// request headers and form body itself.
type ClientAuthenticator interface {
	AddClientAuthentication(ctx context.Context, headers http.Header, params url.Values,
		serverURL string, metadata *oauth.AuthorizationServerMetadata) error
}

// ResourceValidator is implemented by providers that decide the RFC 8707
// resource indicator themselves. Its result is authoritative: a nil URL
// omits the resource parameter, and an error aborts the flow.
type ResourceValidator interface {
	ValidateResourceURL(ctx context.Context, serverURL *url.URL,
		resourceMetadata *oauth.ProtectedResourceMetadata) (*url.URL, error)
}

// InvalidationScope selects which persisted credentials to drop.
type InvalidationScope string

// Invalidation scopes accepted by CredentialInvalidator.
const (
	// InvalidateAll drops the client registration, tokens, and verifier.
	InvalidateAll InvalidationScope = "all"

	// InvalidateClient drops only the client registration.
	InvalidateClient InvalidationScope = "client"

	// InvalidateTokens drops only the stored tokens.
	InvalidateTokens InvalidationScope = "tokens"

	// InvalidateVerifier drops only the stored PKCE verifier.
	InvalidateVerifier InvalidationScope = "verifier"
)

// CredentialInvalidator is implemented by providers that can drop persisted
// credentials. The flow uses it to recover when the server reports the
// stored registration or grant is no longer valid.
type CredentialInvalidator interface {
	InvalidateCredentials(ctx context.Context, scope InvalidationScope) error
}
