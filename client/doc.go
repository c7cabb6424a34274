// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package client implements the OAuth 2.1 authorization flow for clients of
servers that advertise their requirements via RFC 9728 Protected Resource
Metadata: discovery (RFC 8414 / OIDC Discovery 1.0), dynamic client
registration (RFC 7591), the PKCE authorization-code grant with resource
indicators (RFC 8707), token refresh, and recovery from server-side
credential invalidation.

# Entry Point

Auth drives the whole lifecycle against a session Provider owned by the
embedder. It either completes with AuthResultAuthorized (tokens saved) or
AuthResultRedirect (the provider's redirect hook has been invoked and the
PKCE verifier saved for the code exchange on the way back):

	result, err := client.Auth(ctx, provider, client.AuthOptions{
		ServerURL: "https://srv.example/mcp",
	})

After the user returns with an authorization code, call Auth again with
AuthorizationCode set; the code is exchanged using the stored verifier and
the resulting tokens are saved on the provider.

# Session Provider

Provider is the persistence and user-agent seam. Required capabilities are
methods on the interface; optional ones (state tokens, custom client
authentication, resource validation, credential invalidation) are separate
interfaces discovered by type assertion, so a minimal provider stays small.

# Transport

Every HTTP exchange goes through a pluggable Fetch function defaulting to
http.DefaultClient, which keeps tests and embedders with custom transports
(proxies, instrumentation) out of the library's way. Discovery requests
carry the MCP-Protocol-Version header and retry once without custom headers
after a transport failure, mirroring browser CORS behavior.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package client
