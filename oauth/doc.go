// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package oauth provides the RFC-defined data model shared by the authflow
client: authorization server metadata (RFC 8414 / OIDC Discovery 1.0),
protected resource metadata (RFC 9728), dynamic client registration
payloads (RFC 7591), token responses, PKCE material (RFC 7636), the
RFC 6749 Section 5.2 error taxonomy, and WWW-Authenticate challenge
parsing (RFC 9728 Section 5.1).

# Metadata

Authorization server capabilities are modeled as a single metadata struct
covering both the OAuth 2.0 and OIDC discovery documents; the fields the
client consumes are identical in both. OIDC responses carry extra
obligations (S256 PKCE support) enforced by the discovery code in the
client package.

# Errors

Protocol errors returned by an authorization server are mapped to *Error
values carrying the RFC 6749 error code. Matching is done with errors.Is
against the exported code sentinels:

	if errors.Is(err, oauth.ErrInvalidGrant) {
		// refresh token was revoked; start over
	}

Non-protocol failures keep their HTTP status and raw body on *ServerError.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package oauth
