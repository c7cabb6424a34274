// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/stacklok/authflow/oauth"
)

// selectClientAuthMethod chooses the token endpoint authentication method
// from what the server advertises and whether the client holds a secret.
// With no advertised methods the RFC 6749 defaults apply: client_secret_post
// for confidential clients, none for public ones. A client without a secret
// can never use client_secret_basic or client_secret_post.
func selectClientAuthMethod(info oauth.ClientInformation, supportedMethods []string) string {
	hasSecret := !info.IsPublic()

	if len(supportedMethods) == 0 {
		if hasSecret {
			return oauth.TokenEndpointAuthMethodPost
		}
		return oauth.TokenEndpointAuthMethodNone
	}

	if hasSecret && slices.Contains(supportedMethods, oauth.TokenEndpointAuthMethodBasic) {
		return oauth.TokenEndpointAuthMethodBasic
	}
	if hasSecret && slices.Contains(supportedMethods, oauth.TokenEndpointAuthMethodPost) {
		return oauth.TokenEndpointAuthMethodPost
	}
	if slices.Contains(supportedMethods, oauth.TokenEndpointAuthMethodNone) {
		return oauth.TokenEndpointAuthMethodNone
	}

	// Server advertises only methods we cannot satisfy; fall back to the
	// RFC 6749 defaults and let the server reject the request if it must.
	if hasSecret {
		return oauth.TokenEndpointAuthMethodPost
	}
	return oauth.TokenEndpointAuthMethodNone
}

// applyClientAuthentication applies the chosen method to a pending token
// request, mutating the headers or form body.
func applyClientAuthentication(method string, info oauth.ClientInformation, headers http.Header, params url.Values) error {
	switch method {
	case oauth.TokenEndpointAuthMethodBasic:
		if info.ClientSecret == "" {
			return oauth.ErrMissingClientSecret
		}
		credentials := base64.StdEncoding.EncodeToString([]byte(info.ClientID + ":" + info.ClientSecret))
		headers.Set("Authorization", "Basic "+credentials)
		return nil
	case oauth.TokenEndpointAuthMethodPost:
		params.Set("client_id", info.ClientID)
		if info.ClientSecret != "" {
			params.Set("client_secret", info.ClientSecret)
		}
		return nil
	case oauth.TokenEndpointAuthMethodNone:
		params.Set("client_id", info.ClientID)
		return nil
	default:
		return fmt.Errorf("unsupported client authentication method: %s", method)
	}
}
