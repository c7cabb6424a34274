// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ory/fosite"
)

// maxRedirectURILength is the longest redirect URI accepted during
// validation. The cap bounds URI parsing per RFC 3986 practical constraints.
const maxRedirectURILength = 2048

// ValidateRedirectURIs validates the redirect URIs declared in the client
// metadata before they go to a registration endpoint. A registration
// request must carry at least one redirect URI for the authorization code
// grant, and each URI must be one this client could legitimately receive a
// code on:
//
//   - an absolute URI without a fragment (RFC 6749 Section 3.1.2)
//   - https, http on a loopback interface, or a private-use scheme such as
//     vscode:// (RFC 8252 Sections 7.1 and 8.4)
//
// Non-loopback http is rejected: an authorization code sent over it is
// readable in transit.
func (m *ClientMetadata) ValidateRedirectURIs() error {
	if len(m.RedirectURIs) == 0 {
		return fmt.Errorf("client metadata must declare at least one redirect_uri")
	}
	for _, uri := range m.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return fmt.Errorf("redirect_uri %q: %w", uri, err)
		}
	}
	return nil
}

// validateRedirectURI checks a single redirect URI.
func validateRedirectURI(uri string) error {
	if len(uri) > maxRedirectURILength {
		return fmt.Errorf("exceeds the maximum length of %d characters", maxRedirectURILength)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("not a valid URI: %w", err)
	}
	if !fosite.IsValidRedirectURI(parsed) {
		return errors.New("must be an absolute URI without a fragment")
	}
	if !fosite.IsRedirectURISecure(context.Background(), parsed) {
		return errors.New("must use https, loopback http, or a private-use scheme")
	}
	return nil
}
