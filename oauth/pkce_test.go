// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	t.Parallel()

	pair, err := GeneratePKCE()
	require.NoError(t, err)

	// RFC 7636 Section 4.1: verifier length must be 43-128 characters.
	assert.GreaterOrEqual(t, len(pair.Verifier), 43)
	assert.LessOrEqual(t, len(pair.Verifier), 128)

	// Challenge must be BASE64URL(SHA256(verifier)) without padding.
	sum := sha256.Sum256([]byte(pair.Verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), pair.Challenge)
	assert.NotContains(t, pair.Challenge, "=")
}

func TestGeneratePKCE_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 32 {
		pair, err := GeneratePKCE()
		require.NoError(t, err)
		require.False(t, seen[pair.Verifier], "verifier repeated")
		seen[pair.Verifier] = true
	}
}

func TestPKCEChallenge_RFCVector(t *testing.T) {
	t.Parallel()

	// Appendix B of RFC 7636.
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.Equal(t, challenge, PKCEChallenge(verifier))
}
