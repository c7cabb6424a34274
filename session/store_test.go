// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/authflow/client"
	"github.com/stacklok/authflow/oauth"
)

func testMetadata() oauth.ClientMetadata {
	return oauth.ClientMetadata{
		RedirectURIs: []string{"http://127.0.0.1:8085/callback"},
		ClientName:   "Test App",
	}
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore("https://srv.example/mcp", "http://127.0.0.1:8085/callback",
		testMetadata(), WithBaseDir(t.TempDir()))
	require.NoError(t, err)
	return store
}

func TestFileStore_EmptySession(t *testing.T) {
	t.Parallel()

	store := newTestFileStore(t)
	ctx := t.Context()

	info, err := store.ClientInformation(ctx)
	require.NoError(t, err)
	assert.Nil(t, info)

	tokens, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	_, err = store.CodeVerifier(ctx)
	assert.Error(t, err)
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestFileStore(t)
	ctx := t.Context()

	require.NoError(t, store.SaveClientInformation(ctx, oauth.ClientInformationFull{
		ClientInformation: oauth.ClientInformation{ClientID: "abc123", ClientSecret: "shh"},
		ClientMetadata:    testMetadata(),
	}))
	require.NoError(t, store.SaveTokens(ctx, oauth.Tokens{AccessToken: "A1", RefreshToken: "R1"}))
	require.NoError(t, store.SaveCodeVerifier(ctx, "v3rifier"))

	info, err := store.ClientInformation(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "abc123", info.ClientID)
	assert.Equal(t, "shh", info.ClientSecret)

	tokens, err := store.Tokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "A1", tokens.AccessToken)
	assert.Equal(t, "R1", tokens.RefreshToken)

	verifier, err := store.CodeVerifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v3rifier", verifier)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := t.Context()

	first, err := NewFileStore("https://srv.example/mcp", "http://127.0.0.1:8085/callback",
		testMetadata(), WithBaseDir(dir))
	require.NoError(t, err)
	require.NoError(t, first.SaveTokens(ctx, oauth.Tokens{AccessToken: "A1"}))

	second, err := NewFileStore("https://srv.example/mcp", "http://127.0.0.1:8085/callback",
		testMetadata(), WithBaseDir(dir))
	require.NoError(t, err)

	tokens, err := second.Tokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "A1", tokens.AccessToken)
}

func TestFileStore_SessionsKeyedByServer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := t.Context()

	one, err := NewFileStore("https://one.example", "http://127.0.0.1:8085/callback",
		testMetadata(), WithBaseDir(dir))
	require.NoError(t, err)
	two, err := NewFileStore("https://two.example", "http://127.0.0.1:8085/callback",
		testMetadata(), WithBaseDir(dir))
	require.NoError(t, err)

	require.NoError(t, one.SaveTokens(ctx, oauth.Tokens{AccessToken: "A-one"}))

	tokens, err := two.Tokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens, "sessions must not leak between servers")
}

func TestFileStore_FilePermissions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore("https://srv.example/mcp", "http://127.0.0.1:8085/callback",
		testMetadata(), WithBaseDir(dir))
	require.NoError(t, err)
	require.NoError(t, store.SaveTokens(t.Context(), oauth.Tokens{AccessToken: "secret"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	fi, err := os.Stat(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm(), "session files hold bearer credentials")
}

func TestFileStore_InvalidateCredentials(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, store *FileStore) {
		t.Helper()
		ctx := t.Context()
		require.NoError(t, store.SaveClientInformation(ctx, oauth.ClientInformationFull{
			ClientInformation: oauth.ClientInformation{ClientID: "abc"},
			ClientMetadata:    testMetadata(),
		}))
		require.NoError(t, store.SaveTokens(ctx, oauth.Tokens{AccessToken: "A1"}))
		require.NoError(t, store.SaveCodeVerifier(ctx, "v"))
	}

	tests := []struct {
		scope        client.InvalidationScope
		wantClient   bool
		wantTokens   bool
		wantVerifier bool
	}{
		{client.InvalidateAll, false, false, false},
		{client.InvalidateClient, false, true, true},
		{client.InvalidateTokens, true, false, true},
		{client.InvalidateVerifier, true, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			t.Parallel()
			store := newTestFileStore(t)
			ctx := t.Context()
			seed(t, store)

			require.NoError(t, store.InvalidateCredentials(ctx, tt.scope))

			info, err := store.ClientInformation(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClient, info != nil, "client info")

			tokens, err := store.Tokens(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTokens, tokens != nil, "tokens")

			_, err = store.CodeVerifier(ctx)
			assert.Equal(t, tt.wantVerifier, err == nil, "verifier")
		})
	}
}

func TestFileStore_State(t *testing.T) {
	t.Parallel()

	store := newTestFileStore(t)

	state, err := store.State(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, state)

	assert.True(t, store.VerifyState(state))
	assert.False(t, store.VerifyState("forged"))
	assert.False(t, store.VerifyState(""))

	// A new flow mints a new state; the old one stops verifying.
	next, err := store.State(t.Context())
	require.NoError(t, err)
	assert.NotEqual(t, state, next)
	assert.False(t, store.VerifyState(state))
}

func TestFileStore_Redirect(t *testing.T) {
	t.Parallel()

	t.Run("no hook configured", func(t *testing.T) {
		t.Parallel()
		store := newTestFileStore(t)
		authURL, _ := url.Parse("https://auth.example.com/authorize")
		assert.ErrorIs(t, store.RedirectToAuthorization(t.Context(), authURL), ErrNoRedirect)
	})

	t.Run("hook invoked", func(t *testing.T) {
		t.Parallel()
		var got *url.URL
		store, err := NewFileStore("https://srv.example", "http://127.0.0.1:8085/callback",
			testMetadata(), WithBaseDir(t.TempDir()),
			WithRedirect(func(_ context.Context, u *url.URL) error {
				got = u
				return nil
			}))
		require.NoError(t, err)

		authURL, _ := url.Parse("https://auth.example.com/authorize")
		require.NoError(t, store.RedirectToAuthorization(t.Context(), authURL))
		assert.Equal(t, authURL, got)
	})
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore("http://127.0.0.1:8085/callback", testMetadata(), nil)
	ctx := t.Context()

	require.NoError(t, store.SaveClientInformation(ctx, oauth.ClientInformationFull{
		ClientInformation: oauth.ClientInformation{ClientID: "abc"},
	}))
	require.NoError(t, store.SaveTokens(ctx, oauth.Tokens{AccessToken: "A1"}))
	require.NoError(t, store.SaveCodeVerifier(ctx, "v"))

	info, err := store.ClientInformation(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "abc", info.ClientID)

	tokens, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A1", tokens.AccessToken)

	verifier, err := store.CodeVerifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", verifier)

	require.NoError(t, store.InvalidateCredentials(ctx, client.InvalidateAll))
	info, err = store.ClientInformation(ctx)
	require.NoError(t, err)
	assert.Nil(t, info)
}
