// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/stacklok/authflow/client"
	"github.com/stacklok/authflow/oauth"
)

// MemoryStore is an in-memory client.Provider for tests and short-lived
// processes. State is lost when the process exits.
type MemoryStore struct {
	redirectURL string
	metadata    oauth.ClientMetadata
	redirect    RedirectFunc

	mu           sync.Mutex
	clientInfo   *oauth.ClientInformationFull
	tokens       *oauth.Tokens
	codeVerifier string
	state        string
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(redirectURL string, metadata oauth.ClientMetadata, redirect RedirectFunc) *MemoryStore {
	return &MemoryStore{
		redirectURL: redirectURL,
		metadata:    metadata,
		redirect:    redirect,
	}
}

// RedirectURL implements client.Provider.
func (s *MemoryStore) RedirectURL() string {
	return s.redirectURL
}

// ClientMetadata implements client.Provider.
func (s *MemoryStore) ClientMetadata() oauth.ClientMetadata {
	return s.metadata
}

// ClientInformation implements client.Provider.
func (s *MemoryStore) ClientInformation(context.Context) (*oauth.ClientInformation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientInfo == nil {
		return nil, nil
	}
	info := s.clientInfo.ClientInformation
	return &info, nil
}

// SaveClientInformation implements client.ClientInformationSaver.
func (s *MemoryStore) SaveClientInformation(_ context.Context, info oauth.ClientInformationFull) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientInfo = &info
	return nil
}

// Tokens implements client.Provider.
func (s *MemoryStore) Tokens(context.Context) (*oauth.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return nil, nil
	}
	tokens := *s.tokens
	return &tokens, nil
}

// SaveTokens implements client.Provider.
func (s *MemoryStore) SaveTokens(_ context.Context, tokens oauth.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = &tokens
	return nil
}

// CodeVerifier implements client.Provider.
func (s *MemoryStore) CodeVerifier(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeVerifier == "" {
		return "", fmt.Errorf("no code verifier stored for pending authorization")
	}
	return s.codeVerifier, nil
}

// SaveCodeVerifier implements client.Provider.
func (s *MemoryStore) SaveCodeVerifier(_ context.Context, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeVerifier = verifier
	return nil
}

// State implements client.StateProvider.
func (s *MemoryStore) State(context.Context) (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return state, nil
}

// VerifyState reports whether the given state matches the pending flow's.
func (s *MemoryStore) VerifyState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state != "" && s.state == state
}

// RedirectToAuthorization implements client.Provider.
func (s *MemoryStore) RedirectToAuthorization(ctx context.Context, authorizationURL *url.URL) error {
	if s.redirect == nil {
		return ErrNoRedirect
	}
	return s.redirect(ctx, authorizationURL)
}

// InvalidateCredentials implements client.CredentialInvalidator.
func (s *MemoryStore) InvalidateCredentials(_ context.Context, scope client.InvalidationScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch scope {
	case client.InvalidateAll:
		s.clientInfo = nil
		s.tokens = nil
		s.codeVerifier = ""
		s.state = ""
	case client.InvalidateClient:
		s.clientInfo = nil
	case client.InvalidateTokens:
		s.tokens = nil
	case client.InvalidateVerifier:
		s.codeVerifier = ""
	}
	return nil
}

// Interface checks.
var (
	_ client.Provider               = (*MemoryStore)(nil)
	_ client.ClientInformationSaver = (*MemoryStore)(nil)
	_ client.StateProvider          = (*MemoryStore)(nil)
	_ client.CredentialInvalidator  = (*MemoryStore)(nil)
)
