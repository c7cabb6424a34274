// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/authflow/client"
	"github.com/stacklok/authflow/oauth"
)

// ErrNoRedirect is returned by RedirectToAuthorization when the store was
// built without a redirect hook.
var ErrNoRedirect = errors.New("session store has no redirect hook configured")

// RedirectFunc triggers the user-agent redirect to the authorization URL.
type RedirectFunc func(ctx context.Context, authorizationURL *url.URL) error

// record is the on-disk session document.
type record struct {
	ClientInformation *oauth.ClientInformationFull `yaml:"client_information,omitempty"`
	Tokens            *oauth.Tokens                `yaml:"tokens,omitempty"`
	CodeVerifier      string                       `yaml:"code_verifier,omitempty"`
	State             string                       `yaml:"state,omitempty"`
}

// FileStore is a client.Provider backed by one YAML file per server under
// a base directory (the XDG data home by default). Files are written 0600;
// they hold bearer credentials.
type FileStore struct {
	redirectURL string
	metadata    oauth.ClientMetadata
	redirect    RedirectFunc
	path        string

	mu sync.Mutex
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*fileStoreConfig)

type fileStoreConfig struct {
	baseDir  string
	redirect RedirectFunc
}

// WithBaseDir overrides the base directory (default: $XDG_DATA_HOME/authflow).
func WithBaseDir(dir string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.baseDir = dir
	}
}

// WithRedirect installs the user-agent redirect hook.
func WithRedirect(redirect RedirectFunc) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.redirect = redirect
	}
}

// NewFileStore creates a file-backed session store for one server. Sessions
// for different servers land in different files, keyed by a digest of the
// server URL.
func NewFileStore(serverURL, redirectURL string, metadata oauth.ClientMetadata, opts ...FileStoreOption) (*FileStore, error) {
	cfg := &fileStoreConfig{
		baseDir: filepath.Join(xdg.DataHome, "authflow"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if err := os.MkdirAll(cfg.baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &FileStore{
		redirectURL: redirectURL,
		metadata:    metadata,
		redirect:    cfg.redirect,
		path:        filepath.Join(cfg.baseDir, serverDigest(serverURL)+".yaml"),
	}, nil
}

// serverDigest derives a stable filename component from a server URL.
func serverDigest(serverURL string) string {
	sum := sha256.Sum256([]byte(serverURL))
	return hex.EncodeToString(sum[:8])
}

// RedirectURL implements client.Provider.
func (s *FileStore) RedirectURL() string {
	return s.redirectURL
}

// ClientMetadata implements client.Provider.
func (s *FileStore) ClientMetadata() oauth.ClientMetadata {
	return s.metadata
}

// ClientInformation implements client.Provider.
func (s *FileStore) ClientInformation(context.Context) (*oauth.ClientInformation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return nil, err
	}
	if rec.ClientInformation == nil {
		return nil, nil
	}
	info := rec.ClientInformation.ClientInformation
	return &info, nil
}

// SaveClientInformation implements client.ClientInformationSaver.
func (s *FileStore) SaveClientInformation(_ context.Context, info oauth.ClientInformationFull) error {
	return s.update(func(rec *record) {
		rec.ClientInformation = &info
	})
}

// Tokens implements client.Provider.
func (s *FileStore) Tokens(context.Context) (*oauth.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return nil, err
	}
	return rec.Tokens, nil
}

// SaveTokens implements client.Provider.
func (s *FileStore) SaveTokens(_ context.Context, tokens oauth.Tokens) error {
	return s.update(func(rec *record) {
		rec.Tokens = &tokens
	})
}

// CodeVerifier implements client.Provider.
func (s *FileStore) CodeVerifier(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return "", err
	}
	if rec.CodeVerifier == "" {
		return "", fmt.Errorf("no code verifier stored for pending authorization")
	}
	return rec.CodeVerifier, nil
}

// SaveCodeVerifier implements client.Provider.
func (s *FileStore) SaveCodeVerifier(_ context.Context, verifier string) error {
	return s.update(func(rec *record) {
		rec.CodeVerifier = verifier
	})
}

// State implements client.StateProvider: each call mints a fresh random
// token and persists it so the callback handler can verify the round trip.
func (s *FileStore) State(context.Context) (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", err
	}
	if err := s.update(func(rec *record) { rec.State = state }); err != nil {
		return "", err
	}
	return state, nil
}

// VerifyState reports whether the given state matches the one minted for
// the pending flow.
func (s *FileStore) VerifyState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return false
	}
	return state != "" && rec.State == state
}

// RedirectToAuthorization implements client.Provider.
func (s *FileStore) RedirectToAuthorization(ctx context.Context, authorizationURL *url.URL) error {
	if s.redirect == nil {
		return ErrNoRedirect
	}
	return s.redirect(ctx, authorizationURL)
}

// InvalidateCredentials implements client.CredentialInvalidator.
func (s *FileStore) InvalidateCredentials(_ context.Context, scope client.InvalidationScope) error {
	return s.update(func(rec *record) {
		switch scope {
		case client.InvalidateAll:
			*rec = record{}
		case client.InvalidateClient:
			rec.ClientInformation = nil
		case client.InvalidateTokens:
			rec.Tokens = nil
		case client.InvalidateVerifier:
			rec.CodeVerifier = ""
		}
	})
}

// load reads the session record; a missing file is an empty session.
// Callers hold s.mu.
func (s *FileStore) load() (*record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	return &rec, nil
}

// update applies a mutation to the record and writes it back atomically.
func (s *FileStore) update(mutate func(*record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return err
	}
	mutate(rec)

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// randomToken generates an unguessable URL-safe token.
func randomToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Interface checks.
var (
	_ client.Provider               = (*FileStore)(nil)
	_ client.ClientInformationSaver = (*FileStore)(nil)
	_ client.StateProvider          = (*FileStore)(nil)
	_ client.CredentialInvalidator  = (*FileStore)(nil)
)
