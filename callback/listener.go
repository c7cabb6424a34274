// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/stacklok/authflow/logger"
)

// DefaultPath is the redirect path served when none is configured.
const DefaultPath = "/callback"

// Result is a received authorization callback.
type Result struct {
	// Code is the authorization code.
	Code string

	// State echoes the state parameter from the authorization request.
	State string
}

// OpenBrowser launches the user's browser at the given URL.
type OpenBrowser func(url string) error

// VerifyState checks a callback's state parameter; returning false rejects
// the callback. Wire this to the session store that minted the state.
type VerifyState func(state string) bool

// ListenerOptions configures NewListener.
type ListenerOptions struct {
	// Addr is the loopback address to listen on, e.g. "127.0.0.1:8085".
	// An empty addr picks a random loopback port.
	Addr string

	// Path is the redirect path (default "/callback").
	Path string

	// VerifyState, when set, rejects callbacks whose state does not verify.
	VerifyState VerifyState

	// OpenBrowser overrides how RedirectToAuthorization reaches the user
	// agent (default: the platform browser via openSystemBrowser).
	OpenBrowser OpenBrowser
}

// Listener is a loopback HTTP server receiving authorization redirects.
type Listener struct {
	addr        string
	path        string
	server      *http.Server
	verifyState VerifyState
	openBrowser OpenBrowser

	results chan Result
	errs    chan error
}

// NewListener starts a loopback listener. Callers must Close it.
func NewListener(opts ListenerOptions) (*Listener, error) {
	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l := &Listener{
		addr:        ln.Addr().String(),
		path:        path,
		verifyState: opts.VerifyState,
		openBrowser: opts.OpenBrowser,
		results:     make(chan Result, 1),
		errs:        make(chan error, 1),
	}
	if l.openBrowser == nil {
		l.openBrowser = openSystemBrowser
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handle)

	l.server = &http.Server{
		Handler:           recoverMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case l.errs <- fmt.Errorf("callback server error: %w", err):
			default:
			}
		}
	}()

	logger.Debugw("callback listener started", "addr", l.addr, "path", path)
	return l, nil
}

// RedirectURL returns the absolute URL of the redirect endpoint, suitable
// for client metadata and authorization requests.
func (l *Listener) RedirectURL() string {
	return "http://" + l.addr + l.path
}

// RedirectToAuthorization opens the authorization URL in the user's
// browser. It matches the session provider redirect hook signature.
func (l *Listener) RedirectToAuthorization(_ context.Context, authorizationURL *url.URL) error {
	if err := l.openBrowser(authorizationURL.String()); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// Wait blocks until a callback arrives, the context is canceled, or the
// server fails, and returns the authorization code.
func (l *Listener) Wait(ctx context.Context) (string, error) {
	select {
	case result := <-l.results:
		return result.Code, nil
	case err := <-l.errs:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close shuts the listener down.
func (l *Listener) Close() error {
	return l.server.Shutdown(context.Background())
}

// handle processes one redirect from the authorization server.
func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		desc := query.Get("error_description")
		l.fail(w, fmt.Errorf("authorization failed: %s: %s", errCode, desc),
			"Authorization failed: "+errCode)
		return
	}

	state := query.Get("state")
	if l.verifyState != nil && !l.verifyState(state) {
		l.fail(w, fmt.Errorf("authorization callback state mismatch"), "State mismatch")
		return
	}

	code := query.Get("code")
	if code == "" {
		l.fail(w, fmt.Errorf("authorization callback carried no code"), "No authorization code")
		return
	}

	select {
	case l.results <- Result{Code: code, State: state}:
	default:
		// A second callback for the same flow; ignore it.
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html><html><head><title>Authorization Complete</title></head>`+
		`<body><h1>Authorization complete</h1><p>You can close this window and return to the application.</p></body></html>`)
}

// fail reports an error to both the waiting flow and the browser.
func (l *Listener) fail(w http.ResponseWriter, err error, userMsg string) {
	select {
	case l.errs <- err:
	default:
	}
	http.Error(w, userMsg, http.StatusBadRequest)
}

// recoverMiddleware recovers from panics in the callback handler and
// returns a 500 instead of killing the embedder's process.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Errorw("panic in callback handler", "panic", v)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
