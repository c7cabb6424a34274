// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package session provides ready-made client.Provider implementations.

FileStore persists the session (client registration, tokens, PKCE verifier)
as a YAML document per server under the XDG data directory, so CLI
embedders survive process restarts without re-registering or
re-authorizing. MemoryStore holds the same state in memory for tests and
short-lived processes.

Neither store can drive a user agent by itself: the redirect hook is
injected, typically from the callback package:

	store, err := session.NewFileStore("https://srv.example/mcp",
		listener.RedirectURL(), metadata,
		session.WithRedirect(listener.RedirectToAuthorization))

Stores serialize their own access; a single store value is safe for
concurrent use.
*/
package session
