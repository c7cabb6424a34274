// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package callback runs the loopback redirect endpoint for CLI and desktop
embedders: a local HTTP listener that receives the authorization server's
redirect, validates the state parameter, and hands the authorization code
back to the waiting flow.

	listener, err := callback.NewListener(callback.ListenerOptions{
		Addr: "127.0.0.1:8085",
	})
	if err != nil { ... }
	defer listener.Close()

	store := session.NewMemoryStore(listener.RedirectURL(), metadata,
		listener.RedirectToAuthorization)

	result, err := client.Auth(ctx, store, client.AuthOptions{ServerURL: serverURL})
	if result == client.AuthResultRedirect {
		code, err := listener.Wait(ctx)
		// call client.Auth again with AuthorizationCode: code
	}

RedirectToAuthorization opens the system browser; embedders can override
that with their own opener (for example to print the URL instead).
*/
package callback
