// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package policy provides a CEL-driven resource validator implementing the
client.ResourceValidator capability: embedders that need organization-wide
rules about which resource indicators a client may request express them as
a CEL expression instead of code.

The expression is evaluated with two variables:

  - server: the canonicalized server URL as a map with keys url, scheme,
    host, and path
  - resource: the protected resource metadata's identifier in the same
    shape, or null when the server published no metadata

An expression returning true accepts the metadata's resource identifier
(or no indicator when metadata is absent); false rejects the flow.

	validator, err := policy.NewResourceValidator(
		`resource == null || resource.host == server.host`)

Compose it with a session store via embedding so the store satisfies
client.ResourceValidator.
*/
package policy
