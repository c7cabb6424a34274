// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/authflow/oauth"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestNewResourceValidator_CompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{"syntax error", "server.host =="},
		{"unknown variable", "unknown.host == server.host"},
		{"too long", "true && " + strings.Repeat("true && ", 2000) + "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewResourceValidator(tt.expr)
			assert.ErrorIs(t, err, ErrExpressionCheck)
		})
	}
}

func TestResourceValidator_SameHostPolicy(t *testing.T) {
	t.Parallel()

	validator, err := NewResourceValidator(`resource == null || resource.host == server.host`)
	require.NoError(t, err)

	server := mustParse(t, "https://srv.example/mcp")

	t.Run("no metadata is allowed with no indicator", func(t *testing.T) {
		t.Parallel()
		resource, err := validator.ValidateResourceURL(t.Context(), server, nil)
		require.NoError(t, err)
		assert.Nil(t, resource)
	})

	t.Run("same host accepted", func(t *testing.T) {
		t.Parallel()
		md := &oauth.ProtectedResourceMetadata{Resource: "https://srv.example"}
		resource, err := validator.ValidateResourceURL(t.Context(), server, md)
		require.NoError(t, err)
		require.NotNil(t, resource)
		assert.Equal(t, "https://srv.example", resource.String())
	})

	t.Run("foreign host rejected", func(t *testing.T) {
		t.Parallel()
		md := &oauth.ProtectedResourceMetadata{Resource: "https://evil.example"}
		_, err := validator.ValidateResourceURL(t.Context(), server, md)
		assert.ErrorIs(t, err, oauth.ErrResourceMismatch)
	})
}

func TestResourceValidator_SchemePin(t *testing.T) {
	t.Parallel()

	validator, err := NewResourceValidator(`resource != null && resource.scheme == "https"`)
	require.NoError(t, err)

	server := mustParse(t, "https://srv.example/mcp")

	_, err = validator.ValidateResourceURL(t.Context(), server,
		&oauth.ProtectedResourceMetadata{Resource: "http://srv.example"})
	assert.ErrorIs(t, err, oauth.ErrResourceMismatch)

	resource, err := validator.ValidateResourceURL(t.Context(), server,
		&oauth.ProtectedResourceMetadata{Resource: "https://srv.example"})
	require.NoError(t, err)
	assert.Equal(t, "https://srv.example", resource.String())

	// The expression requires metadata; its absence rejects the flow.
	_, err = validator.ValidateResourceURL(t.Context(), server, nil)
	assert.ErrorIs(t, err, oauth.ErrResourceMismatch)
}

func TestResourceValidator_NonBooleanResult(t *testing.T) {
	t.Parallel()

	validator, err := NewResourceValidator(`server.host`)
	require.NoError(t, err)

	_, err = validator.ValidateResourceURL(t.Context(), mustParse(t, "https://srv.example"), nil)
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestResourceValidator_Source(t *testing.T) {
	t.Parallel()

	const expr = `resource == null`
	validator, err := NewResourceValidator(expr)
	require.NoError(t, err)
	assert.Equal(t, expr, validator.Source())
}
