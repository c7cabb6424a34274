// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHeaderName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		// Valid cases
		{"valid simple", "X-API-Key", false},
		{"valid authorization", "Authorization", false},
		{"valid protocol version", "MCP-Protocol-Version", false},

		// CRLF injection attacks
		{"crlf injection", "X-API-Key\r\nX-Injected: malicious", true},
		{"newline injection", "X-API-Key\nInjected", true},
		{"carriage return", "X-API-Key\r", true},

		// Other invalid characters
		{"null byte", "X-API-Key\x00", true},
		{"contains space", "X API Key", true},
		{"empty string", "", true},

		// Length limits
		{"too long", strings.Repeat("A", 300), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateHeaderName(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHeaderValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"valid version", "2025-06-18", false},
		{"valid bearer", "Bearer abc123", false},
		{"crlf injection", "value\r\nX-Injected: evil", true},
		{"null byte", "value\x00", true},
		{"empty string", "", true},
		{"too long", strings.Repeat("a", 10000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateHeaderValue(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateResourceURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"valid https", "https://api.example.com/v1", false},
		{"valid with port", "https://api.example.com:8443/v1", false},
		{"missing scheme", "api.example.com/v1", true},
		{"missing host", "https:///v1", true},
		{"fragment present", "https://api.example.com/v1#frag", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateResourceURI(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanonicalResourceURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"lowercases scheme and host", "HTTPS://SRV.Example/MCP", "https://srv.example/MCP", false},
		{"strips fragment", "https://srv.example/mcp#frag", "https://srv.example/mcp", false},
		{"preserves query", "https://srv.example/mcp?tenant=a", "https://srv.example/mcp?tenant=a", false},
		{"relative URL", "/mcp", "", true},
		{"garbage", "://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalResourceURI(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestIsResourceAllowed(t *testing.T) {
	t.Parallel()

	mustParse := func(s string) *url.URL {
		u, err := url.Parse(s)
		require.NoError(t, err)
		return u
	}

	tests := []struct {
		name       string
		requested  string
		configured string
		want       bool
	}{
		{"exact match", "https://srv.example/mcp", "https://srv.example/mcp", true},
		{"configured is origin", "https://srv.example/mcp", "https://srv.example", true},
		{"configured is parent path", "https://srv.example/mcp/v1", "https://srv.example/mcp", true},
		{"trailing slash on configured", "https://srv.example/mcp/v1", "https://srv.example/mcp/", true},
		{"partial segment is not a prefix", "https://srv.example/mcp", "https://srv.example/mc", false},
		{"configured deeper than requested", "https://srv.example/mcp", "https://srv.example/mcp/v1", false},
		{"different host", "https://srv.example/mcp", "https://other.example/mcp", false},
		{"different scheme", "http://srv.example/mcp", "https://srv.example/mcp", false},
		{"host case-insensitive", "https://SRV.example/mcp", "https://srv.example/mcp", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsResourceAllowed(mustParse(tt.requested), mustParse(tt.configured))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsResourceAllowed_Nil(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("https://srv.example/mcp")
	assert.False(t, IsResourceAllowed(nil, u))
	assert.False(t, IsResourceAllowed(u, nil))
}
