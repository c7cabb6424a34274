// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWWWAuthenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   *Challenge
	}{
		{
			name:   "empty header",
			header: "",
			want:   nil,
		},
		{
			name:   "scheme only",
			header: "Bearer",
			want:   &Challenge{Scheme: "Bearer"},
		},
		{
			name:   "realm and scope",
			header: `Bearer realm="https://auth.example.com", scope="openid profile"`,
			want: &Challenge{
				Scheme: "Bearer",
				Realm:  "https://auth.example.com",
				Scope:  "openid profile",
			},
		},
		{
			name:   "resource metadata",
			header: `Bearer realm="x", resource_metadata="https://srv/.well-known/oauth-protected-resource"`,
			want: &Challenge{
				Scheme:           "Bearer",
				Realm:            "x",
				ResourceMetadata: "https://srv/.well-known/oauth-protected-resource",
			},
		},
		{
			name:   "irregular whitespace between parameters",
			header: "Bearer realm=\"x\",\n\t resource_metadata=\"https://srv/md\"",
			want: &Challenge{
				Scheme:           "Bearer",
				Realm:            "x",
				ResourceMetadata: "https://srv/md",
			},
		},
		{
			name:   "error parameters",
			header: `Bearer error="invalid_token", error_description="token expired"`,
			want: &Challenge{
				Scheme:           "Bearer",
				Error:            "invalid_token",
				ErrorDescription: "token expired",
			},
		},
		{
			name:   "basic scheme",
			header: `Basic realm="x"`,
			want:   &Challenge{Scheme: "Basic", Realm: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseWWWAuthenticate(tt.header)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChallenge_IsBearer(t *testing.T) {
	t.Parallel()

	assert.True(t, ParseWWWAuthenticate(`Bearer realm="x"`).IsBearer())
	assert.True(t, ParseWWWAuthenticate(`bearer realm="x"`).IsBearer(), "scheme match is case-insensitive")
	assert.False(t, ParseWWWAuthenticate(`Basic realm="x"`).IsBearer())

	var nilChallenge *Challenge
	assert.False(t, nilChallenge.IsBearer())
}

func TestResourceMetadataURL(t *testing.T) {
	t.Parallel()

	const mdURL = "https://srv/.well-known/oauth-protected-resource"

	got := ResourceMetadataURL(`Bearer realm="x", resource_metadata="` + mdURL + `"`)
	require.Equal(t, mdURL, got)

	assert.Empty(t, ResourceMetadataURL(`Basic realm="x"`))
	assert.Empty(t, ResourceMetadataURL(`Bearer realm="x"`))
	assert.Empty(t, ResourceMetadataURL(""))
}
