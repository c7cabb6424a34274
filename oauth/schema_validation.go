// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed data/client-metadata.schema.json
var embeddedSchemaFS embed.FS

// Validate validates the client metadata against the RFC 7591 registration
// schema. It catches malformed registration requests before they reach the
// authorization server, where rejection reasons are often opaque.
func (m *ClientMetadata) Validate() error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize client metadata: %w", err)
	}
	return ValidateClientMetadataBytes(data)
}

// ValidateClientMetadataBytes validates raw RFC 7591 client metadata JSON.
func ValidateClientMetadataBytes(data []byte) error {
	return validateAgainstSchema(data, "data/client-metadata.schema.json", "client metadata validation failed")
}

// validateAgainstSchema validates data against a named embedded schema file.
func validateAgainstSchema(data []byte, schemaFile, errPrefix string) error {
	schemaData, err := embeddedSchemaFS.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read embedded schema %s: %w", schemaFile, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errPrefix, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%s: %s", errPrefix, strings.Join(msgs, "; "))
}
