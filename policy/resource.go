// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/cel-go/cel"

	"github.com/stacklok/authflow/client"
	"github.com/stacklok/authflow/oauth"
)

const (
	// maxExpressionLength bounds policy expressions to prevent DoS via
	// excessively long inputs.
	maxExpressionLength = 10000

	// costLimit bounds the runtime cost of one evaluation.
	costLimit = 1000000
)

// Sentinel errors for policy evaluation.
var (
	// ErrExpressionCheck is returned when an expression fails syntax or type checking.
	ErrExpressionCheck = errors.New("resource policy expression check failed")

	// ErrEvaluation is returned when expression evaluation fails.
	ErrEvaluation = errors.New("resource policy evaluation failed")

	// ErrInvalidResult is returned when the expression does not yield a boolean.
	ErrInvalidResult = errors.New("resource policy expression must return a boolean")
)

// ResourceValidator evaluates a compiled CEL expression to decide which
// RFC 8707 resource indicators the client may request. It implements the
// client.ResourceValidator capability and is safe for concurrent use.
type ResourceValidator struct {
	source  string
	program cel.Program
}

// NewResourceValidator compiles a CEL expression over the server and
// resource variables. Compilation errors surface immediately so embedders
// can validate configuration at startup.
func NewResourceValidator(expr string) (*ResourceValidator, error) {
	if len(expr) > maxExpressionLength {
		return nil, fmt.Errorf("%w: expression length %d exceeds maximum of %d",
			ErrExpressionCheck, len(expr), maxExpressionLength)
	}

	env, err := cel.NewEnv(
		cel.Variable("server", cel.MapType(cel.StringType, cel.StringType)),
		// Dyn so expressions can test `resource == null` when the server
		// published no protected resource metadata.
		cel.Variable("resource", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrExpressionCheck, issues.Err())
	}

	program, err := env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program for %q: %w", expr, err)
	}

	return &ResourceValidator{source: expr, program: program}, nil
}

// Source returns the original expression.
func (v *ResourceValidator) Source() string {
	return v.source
}

// ValidateResourceURL implements the client.ResourceValidator capability.
// A true verdict selects the metadata's resource identifier (or none when
// no metadata was discovered); false rejects with oauth.ErrResourceMismatch.
func (v *ResourceValidator) ValidateResourceURL(_ context.Context, serverURL *url.URL,
	resourceMetadata *oauth.ProtectedResourceMetadata,
) (*url.URL, error) {
	var resource *url.URL
	if resourceMetadata != nil {
		parsed, err := url.Parse(resourceMetadata.Resource)
		if err != nil {
			return nil, fmt.Errorf("invalid resource in protected resource metadata: %w", err)
		}
		resource = parsed
	}

	allowed, err := v.evaluate(serverURL, resource)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: rejected by resource policy %q", oauth.ErrResourceMismatch, v.source)
	}
	return resource, nil
}

// evaluate runs the compiled program against the two URLs.
func (v *ResourceValidator) evaluate(server, resource *url.URL) (bool, error) {
	vars := map[string]any{
		"server":   urlVars(server),
		"resource": nil,
	}
	if resource != nil {
		vars["resource"] = urlVars(resource)
	}

	out, _, err := v.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrEvaluation, err)
	}

	verdict, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrInvalidResult, out.Value())
	}
	return verdict, nil
}

var _ client.ResourceValidator = (*ResourceValidator)(nil)

// urlVars flattens a URL into the map shape exposed to expressions.
func urlVars(u *url.URL) map[string]string {
	return map[string]string{
		"url":    u.String(),
		"scheme": u.Scheme,
		"host":   u.Host,
		"path":   u.Path,
	}
}
