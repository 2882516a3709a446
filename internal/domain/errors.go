// Package domain provides shared domain-level error types and sentinels
// for the tool-call pipeline.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the requested entity does not exist upstream.
// Tenant-scoped lookups convert this to an empty result, never an error.
var ErrNotFound = errors.New("not found")

// ErrUnknownTool indicates a tool name outside the closed catalog.
var ErrUnknownTool = errors.New("unknown tool")

// FieldViolation is one validation failure: the field path plus the reason.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports all violated fields of one tool call.
// It is resolved at the boundary and never reaches the upstream client.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field/reason pairs.
func NewValidationError(violations ...FieldViolation) *ValidationError {
	return &ValidationError{Violations: violations}
}

// AuthenticationError indicates the caller's credential could not be
// resolved, or the upstream token exchange failed.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// AuthorizationError indicates the principal lacks access to the requested
// organization or role. It always fails closed.
type AuthorizationError struct {
	PrincipalID    string
	OrganizationID int64
	RequiredRole   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("forbidden: principal %s denied for organization %d", e.PrincipalID, e.OrganizationID)
}

// ServiceUnavailableError indicates the circuit is open or the upstream
// call timed out; no result could be produced.
type ServiceUnavailableError struct {
	Reason string
}

func (e *ServiceUnavailableError) Error() string {
	return "service unavailable: " + e.Reason
}

// UpstreamError carries a non-404 error status from the upstream API.
// The body is logged internally and never surfaced to callers.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream API error %d", e.Status)
}
