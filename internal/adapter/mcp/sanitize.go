package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/costscope/costscope/internal/domain"
	"github.com/costscope/costscope/internal/resilience"
)

// Caller-facing messages by error category.
const (
	msgValidationPrefix = "Invalid arguments: "
	msgAuthentication   = "Authentication failed"
	msgAccessDenied     = "Access denied"
	msgTimeout          = "The request timed out, please try again"
	msgUnavailable      = "The service is temporarily unavailable, please try again later"
	msgUpstream         = "The upstream cost service returned an error"
	msgUnknownTool      = "Unknown tool"
	msgGeneric          = "The request could not be completed"
)

// SanitizeError maps an internal error to its caller-facing message.
// Validation messages are built from caller input and pass through; every
// other category collapses to a fixed message so upstream details,
// credentials and stack traces never reach the caller.
func SanitizeError(err error) string {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return msgValidationPrefix + validation.Error()
	}

	if errors.Is(err, domain.ErrUnknownTool) {
		return msgUnknownTool
	}

	var authn *domain.AuthenticationError
	if errors.As(err, &authn) {
		return msgAuthentication
	}

	var authz *domain.AuthorizationError
	if errors.As(err, &authz) {
		return msgAccessDenied
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return msgUnavailable
	}
	var unavailable *domain.ServiceUnavailableError
	if errors.As(err, &unavailable) {
		return msgUnavailable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}

	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Status == 403 {
			return msgAccessDenied
		}
		return msgUpstream
	}

	// Fall back to message scanning for errors from lower layers that
	// were not wrapped in a typed category.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "token"), strings.Contains(msg, "credential"):
		return msgAuthentication
	case strings.Contains(msg, "403"), strings.Contains(msg, "forbidden"):
		return msgAccessDenied
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return msgTimeout
	}
	return msgGeneric
}
