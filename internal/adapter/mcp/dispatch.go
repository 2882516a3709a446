package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	otelspans "github.com/costscope/costscope/internal/adapter/otel"
	"github.com/costscope/costscope/internal/domain"
	"github.com/costscope/costscope/internal/logger"
	"github.com/costscope/costscope/internal/validate"
)

// toolHandler adapts one catalog entry to the mcp-go handler signature.
func (s *Server) toolHandler(name string) func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		return s.Dispatch(ctx, name, req.GetArguments()), nil
	}
}

// Dispatch runs the full pipeline for one tool call: validate the raw
// arguments, resolve and authorize the caller, execute the operation, and
// shape the result. Errors never propagate past this boundary; they are
// logged in full and returned as sanitized payloads with a correlation id.
func (s *Server) Dispatch(ctx context.Context, name string, raw map[string]any) *mcplib.CallToolResult {
	correlationID := uuid.NewString()
	ctx = logger.WithCorrelationID(ctx, correlationID)
	started := time.Now()

	spec, ok := s.catalog[name]
	if !ok {
		return s.fail(ctx, name, correlationID, started, fmt.Errorf("%w: %q", domain.ErrUnknownTool, name))
	}

	args, err := s.deps.Validator.Validate(name, raw)
	if err != nil {
		return s.fail(ctx, name, correlationID, started, err)
	}

	p, err := s.deps.Access.Authenticate(BearerFromContext(ctx))
	if err != nil {
		return s.fail(ctx, name, correlationID, started, err)
	}

	orgID := validate.Int64Arg(args, "organizationId")
	if err := s.deps.Access.Authorize(p, orgID, spec.role); err != nil {
		return s.fail(ctx, name, correlationID, started, err)
	}

	ctx, span := otelspans.StartToolCallSpan(ctx, name, correlationID, orgID)
	defer span.End()

	result, err := spec.handle(ctx, args)
	if err != nil {
		return s.fail(ctx, name, correlationID, started, err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return s.fail(ctx, name, correlationID, started, fmt.Errorf("marshal result: %w", err))
	}

	duration := time.Since(started)
	s.deps.Log.Info("tool call completed",
		"tool", name,
		"principal", p.ID,
		"organization_id", orgID,
		"duration_ms", duration.Milliseconds(),
		"status", "ok",
		"correlation_id", correlationID,
	)
	s.observe(ctx, name, duration, false)

	return mcplib.NewToolResultText(string(payload))
}

// errorPayload is the caller-facing error shape. The message is always
// sanitized; raw upstream text and stack traces never leave the process.
type errorPayload struct {
	Error         string `json:"error"`
	Tool          string `json:"tool"`
	CorrelationID string `json:"correlation_id"`
}

// fail logs the full error internally and returns the sanitized payload.
func (s *Server) fail(ctx context.Context, name, correlationID string, started time.Time, err error) *mcplib.CallToolResult {
	duration := time.Since(started)
	s.deps.Log.Error("tool call failed",
		"tool", name,
		"duration_ms", duration.Milliseconds(),
		"status", "error",
		"correlation_id", correlationID,
		"error", err,
	)
	s.observe(ctx, name, duration, true)

	payload, marshalErr := json.Marshal(errorPayload{
		Error:         SanitizeError(err),
		Tool:          name,
		CorrelationID: correlationID,
	})
	if marshalErr != nil {
		return mcplib.NewToolResultError(SanitizeError(err))
	}
	result := mcplib.NewToolResultText(string(payload))
	result.IsError = true
	return result
}

func (s *Server) observe(ctx context.Context, name string, duration time.Duration, failed bool) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", name))
	m.ToolCalls.Add(ctx, 1, attrs)
	if failed {
		m.ToolFailures.Add(ctx, 1, attrs)
	}
	m.ToolDuration.Record(ctx, duration.Seconds(), attrs)
}
