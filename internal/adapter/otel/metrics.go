package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "costscope"

// Metrics holds the tool-call metric instruments.
type Metrics struct {
	ToolCalls    metric.Int64Counter
	ToolFailures metric.Int64Counter
	ToolDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ToolCalls, err = meter.Int64Counter("costscope.tool.calls",
		metric.WithDescription("Number of tool calls dispatched"))
	if err != nil {
		return nil, err
	}

	m.ToolFailures, err = meter.Int64Counter("costscope.tool.failures",
		metric.WithDescription("Number of tool calls resolved as errors"))
	if err != nil {
		return nil, err
	}

	m.ToolDuration, err = meter.Float64Histogram("costscope.tool.duration_seconds",
		metric.WithDescription("Tool call duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
