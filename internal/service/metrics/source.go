package metrics

import (
	"context"

	"github.com/modelyard/platform/internal/domain"
)

// Signal names a tracked monitoring time series.
type Signal string

const (
	// SignalRequests is the request volume counter.
	SignalRequests Signal = "requests"
	// SignalLatency is the response latency gauge, in milliseconds.
	SignalLatency Signal = "latency"
)

// Source reads raw time series from the monitoring backend. Implementations
// must return points in chronological order.
type Source interface {
	Query(ctx context.Context, serviceName string, signal Signal, window domain.TimeRange) ([]domain.MetricPoint, error)
}
