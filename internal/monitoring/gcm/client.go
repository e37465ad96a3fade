package gcm

import (
	"context"
	"fmt"
	"sort"
	"time"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	"cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/service/metrics"
)

const (
	requestCountMetric = "run.googleapis.com/request_count"
	latencyMetric      = "run.googleapis.com/request_latencies"

	// samplesPerWindow controls the alignment period so every window
	// yields a comparable number of points.
	samplesPerWindow = 24
	minAlignment     = time.Minute
)

// Client reads Cloud Run time series from the Cloud Monitoring API.
type Client struct {
	metric    *monitoring.MetricClient
	projectID string
}

var _ metrics.Source = (*Client)(nil)

// New builds a Client for the given GCP project.
func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("monitoring project id is required")
	}
	mc, err := monitoring.NewMetricClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create monitoring client: %w", err)
	}
	return &Client{metric: mc, projectID: projectID}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.metric.Close()
}

// Query lists the time series for one signal of a Cloud Run service over the
// window and flattens it into chronological metric points.
func (c *Client) Query(ctx context.Context, serviceName string, signal metrics.Signal, window domain.TimeRange) ([]domain.MetricPoint, error) {
	req := &monitoringpb.ListTimeSeriesRequest{
		Name:   "projects/" + c.projectID,
		Filter: signalFilter(serviceName, signal),
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(window.Start),
			EndTime:   timestamppb.New(window.End),
		},
		Aggregation: signalAggregation(signal, window),
		View:        monitoringpb.ListTimeSeriesRequest_FULL,
	}

	points := make([]domain.MetricPoint, 0, samplesPerWindow)
	it := c.metric.ListTimeSeries(ctx, req)
	for {
		series, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list time series: %w", err)
		}
		for _, p := range series.GetPoints() {
			points = append(points, domain.MetricPoint{
				Timestamp: p.GetInterval().GetEndTime().AsTime(),
				Value:     pointValue(p.GetValue()),
			})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

func signalFilter(serviceName string, signal metrics.Signal) string {
	metricType := requestCountMetric
	if signal == metrics.SignalLatency {
		metricType = latencyMetric
	}
	return fmt.Sprintf(`metric.type = %q AND resource.type = "cloud_run_revision" AND resource.labels.service_name = %q`,
		metricType, serviceName)
}

func signalAggregation(signal metrics.Signal, window domain.TimeRange) *monitoringpb.Aggregation {
	period := window.Duration() / samplesPerWindow
	if period < minAlignment {
		period = minAlignment
	}
	agg := &monitoringpb.Aggregation{
		AlignmentPeriod:    durationpb.New(period.Round(time.Second)),
		PerSeriesAligner:   monitoringpb.Aggregation_ALIGN_SUM,
		CrossSeriesReducer: monitoringpb.Aggregation_REDUCE_SUM,
		GroupByFields:      []string{`resource.label."service_name"`},
	}
	if signal == metrics.SignalLatency {
		// request_latencies is a distribution; align on the median and
		// average across revisions.
		agg.PerSeriesAligner = monitoringpb.Aggregation_ALIGN_PERCENTILE_50
		agg.CrossSeriesReducer = monitoringpb.Aggregation_REDUCE_MEAN
	}
	return agg
}

func pointValue(v *monitoringpb.TypedValue) float64 {
	switch value := v.GetValue().(type) {
	case *monitoringpb.TypedValue_DoubleValue:
		return value.DoubleValue
	case *monitoringpb.TypedValue_Int64Value:
		return float64(value.Int64Value)
	case *monitoringpb.TypedValue_DistributionValue:
		return value.DistributionValue.GetMean()
	}
	return 0
}
