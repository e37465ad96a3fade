package metrics

import (
	"math"

	"github.com/modelyard/platform/internal/domain"
)

// Reducer collapses a run of samples into one figure for trend comparison.
type Reducer func(values []float64) float64

// Sum adds all samples; used for counter signals such as request volume.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean averages samples; used for gauge signals such as response latency.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Summarize computes the windowed aggregate for one signal. Total and
// Average are always filled; the trend compares the two halves of the series
// using the given reducer and is 0 whenever the first half reduces to zero,
// so no division by zero can occur. An empty series short-circuits into a
// no-data summary.
//
// Trend sign semantics depend on the reducer: a positive trend on a
// sum-reduced volume signal means more traffic, while on a mean-reduced
// latency signal a negative trend means the endpoint got faster.
func Summarize(points []domain.MetricPoint, reduce Reducer) domain.TrendSummary {
	if len(points) == 0 {
		return domain.TrendSummary{Points: []domain.MetricPoint{}, NoData: true}
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	total := Sum(values)
	average := math.Round(total / float64(len(values)))

	mid := len(values) / 2
	first := reduce(values[:mid])
	second := reduce(values[mid:])
	var trend float64
	if first > 0 {
		trend = round1((second - first) / first * 100)
	}
	return domain.TrendSummary{
		Total:           total,
		Average:         average,
		TrendPercentage: trend,
		Points:          points,
	}
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
