package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/modelyard/platform/internal/domain"
)

func pointsOf(values ...float64) []domain.MetricPoint {
	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	points := make([]domain.MetricPoint, len(values))
	for i, v := range values {
		points[i] = domain.MetricPoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return points
}

func TestSummarizeFlatSeriesHasZeroTrend(t *testing.T) {
	summary := Summarize(pointsOf(10, 10, 10, 10, 10, 10, 10, 10, 10, 10), Sum)

	if summary.Total != 100 {
		t.Fatalf("expected total 100, got %v", summary.Total)
	}
	if summary.Average != 10 {
		t.Fatalf("expected average 10, got %v", summary.Average)
	}
	if summary.TrendPercentage != 0 {
		t.Fatalf("expected zero trend, got %v", summary.TrendPercentage)
	}
	if summary.NoData {
		t.Fatal("flat series should not be marked no-data")
	}
}

func TestSummarizeEmptySeriesIsNoData(t *testing.T) {
	summary := Summarize(nil, Sum)

	if !summary.NoData {
		t.Fatal("empty series must be marked no-data")
	}
	if summary.Points == nil {
		t.Fatal("points must be an empty slice, not nil")
	}
	if math.IsNaN(summary.Total) || math.IsNaN(summary.Average) || math.IsNaN(summary.TrendPercentage) {
		t.Fatal("no-data summary must not contain NaN")
	}
}

func TestSummarizeGrowingVolumeIsPositive(t *testing.T) {
	summary := Summarize(pointsOf(10, 10, 20, 20), Sum)

	if summary.TrendPercentage != 100 {
		t.Fatalf("expected +100%% trend, got %v", summary.TrendPercentage)
	}
}

func TestSummarizeLatencyImprovementIsNegative(t *testing.T) {
	summary := Summarize(pointsOf(200, 200, 100, 100), Mean)

	if summary.TrendPercentage != -50 {
		t.Fatalf("expected -50%% trend, got %v", summary.TrendPercentage)
	}
}

func TestSummarizeZeroFirstHalfSuppressesTrend(t *testing.T) {
	summary := Summarize(pointsOf(0, 0, 50, 50), Sum)

	if summary.TrendPercentage != 0 {
		t.Fatalf("expected suppressed trend, got %v", summary.TrendPercentage)
	}
}

func TestSummarizeOddLengthSplitsAtFloor(t *testing.T) {
	// halves are [5] and [10, 25]: (35-5)/5 = +600%
	summary := Summarize(pointsOf(5, 10, 25), Sum)

	if summary.TrendPercentage != 600 {
		t.Fatalf("expected +600%% trend, got %v", summary.TrendPercentage)
	}
}

func TestSummarizeRoundsTrendToOneDecimal(t *testing.T) {
	// (10-3)/3 = 233.333...%
	summary := Summarize(pointsOf(3, 10), Sum)

	if summary.TrendPercentage != 233.3 {
		t.Fatalf("expected 233.3, got %v", summary.TrendPercentage)
	}
}

func TestSummarizeAverageIsRounded(t *testing.T) {
	summary := Summarize(pointsOf(1, 2), Sum)

	if summary.Average != 2 {
		t.Fatalf("expected rounded average 2, got %v", summary.Average)
	}
}
