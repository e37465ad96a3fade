package domain

import "time"

// MetricPoint is one sample of a monitoring signal.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TrendSummary describes one signal over a metrics window. Total carries the
// sum of all samples, Average the rounded mean; callers surface whichever
// fits the signal. TrendPercentage compares the second half of the window to
// the first and is 0 when the first half reduces to zero.
type TrendSummary struct {
	Total           float64       `json:"total"`
	Average         float64       `json:"average"`
	TrendPercentage float64       `json:"trend_percentage"`
	Points          []MetricPoint `json:"points"`
	NoData          bool          `json:"no_data,omitempty"`
}

// TimeRange bounds a metrics query window.
type TimeRange struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	HoursBack int       `json:"hours_back"`
}

// DefaultHoursBack is applied when a caller omits or zeroes the window size.
const DefaultHoursBack = 24

// NewTimeRange builds a look-back window ending at now. Non-positive
// hoursBack falls back to the default; maxHours (when positive) caps the
// window.
func NewTimeRange(now time.Time, hoursBack, maxHours int) TimeRange {
	if hoursBack <= 0 {
		hoursBack = DefaultHoursBack
	}
	if maxHours > 0 && hoursBack > maxHours {
		hoursBack = maxHours
	}
	return TimeRange{
		Start:     now.Add(-time.Duration(hoursBack) * time.Hour),
		End:       now,
		HoursBack: hoursBack,
	}
}

// Duration returns the window length.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}
