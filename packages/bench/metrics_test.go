package bench

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record("GET /a", 200, 100*time.Millisecond, nil)
	m.Record("GET /a", 200, 150*time.Millisecond, nil)
	m.Record("GET /b", 500, 200*time.Millisecond, errors.New("500"))
	m.Record("GET /b", 0, 50*time.Millisecond, errors.New("connection refused"))
	m.RecordTimeout("GET /a")

	m.Stop()
	s := m.Summary()

	assert.Equal(t, int64(5), s.Total)
	assert.Equal(t, int64(2), s.Success)
	assert.Equal(t, int64(3), s.Errors)
	assert.Equal(t, int64(1), s.Timeouts)
	assert.InDelta(t, 0.6, s.ErrorRate, 0.0001)
	assert.Equal(t, map[int]int64{200: 2, 500: 1}, s.StatusCodes)
	assert.InDelta(t, float64(200*time.Millisecond), float64(s.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.Min), float64(time.Millisecond))

	require.Len(t, s.Targets, 2)
	assert.Equal(t, "GET /a", s.Targets[0].Name)
	assert.Equal(t, int64(3), s.Targets[0].Total)
	assert.Equal(t, int64(1), s.Targets[0].Errors)
	assert.Equal(t, int64(2), s.Targets[1].Errors)
}

func TestMetricsActiveVUs(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.IncrementActiveVUs()
	m.IncrementActiveVUs()
	assert.Equal(t, int32(2), m.Stats().ActiveVUs)

	m.DecrementActiveVUs()
	assert.Equal(t, int32(1), m.Stats().ActiveVUs)
}

func TestSummaryEvaluate(t *testing.T) {
	m := NewMetrics()
	m.Start()
	for i := 0; i < 100; i++ {
		m.Record("t", 200, 10*time.Millisecond, nil)
	}
	m.Record("t", 500, 10*time.Millisecond, errors.New("500"))
	m.Stop()
	s := m.Summary()

	passing := s.Evaluate(Thresholds{
		{Metric: MetricP95, Op: "<", Limit: 100 * time.Millisecond},
		{Metric: MetricErrorRate, Op: "<", Value: 0.05},
	})
	require.Len(t, passing, 2)
	for _, r := range passing {
		assert.True(t, r.Passed, "threshold %s should pass", r.Name)
	}

	failing := s.Evaluate(Thresholds{
		{Metric: MetricP95, Op: "<", Limit: time.Millisecond},
		{Metric: MetricErrorRate, Op: "<", Value: 0.001},
		{Metric: MetricRPS, Op: ">", Value: 1e9},
	})
	require.Len(t, failing, 3)
	for _, r := range failing {
		assert.False(t, r.Passed, "threshold %s should fail", r.Name)
	}

	assert.Empty(t, s.Evaluate(nil))
}

func TestSummaryEvaluate_ZeroErrorGate(t *testing.T) {
	thresholds, err := ParseThresholds("errors<0%")
	require.NoError(t, err)
	require.True(t, thresholds.HasThresholds())

	clean := &Summary{ErrorRate: 0}
	results := clean.Evaluate(thresholds)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed, "0 < 0 is false")

	thresholds, err = ParseThresholds("errors<=0%")
	require.NoError(t, err)
	assert.True(t, clean.Evaluate(thresholds)[0].Passed)

	failing := &Summary{ErrorRate: 0.5}
	results = failing.Evaluate(thresholds)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "<= 0%", results[0].Expected)
	assert.Equal(t, "50%", results[0].Actual)
}

func TestSummaryEvaluate_StrictOperators(t *testing.T) {
	s := &Summary{P95: 200 * time.Millisecond, RPS: 10}

	tests := []struct {
		input  string
		passed bool
	}{
		{"p95<200ms", false},
		{"p95<=200ms", true},
		{"rps>10", false},
		{"rps>=10", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			thresholds, err := ParseThresholds(tt.input)
			require.NoError(t, err)
			results := s.Evaluate(thresholds)
			require.Len(t, results, 1)
			assert.Equal(t, tt.passed, results[0].Passed)
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
	}
	for n, expected := range tests {
		assert.Equal(t, expected, formatNumber(n))
	}
}
