package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTarget(t *testing.T, handler http.HandlerFunc) Target {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := hammx.New(server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return Target{Method: http.MethodGet, Resource: client.Path("ping")}
}

func TestRunner_RateMode(t *testing.T) {
	var hits atomic.Int64
	target := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/ping", r.URL.Path)
	})

	cfg := DefaultConfig()
	cfg.Duration = 500 * time.Millisecond
	cfg.Rate = 40

	runner, err := NewRunner(cfg, []Target{target})
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	s := result.Summary
	assert.Greater(t, s.Total, int64(5))
	assert.LessOrEqual(t, s.Total, int64(30))
	assert.Equal(t, s.Total, s.Success+s.Errors)
	assert.LessOrEqual(t, s.StatusCodes[200], hits.Load())
	assert.True(t, result.Passed)
	require.Len(t, s.Targets, 1)
	assert.Contains(t, s.Targets[0].Name, "GET ")
}

func TestRunner_VUMode(t *testing.T) {
	target := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})

	cfg := DefaultConfig()
	cfg.Mode = VUMode
	cfg.VUs = 3
	cfg.ThinkTime = 50 * time.Millisecond
	cfg.Duration = 400 * time.Millisecond

	runner, err := NewRunner(cfg, []Target{target})
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	// Each VU sends at most one request per think time.
	assert.GreaterOrEqual(t, result.Summary.Total, int64(3))
	assert.LessOrEqual(t, result.Summary.Total, int64(3*9))
	assert.Equal(t, int32(0), runner.Metrics().Stats().ActiveVUs)
}

func TestRunner_ErrorsAndThresholds(t *testing.T) {
	var n atomic.Int64
	target := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1)%2 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	cfg := DefaultConfig()
	cfg.Duration = 300 * time.Millisecond
	cfg.Rate = 50
	cfg.Thresholds = Thresholds{
		{Metric: MetricErrorRate, Op: "<", Value: 0.01},
		{Metric: MetricP99, Op: "<", Limit: time.Minute},
	}

	runner, err := NewRunner(cfg, []Target{target})
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Greater(t, result.Summary.Errors, int64(0))
	assert.Greater(t, result.Summary.StatusCodes[500], int64(0))
	assert.False(t, result.Passed)
	assert.True(t, result.HasThresholdFailures())
	require.Len(t, result.Thresholds, 2)
}

func TestRunner_WeightedTargets(t *testing.T) {
	heavy := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})
	heavy.Name = "heavy"
	heavy.Weight = 9
	light := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})
	light.Name = "light"

	s := NewScheduler(DefaultConfig(), []Target{heavy, light})
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		counts[s.Select().Name]++
	}
	assert.Greater(t, counts["heavy"], counts["light"]*4)
}

func TestRunner_CancelledContext(t *testing.T) {
	target := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})

	cfg := DefaultConfig()
	cfg.Duration = time.Minute

	runner, err := NewRunner(cfg, []Target{target})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = runner.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNewRunner_Invalid(t *testing.T) {
	_, err := NewRunner(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Duration = 0
	_, err = NewRunner(cfg, []Target{{Method: "GET"}})
	assert.Error(t, err)

	_, err = NewRunner(DefaultConfig(), []Target{{Method: "GET"}})
	assert.Error(t, err)
}

func TestScheduler_Ramp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 100
	cfg.VUs = 4
	cfg.RampUp = 4 * time.Second
	s := NewScheduler(cfg, nil)

	assert.Equal(t, float64(1), s.CurrentRate(0))
	assert.InDelta(t, 50, s.CurrentRate(2*time.Second), 0.001)
	assert.Equal(t, float64(100), s.CurrentRate(5*time.Second))

	assert.Equal(t, time.Duration(0), s.StartDelay(0))
	assert.Equal(t, 3*time.Second, s.StartDelay(3))
	assert.Nil(t, s.Select())
}

func TestReporter_Summary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("GET /ping", 200, 5*time.Millisecond, nil)
	m.Record("GET /ping", 503, 7*time.Millisecond, assert.AnError)
	m.Stop()

	result := &Result{
		Summary:    m.Summary(),
		Thresholds: []ThresholdResult{{Name: "p95", Passed: false, Expected: "< 1ms", Actual: "7ms"}},
		Passed:     false,
	}

	var buf bytes.Buffer
	r := NewReporter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	r.Summary(result)

	out := buf.String()
	assert.Contains(t, out, "BENCH SUMMARY")
	assert.Contains(t, out, "200×1")
	assert.Contains(t, out, "503×1")
	assert.Contains(t, out, "PER-TARGET BREAKDOWN")
	assert.Contains(t, out, "Some thresholds failed!")
	assert.NotContains(t, out, "\x1b[")
}

func TestReporter_JSON(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("GET /ping", 200, 5*time.Millisecond, nil)
	m.Stop()

	var buf bytes.Buffer
	r := NewReporter(WithWriter(&buf))
	require.NoError(t, r.JSON(&Result{Summary: m.Summary(), Passed: true}))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, float64(1), out["total"])
	assert.Equal(t, true, out["passed"])
	assert.Contains(t, out, "latencyMs")
	assert.Contains(t, out, "duration")

	targets, ok := out["targets"].([]any)
	require.True(t, ok)
	require.Len(t, targets, 1)
	assert.Equal(t, "GET /ping", targets[0].(map[string]any)["name"])
}
