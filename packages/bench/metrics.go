package bench

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds between 1us and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// Metrics aggregates latencies and outcomes of a run. It is safe for
// concurrent use.
type Metrics struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	targets   map[string]*targetMetrics
	statuses  map[int]int64

	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	timeouts  atomic.Int64
	activeVUs atomic.Int32

	startTime time.Time
	endTime   time.Time
}

type targetMetrics struct {
	total     int64
	errors    int64
	histogram *hdrhistogram.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		histogram: newHistogram(),
		targets:   make(map[string]*targetMetrics),
		statuses:  make(map[int]int64),
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

func (m *Metrics) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTime = time.Now()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endTime = time.Now()
}

// Record adds one finished request. status is 0 when no response arrived.
// A non-nil err counts the request as failed.
func (m *Metrics) Record(target string, status int, duration time.Duration, err error) {
	m.total.Add(1)
	if err != nil {
		m.errors.Add(1)
	} else {
		m.success.Add(1)
	}

	latency := clampLatency(duration)

	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.histogram.RecordValue(latency)
	if status > 0 {
		m.statuses[status]++
	}

	tm := m.target(target)
	tm.total++
	if err != nil {
		tm.errors++
	}
	_ = tm.histogram.RecordValue(latency)
}

// RecordTimeout counts a request cut off by the end of the run. No latency
// is recorded for it.
func (m *Metrics) RecordTimeout(target string) {
	m.total.Add(1)
	m.errors.Add(1)
	m.timeouts.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	tm := m.target(target)
	tm.total++
	tm.errors++
}

func (m *Metrics) target(name string) *targetMetrics {
	tm, ok := m.targets[name]
	if !ok {
		tm = &targetMetrics{histogram: newHistogram()}
		m.targets[name] = tm
	}
	return tm
}

func (m *Metrics) IncrementActiveVUs() {
	m.activeVUs.Add(1)
}

func (m *Metrics) DecrementActiveVUs() {
	m.activeVUs.Add(-1)
}

// Summary is the result of a run.
type Summary struct {
	Duration    time.Duration   `json:"-"`
	Total       int64           `json:"total"`
	Success     int64           `json:"success"`
	Errors      int64           `json:"errors"`
	Timeouts    int64           `json:"timeouts"`
	RPS         float64         `json:"rps"`
	SuccessRate float64         `json:"successRate"`
	ErrorRate   float64         `json:"errorRate"`
	P50         time.Duration   `json:"-"`
	P95         time.Duration   `json:"-"`
	P99         time.Duration   `json:"-"`
	Min         time.Duration   `json:"-"`
	Max         time.Duration   `json:"-"`
	Mean        time.Duration   `json:"-"`
	StdDev      time.Duration   `json:"-"`
	StatusCodes map[int]int64   `json:"statusCodes"`
	Targets     []TargetSummary `json:"targets,omitempty"`
}

// TargetSummary breaks the run down per target.
type TargetSummary struct {
	Name   string        `json:"name"`
	Total  int64         `json:"total"`
	Errors int64         `json:"errors"`
	P50    time.Duration `json:"-"`
	P95    time.Duration `json:"-"`
	P99    time.Duration `json:"-"`
	Mean   time.Duration `json:"-"`
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func (m *Metrics) Summary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	s := &Summary{
		Duration:    duration,
		Total:       m.total.Load(),
		Success:     m.success.Load(),
		Errors:      m.errors.Load(),
		Timeouts:    m.timeouts.Load(),
		P50:         quantile(m.histogram, 50),
		P95:         quantile(m.histogram, 95),
		P99:         quantile(m.histogram, 99),
		Min:         time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:         time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:        time.Duration(m.histogram.Mean()) * time.Microsecond,
		StdDev:      time.Duration(m.histogram.StdDev()) * time.Microsecond,
		StatusCodes: make(map[int]int64, len(m.statuses)),
	}

	if duration > 0 {
		s.RPS = float64(s.Total) / duration.Seconds()
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Success) / float64(s.Total)
		s.ErrorRate = float64(s.Errors) / float64(s.Total)
	}
	for code, n := range m.statuses {
		s.StatusCodes[code] = n
	}

	for name, tm := range m.targets {
		s.Targets = append(s.Targets, TargetSummary{
			Name:   name,
			Total:  tm.total,
			Errors: tm.errors,
			P50:    quantile(tm.histogram, 50),
			P95:    quantile(tm.histogram, 95),
			P99:    quantile(tm.histogram, 99),
			Mean:   time.Duration(tm.histogram.Mean()) * time.Microsecond,
		})
	}
	sort.Slice(s.Targets, func(i, j int) bool { return s.Targets[i].Name < s.Targets[j].Name })

	return s
}

// Stats is a live view used for progress display.
type Stats struct {
	Elapsed   time.Duration
	Total     int64
	Errors    int64
	RPS       float64
	P95       time.Duration
	ActiveVUs int32
}

func (m *Metrics) Stats() Stats {
	m.mu.Lock()
	elapsed := time.Since(m.startTime)
	p95 := quantile(m.histogram, 95)
	m.mu.Unlock()

	total := m.total.Load()
	st := Stats{
		Elapsed:   elapsed,
		Total:     total,
		Errors:    m.errors.Load(),
		P95:       p95,
		ActiveVUs: m.activeVUs.Load(),
	}
	if elapsed > 0 {
		st.RPS = float64(total) / elapsed.Seconds()
	}
	return st
}

// Evaluate checks the summary against every threshold, in order.
func (s *Summary) Evaluate(thresholds Thresholds) []ThresholdResult {
	var results []ThresholdResult

	for _, t := range thresholds {
		var r ThresholdResult
		switch t.Metric {
		case MetricErrorRate:
			r = ThresholdResult{
				Name:     "error rate",
				Passed:   compare(t.Op, s.ErrorRate, t.Value),
				Expected: t.Op + " " + formatPercent(t.Value),
				Actual:   formatPercent(s.ErrorRate),
			}
		case MetricRPS:
			r = ThresholdResult{
				Name:     "RPS",
				Passed:   compare(t.Op, s.RPS, t.Value),
				Expected: t.Op + " " + formatFloat(t.Value),
				Actual:   formatFloat(s.RPS),
			}
		default:
			actual, name := s.latency(t.Metric)
			r = ThresholdResult{
				Name:     name,
				Passed:   compare(t.Op, float64(actual), float64(t.Limit)),
				Expected: t.Op + " " + t.Limit.String(),
				Actual:   actual.String(),
			}
		}
		results = append(results, r)
	}

	return results
}

func (s *Summary) latency(m Metric) (time.Duration, string) {
	switch m {
	case MetricP50:
		return s.P50, "p50"
	case MetricP95:
		return s.P95, "p95"
	case MetricP99:
		return s.P99, "p99"
	default:
		return s.Max, "max latency"
	}
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
