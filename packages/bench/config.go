// Package bench drives load against a single hammx resource, either at a
// fixed request rate or with a set of looping virtual users, and reports
// latency percentiles from an HDR histogram.
package bench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Mode selects how requests are scheduled.
type Mode int

const (
	// RateMode sends requests at a constant rate (requests per second)
	RateMode Mode = iota
	// VUMode runs virtual users that loop over the targets with think time
	// between requests
	VUMode
)

func (m Mode) String() string {
	if m == VUMode {
		return "vu"
	}
	return "rate"
}

// ParseMode accepts "rate" or "vu".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rate":
		return RateMode, nil
	case "vu", "vus":
		return VUMode, nil
	default:
		return RateMode, fmt.Errorf("unknown bench mode %q (use rate or vu)", s)
	}
}

type Config struct {
	Mode      Mode
	Duration  time.Duration
	Rate      float64       // requests per second (RateMode)
	VUs       int           // virtual users (VUMode)
	MaxVUs    int           // max in-flight requests
	ThinkTime time.Duration // pause between requests of one VU
	// RampUp grows the rate, or starts the VUs, linearly over this period.
	RampUp     time.Duration
	Thresholds Thresholds
}

// Metric names a summary value a threshold can check.
type Metric string

const (
	MetricP50       Metric = "p50"
	MetricP95       Metric = "p95"
	MetricP99       Metric = "p99"
	MetricMax       Metric = "max"
	MetricErrorRate Metric = "errors"
	MetricRPS       Metric = "rps"
)

// Threshold is one pass/fail criterion, e.g. p95 < 200ms.
type Threshold struct {
	Metric Metric
	Op     string        // <, <=, > or >=
	Limit  time.Duration // latency metrics
	Value  float64       // error rate (0.0 - 1.0) or requests per second
}

// Thresholds are the pass/fail criteria of a run, in the order given.
type Thresholds []Threshold

func DefaultConfig() *Config {
	return &Config{
		Mode:     RateMode,
		Duration: 10 * time.Second,
		Rate:     10,
		VUs:      1,
		MaxVUs:   100,
	}
}

func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if c.Mode == RateMode && c.Rate <= 0 {
		return fmt.Errorf("rate must be positive in rate mode")
	}
	if c.Mode == VUMode && c.VUs <= 0 {
		return fmt.Errorf("VUs must be positive in VU mode")
	}
	if c.MaxVUs < 1 {
		return fmt.Errorf("maxVUs must be at least 1")
	}
	if c.ThinkTime < 0 {
		return fmt.Errorf("think time cannot be negative")
	}
	if c.RampUp < 0 || c.RampUp > c.Duration {
		return fmt.Errorf("rampUp must be between 0 and the duration")
	}
	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a list such as "p95<200ms,errors<1%,rps>10".
func ParseThresholds(s string) (Thresholds, error) {
	var out Thresholds

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := parseThreshold(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseThreshold(part string) (Threshold, error) {
	m := thresholdPattern.FindStringSubmatch(part)
	if len(m) != 4 {
		return Threshold{}, fmt.Errorf("invalid threshold format: %s", part)
	}
	name, op, value := strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3])
	upper := op == "<" || op == "<="

	t := Threshold{Op: op}
	switch name {
	case "p50":
		t.Metric = MetricP50
	case "p95":
		t.Metric = MetricP95
	case "p99":
		t.Metric = MetricP99
	case "max", "maxlatency":
		t.Metric = MetricMax

	case "errors", "error", "errorrate":
		if !upper {
			return t, fmt.Errorf("error rate threshold must use < or <=")
		}
		percent := strings.HasSuffix(value, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil || f < 0 {
			return t, fmt.Errorf("invalid error rate: %s", value)
		}
		if percent {
			f /= 100
		}
		t.Metric, t.Value = MetricErrorRate, f
		return t, nil

	case "rps", "rate":
		if upper {
			return t, fmt.Errorf("RPS threshold must use > or >=")
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return t, fmt.Errorf("invalid RPS: %s", value)
		}
		t.Metric, t.Value = MetricRPS, f
		return t, nil

	default:
		return t, fmt.Errorf("unknown threshold metric: %s", name)
	}

	if !upper {
		return t, fmt.Errorf("%s threshold must use < or <=", name)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return t, fmt.Errorf("invalid duration for %s: %s", name, value)
	}
	t.Limit = d
	return t, nil
}

func (t Thresholds) HasThresholds() bool {
	return len(t) > 0
}

// compare applies op to actual and limit.
func compare(op string, actual, limit float64) bool {
	switch op {
	case "<":
		return actual < limit
	case "<=":
		return actual <= limit
	case ">":
		return actual > limit
	case ">=":
		return actual >= limit
	}
	return false
}

// ThresholdResult is the outcome of one threshold check.
type ThresholdResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}
