package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/fatih/color"
)

// Reporter prints run headers, live progress and summaries.
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool
	verbose    bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

type ReporterOption func(*Reporter)

func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the live progress lines.
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// WithVerbose adds the per-target breakdown to the summary.
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	r.green = r.color(color.FgGreen)
	r.red = r.color(color.FgRed)
	r.yellow = r.color(color.FgYellow)
	r.cyan = r.color(color.FgCyan)
	r.bold = r.color(color.Bold)
	return r
}

func (r *Reporter) color(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if r.noColor {
		c.DisableColor()
	}
	return c
}

func (r *Reporter) Header(config *Config, targets []Target) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintf(r.writer, "hammx bench %s\n", hammx.Version)
	fmt.Fprintln(r.writer)

	for _, t := range targets {
		r.cyan.Fprintf(r.writer, "Target: %s\n", t.Name)
	}

	var details []string
	if config.Mode == RateMode {
		details = append(details, fmt.Sprintf("Rate: %.0f req/s", config.Rate))
	} else {
		details = append(details, fmt.Sprintf("VUs: %d", config.VUs))
		if config.ThinkTime > 0 {
			details = append(details, fmt.Sprintf("Think: %s", config.ThinkTime))
		}
	}
	details = append(details, fmt.Sprintf("Duration: %s", config.Duration))
	details = append(details, fmt.Sprintf("Max VUs: %d", config.MaxVUs))

	fmt.Fprintln(r.writer, strings.Join(details, " | "))
	fmt.Fprintln(r.writer)
}

func (r *Reporter) Progress(stats Stats, duration time.Duration) {
	if r.noProgress {
		return
	}

	progress := min(float64(stats.Elapsed)/float64(duration), 1)
	const barWidth = 30
	filled := int(progress * barWidth)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	fmt.Fprintf(r.writer, "\r\033[K%s %s / %s | %s req | ",
		bar, formatDuration(stats.Elapsed), formatDuration(duration), formatNumber(stats.Total))
	if stats.Errors > 0 {
		r.red.Fprintf(r.writer, "%s err", formatNumber(stats.Errors))
	} else {
		fmt.Fprint(r.writer, "0 err")
	}
	fmt.Fprintf(r.writer, " | %.1f req/s | p95 %s", stats.RPS, formatLatency(stats.P95))
}

func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\r\033[K")
}

func (r *Reporter) Summary(result *Result) {
	s := result.Summary

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "BENCH SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(s.Duration))
	fmt.Fprint(r.writer, "Total:      ")
	r.bold.Fprint(r.writer, formatNumber(s.Total))
	fmt.Fprintf(r.writer, " requests (%.1f req/s)\n", s.RPS)

	fmt.Fprint(r.writer, "Success:    ")
	r.green.Fprint(r.writer, formatNumber(s.Success))
	fmt.Fprintf(r.writer, " (%.1f%%)\n", s.SuccessRate*100)

	fmt.Fprint(r.writer, "Failed:     ")
	if s.Errors > 0 {
		r.red.Fprint(r.writer, formatNumber(s.Errors))
	} else {
		fmt.Fprint(r.writer, formatNumber(s.Errors))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", s.ErrorRate*100)

	if s.Timeouts > 0 {
		fmt.Fprint(r.writer, "Timeouts:   ")
		r.yellow.Fprintln(r.writer, formatNumber(s.Timeouts))
	}

	if len(s.StatusCodes) > 0 {
		codes := make([]int, 0, len(s.StatusCodes))
		for code := range s.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			parts = append(parts, fmt.Sprintf("%d×%s", code, formatNumber(s.StatusCodes[code])))
		}
		fmt.Fprintf(r.writer, "Statuses:   %s\n", strings.Join(parts, "  "))
	}

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(s.P50), formatLatencyMs(s.P95), formatLatencyMs(s.P99), formatLatencyMs(s.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(s.Min), formatLatencyMs(s.Mean), formatLatencyMs(s.StdDev))

	if r.verbose && len(s.Targets) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "PER-TARGET BREAKDOWN")
		for _, t := range s.Targets {
			fmt.Fprintf(r.writer, "  %s:\n", t.Name)
			fmt.Fprintf(r.writer, "    Total: %s | Errors: %s\n", formatNumber(t.Total), formatNumber(t.Errors))
			fmt.Fprintf(r.writer, "    p50: %s | p95: %s | p99: %s\n",
				formatLatency(t.P50), formatLatency(t.P95), formatLatency(t.P99))
		}
	}

	if len(result.Thresholds) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		for _, tr := range result.Thresholds {
			if tr.Passed {
				r.green.Fprint(r.writer, "  ✓ ")
			} else {
				r.red.Fprint(r.writer, "  ✗ ")
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(r.writer)
		if result.Passed {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(r.writer)
}

type jsonLatency struct {
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev,omitempty"`
}

type jsonTarget struct {
	TargetSummary
	Latency jsonLatency `json:"latencyMs"`
}

type jsonResult struct {
	*Summary
	Duration   string            `json:"duration"`
	Latency    jsonLatency       `json:"latencyMs"`
	Targets    []jsonTarget      `json:"targets,omitempty"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
	Passed     bool              `json:"passed"`
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// JSON writes the result as an indented JSON document.
func (r *Reporter) JSON(result *Result) error {
	s := result.Summary
	out := jsonResult{
		Summary:  s,
		Duration: s.Duration.String(),
		Latency: jsonLatency{
			P50: ms(s.P50), P95: ms(s.P95), P99: ms(s.P99),
			Min: ms(s.Min), Max: ms(s.Max), Mean: ms(s.Mean), StdDev: ms(s.StdDev),
		},
		Thresholds: result.Thresholds,
		Passed:     result.Passed,
	}
	for _, t := range s.Targets {
		out.Targets = append(out.Targets, jsonTarget{
			TargetSummary: t,
			Latency:       jsonLatency{P50: ms(t.P50), P95: ms(t.P95), P99: ms(t.P99), Mean: ms(t.Mean)},
		})
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func (r *Reporter) Error(format string, args ...any) {
	r.red.Fprintf(r.writer, "Error: "+format+"\n", args...)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatLatencyMs(d time.Duration) string {
	v := ms(d)
	switch {
	case v < 1:
		return fmt.Sprintf("%.2f", v)
	case v < 10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// formatNumber adds thousands separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}

	start := len(s) % 3
	if start == 0 {
		start = 3
	}
	out := []byte(s[:start])
	for i := start; i < len(s); i += 3 {
		out = append(out, ',')
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
