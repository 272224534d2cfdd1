package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Runner executes a load test.
type Runner struct {
	config    *Config
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
}

type RunnerOption func(*Runner)

func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

func NewRunner(config *Config, targets []Target, opts ...RunnerOption) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(targets) == 0 {
		return nil, errors.New("no targets to run")
	}
	for _, t := range targets {
		if t.Resource == nil {
			return nil, fmt.Errorf("target %q has no resource", t.Name)
		}
	}

	r := &Runner{
		config:    config,
		scheduler: NewScheduler(config, targets),
		metrics:   NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = NewReporter(WithNoProgress(true))
	}
	return r, nil
}

// Result holds the outcome of a run.
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// HasThresholdFailures reports whether any threshold failed.
func (r *Result) HasThresholdFailures() bool {
	return !r.Passed
}

// Run sends requests for the configured duration or until ctx is done.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.reporter.Header(r.config, r.scheduler.targets)

	ctx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	r.metrics.Start()

	progressDone := make(chan struct{})
	progressStopped := make(chan struct{})
	go r.progressLoop(progressDone, progressStopped)

	if r.config.Mode == VUMode {
		r.runVUMode(ctx)
	} else {
		r.runRateMode(ctx)
	}

	r.metrics.Stop()
	close(progressDone)
	<-progressStopped
	r.reporter.ClearProgress()

	summary := r.metrics.Summary()
	result := &Result{Summary: summary, Passed: true}
	if r.config.Thresholds.HasThresholds() {
		result.Thresholds = summary.Evaluate(r.config.Thresholds)
		for _, tr := range result.Thresholds {
			if !tr.Passed {
				result.Passed = false
			}
		}
	}

	return result, nil
}

func (r *Runner) runRateMode(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	start := time.Now()
	var ramp <-chan time.Time
	if r.config.RampUp > 0 {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		ramp = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ramp:
			r.scheduler.UpdateRate(r.scheduler.CurrentRate(time.Since(start)))
		default:
		}

		if err := r.scheduler.Wait(ctx); err != nil {
			return
		}
		if err := r.scheduler.Acquire(ctx); err != nil {
			return
		}

		target := r.scheduler.Select()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.scheduler.Release()
			r.execute(ctx, target)
		}()
	}
}

func (r *Runner) runVUMode(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.config.VUs; i++ {
		wg.Add(1)
		go func(delay time.Duration) {
			defer wg.Done()
			if !sleep(ctx, delay) {
				return
			}
			r.metrics.IncrementActiveVUs()
			defer r.metrics.DecrementActiveVUs()
			r.vu(ctx)
		}(r.scheduler.StartDelay(i))
	}
	wg.Wait()
}

func (r *Runner) vu(ctx context.Context) {
	for ctx.Err() == nil {
		if err := r.scheduler.Acquire(ctx); err != nil {
			return
		}
		r.execute(ctx, r.scheduler.Select())
		r.scheduler.Release()

		if !sleep(ctx, r.config.ThinkTime) {
			return
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) execute(ctx context.Context, t *Target) {
	start := time.Now()
	resp, err := t.Resource.Do(ctx, t.Method, t.Options...)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			r.metrics.RecordTimeout(t.Name)
			return
		}
		r.metrics.Record(t.Name, 0, duration, err)
		return
	}

	r.metrics.Record(t.Name, resp.StatusCode, duration, resp.Err())
}

func (r *Runner) progressLoop(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.Stats(), r.config.Duration)
		}
	}
}

// Metrics exposes the live metrics of the runner.
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}
