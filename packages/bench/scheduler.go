package bench

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"golang.org/x/time/rate"
)

// Target is one request the runner sends repeatedly.
type Target struct {
	// Name labels the target in the breakdown. Defaults to "METHOD URL".
	Name     string
	Method   string
	Resource *hammx.Resource
	Options  []hammx.RequestOption
	// Weight is the relative share of requests. Values below 1 count as 1.
	Weight int
}

func (t Target) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Method + " " + t.Resource.URL()
}

// Scheduler paces requests, bounds concurrency and picks targets.
type Scheduler struct {
	config      *Config
	limiter     *rate.Limiter
	sem         chan struct{}
	targets     []Target
	cumulative  []int
	totalWeight int
}

func NewScheduler(config *Config, targets []Target) *Scheduler {
	s := &Scheduler{config: config}

	if config.Mode == RateMode && config.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
		if config.RampUp > 0 {
			s.limiter.SetLimit(rate.Limit(s.CurrentRate(0)))
		}
	}

	maxVUs := config.MaxVUs
	if maxVUs < 1 {
		maxVUs = 100
	}
	s.sem = make(chan struct{}, maxVUs)

	for _, t := range targets {
		if t.Name == "" {
			t.Name = t.label()
		}
		w := max(t.Weight, 1)
		s.totalWeight += w
		s.targets = append(s.targets, t)
		s.cumulative = append(s.cumulative, s.totalWeight)
	}

	return s
}

// Select picks a target at random, proportionally to the weights.
func (s *Scheduler) Select() *Target {
	switch len(s.targets) {
	case 0:
		return nil
	case 1:
		return &s.targets[0]
	}

	n := rand.IntN(s.totalWeight)
	for i, c := range s.cumulative {
		if n < c {
			return &s.targets[i]
		}
	}
	return &s.targets[len(s.targets)-1]
}

// Wait blocks on the rate limiter in rate mode and returns at once otherwise.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Release() {
	<-s.sem
}

// CurrentRate is the target rate after elapsed, growing linearly during
// ramp-up. It never drops below one request per second.
func (s *Scheduler) CurrentRate(elapsed time.Duration) float64 {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.Rate
	}
	r := s.config.Rate * float64(elapsed) / float64(s.config.RampUp)
	return max(r, 1)
}

func (s *Scheduler) UpdateRate(r float64) {
	if s.limiter != nil && r > 0 {
		s.limiter.SetLimit(rate.Limit(r))
	}
}

// StartDelay is when the VU with the given index starts during ramp-up.
func (s *Scheduler) StartDelay(vu int) time.Duration {
	if s.config.RampUp <= 0 || s.config.VUs <= 1 {
		return 0
	}
	return time.Duration(int64(s.config.RampUp) * int64(vu) / int64(s.config.VUs))
}
