package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryConfig controls the Retry middleware.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// RetryCodes are the statuses that trigger another attempt.
	RetryCodes []int
	// BackoffFactor is the wait before the first retry. It doubles on
	// every further retry.
	BackoffFactor time.Duration
	// MaxBackoff caps a single wait. Zero means 30s.
	MaxBackoff time.Duration
}

// DefaultRetryConfig retries 5xx gateway and availability errors three
// times, waiting 0.5s, 1s and 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		RetryCodes:    []int{500, 502, 503, 504},
		BackoffFactor: 500 * time.Millisecond,
	}
}

type retryableStatus struct {
	code int
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

// Retry sends the request again on a retryable status or a transport error.
// Once the retries are used up, the last response or error is returned.
// Waiting stops early when ctx is done.
func Retry(cfg RetryConfig) hammx.Middleware {
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	return func(next hammx.Handler) hammx.Handler {
		return func(ctx context.Context, req *http.Request) (*hammx.Response, error) {
			var (
				last    *hammx.Response
				attempt int
			)

			operation := func() error {
				r := req
				if attempt > 0 {
					var err error
					if r, err = rewind(req); err != nil {
						return backoff.Permanent(err)
					}
				}
				attempt++

				resp, err := next(ctx, r)
				if err != nil {
					if ctx.Err() != nil {
						return backoff.Permanent(err)
					}
					return err
				}
				last = resp
				if slices.Contains(cfg.RetryCodes, resp.StatusCode) {
					return &retryableStatus{code: resp.StatusCode}
				}
				return nil
			}

			notify := func(err error, wait time.Duration) {
				zerolog.Ctx(ctx).Debug().
					Err(err).
					Str("method", req.Method).
					Str("url", req.URL.String()).
					Dur("wait", wait).
					Msg("retrying request")
			}

			err := backoff.RetryNotify(operation, newBackOff(ctx, cfg), notify)

			var status *retryableStatus
			if errors.As(err, &status) {
				return last, nil
			}
			if err != nil {
				return nil, err
			}
			return last, nil
		}
	}
}

func newBackOff(ctx context.Context, cfg RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffFactor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = cfg.MaxBackoff
	b.MaxElapsedTime = 0

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}
