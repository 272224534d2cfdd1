package middleware

import (
	"context"
	"net/http"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"golang.org/x/time/rate"
)

// RateLimit holds requests so that at most rps are sent per second, with
// bursts of up to burst requests. A burst below 1 is treated as 1.
func RateLimit(rps float64, burst int) hammx.Middleware {
	if burst < 1 {
		burst = 1
	}
	return Limiter(rate.NewLimiter(rate.Limit(rps), burst))
}

// Limiter waits on a shared limiter, so several clients can share a budget.
func Limiter(limiter *rate.Limiter) hammx.Middleware {
	return func(next hammx.Handler) hammx.Handler {
		return func(ctx context.Context, req *http.Request) (*hammx.Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}
