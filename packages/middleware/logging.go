package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/rs/zerolog"
)

// Logging logs every request and its outcome. Failed requests and 5xx
// responses are logged at warn level.
func Logging(logger zerolog.Logger) hammx.Middleware {
	return func(next hammx.Handler) hammx.Handler {
		return func(ctx context.Context, req *http.Request) (*hammx.Response, error) {
			logger.Info().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Msg("request")

			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			if err != nil {
				logger.Warn().
					Err(err).
					Str("method", req.Method).
					Str("url", req.URL.String()).
					Dur("duration", elapsed).
					Msg("request failed")
				return nil, err
			}

			event := logger.Info()
			if resp.IsServerError() {
				event = logger.Warn()
			}
			event.
				Int("status", resp.StatusCode).
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Dur("duration", elapsed).
				Msg("response")
			return resp, nil
		}
	}
}
