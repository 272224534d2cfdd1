package middleware

import (
	"context"
	"net/http"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
)

// DefaultHeaders adds headers the request does not already carry.
func DefaultHeaders(headers map[string]string) hammx.Middleware {
	return func(next hammx.Handler) hammx.Handler {
		return func(ctx context.Context, req *http.Request) (*hammx.Response, error) {
			for k, v := range headers {
				if req.Header.Get(k) == "" {
					req.Header.Set(k, v)
				}
			}
			return next(ctx, req)
		}
	}
}
