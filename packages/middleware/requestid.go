package middleware

import (
	"context"
	"net/http"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/google/uuid"
)

// RequestIDHeader is used when RequestID is given an empty header name.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with a random UUID unless one is set.
func RequestID(header string) hammx.Middleware {
	if header == "" {
		header = RequestIDHeader
	}
	return func(next hammx.Handler) hammx.Handler {
		return func(ctx context.Context, req *http.Request) (*hammx.Response, error) {
			if req.Header.Get(header) == "" {
				req.Header.Set(header, uuid.NewString())
			}
			return next(ctx, req)
		}
	}
}
