package hammx

import (
	"context"
	"net/http"
)

// Handler sends a prepared request and returns the fully read response.
type Handler func(ctx context.Context, req *http.Request) (*Response, error)

// Middleware wraps a Handler with extra behavior.
type Middleware func(next Handler) Handler

// Chain composes middleware so that the first argument runs first.
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				next = mws[i](next)
			}
		}
		return next
	}
}
