package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abdul-hamid-achik/hammx/packages/auth"
	"github.com/abdul-hamid-achik/hammx/packages/hammx"
)

// DigestAuth answers a Digest challenge. When a request comes back 401 with
// a Digest WWW-Authenticate header, it is sent once more with the computed
// Authorization header.
func DigestAuth(username, password string) hammx.Middleware {
	return func(next hammx.Handler) hammx.Handler {
		return func(ctx context.Context, req *http.Request) (*hammx.Response, error) {
			retry, err := rewind(req)
			if err != nil {
				return nil, err
			}

			resp, err := next(ctx, req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}

			challenge := resp.Header("WWW-Authenticate")
			if !auth.IsDigestChallenge(challenge) {
				return resp, nil
			}

			d, err := auth.NewDigestAuth(username, password, req.Method, req.URL.RequestURI(), auth.ParseWWWAuthenticate(challenge))
			if err != nil {
				return nil, fmt.Errorf("building digest credentials: %w", err)
			}

			retry.Header.Set("Authorization", d.BuildAuthorizationHeader())
			return next(ctx, retry)
		}
	}
}
