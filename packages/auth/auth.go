package auth

import (
	"context"
	"net/http"
	"strings"
)

// Authenticator decorates an outgoing request with credentials.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
}

// Func adapts a plain function to an Authenticator.
type Func func(ctx context.Context, req *http.Request) error

func (f Func) Apply(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

type basicAuth struct {
	username string
	password string
}

// Basic returns an Authenticator that sends HTTP basic credentials.
func Basic(username, password string) Authenticator {
	return &basicAuth{username: username, password: password}
}

func (b *basicAuth) Apply(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(b.username, b.password)
	return nil
}

type bearerAuth struct {
	token string
}

// Bearer returns an Authenticator that sends "Authorization: Bearer <token>".
func Bearer(token string) Authenticator {
	return &bearerAuth{token: token}
}

func (b *bearerAuth) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.token)
	return nil
}

type apiKeyHeader struct {
	name  string
	value string
}

// APIKeyHeader sends an API key in the named header.
func APIKeyHeader(name, value string) Authenticator {
	return &apiKeyHeader{name: name, value: value}
}

func (a *apiKeyHeader) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set(a.name, a.value)
	return nil
}

type apiKeyQuery struct {
	name  string
	value string
}

// APIKeyQuery sends an API key as a query parameter.
func APIKeyQuery(name, value string) Authenticator {
	return &apiKeyQuery{name: name, value: value}
}

func (a *apiKeyQuery) Apply(_ context.Context, req *http.Request) error {
	q := req.URL.Query()
	q.Set(a.name, a.value)
	req.URL.RawQuery = q.Encode()
	return nil
}

// Chain applies several authenticators in order.
func Chain(auths ...Authenticator) Authenticator {
	return Func(func(ctx context.Context, req *http.Request) error {
		for _, a := range auths {
			if a == nil {
				continue
			}
			if err := a.Apply(ctx, req); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParseCredential turns a command line credential into an Authenticator.
// "user:pass" yields basic auth, anything else is treated as a bearer token.
func ParseCredential(s string) Authenticator {
	if s == "" {
		return nil
	}
	if user, pass, ok := strings.Cut(s, ":"); ok {
		return Basic(user, pass)
	}
	return Bearer(s)
}
