package hammx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/auth"
)

// Request collects the per-call settings of a verb call.
type Request struct {
	Method      string
	Segments    []string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
	Auth        auth.Authenticator
	Timeout     time.Duration

	err error
}

// RequestOption customizes a single request.
type RequestOption func(*Request)

func newRequest(method string) *Request {
	return &Request{
		Method: method,
		Query:  make(url.Values),
		Header: make(http.Header),
	}
}

// WithPath appends path segments for this call only.
func WithPath(segments ...any) RequestOption {
	return func(r *Request) {
		r.Segments = append(r.Segments, formatSegments(segments)...)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *Request) {
		r.Query.Add(key, value)
	}
}

// WithParams adds every value in params to the query string.
func WithParams(params url.Values) RequestOption {
	return func(r *Request) {
		for k, vs := range params {
			for _, v := range vs {
				r.Query.Add(k, v)
			}
		}
	}
}

func WithRequestHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.Header.Set(key, value)
	}
}

func WithRequestHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		for k, v := range headers {
			r.Header.Set(k, v)
		}
	}
}

// WithJSON encodes v as the request body and sets Content-Type to
// application/json unless a header overrides it.
func WithJSON(v any) RequestOption {
	return func(r *Request) {
		b, err := json.Marshal(v)
		if err != nil {
			r.err = fmt.Errorf("encoding JSON body: %w", err)
			return
		}
		r.Body = b
		r.ContentType = "application/json"
	}
}

// WithBody reads body fully so the request can be replayed by retries.
func WithBody(body io.Reader, contentType string) RequestOption {
	return func(r *Request) {
		if body == nil {
			return
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, body); err != nil {
			r.err = fmt.Errorf("reading request body: %w", err)
			return
		}
		r.Body = buf.Bytes()
		r.ContentType = contentType
	}
}

// WithForm sends values as an urlencoded form.
func WithForm(values url.Values) RequestOption {
	encoded := values.Encode()
	return func(r *Request) {
		WithBody(strings.NewReader(encoded), "application/x-www-form-urlencoded")(r)
	}
}

// WithRequestAuth overrides the session credentials for this call.
func WithRequestAuth(a auth.Authenticator) RequestOption {
	return func(r *Request) {
		r.Auth = a
	}
}

func WithRequestBasicAuth(username, password string) RequestOption {
	return WithRequestAuth(auth.Basic(username, password))
}

// WithRequestTimeout bounds this call, on top of the session timeout.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = d
	}
}
