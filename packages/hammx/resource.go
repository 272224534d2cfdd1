package hammx

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// URLBuilder assembles a request URL from the session base URL and the
// resource path segments.
type URLBuilder func(base string, segments []string, appendSlash bool) string

// DefaultURLBuilder joins base and segments with "/" and optionally appends
// a trailing slash.
func DefaultURLBuilder(base string, segments []string, appendSlash bool) string {
	u := strings.TrimRight(base, "/")
	if len(segments) > 0 {
		u += "/" + strings.Join(segments, "/")
	}
	if appendSlash {
		u += "/"
	}
	return u
}

// Resource is an immutable node in a URL chain. Chaining never modifies the
// receiver, so a Resource can be shared and extended from many goroutines.
type Resource struct {
	client   *Client
	parent   *Resource
	segments []string
}

// Path returns a child resource. Values are formatted with fmt.Sprint, so
// ids can be passed directly: c.Path("users", 42).
func (r *Resource) Path(segments ...any) *Resource {
	return &Resource{
		client:   r.client,
		parent:   r,
		segments: formatSegments(segments),
	}
}

// Parent returns the resource this one was derived from, or nil for the root.
func (r *Resource) Parent() *Resource {
	return r.parent
}

// Client returns the session the resource belongs to.
func (r *Resource) Client() *Client {
	return r.client
}

// Segments returns the full path from the root, in order.
func (r *Resource) Segments() []string {
	var chain [][]string
	for n := r; n != nil; n = n.parent {
		if len(n.segments) > 0 {
			chain = append(chain, n.segments)
		}
	}

	var out []string
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i]...)
	}
	return out
}

// URL renders the resource URL, optionally extended by extra segments.
func (r *Resource) URL(extra ...any) string {
	return r.client.buildURL(append(r.Segments(), formatSegments(extra)...))
}

func (r *Resource) String() string {
	return r.URL()
}

func (r *Resource) Get(ctx context.Context, opts ...RequestOption) (*Response, error) {
	return r.Do(ctx, http.MethodGet, opts...)
}

func (r *Resource) Post(ctx context.Context, opts ...RequestOption) (*Response, error) {
	return r.Do(ctx, http.MethodPost, opts...)
}

func (r *Resource) Put(ctx context.Context, opts ...RequestOption) (*Response, error) {
	return r.Do(ctx, http.MethodPut, opts...)
}

func (r *Resource) Patch(ctx context.Context, opts ...RequestOption) (*Response, error) {
	return r.Do(ctx, http.MethodPatch, opts...)
}

func (r *Resource) Delete(ctx context.Context, opts ...RequestOption) (*Response, error) {
	return r.Do(ctx, http.MethodDelete, opts...)
}

func (r *Resource) Head(ctx context.Context, opts ...RequestOption) (*Response, error) {
	return r.Do(ctx, http.MethodHead, opts...)
}

func (r *Resource) Options(ctx context.Context, opts ...RequestOption) (*Response, error) {
	return r.Do(ctx, http.MethodOptions, opts...)
}

// Do sends a request with an arbitrary method to the resource.
func (r *Resource) Do(ctx context.Context, method string, opts ...RequestOption) (*Response, error) {
	return r.client.do(ctx, r, strings.ToUpper(method), opts)
}

func formatSegments(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := strings.Trim(fmt.Sprint(v), "/")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
