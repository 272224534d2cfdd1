package hammx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	Method string              `json:"method"`
	Path   string              `json:"path"`
	Query  map[string][]string `json:"query"`
	Header map[string][]string `json:"header"`
	Body   string              `json:"body"`
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header,
			Body:   string(body),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func decodeEcho(t *testing.T, resp *Response) echo {
	t.Helper()
	var e echo
	require.NoError(t, resp.JSON(&e))
	return e
}

func TestNew_InvalidURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"no scheme", "example.com/api"},
		{"ftp scheme", "ftp://example.com"},
		{"no host", "http://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL)
			assert.Error(t, err)
		})
	}
}

func TestNew_InvalidProxy(t *testing.T) {
	_, err := New("http://example.com", WithProxy("http://[::1"))
	assert.Error(t, err)
}

func TestClient_Methods(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	calls := map[string]func(context.Context, ...RequestOption) (*Response, error){
		http.MethodGet:     client.Get,
		http.MethodPost:    client.Post,
		http.MethodPut:     client.Put,
		http.MethodPatch:   client.Patch,
		http.MethodDelete:  client.Delete,
		http.MethodOptions: client.Options,
	}

	for method, call := range calls {
		t.Run(method, func(t *testing.T) {
			resp, err := call(ctx)
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
			assert.Equal(t, method, decodeEcho(t, resp).Method)
		})
	}

	t.Run("HEAD", func(t *testing.T) {
		resp, err := client.Head(ctx)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Empty(t, resp.Body)
	})

	t.Run("custom method", func(t *testing.T) {
		resp, err := client.Do(ctx, "purge")
		require.NoError(t, err)
		assert.Equal(t, "PURGE", decodeEcho(t, resp).Method)
	})
}

func TestResource_URL(t *testing.T) {
	client, err := New("http://example.com/api/")
	require.NoError(t, err)

	tests := []struct {
		name     string
		resource *Resource
		extra    []any
		expected string
	}{
		{"root", client.Resource, nil, "http://example.com/api"},
		{"single", client.Path("users"), nil, "http://example.com/api/users"},
		{"multi in one call", client.Path("users", 42, "posts"), nil, "http://example.com/api/users/42/posts"},
		{"chained", client.Path("users").Path(42).Path("posts"), nil, "http://example.com/api/users/42/posts"},
		{"slashes trimmed", client.Path("/users/", "/42"), nil, "http://example.com/api/users/42"},
		{"empty dropped", client.Path("", "users", "/"), nil, "http://example.com/api/users"},
		{"extra", client.Path("users"), []any{7}, "http://example.com/api/users/7"},
		{"nested in segment", client.Path("a/b"), nil, "http://example.com/api/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.resource.URL(tt.extra...))
		})
	}
}

func TestResource_Immutable(t *testing.T) {
	client, err := New("http://example.com")
	require.NoError(t, err)

	users := client.Path("users")
	first := users.Path(1)
	second := users.Path(2)

	assert.Equal(t, "http://example.com/users", users.String())
	assert.Equal(t, "http://example.com/users/1", first.String())
	assert.Equal(t, "http://example.com/users/2", second.String())
	assert.Same(t, users, first.Parent())
	assert.Same(t, client, first.Client())
	assert.Nil(t, client.Resource.Parent())
	assert.Equal(t, []string{"users", "2"}, second.Segments())
}

func TestClient_AppendSlash(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL, WithAppendSlash(true))
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/users/1/", client.Path("users", 1).URL())

	resp, err := client.Path("users", 1).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/users/1/", decodeEcho(t, resp).Path)
}

func TestClient_URLBuilder(t *testing.T) {
	server := newEchoServer(t)
	jsonSuffix := func(base string, segments []string, appendSlash bool) string {
		return DefaultURLBuilder(base, segments, appendSlash) + ".json"
	}
	client, err := New(server.URL, WithURLBuilder(jsonSuffix))
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/items/3.json", client.Path("items", 3).URL())

	resp, err := client.Path("items").Get(context.Background(), WithPath(3))
	require.NoError(t, err)
	assert.Equal(t, "/items/3.json", decodeEcho(t, resp).Path)
}

func TestClient_SessionHeaders(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL,
		WithHeader("X-Session", "one"),
		WithHeaders(map[string]string{"X-Other": "two", "X-Override": "session"}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		resp, err := client.Path("h").Get(ctx, WithRequestHeader("X-Override", "request"))
		require.NoError(t, err)

		e := decodeEcho(t, resp)
		assert.Equal(t, []string{"one"}, e.Header["X-Session"])
		assert.Equal(t, []string{"two"}, e.Header["X-Other"])
		assert.Equal(t, []string{"request"}, e.Header["X-Override"])
		assert.Equal(t, []string{DefaultUserAgent()}, e.Header["User-Agent"])
	}
}

func TestClient_UserAgent(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL, WithUserAgent("custom/1.0"))
	require.NoError(t, err)

	resp, err := client.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"custom/1.0"}, decodeEcho(t, resp).Header["User-Agent"])
}

func TestClient_Auth(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL, WithBasicAuth("user", "pass"))
	require.NoError(t, err)

	ctx := context.Background()

	resp, err := client.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Basic dXNlcjpwYXNz"}, decodeEcho(t, resp).Header["Authorization"])

	resp, err = client.Get(ctx, WithRequestAuth(nil), WithRequestBasicAuth("other", "secret"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Basic b3RoZXI6c2VjcmV0"}, decodeEcho(t, resp).Header["Authorization"])
}

func TestClient_Query(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL, WithQueryParam("api_key", "k"), WithQueryParam("page", "1"))
	require.NoError(t, err)

	resp, err := client.Path("search").Get(context.Background(),
		WithQuery("q", "go lang"),
		WithParams(url.Values{"page": {"3"}, "tag": {"a", "b"}}),
	)
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, []string{"k"}, e.Query["api_key"])
	assert.Equal(t, []string{"3"}, e.Query["page"])
	assert.Equal(t, []string{"go lang"}, e.Query["q"])
	assert.Equal(t, []string{"a", "b"}, e.Query["tag"])
}

func TestClient_JSONBody(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL)
	require.NoError(t, err)

	resp, err := client.Path("users").Post(context.Background(), WithJSON(map[string]any{"name": "ada"}))
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.JSONEq(t, `{"name":"ada"}`, e.Body)
	assert.Equal(t, []string{"application/json"}, e.Header["Content-Type"])
}

func TestClient_JSONBody_EncodeError(t *testing.T) {
	client, err := New("http://example.com")
	require.NoError(t, err)

	_, err = client.Post(context.Background(), WithJSON(make(chan int)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding JSON body")
}

func TestClient_FormBody(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL)
	require.NoError(t, err)

	resp, err := client.Post(context.Background(), WithForm(url.Values{"a": {"1"}}))
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, "a=1", e.Body)
	assert.Equal(t, []string{"application/x-www-form-urlencoded"}, e.Header["Content-Type"])
}

func TestClient_ContentTypeHeaderWins(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL)
	require.NoError(t, err)

	resp, err := client.Post(context.Background(),
		WithBody(strings.NewReader("<a/>"), "text/plain"),
		WithRequestHeader("Content-Type", "application/xml"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"application/xml"}, decodeEcho(t, resp).Header["Content-Type"])
}

func TestClient_Close(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL)
	require.NoError(t, err)

	_, err = client.Get(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.True(t, client.Closed())

	_, err = client.Path("users").Get(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(server.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Get(context.Background())
	assert.Error(t, err)
}

func TestClient_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), WithRequestTimeout(50*time.Millisecond))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Redirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	follow, err := New(server.URL)
	require.NoError(t, err)
	resp, err := follow.Path("old").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	noFollow, err := New(server.URL, WithFollowRedirects(false))
	require.NoError(t, err)
	resp, err = noFollow.Path("old").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.True(t, resp.IsRedirect())
	assert.Equal(t, "/new", resp.Header("Location"))
}

func TestClient_MiddlewareOrder(t *testing.T) {
	server := newEchoServer(t)

	var order []string
	trace := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, req *http.Request) (*Response, error) {
				order = append(order, name+">")
				resp, err := next(ctx, req)
				order = append(order, "<"+name)
				return resp, err
			}
		}
	}

	client, err := New(server.URL, WithMiddleware(trace("a"), trace("b")))
	require.NoError(t, err)
	client.Use(trace("c"))

	_, err = client.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a>", "b>", "c>", "<c", "<b", "<a"}, order)
}

func TestClient_MiddlewareShortCircuit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	boom := errors.New("blocked")
	client, err := New(server.URL, WithMiddleware(func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*Response, error) {
			return nil, boom
		}
	}))
	require.NoError(t, err)

	_, err = client.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, hits.Load())
}

func TestClient_LoggerInContext(t *testing.T) {
	server := newEchoServer(t)

	var buf strings.Builder
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	var seen bool
	client, err := New(server.URL,
		WithLogger(logger),
		WithMiddleware(func(next Handler) Handler {
			return func(ctx context.Context, req *http.Request) (*Response, error) {
				seen = zerolog.Ctx(ctx).GetLevel() == zerolog.DebugLevel
				return next(ctx, req)
			}
		}),
	)
	require.NoError(t, err)

	_, err = client.Path("ping").Get(context.Background())
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Contains(t, buf.String(), "sending request")
	assert.Contains(t, buf.String(), "/ping")
}

func TestClient_ConcurrentRequests(t *testing.T) {
	server := newEchoServer(t)
	client, err := New(server.URL)
	require.NoError(t, err)

	users := client.Path("users")
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(id int) {
			resp, err := users.Path(id).Get(context.Background())
			if err == nil && resp.StatusCode != 200 {
				err = resp.Err()
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://example.com", false},
		{"https with path", "https://example.com/api/v1", false},
		{"with port", "http://localhost:8080", false},
		{"file scheme", "file:///etc/passwd", true},
		{"javascript", "javascript:alert(1)", true},
		{"missing host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
