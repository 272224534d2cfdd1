package hammx

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/auth"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Version is reported in the default User-Agent.
var Version = "0.1.0"

// DefaultUserAgent is sent when the session does not set its own.
func DefaultUserAgent() string {
	return "hammx/" + Version
}

// Client is a REST session bound to a base URL. It embeds the root Resource,
// so paths and verbs can be used on the client directly. A Client is safe for
// concurrent use.
type Client struct {
	*Resource

	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	userAgent      string
	appendSlash    bool
	urlBuilder     URLBuilder
	headers        http.Header
	query          neturl.Values
	auth           auth.Authenticator
	logger         zerolog.Logger
	hasLogger      bool

	mu         sync.RWMutex
	middleware []Middleware
	closed     atomic.Bool
}

type Option func(*Client)

// New creates a session for baseURL, which must be an absolute http or https URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if err := ValidateURL(baseURL); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:        baseURL,
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		userAgent:      DefaultUserAgent(),
		urlBuilder:     DefaultURLBuilder,
		headers:        make(http.Header),
		query:          make(neturl.Values),
		logger:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		hc, err := c.newHTTPClient()
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	}

	c.Resource = &Resource{client: c}
	return c, nil
}

func (c *Client) newHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect || len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}, nil
}

// WithHTTPClient replaces the wrapped client. Timeout, redirect, proxy and
// TLS options are ignored when a client is supplied.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) Option {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) Option {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) Option {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithHeader sets a header sent with every request of the session.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithHeaders sets multiple session headers.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithQueryParam adds a query parameter to every request of the session.
// Request-level parameters with the same key take precedence.
func WithQueryParam(key, value string) Option {
	return func(c *Client) {
		c.query.Add(key, value)
	}
}

func WithAuth(a auth.Authenticator) Option {
	return func(c *Client) {
		c.auth = a
	}
}

func WithBasicAuth(username, password string) Option {
	return WithAuth(auth.Basic(username, password))
}

func WithBearerToken(token string) Option {
	return WithAuth(auth.Bearer(token))
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithAppendSlash adds a trailing slash to every request URL.
func WithAppendSlash(appendSlash bool) Option {
	return func(c *Client) {
		c.appendSlash = appendSlash
	}
}

// WithURLBuilder overrides how request URLs are assembled. Custom builders
// usually wrap DefaultURLBuilder.
func WithURLBuilder(b URLBuilder) Option {
	return func(c *Client) {
		if b != nil {
			c.urlBuilder = b
		}
	}
}

// WithMiddleware installs middleware. The first one given is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithLogger sets the logger attached to each request context. Without it,
// a logger already carried by the caller's context is used.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
		c.hasLogger = true
	}
}

// Use appends middleware to the session. It affects requests started after
// the call returns.
func (c *Client) Use(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw...)
}

// BaseURL returns the base URL the session was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections. Requests made afterwards fail with
// ErrClientClosed. Calling Close more than once is a no-op.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

func (c *Client) buildURL(segments []string) string {
	return c.urlBuilder(c.baseURL, segments, c.appendSlash)
}

func (c *Client) handler() Handler {
	c.mu.RLock()
	mws := make([]Middleware, len(c.middleware))
	copy(mws, c.middleware)
	c.mu.RUnlock()

	return Chain(mws...)(c.send)
}

func (c *Client) do(ctx context.Context, res *Resource, method string, opts []RequestOption) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	req := newRequest(method)
	for _, opt := range opts {
		opt(req)
	}
	if req.err != nil {
		return nil, req.err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	if c.hasLogger {
		ctx = c.logger.WithContext(ctx)
	}

	httpReq, err := c.buildHTTPRequest(ctx, res, req)
	if err != nil {
		return nil, err
	}

	return c.handler()(ctx, httpReq)
}

func (c *Client) buildHTTPRequest(ctx context.Context, res *Resource, req *Request) (*http.Request, error) {
	target := c.buildURL(append(res.Segments(), req.Segments...))

	u, err := neturl.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL %q: %w", target, err)
	}

	query := u.Query()
	for k, vs := range c.query {
		if _, ok := req.Query[k]; ok {
			continue
		}
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, vs := range req.Query {
		query[k] = append([]string(nil), vs...)
	}
	u.RawQuery = query.Encode()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	for k, vs := range c.headers {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if req.ContentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	a := req.Auth
	if a == nil {
		a = c.auth
	}
	if a != nil {
		if err := a.Apply(ctx, httpReq); err != nil {
			return nil, fmt.Errorf("applying credentials: %w", err)
		}
	}

	return httpReq, nil
}

// send is the innermost handler: it performs the request and reads the body.
func (c *Client) send(ctx context.Context, req *http.Request) (*Response, error) {
	zerolog.Ctx(ctx).Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("sending request")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   duration,
		Method:     req.Method,
		URL:        req.URL.String(),
	}, nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
