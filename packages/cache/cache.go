// Package cache stores successful GET responses so repeated reads of the
// same URL are served locally until they expire.
package cache

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/rs/zerolog"
)

// DefaultTTL is used when Middleware is given a non-positive TTL.
const DefaultTTL = 60 * time.Second

// HeaderCache is set to "HIT" on responses served from a store.
const HeaderCache = "X-Hammx-Cache"

// Store persists responses by key. Get reports false for missing and
// expired entries.
type Store interface {
	Get(ctx context.Context, key string) (*hammx.Response, bool, error)
	Set(ctx context.Context, key string, resp *hammx.Response, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key derives the cache key of a request from its method and full URL.
// Query parameters are already sorted by url.Values.Encode.
func Key(req *http.Request) string {
	sum := md5.Sum([]byte(req.Method + " " + req.URL.String()))
	return hex.EncodeToString(sum[:])
}

// Middleware serves GET requests from store. Only 200 responses are stored.
// Store failures are logged and the request goes to the network.
func Middleware(store Store, ttl time.Duration) hammx.Middleware {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return func(next hammx.Handler) hammx.Handler {
		return func(ctx context.Context, req *http.Request) (*hammx.Response, error) {
			if req.Method != http.MethodGet {
				return next(ctx, req)
			}

			logger := zerolog.Ctx(ctx)
			key := Key(req)

			cached, ok, err := store.Get(ctx, key)
			if err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
			} else if ok {
				logger.Debug().Str("url", req.URL.String()).Msg("cache hit")
				if cached.Headers == nil {
					cached.Headers = make(http.Header)
				}
				cached.Headers.Set(HeaderCache, "HIT")
				return cached, nil
			}

			logger.Debug().Str("url", req.URL.String()).Msg("cache miss")
			resp, err := next(ctx, req)
			if err != nil {
				return nil, err
			}

			if resp.StatusCode == http.StatusOK {
				if err := store.Set(ctx, key, resp, ttl); err != nil {
					logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
				}
			}
			return resp, nil
		}
	}
}

// Open returns a store by kind: "memory", "file" (path is a directory) or
// "sqlite" (path is a database file).
func Open(kind, path string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file", "disk":
		if path == "" {
			path = ".cache"
		}
		return NewFileStore(path)
	case "sqlite", "sqlite3":
		if path == "" {
			path = "hammx-cache.db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown cache type %q (use memory, file or sqlite)", kind)
	}
}

// ParseSpec parses "memory", "file:DIR" or "sqlite:PATH".
func ParseSpec(spec string) (Store, error) {
	kind, path, _ := strings.Cut(spec, ":")
	return Open(kind, path)
}

// entry is the serialized form used by the file and sqlite stores.
type entry struct {
	StatusCode int         `json:"statusCode"`
	Status     string      `json:"status"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	TTL        int64       `json:"ttlMs"`
}

func newEntry(resp *hammx.Response, ttl time.Duration) entry {
	return entry{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Headers.Clone(),
		Body:       bytes.Clone(resp.Body),
		Method:     resp.Method,
		URL:        resp.URL,
		TTL:        ttl.Milliseconds(),
	}
}

func (e entry) response() *hammx.Response {
	return &hammx.Response{
		StatusCode: e.StatusCode,
		Status:     e.Status,
		Headers:    e.Headers.Clone(),
		Body:       bytes.Clone(e.Body),
		Method:     e.Method,
		URL:        e.URL,
	}
}
