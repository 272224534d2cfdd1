package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/core/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(base string) (*Session, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.NoColor = config.BoolPtr(true)
	return NewSession(cfg, base, &out, zerolog.Nop()), &out
}

// lastEcho decodes the JSON object printed by the last request.
func lastEcho(t *testing.T, out string) echo {
	t.Helper()
	start := strings.LastIndex(out, "\n{")
	require.GreaterOrEqual(t, start, 0, out)
	end := strings.LastIndex(out, "}")

	var got echo
	require.NoError(t, json.Unmarshal([]byte(out[start+1:end+1]), &got))
	return got
}

func TestSession_BuildAndSend(t *testing.T) {
	server := newEchoServer(t)
	s, out := newTestSession("")
	defer s.Close()
	ctx := context.Background()

	assert.Equal(t, "hammx [No URL set]> ", s.Prompt())

	for _, line := range []string{
		"base " + server.URL + "/",
		"path users/42",
		"path posts",
		"params page=2",
		"headers X-Test = yes",
		"auth user:pass",
	} {
		assert.True(t, s.Exec(ctx, line), line)
	}

	assert.Equal(t, server.URL+"/users/42/posts", s.URL())
	assert.Equal(t, "hammx ["+server.URL+"/users/42/posts]> ", s.Prompt())

	out.Reset()
	assert.True(t, s.Exec(ctx, "GET"))
	assert.Contains(t, out.String(), "200 OK")

	got := lastEcho(t, out.String())
	assert.Equal(t, "GET", got.Method)
	assert.Equal(t, "/users/42/posts", got.Path)
	assert.Equal(t, "page=2", got.Query)
	assert.Equal(t, "yes", got.Header["X-Test"])
	assert.Equal(t, "Basic dXNlcjpwYXNz", got.Header["Authorization"])

	out.Reset()
	s.Exec(ctx, `post {"title":"hi"}`)
	got = lastEcho(t, out.String())
	assert.Equal(t, "POST", got.Method)
	assert.JSONEq(t, `{"title":"hi"}`, got.Body)
}

func TestSession_InvalidInput(t *testing.T) {
	server := newEchoServer(t)
	s, out := newTestSession("")
	defer s.Close()
	ctx := context.Background()

	tests := []struct {
		line     string
		expected string
	}{
		{"path users", "Set a base URL first with 'base URL'"},
		{"get", "Set a base URL first with 'base URL'"},
		{"base not-a-url", "Error:"},
		{"base " + server.URL, ""},
		{"params nope", "Invalid format. Use: params key=value"},
		{"headers nope", "Invalid format. Use: headers key=value"},
		{"post {broken", "Invalid JSON data"},
		{"frobnicate", "Unknown command: frobnicate"},
	}

	for _, tt := range tests {
		out.Reset()
		assert.True(t, s.Exec(ctx, tt.line))
		if tt.expected != "" {
			assert.Contains(t, out.String(), tt.expected, tt.line)
		}
	}
}

func TestSession_ShowAndReset(t *testing.T) {
	s, out := newTestSession("http://example.com/api")
	defer s.Close()
	ctx := context.Background()

	s.Exec(ctx, "path users")
	s.Exec(ctx, "params a=1")
	s.Exec(ctx, "headers Accept=text/plain")
	s.Exec(ctx, "auth secret-token")

	out.Reset()
	s.Exec(ctx, "show")
	assert.Equal(t, "URL: http://example.com/api/users\nParam: a=1\nHeader: Accept: text/plain\nAuth: bearer\n", out.String())

	out.Reset()
	s.Exec(ctx, "reset")
	assert.Equal(t, "Request reset\n", out.String())

	out.Reset()
	s.Exec(ctx, "show")
	assert.Equal(t, "URL: http://example.com/api\n", out.String())
}

func TestSession_ExitAndHelp(t *testing.T) {
	s, out := newTestSession("")
	ctx := context.Background()

	assert.True(t, s.Exec(ctx, ""))
	assert.True(t, s.Exec(ctx, "help"))
	assert.Contains(t, out.String(), "Commands:")
	assert.False(t, s.Exec(ctx, "exit"))
	assert.False(t, s.Exec(ctx, "QUIT"))
}

func TestSession_ConfigBaseAndReload(t *testing.T) {
	server := newEchoServer(t)

	cfg := config.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.NoColor = config.BoolPtr(true)

	var out bytes.Buffer
	s := NewSession(cfg, "", &out, zerolog.Nop())
	defer s.Close()
	ctx := context.Background()

	assert.Equal(t, server.URL, s.URL())

	s.Exec(ctx, "get")
	assert.Empty(t, lastEcho(t, out.String()).Header["X-Reloaded"])

	reloaded := cfg.Merge(&config.Config{Headers: map[string]string{"X-Reloaded": "1"}})
	s.SetConfig(reloaded)

	out.Reset()
	s.Exec(ctx, "get")
	assert.Equal(t, "1", lastEcho(t, out.String()).Header["X-Reloaded"])
}

func TestSession_ReloadWaitsForRequestInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig().Merge(&config.Config{
		NoColor: config.BoolPtr(true),
		Cache:   &config.CacheConfig{Type: "memory", TTL: 60},
	})
	var out bytes.Buffer
	s := NewSession(cfg, server.URL, &out, zerolog.Nop())
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Exec(context.Background(), "get")
	}()
	<-entered

	s.mu.Lock()
	old := s.client
	s.mu.Unlock()
	require.NotNil(t, old)

	s.SetConfig(cfg)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, old.Closed(), "client closed while a request was in flight")

	close(release)
	<-done
	assert.Contains(t, out.String(), "200 OK")
	assert.NotContains(t, out.String(), "Error:")
	assert.Eventually(t, old.Closed, time.Second, 5*time.Millisecond)
}
