package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/abdul-hamid-achik/hammx/packages/auth"
	"github.com/abdul-hamid-achik/hammx/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/hammx/packages/core/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuth(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    any
		wantErr bool
	}{
		{"empty", "  ", nil, false},
		{"basic", "user:pass", auth.Basic("u", "p"), false},
		{"bearer", "tok123", auth.Bearer("t"), false},
		{"oauth2 client credentials", "oauth2 client_credentials https://id.example.com/token app secret read,write", &oauth2.Provider{}, false},
		{"oauth2 password", "OAUTH2 password https://id.example.com/token app secret ada pw", &oauth2.Provider{}, false},
		{"aws", "aws AKID SECRET us-east-1 execute-api", &auth.AWSSigV4{}, false},
		{"oauth2 missing fields", "oauth2 client_credentials https://id.example.com/token", nil, true},
		{"oauth2 unknown grant", "oauth2 implicit https://id.example.com/token app secret", nil, true},
		{"aws missing service", "aws AKID SECRET us-east-1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAuth(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestAuthKind(t *testing.T) {
	assert.Equal(t, "basic", authKind("user:pass"))
	assert.Equal(t, "bearer", authKind("tok123"))
	assert.Equal(t, "oauth2", authKind("OAuth2 client_credentials u id s"))
	assert.Equal(t, "aws", authKind("aws k s r svc"))
	assert.Equal(t, "", authKind(""))
}

func TestNewClient_OAuth2FromConfig(t *testing.T) {
	var tokenCalls atomic.Int32
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		id, secret, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "app", id)
		assert.Equal(t, "s3cret", secret)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokens.Close()
	server := newEchoServer(t)

	cfg := config.DefaultConfig().Merge(&config.Config{
		Auth: "oauth2 client_credentials " + tokens.URL + " app s3cret",
	})
	client := testClient(t, server.URL, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := client.Get(ctx)
		require.NoError(t, err)
		var got echo
		require.NoError(t, resp.JSON(&got))
		assert.Equal(t, "Bearer tok-1", got.Header["Authorization"])
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestNewClient_AWSFromConfig(t *testing.T) {
	server := newEchoServer(t)

	cfg := config.DefaultConfig().Merge(&config.Config{
		Auth: "aws AKIDEXAMPLE wJalrXUtnFEMI us-east-1 execute-api",
	})
	client := testClient(t, server.URL, cfg)

	resp, err := client.Path("items").Get(context.Background())
	require.NoError(t, err)
	var got echo
	require.NoError(t, resp.JSON(&got))

	authz := got.Header["Authorization"]
	assert.True(t, strings.HasPrefix(authz, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/"), authz)
	assert.Contains(t, authz, "/us-east-1/execute-api/aws4_request")
	assert.NotEmpty(t, got.Header["X-Amz-Date"])
}

func TestNewClient_InvalidAuth(t *testing.T) {
	cfg := config.DefaultConfig().Merge(&config.Config{Auth: "oauth2 client_credentials"})
	_, _, err := newClient("http://example.com", cfg, zerolog.Nop())
	assert.Equal(t, ExitConfigError, exitCode(err))
}
