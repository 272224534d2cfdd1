// Package oauth2 fetches and caches OAuth2 access tokens for hammx sessions.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
	RefreshToken      GrantType = "refresh_token"
)

// expiryLeeway accounts for clock skew between us and the token server.
const expiryLeeway = 30 * time.Second

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string
	Password     string
	GrantType    GrantType
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired checks if the token is expired
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(expiryLeeway).After(t.ExpiresAt)
}

// Provider acquires tokens and applies them as bearer credentials.
type Provider struct {
	config     *Config
	httpClient *http.Client
	cache      *TokenCache
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithTokenCache shares a token cache between providers.
func WithTokenCache(c *TokenCache) ProviderOption {
	return func(p *Provider) {
		p.cache = c
	}
}

// NewProvider creates a new OAuth2 provider
func NewProvider(config *Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewTokenCache()
	}
	return p
}

// Apply implements auth.Authenticator.
func (p *Provider) Apply(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get OAuth2 token: %w", err)
	}
	tokenType := token.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+token.AccessToken)
	return nil
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or expired. An expired token with a refresh token is
// refreshed instead of re-running the original grant.
func (p *Provider) Token(ctx context.Context) (*Token, error) {
	key := p.cacheKey()
	cached := p.cache.Get(key)
	if cached != nil && !cached.IsExpired() {
		return cached, nil
	}

	var (
		token *Token
		err   error
	)
	if cached != nil && cached.RefreshToken != "" {
		token, err = p.Refresh(ctx, cached.RefreshToken)
	}
	if token == nil {
		token, err = p.fetchToken(ctx)
	}
	if err != nil {
		return nil, err
	}

	p.cache.Set(key, token)
	return token, nil
}

// Refresh exchanges a refresh token for a new access token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", string(RefreshToken))
	data.Set("refresh_token", refreshToken)
	return p.doTokenRequest(ctx, data)
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s", p.config.TokenURL, p.config.ClientID, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	switch p.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}
	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("no access_token in response: %s", string(body))
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}

// ParseSpec parses a compact OAuth2 description as used in config files:
//
//	client_credentials tokenUrl clientId clientSecret [scope1,scope2]
//	password tokenUrl clientId clientSecret username password [scope1,scope2]
func ParseSpec(params []string) (*Config, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("oauth2 auth requires at least: grant_type tokenUrl clientId clientSecret")
	}

	config := &Config{
		GrantType:    GrantType(params[0]),
		TokenURL:     params[1],
		ClientID:     params[2],
		ClientSecret: params[3],
	}

	switch config.GrantType {
	case ClientCredentials:
		if len(params) > 4 {
			config.Scopes = strings.Split(params[4], ",")
		}
	case Password:
		if len(params) < 6 {
			return nil, fmt.Errorf("oauth2 password grant requires: tokenUrl clientId clientSecret username password [scopes]")
		}
		config.Username = params[4]
		config.Password = params[5]
		if len(params) > 6 {
			config.Scopes = strings.Split(params[6], ",")
		}
	default:
		return nil, fmt.Errorf("unsupported OAuth2 grant type: %s", config.GrantType)
	}

	return config, nil
}
