package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/cache"
	"github.com/abdul-hamid-achik/hammx/packages/core/config"
	"github.com/abdul-hamid-achik/hammx/packages/core/env"
	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/abdul-hamid-achik/hammx/packages/middleware"
	"github.com/rs/zerolog"
)

// loadConfig reads the .env files, the config file and the selected profile.
// Flags are applied last.
func loadConfig() (*config.Config, error) {
	if envFileFlag != "" {
		if _, err := env.LoadAndExportDotEnv(envFileFlag); err != nil {
			return nil, configError(err)
		}
	} else if _, err := env.LoadDefault("."); err != nil {
		return nil, configError(err)
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, configError(fmt.Errorf("loading config: %w", err))
	}

	cfg, err = cfg.Profile(profileFlag)
	if err != nil {
		return nil, configError(err)
	}

	overrides, err := flagOverrides()
	if err != nil {
		return nil, err
	}
	return cfg.Merge(overrides), nil
}

// flagOverrides turns the flags that were set into a config layer.
func flagOverrides() (*config.Config, error) {
	o := &config.Config{}

	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d <= 0 {
			return nil, usageError(fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag))
		}
		o.Timeout = int(d.Milliseconds())
	}
	if proxyFlag != "" {
		o.Proxy = proxyFlag
	}
	if insecureFlag {
		o.ValidateSSL = config.BoolPtr(false)
	}
	if verboseFlag {
		o.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		o.NoColor = config.BoolPtr(true)
	}

	if appendSlashFlag {
		o.AppendSlash = config.BoolPtr(true)
	}
	if retryFlag > 0 {
		o.Retries = retryFlag
	}
	if rateLimitFlag > 0 {
		o.RateLimit = rateLimitFlag
	}
	if userAgentFlag != "" {
		o.UserAgent = userAgentFlag
	}
	if cacheFlag != "" {
		kind, path, _ := strings.Cut(cacheFlag, ":")
		ttl, err := time.ParseDuration(cacheTTLFlag)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid cache TTL %q: %w", cacheTTLFlag, err))
		}
		// Config files store the TTL in whole seconds.
		if ttl < time.Second || ttl%time.Second != 0 {
			return nil, usageError(fmt.Errorf("invalid cache TTL %q: must be a whole number of seconds, at least 1s", cacheTTLFlag))
		}
		o.Cache = &config.CacheConfig{Type: kind, Path: path, TTL: int(ttl.Seconds())}
	}
	return o, nil
}

// newClient builds a session for baseURL from cfg. The returned cleanup
// closes the client and the response cache.
func newClient(baseURL string, cfg *config.Config, logger zerolog.Logger) (*hammx.Client, func(), error) {
	opts := []hammx.Option{
		hammx.WithTimeout(cfg.TimeoutDuration()),
		hammx.WithFollowRedirects(cfg.GetFollowRedirects()),
		hammx.WithValidateSSL(cfg.GetValidateSSL()),
		hammx.WithAppendSlash(cfg.GetAppendSlash()),
		hammx.WithHeaders(cfg.Headers),
		hammx.WithLogger(logger),
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, hammx.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, hammx.WithProxy(cfg.Proxy))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, hammx.WithUserAgent(cfg.UserAgent))
	}
	for k, v := range cfg.Params {
		opts = append(opts, hammx.WithQueryParam(k, v))
	}
	a, err := parseAuth(cfg.Auth)
	if err != nil {
		return nil, nil, configError(fmt.Errorf("invalid auth in config: %w", err))
	}
	if a != nil {
		opts = append(opts, hammx.WithAuth(a))
	}

	var store cache.Store
	mws := []hammx.Middleware{}
	if cfg.GetVerbose() {
		mws = append(mws, middleware.Logging(logger))
	}
	if cfg.Cache != nil && cfg.Cache.Type != "" {
		s, err := cache.Open(cfg.Cache.Type, cfg.Cache.Path)
		if err != nil {
			return nil, nil, configError(err)
		}
		store = s
		mws = append(mws, cache.Middleware(store, cfg.CacheTTL()))
	}
	if cfg.Retries > 0 {
		retry := middleware.DefaultRetryConfig()
		retry.MaxRetries = cfg.Retries
		if d := cfg.RetryDelayDuration(); d > 0 {
			retry.BackoffFactor = d
		}
		mws = append(mws, middleware.Retry(retry))
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit, 1))
	}
	opts = append(opts, hammx.WithMiddleware(mws...))

	client, err := hammx.New(baseURL, opts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, usageError(err)
	}

	cleanup := func() {
		_ = client.Close()
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing cache")
			}
		}
	}
	return client, cleanup, nil
}

// resolveBase picks the request URL: the argument when given, the config
// base URL otherwise.
func resolveBase(arg string, cfg *config.Config) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if cfg.BaseURL != "" {
		return cfg.BaseURL, nil
	}
	return "", usageError(fmt.Errorf("no URL given and no baseURL in config"))
}
