package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30000, // 30 seconds
		Retries:         0,
		RetryDelay:      500,
		AppendSlash:     BoolPtr(false),
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.BaseURL == "" &&
		c.Auth == "" &&
		c.Timeout == d.Timeout &&
		c.Retries == d.Retries &&
		c.RetryDelay == d.RetryDelay &&
		c.GetAppendSlash() == d.GetAppendSlash() &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == "" &&
		c.UserAgent == "" &&
		c.RateLimit == 0 &&
		c.Cache == nil &&
		len(c.Headers) == 0 &&
		len(c.Params) == 0 &&
		len(c.Profiles) == 0 &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor()
}
