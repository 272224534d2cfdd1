package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the hammx configuration
type Config struct {
	BaseURL         string             `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Headers         map[string]string  `json:"headers,omitempty" yaml:"headers,omitempty"`
	Params          map[string]string  `json:"params,omitempty" yaml:"params,omitempty"`
	Auth            string             `json:"auth,omitempty" yaml:"auth,omitempty"`
	Timeout         int                `json:"timeout,omitempty" yaml:"timeout,omitempty"`       // milliseconds
	Retries         int                `json:"retries,omitempty" yaml:"retries,omitempty"`
	RetryDelay      int                `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"` // milliseconds
	AppendSlash     *bool              `json:"appendSlash,omitempty" yaml:"appendSlash,omitempty"`
	FollowRedirects *bool              `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int                `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool              `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string             `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	UserAgent       string             `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	RateLimit       float64            `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second
	Cache           *CacheConfig       `json:"cache,omitempty" yaml:"cache,omitempty"`
	Verbose         *bool              `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor         *bool              `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Profiles        map[string]Profile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// CacheConfig selects the response cache used for GET requests.
type CacheConfig struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"` // memory, file or sqlite
	TTL  int    `json:"ttl,omitempty" yaml:"ttl,omitempty"`   // seconds
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Profile overrides the base settings when selected with --profile.
type Profile struct {
	BaseURL string            `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Auth    string            `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// BoolPtr returns a pointer to b, for the optional flags.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetAppendSlash() bool {
	return getBool(c.AppendSlash, false)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Millisecond
}

// CacheTTL returns the cache TTL, or zero when caching is off.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache == nil {
		return 0
	}
	return time.Duration(c.Cache.TTL) * time.Second
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".hammx.json",
	"hammx.json",
	".hammx.yaml",
	"hammx.yaml",
	".hammx.yml",
	".hammxrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindConfig returns the first config file present in dir, or "".
func FindConfig(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// FindAndLoadConfig searches for a config file in the given directory.
// Defaults are returned when none exists.
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfig(dir); path != "" {
		return loadConfigFromFile(path)
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	parsed, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return DefaultConfig().Merge(parsed), nil
}

// Format is the encoding of a config file.
type Format int

const (
	// FormatAuto tries JSON first and falls back to YAML.
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// Parse decodes a config document and then expands ${VAR} references in
// its string values, so environment values are never parsed as JSON or YAML.
func Parse(data []byte, format Format) (*Config, error) {
	var c Config
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			c = Config{}
			if yerr := yaml.Unmarshal(data, &c); yerr != nil {
				return nil, fmt.Errorf("not valid JSON (%v) or YAML (%v)", err, yerr)
			}
		}
	}
	c.expandEnv()
	return &c, nil
}

func (c *Config) expandEnv() {
	c.BaseURL = ExpandEnv(c.BaseURL)
	c.Auth = ExpandEnv(c.Auth)
	c.Proxy = ExpandEnv(c.Proxy)
	c.UserAgent = ExpandEnv(c.UserAgent)
	expandMap(c.Headers)
	expandMap(c.Params)
	if c.Cache != nil {
		c.Cache.Type = ExpandEnv(c.Cache.Type)
		c.Cache.Path = ExpandEnv(c.Cache.Path)
	}
	for name, p := range c.Profiles {
		p.BaseURL = ExpandEnv(p.BaseURL)
		p.Auth = ExpandEnv(p.Auth)
		expandMap(p.Headers)
		expandMap(p.Params)
		c.Profiles[name] = p
	}
}

func expandMap(m map[string]string) {
	for k, v := range m {
		m[k] = ExpandEnv(v)
	}
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} with environment values.
// Unset variables without a default expand to "".
func ExpandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := envPattern.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[3]
	})
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c
	result.Headers = mergeMaps(c.Headers, other.Headers)
	result.Params = mergeMaps(c.Params, other.Params)

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Auth != "" {
		result.Auth = other.Auth
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.UserAgent != "" {
		result.UserAgent = other.UserAgent
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Cache != nil {
		cache := *other.Cache
		result.Cache = &cache
	}

	// Boolean flags - only override if explicitly set in other config
	if other.AppendSlash != nil {
		result.AppendSlash = other.AppendSlash
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Profiles) > 0 {
		profiles := make(map[string]Profile, len(c.Profiles)+len(other.Profiles))
		for k, v := range c.Profiles {
			profiles[k] = v
		}
		for k, v := range other.Profiles {
			profiles[k] = v
		}
		result.Profiles = profiles
	}

	return &result
}

func mergeMaps(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Profile returns a copy of the config with the named profile applied.
// An empty name returns the config unchanged.
func (c *Config) Profile(name string) (*Config, error) {
	if name == "" {
		return c, nil
	}
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	return c.Merge(&Config{
		BaseURL: p.BaseURL,
		Headers: p.Headers,
		Params:  p.Params,
		Auth:    p.Auth,
	}), nil
}

// ProfileNames lists the profiles in alphabetical order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveConfig writes the configuration as YAML for .yaml/.yml paths and as
// indented JSON otherwise.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if formatOf(path) == FormatYAML {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
