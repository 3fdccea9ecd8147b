// Package config loads SDK settings from the environment and discovers the
// platform token from command-line style arguments.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gamplo/gamplo-go/pkg/backoff"
)

const (
	DefaultAPIURL = "https://gamplo.com"

	// TokenParam is the argument name the platform passes the token under.
	TokenParam = "gamplo_token"
)

// Config holds the SDK settings.
type Config struct {
	APIURL         string        `env:"GAMPLO_API_URL" envDefault:"https://gamplo.com"`
	Timeout        time.Duration `env:"GAMPLO_TIMEOUT" envDefault:"10s"`
	Token          string        `env:"GAMPLO_TOKEN"`
	SessionID      string        `env:"GAMPLO_SESSION_ID"`
	MaxRetries     int           `env:"GAMPLO_CHAT_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"GAMPLO_CHAT_RETRY_BASE_DELAY" envDefault:"1s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid api url %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: chat max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("config: chat retry base delay must not be negative, got %s", c.RetryBaseDelay)
	}
	return nil
}

// RetryPolicy returns the reconnect policy of chat streams.
// A configured zero means no retries or no base delay; jitter always keeps its default.
func (c Config) RetryPolicy() backoff.Policy {
	policy := backoff.Policy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.RetryBaseDelay,
		MaxJitter:  backoff.DefaultMaxJitter,
	}
	if policy.MaxRetries == 0 {
		policy.MaxRetries = -1
	}
	if policy.BaseDelay == 0 {
		policy.BaseDelay = -1
	}
	return policy
}

// DiscoverToken returns the token passed in args, falling back to GAMPLO_TOKEN.
func (c Config) DiscoverToken(args []string) string {
	if token := ParseArgs(args)[TokenParam]; token != "" {
		return token
	}
	return c.Token
}

// ParseArgs reads "--key value", "--key=value", "--flag" and "key=value" arguments.
// A bare "--flag" is stored as "true"; other arguments are ignored.
func ParseArgs(args []string) map[string]string {
	params := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if key, ok := strings.CutPrefix(arg, "--"); ok {
			if k, v, found := strings.Cut(key, "="); found {
				params[k] = v
				continue
			}
			if i+1 < len(args) && args[i+1] != "" && !strings.HasPrefix(args[i+1], "--") {
				params[key] = args[i+1]
				i++
				continue
			}
			params[key] = "true"
			continue
		}
		if key, value, found := strings.Cut(arg, "="); found && key != "" {
			params[key] = value
		}
	}
	return params
}
