package cpclient

import (
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config represents the configuration for the gateway client
type Config struct {
	// BaseURL is the gateway root, e.g. https://cp.example.com/api/v1
	BaseURL string

	// Token is an access token sent as a bearer credential; Login sets it
	Token string

	// Timeout bounds a single request; zero uses 30s
	Timeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidConfig
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}
