package config

import (
	"fmt"
	"time"
)

// MaxPages caps how deep any category crawl paginates. JS retailers pay
// O(N) click-chain replay per page, so this is the cost ceiling as much
// as a loop guard.
const MaxPages = 10

// Config holds crawl run configuration shared by every retailer.
// Per-retailer politeness overrides live in the registry.
type Config struct {
	StartDelay      time.Duration
	MaxDelay        time.Duration
	RandomDelay     time.Duration
	Timeout         time.Duration
	RenderTimeout   time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	Limit           int  // max items per run, 0 = unlimited
	FetchDetails    bool // visit product pages for spec tables
	Save            bool
	DBPath          string
	OutputFile      string
	MetricsAddr     string
	UserAgent       string
	Verbose         bool
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		StartDelay:      1 * time.Second,
		MaxDelay:        10 * time.Second,
		RandomDelay:     500 * time.Millisecond,
		Timeout:         15 * time.Second,
		RenderTimeout:   45 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		Limit:           0,
		FetchDetails:    false,
		Save:            false,
		DBPath:          "data/hwcompat.db",
		OutputFile:      "",
		MetricsAddr:     "",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.StartDelay < 0 {
		return fmt.Errorf("start delay cannot be negative")
	}
	if c.MaxDelay < c.StartDelay {
		return fmt.Errorf("max delay (%s) cannot be below start delay (%s)", c.MaxDelay, c.StartDelay)
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if c.Save && c.DBPath == "" {
		return fmt.Errorf("db path cannot be empty when saving is enabled")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}
