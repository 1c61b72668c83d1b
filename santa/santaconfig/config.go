// Package santaconfig contains the configuration of the gift-exchange core.
package santaconfig

import "time"

// Defaults contains default settings for the core.
var Defaults = Config{
	SuccessDismiss:   2000 * time.Millisecond,
	ErrorDismiss:     3000 * time.Millisecond,
	FetchConcurrency: 8,
	FetchRate:        0,
	FetchBurst:       1,
}

// Config contains configuration options for the orchestration core.
type Config struct {
	// Delays after which a status message is cleared.
	SuccessDismiss time.Duration
	ErrorDismiss   time.Duration

	// Record fetching during a refresh.
	FetchConcurrency int     // Maximum number of records fetched in parallel
	FetchRate        float64 `toml:",omitempty"` // Record fetches per second, 0 means unlimited
	FetchBurst       int     `toml:",omitempty"`
}

// Sanitize returns a copy of c with out of range values replaced by defaults.
func (c Config) Sanitize() Config {
	if c.SuccessDismiss <= 0 {
		c.SuccessDismiss = Defaults.SuccessDismiss
	}
	if c.ErrorDismiss <= 0 {
		c.ErrorDismiss = Defaults.ErrorDismiss
	}
	if c.FetchConcurrency < 1 {
		c.FetchConcurrency = 1
	}
	if c.FetchRate < 0 {
		c.FetchRate = 0
	}
	if c.FetchBurst < 1 {
		c.FetchBurst = 1
	}
	return c
}
