package device

import (
	"fmt"
	"time"
)

// Config holds connection settings for the wireless access point controller
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("device: base URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("device: timeout must be positive")
	}
	return nil
}
