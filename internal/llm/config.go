package llm

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds the provider level configuration shared by every credential.
// The credential itself travels with each request so callers can rotate keys.
//
// Provider: gemini (default) or openai for any OpenAI compatible endpoint
// APIURL: Base URL override, empty keeps the provider default
// Timeout: Per request timeout in seconds
// Temperature: Sampling temperature, negative keeps the provider default
// SiteURL / AppName: Optional attribution headers for OpenRouter style gateways
type Config struct {
	Provider    string  `json:"provider"`
	APIURL      string  `json:"api_url"`
	Timeout     int     `json:"timeout"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`

	// BreakerThreshold is the number of consecutive malformed responses
	// after which a credential+model pair is skipped for BreakerCooldown.
	// Zero disables the breaker.
	BreakerThreshold int           `json:"breaker_threshold"`
	BreakerCooldown  time.Duration `json:"breaker_cooldown"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "", ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.Temperature > 2 {
		return fmt.Errorf("temperature must not exceed 2")
	}
	if c.BreakerThreshold < 0 {
		return fmt.Errorf("breaker threshold must not be negative")
	}
	return nil
}

// GetHeaders returns the attribution headers added to OpenAI compatible requests
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{}
	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
