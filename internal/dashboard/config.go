package dashboard

import "time"

// Config holds the Dashboard API connection settings.
type Config struct {
	BaseURL           string        `mapstructure:"base_url"`            // API root (default: "https://api.meraki.com/api/v1")
	APIKey            string        `mapstructure:"api_key"`             // Dashboard API key
	OrgID             string        `mapstructure:"org_id"`              // Organization whose networks are searched
	ProductType       string        `mapstructure:"product_type"`        // Event log product type (default: "appliance")
	Timeout           time.Duration `mapstructure:"timeout"`             // HTTP client timeout (default: 30s)
	MaxRetries        int           `mapstructure:"max_retries"`         // Retries after the first attempt for read calls (default: 5)
	RetryWait         time.Duration `mapstructure:"retry_wait"`          // Initial backoff between retries (default: 1s)
	MaxRetryWait      time.Duration `mapstructure:"max_retry_wait"`      // Backoff and Retry-After ceiling (default: 60s)
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // Client side throttle (default: 10, 0 disables)
	Burst             int           `mapstructure:"burst"`               // Throttle burst size (default: 10)
}

// DefaultConfig returns a Config with sensible defaults.
// APIKey and OrgID are empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.meraki.com/api/v1",
		ProductType:       "appliance",
		Timeout:           30 * time.Second,
		MaxRetries:        5,
		RetryWait:         time.Second,
		MaxRetryWait:      60 * time.Second,
		RequestsPerSecond: 10,
		Burst:             10,
	}
}
