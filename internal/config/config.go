// Package config loads leasetrace settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/HerbHall/leasetrace/internal/dashboard"
	"github.com/HerbHall/leasetrace/internal/resolver"
	"github.com/HerbHall/leasetrace/internal/scanner"
)

// EnvPrefix prefixes every environment override: LEASETRACE_SCAN_PER_PAGE=500.
const EnvPrefix = "LEASETRACE"

// APIKeyEnv is the variable the dashboard SDKs read the API key from.
const APIKeyEnv = "MERAKI_DASHBOARD_API_KEY"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the decoded configuration.
type Config struct {
	Dashboard dashboard.Config `mapstructure:"dashboard"`
	Scan      ScanConfig       `mapstructure:"scan"`
	Resolver  ResolverConfig   `mapstructure:"resolver"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Audit     AuditConfig      `mapstructure:"audit"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
}

type ScanConfig struct {
	PerPage  int `mapstructure:"per_page"`  // Events per page, 3..1000
	MaxPages int `mapstructure:"max_pages"` // -1 reads the whole log
}

type ResolverConfig struct {
	TopK int `mapstructure:"top_k"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuditConfig struct {
	Path string `mapstructure:"path"` // SQLite file; empty disables the audit trail
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // node exporter textfile written after each run
}

// Load reads configuration from file and environment variables. An empty
// configPath searches for leasetrace.yaml in the usual places; a missing
// file is not an error.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	d := dashboard.DefaultConfig()
	v.SetDefault("dashboard.base_url", d.BaseURL)
	v.SetDefault("dashboard.api_key", "")
	v.SetDefault("dashboard.org_id", "")
	v.SetDefault("dashboard.product_type", d.ProductType)
	v.SetDefault("dashboard.timeout", d.Timeout)
	v.SetDefault("dashboard.max_retries", d.MaxRetries)
	v.SetDefault("dashboard.retry_wait", d.RetryWait)
	v.SetDefault("dashboard.max_retry_wait", d.MaxRetryWait)
	v.SetDefault("dashboard.requests_per_second", d.RequestsPerSecond)
	v.SetDefault("dashboard.burst", d.Burst)
	v.SetDefault("scan.per_page", scanner.DefaultPageSize)
	v.SetDefault("scan.max_pages", scanner.Unbounded)
	v.SetDefault("resolver.top_k", resolver.DefaultTopK)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("audit.path", "")
	v.SetDefault("metrics.textfile", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("leasetrace")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.config/leasetrace")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("dashboard.api_key", EnvPrefix+"_DASHBOARD_API_KEY", APIKeyEnv); err != nil {
		return nil, fmt.Errorf("bind api key env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. Credentials are checked by the commands
// that need them.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.PerPage < 3 || c.Scan.PerPage > scanner.DefaultPageSize {
		errs = append(errs, fmt.Errorf("scan.per_page %d not in 3..%d", c.Scan.PerPage, scanner.DefaultPageSize))
	}
	if c.Scan.MaxPages == 0 || c.Scan.MaxPages < scanner.Unbounded {
		errs = append(errs, fmt.Errorf("scan.max_pages %d must be positive or %d", c.Scan.MaxPages, scanner.Unbounded))
	}
	if c.Resolver.TopK <= 0 {
		errs = append(errs, fmt.Errorf("resolver.top_k %d must be positive", c.Resolver.TopK))
	}
	if c.Dashboard.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("dashboard.max_retries %d must not be negative", c.Dashboard.MaxRetries))
	}
	if c.Dashboard.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("dashboard.requests_per_second %v must not be negative", c.Dashboard.RequestsPerSecond))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
