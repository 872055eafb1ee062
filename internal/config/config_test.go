package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/leasetrace/internal/scanner"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	v, err := Load("")
	require.NoError(t, err)

	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "https://api.meraki.com/api/v1", cfg.Dashboard.BaseURL)
	assert.Equal(t, "appliance", cfg.Dashboard.ProductType)
	assert.Equal(t, 5, cfg.Dashboard.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Dashboard.Timeout)
	assert.Equal(t, 1000, cfg.Scan.PerPage)
	assert.Equal(t, scanner.Unbounded, cfg.Scan.MaxPages)
	assert.Equal(t, 10, cfg.Resolver.TopK)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Empty(t, cfg.Audit.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEASETRACE_DASHBOARD_ORG_ID", "o-123")
	t.Setenv("LEASETRACE_SCAN_PER_PAGE", "200")
	t.Setenv("LEASETRACE_DASHBOARD_RETRY_WAIT", "250ms")

	v, err := Load("")
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "o-123", cfg.Dashboard.OrgID)
	assert.Equal(t, 200, cfg.Scan.PerPage)
	assert.Equal(t, 250*time.Millisecond, cfg.Dashboard.RetryWait)
}

func TestLoad_APIKeyFromDashboardEnv(t *testing.T) {
	t.Setenv(APIKeyEnv, "sdk-key")

	v, err := Load("")
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, "sdk-key", cfg.Dashboard.APIKey)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leasetrace.yaml")
	data := []byte(`dashboard:
  org_id: "549236"
  max_retries: 2
scan:
  max_pages: 40
audit:
  path: /var/lib/leasetrace/audit.db
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	v, err := Load(path)
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "549236", cfg.Dashboard.OrgID)
	assert.Equal(t, 2, cfg.Dashboard.MaxRetries)
	assert.Equal(t, 40, cfg.Scan.MaxPages)
	assert.Equal(t, "/var/lib/leasetrace/audit.db", cfg.Audit.Path)
	assert.Equal(t, 1000, cfg.Scan.PerPage, "unset keys keep defaults")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"page too large", func(c *Config) { c.Scan.PerPage = 5000 }, true},
		{"page too small", func(c *Config) { c.Scan.PerPage = 1 }, true},
		{"zero max pages", func(c *Config) { c.Scan.MaxPages = 0 }, true},
		{"bounded max pages", func(c *Config) { c.Scan.MaxPages = 3 }, false},
		{"zero top k", func(c *Config) { c.Resolver.TopK = 0 }, true},
		{"negative retries", func(c *Config) { c.Dashboard.MaxRetries = -1 }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				Scan:     ScanConfig{PerPage: 1000, MaxPages: scanner.Unbounded},
				Resolver: ResolverConfig{TopK: 10},
			}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
