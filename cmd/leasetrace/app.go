package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/HerbHall/leasetrace/internal/audit"
	"github.com/HerbHall/leasetrace/internal/config"
	"github.com/HerbHall/leasetrace/internal/dashboard"
	"github.com/HerbHall/leasetrace/internal/prompt"
	"github.com/HerbHall/leasetrace/internal/store"
	"github.com/HerbHall/leasetrace/internal/version"
)

// flagKeys maps flag names to configuration keys. Flags a command does not
// define are skipped.
var flagKeys = map[string]string{
	"org":              "dashboard.org_id",
	"api-key":          "dashboard.api_key",
	"base-url":         "dashboard.base_url",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
	"audit-db":         "audit.path",
	"per-page":         "scan.per_page",
	"max-pages":        "scan.max_pages",
	"top":              "resolver.top_k",
	"metrics-textfile": "metrics.textfile",
}

// app is the state shared by the commands of one invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	format     string

	v        *viper.Viper
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	db       *store.Store
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := checkFormat(a.format); err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	v, err := config.Load(a.configPath)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	a.v = v
	a.cfg = cfg
	a.logger = logger
	a.registry = prometheus.NewRegistry()
	logger.Debug("configuration loaded",
		zap.String("config_file", v.ConfigFileUsed()),
		zap.String("version", version.Short()),
	)
	return nil
}

// interactive reports whether the operator can be asked questions.
func (a *app) interactive() bool {
	f, ok := a.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// dashboardClient returns a client for the configured organization,
// asking for the API key when none is configured.
func (a *app) dashboardClient() (*dashboard.Client, error) {
	cfg := a.cfg.Dashboard
	if cfg.APIKey == "" {
		f, ok := a.in.(*os.File)
		if !ok || !a.interactive() {
			return nil, usageError("no API key: set %s, LEASETRACE_DASHBOARD_API_KEY or --api-key", config.APIKeyEnv)
		}
		key, err := prompt.ReadSecret(f, a.errOut, "Dashboard API key")
		if err != nil {
			return nil, &exitError{code: exitUsage, err: err}
		}
		cfg.APIKey = key
	}
	return dashboard.NewClient(cfg, a.logger.Named("dashboard"),
		dashboard.WithMetrics(dashboard.NewMetrics(a.registry)),
	), nil
}

// auditStore opens the audit trail, or returns nil when it is disabled.
func (a *app) auditStore(ctx context.Context) (*audit.Store, error) {
	if a.cfg.Audit.Path == "" {
		return nil, nil
	}
	db, err := store.Open(ctx, a.cfg.Audit.Path)
	if err != nil {
		return nil, err
	}
	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		db.Close()
		return nil, err
	}
	s, err := audit.Open(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	return s, nil
}

// writeMetrics dumps the dashboard metrics to the configured node
// exporter textfile.
func (a *app) writeMetrics() {
	path := a.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		a.logger.Warn("write metrics textfile", zap.String("path", path), zap.Error(err))
	}
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
