package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/leasetrace/internal/audit"
	"github.com/HerbHall/leasetrace/internal/correlate"
	"github.com/HerbHall/leasetrace/internal/prompt"
	"github.com/HerbHall/leasetrace/internal/resolver"
	"github.com/HerbHall/leasetrace/internal/scanner"
)

// cutoffLayouts are accepted by --cutoff, always read as UTC.
var cutoffLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// findReport is the structured output of find.
type findReport struct {
	correlate.Outcome `yaml:",inline"`
	Message           string `json:"message" yaml:"message"`
}

type findOptions struct {
	ip          string
	cutoff      string
	networkID   string
	networkName string
	block       bool
	noBlock     bool
	prompt      bool
}

func findCmd(a *app) *cobra.Command {
	var opts findOptions
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find the client that held an IP address at a point in time",
		Long: `find pages backwards through a network's DHCP lease events, starting
at the cutoff, and reports the latest lease of the address at or before it.

Anything not given by flags is asked for when stdin is a terminal. After a
lease is found the client can be blocked (--block), left alone (--no-block),
or the choice is asked for.

Exit status: 0 found, 2 no matching lease, 3 search incomplete,
4 block policy failed, 1 usage or configuration error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFind(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ip, "ip", "", "IPv4 address to trace")
	f.StringVar(&opts.cutoff, "cutoff", "", "latest lease time, UTC (2024-03-05T12:00:00Z or \"2024-03-05 12:00\")")
	f.StringVarP(&opts.networkID, "network", "n", "", "network ID (L_... or N_...)")
	f.StringVarP(&opts.networkName, "network-name", "s", "", "network name to search for")
	f.BoolVar(&opts.block, "block", false, "block the client without asking")
	f.BoolVar(&opts.noBlock, "no-block", false, "never block the client")
	f.BoolVar(&opts.prompt, "prompt", false, "ask questions on stdin even when it is not a terminal")
	f.Int("per-page", scanner.DefaultPageSize, "events per page (3-1000)")
	f.Int("max-pages", scanner.Unbounded, "page limit, -1 for the whole log")
	f.Int("top", resolver.DefaultTopK, "rows listed when choosing a network")
	f.String("metrics-textfile", "", "write dashboard metrics to this node exporter textfile")
	cmd.MarkFlagsMutuallyExclusive("block", "no-block")
	cmd.MarkFlagsMutuallyExclusive("network", "network-name")
	return cmd
}

func runFind(cmd *cobra.Command, a *app, opts findOptions) error {
	ctx := cmd.Context()
	defer a.writeMetrics()

	req, err := opts.request(time.Now())
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	if req.NetworkID == "" && a.cfg.Dashboard.OrgID == "" {
		return usageError("an organization ID (--org) is needed to look up networks")
	}

	client, err := a.dashboardClient()
	if err != nil {
		return err
	}

	var p correlate.Prompter
	if opts.prompt || a.interactive() {
		p = prompt.NewTerminal(a.in, a.out)
	}

	scan := scanner.New(client, client, a.cfg.Dashboard.ProductType, a.logger.Named("scanner"))
	ctrl := correlate.New(correlate.Config{
		OrgID:    a.cfg.Dashboard.OrgID,
		TopK:     a.cfg.Resolver.TopK,
		PageSize: a.cfg.Scan.PerPage,
		MaxPages: a.cfg.Scan.MaxPages,
	}, client, scan, client, p, a.logger.Named("correlate"))

	out, runErr := ctrl.Run(ctx, req)
	if errors.Is(runErr, correlate.ErrPromptRequired) {
		return &exitError{code: exitUsage, err: fmt.Errorf("%w: pass it as a flag or use --prompt", runErr)}
	}

	a.recordAudit(cmd, out)

	report := findReport{Outcome: *out, Message: out.Message()}
	if err := render(a.out, a.format, report, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, out.Message())
		return err
	}); err != nil {
		return err
	}

	switch out.Kind {
	case correlate.KindFound:
		return nil
	case correlate.KindNotFound:
		return &exitError{code: exitNotFound}
	case correlate.KindActionFailed:
		return &exitError{code: exitAction}
	default:
		return &exitError{code: exitIncomplete}
	}
}

// recordAudit appends the outcome to the audit trail. Failures are logged
// and do not change the exit status.
func (a *app) recordAudit(cmd *cobra.Command, out *correlate.Outcome) {
	s, err := a.auditStore(cmd.Context())
	if err != nil {
		a.logger.Warn("audit trail unavailable", zap.Error(err))
		return
	}
	if s == nil {
		return
	}
	if err := s.Save(cmd.Context(), audit.FromOutcome(a.cfg.Dashboard.OrgID, out)); err != nil {
		a.logger.Warn("audit record not saved", zap.String("run_id", out.RunID), zap.Error(err))
	}
}

func (o findOptions) request(now time.Time) (correlate.Request, error) {
	req := correlate.Request{
		NetworkID:    o.networkID,
		NetworkQuery: o.networkName,
	}
	switch {
	case o.block:
		req.Action = correlate.ActionBlock
	case o.noBlock:
		req.Action = correlate.ActionSkip
	}

	if o.ip != "" {
		ip, err := prompt.ParseIPv4(o.ip)
		if err != nil {
			return req, fmt.Errorf("--ip: %w", err)
		}
		req.TargetIP = ip
	}
	if o.cutoff != "" {
		t, err := parseCutoff(o.cutoff, now)
		if err != nil {
			return req, fmt.Errorf("--cutoff: %w", err)
		}
		req.Cutoff = t
	}
	if o.networkID != "" && !prompt.ValidNetworkID(o.networkID) {
		return req, fmt.Errorf("--network: %q is not a network ID", o.networkID)
	}
	return req, nil
}

func parseCutoff(s string, now time.Time) (time.Time, error) {
	for _, layout := range cutoffLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if t.After(now) {
			return time.Time{}, fmt.Errorf("%s is in the future", t.UTC().Format(time.RFC3339))
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q is not a time (use 2024-03-05T12:00:00Z)", s)
}
