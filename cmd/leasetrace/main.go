// leasetrace finds which client held an IP address on a dashboard network
// at a given time, and optionally blocks it.
//
// Usage:
//
//	leasetrace find --org 549236 --ip 10.0.0.5 --cutoff 2024-03-05T12:00:00Z --network-name "Branch"
//	leasetrace find                      # asks for everything
//	leasetrace networks --org 549236 --search branch
//	leasetrace audit list --ip 10.0.0.5
//	leasetrace version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitFound      = 0
	exitUsage      = 1
	exitNotFound   = 2
	exitIncomplete = 3
	exitAction     = 4
)

// exitError carries a process exit code. A nil err means the outcome was
// already reported on stdout.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, a := newRootCmd(stdin, stdout, stderr)
	defer a.close()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitFound
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitUsage
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{in: stdin, out: stdout, errOut: stderr}

	root := &cobra.Command{
		Use:   "leasetrace",
		Short: "Trace an IP address to the client that leased it",
		Long: `leasetrace searches a network's DHCP lease events for the most recent
assignment of an IP address at or before a point in time, shows the client
that held it, and can apply the Blocked device policy to that client.

Configuration is read from leasetrace.yaml (., ./configs,
$HOME/.config/leasetrace), LEASETRACE_* environment variables and flags.
The API key is also read from MERAKI_DASHBOARD_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to configuration file")
	pf.StringP("org", "o", "", "organization ID")
	pf.StringP("api-key", "k", "", "Dashboard API key")
	pf.String("base-url", "", "Dashboard API base URL")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console, json")
	pf.String("audit-db", "", "SQLite audit trail path (empty disables)")
	pf.StringVarP(&a.format, "format", "f", formatText, "output format: text, json, yaml")

	root.AddCommand(findCmd(a))
	root.AddCommand(networksCmd(a))
	root.AddCommand(auditCmd(a))
	root.AddCommand(versionCmd(a))
	return root, a
}
