package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/HerbHall/leasetrace/internal/version"
)

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return render(a.out, a.format, version.Map(), func(w io.Writer) error {
				_, err := fmt.Fprintln(w, version.Info())
				return err
			})
		},
	}
}
