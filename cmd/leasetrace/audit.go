package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/HerbHall/leasetrace/internal/audit"
)

func auditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the local audit trail",
	}
	cmd.AddCommand(auditListCmd(a))
	return cmd
}

func auditListCmd(a *app) *cobra.Command {
	var filter audit.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent lookups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.auditStore(cmd.Context())
			if err != nil {
				return err
			}
			if s == nil {
				return usageError("audit trail disabled: set audit.path or --audit-db")
			}
			records, err := s.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return render(a.out, a.format, records, func(w io.Writer) error {
				return auditTable(w, records)
			})
		},
	}
	cmd.Flags().StringVar(&filter.TargetIP, "ip", "", "only lookups of this address")
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "only this outcome: found, not_found, search_incomplete, action_failed")
	cmd.Flags().IntVar(&filter.Limit, "limit", audit.DefaultLimit, "maximum records")
	return cmd
}

func auditTable(w io.Writer, records []audit.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No audit records.")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Recorded", "IP", "Cutoff", "Network", "Outcome", "Client", "Action"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, r := range records {
		table.Append([]string{
			r.RecordedAt.Format(time.RFC3339),
			r.TargetIP,
			r.Cutoff.Format(time.RFC3339),
			r.NetworkID,
			r.Kind,
			r.ClientID,
			r.Action,
		})
	}
	table.Render()
	return nil
}
