package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/HerbHall/leasetrace/internal/resolver"
	"github.com/HerbHall/leasetrace/pkg/models"
)

func networksCmd(a *app) *cobra.Command {
	var search, product string
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List the organization's networks",
		Long: `networks lists every network of the organization. With --search the
best matching networks are listed with their match score instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Dashboard.OrgID == "" {
				return usageError("an organization ID (--org) is required")
			}
			client, err := a.dashboardClient()
			if err != nil {
				return err
			}
			defer a.writeMetrics()

			networks, err := client.ListNetworks(cmd.Context(), a.cfg.Dashboard.OrgID)
			if err != nil {
				return &exitError{code: exitIncomplete, err: err}
			}
			if product != "" {
				networks = withProduct(networks, product)
			}
			if search == "" {
				return render(a.out, a.format, networks, func(w io.Writer) error {
					return networkTable(w, networks)
				})
			}

			matches, err := resolver.TopMatches(search, networks, a.cfg.Resolver.TopK)
			if err != nil {
				return &exitError{code: exitNotFound, err: err}
			}
			return render(a.out, a.format, matches, func(w io.Writer) error {
				return matchTable(w, matches)
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "rank networks by similarity to this name")
	cmd.Flags().StringVar(&product, "product", "", "only networks carrying this product type (appliance, switch, wireless)")
	cmd.Flags().Int("top", resolver.DefaultTopK, "rows listed with --search")
	return cmd
}

func withProduct(networks []models.Network, product string) []models.Network {
	kept := make([]models.Network, 0, len(networks))
	for _, n := range networks {
		if n.HasProduct(product) {
			kept = append(kept, n)
		}
	}
	return kept
}

func networkTable(w io.Writer, networks []models.Network) error {
	if len(networks) == 0 {
		_, err := fmt.Fprintln(w, "No networks.")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Products", "Time zone"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, n := range networks {
		table.Append([]string{n.ID, n.Name, strings.Join(n.ProductTypes, ","), n.TimeZone})
	}
	table.Render()
	return nil
}

func matchTable(w io.Writer, matches []resolver.Match) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "ID", "Name", "Score"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for i, m := range matches {
		table.Append([]string{strconv.Itoa(i + 1), m.Network.ID, m.Network.Name, strconv.Itoa(m.Score)})
	}
	table.Render()
	return nil
}
