package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"authindex/internal/api"
	"authindex/internal/service"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count index keys by family",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *service.Service) error {
				stats, err := svc.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromStats(stats))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderSummary(out, []summaryRow{
					{"Authorities", strconv.Itoa(stats.Entries)},
					{"Headings", strconv.Itoa(stats.Headings)},
					{"External ids", strconv.Itoa(stats.ExternalIDs)},
					{"Bib records", strconv.Itoa(stats.Bibs)},
				}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the counts as JSON")
	return cmd
}
