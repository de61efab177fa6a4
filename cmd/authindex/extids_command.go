package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"authindex/internal/extids"
	"authindex/internal/service"
)

func newExtIDsCommand(ctx *commandContext) *cobra.Command {
	extCmd := &cobra.Command{
		Use:   "extids",
		Short: "Manage the external identifier map",
	}

	var asJSON bool
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Join the configured candidate tables and replace the external map",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *service.Service) error {
				summary, err := extids.New(ctx.configValue(), svc.Index(), ctx.logger()).Run(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(summary.Sources))
				for _, src := range summary.Sources {
					rows = append(rows, []string{src.Name, src.Key, strconv.Itoa(src.Rows), strconv.Itoa(src.Entities)})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Source", "Key", "Rows", "Entities"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				))
				fmt.Fprintf(out, "Published %d entities (%d keys written) in %s\n",
					summary.Entities, summary.Written, summary.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
	buildCmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	extCmd.AddCommand(buildCmd)
	return extCmd
}
