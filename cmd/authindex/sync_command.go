package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"authindex/internal/config"
	"authindex/internal/service"
	"authindex/internal/services"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:       "sync <authority|bibliographic>",
		Short:     "Run one incremental sync in the foreground",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{config.IndexTypeAuthority, config.IndexTypeBibliographic},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *service.Service) error {
				result, err := svc.RunSync(cmd.Context(), args[0])
				if errors.Is(err, services.ErrBusy) {
					return fmt.Errorf("%s sync already in progress; try again later", args[0])
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Synced %s window %s (run %s)\n",
					result.IndexType, formatWindow(result.WindowFrom, result.WindowTo), result.RunID)
				fmt.Fprintln(out, renderSummary(out, []summaryRow{
					{"Pages", strconv.Itoa(result.Pages)},
					{"Records", strconv.Itoa(result.Records)},
					{"Added", strconv.Itoa(result.Added)},
					{"Updated", strconv.Itoa(result.Updated)},
					{"Renamed", strconv.Itoa(result.Renamed)},
					{"Unchanged", strconv.Itoa(result.Unchanged)},
					{"Rejected", strconv.Itoa(result.Rejected)},
					{"Skipped", strconv.Itoa(result.Skipped)},
					{"Deleted", strconv.Itoa(result.Deleted)},
					{"Missing", strconv.Itoa(result.Missing)},
					{"Duration", result.Duration.Round(time.Millisecond).String()},
				}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
