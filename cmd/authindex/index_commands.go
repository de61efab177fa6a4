package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"authindex/internal/config"
	"authindex/internal/indexer"
	"authindex/internal/marc"
	"authindex/internal/service"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build the identity index from authority dumps",
	}
	indexCmd.AddCommand(newIndexBuildCommand(ctx))
	return indexCmd
}

func newIndexBuildCommand(ctx *commandContext) *cobra.Command {
	var format string
	var reset bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "build <dump>",
		Short: "Load a full authority dump (MARCXML or ISO 2709)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open dump: %w", err)
			}
			defer file.Close()

			return ctx.withService(func(svc *service.Service) error {
				builder := indexer.New(ctx.configValue(), svc.Index(), ctx.logger())
				summary, err := builder.Build(cmd.Context(), file, indexer.Options{Format: format, Reset: reset})
				if errors.Is(err, indexer.ErrIndexBusy) {
					return errors.New("authority index is locked by a running sync or build; try again later")
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderSummary(out, []summaryRow{
					{"Records", strconv.Itoa(summary.Records)},
					{"Indexed", strconv.Itoa(summary.Indexed)},
					{"Skipped", strconv.Itoa(summary.Skipped)},
					{"Duplicates", strconv.Itoa(summary.Duplicates)},
					{"Replaced", strconv.Itoa(summary.Replaced)},
					{"Rejected", strconv.Itoa(summary.Rejected)},
					{"Duration", summary.Duration.Round(time.Millisecond).String()},
				}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", marc.FormatAuto, "Dump format: auto, marcxml or iso2709")
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop existing id and heading keys before loading")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}
