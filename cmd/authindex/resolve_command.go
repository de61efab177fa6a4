package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"authindex/internal/config"
	"authindex/internal/enrich"
	"authindex/internal/fileutil"
	"authindex/internal/marc"
	"authindex/internal/service"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string
	var format string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Inject authority identifiers into a local bibliographic file",
		Long: "Reads bibliographic records from a MARCXML or ISO 2709 file, resolves " +
			"their access points against the local index and writes an enriched " +
			"MARCXML collection to stdout or --output.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := enrich.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			records, err := readRecords(args[0], format)
			if err != nil {
				return err
			}

			return ctx.withService(func(svc *service.Service) error {
				result, err := svc.ResolveBatch(cmd.Context(), records, mode)
				if err != nil {
					return err
				}

				errOut := cmd.ErrOrStderr()
				if target := strings.TrimSpace(outputPath); target != "" && target != "-" {
					written, err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
						return marc.WriteCollection(w, result.Records, result.Plan)
					})
					if err != nil {
						return fmt.Errorf("write collection: %w", err)
					}
					fmt.Fprintf(errOut, "Wrote %s (%d bytes, sha256 %s)\n", written.Path, written.Bytes, written.SHA256)
				} else {
					bw := bufio.NewWriter(cmd.OutOrStdout())
					if err := marc.WriteCollection(bw, result.Records, result.Plan); err != nil {
						return fmt.Errorf("write collection: %w", err)
					}
					if err := bw.Flush(); err != nil {
						return err
					}
				}

				fmt.Fprintf(errOut, "Resolved %d of %d terms across %d records; injected %d identifiers\n",
					result.Resolved, result.Terms, len(result.Records), result.Injected())
				if result.Partial {
					fmt.Fprintln(errOut, "Warning: index lookups failed; output is partially enriched")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(enrich.ModeNative), "Identifier mode: native, alt or all")
	cmd.Flags().StringVar(&format, "format", marc.FormatAuto, "Input format: auto, marcxml or iso2709")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the collection to a file instead of stdout")
	return cmd
}

func readRecords(path, format string) ([]*marc.Record, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	reader, err := marc.NewReader(file, format)
	if err != nil {
		return nil, err
	}
	var records []*marc.Record
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}
