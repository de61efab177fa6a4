package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"authindex/internal/api"
	"authindex/internal/service"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "lookup <id>[,<id>...]",
		Short: "Show stored identifiers for authority ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := splitIDs(args)
			if len(ids) == 0 {
				return errors.New("at least one id is required")
			}
			return ctx.withService(func(svc *service.Service) error {
				found, err := svc.LookupAuthorities(cmd.Context(), ids)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromAuthorities(found))
				}
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(found))
				for _, a := range found {
					if a.Internal == nil {
						rows = append(rows, []string{a.ID, "(not found)", "", "", "", externalSummary(a.External)})
						continue
					}
					rows = append(rows, []string{
						a.ID,
						a.Internal.Heading,
						a.Internal.HeadingTag,
						a.Internal.AltID,
						a.Internal.ViafURI,
						externalSummary(a.External),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Heading", "Tag", "Alt ID", "VIAF", "External"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entries as JSON")
	return cmd
}

func newBibCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bib <id>",
		Short: "Print a stored bibliographic record as MARCXML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *service.Service) error {
				raw, err := svc.LookupBib(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if _, err := out.Write(raw); err != nil {
					return err
				}
				_, err = fmt.Fprintln(out)
				return err
			})
		},
	}
}

func splitIDs(args []string) []string {
	var ids []string
	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func externalSummary(ext map[string]string) string {
	if len(ext) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ext))
	for k := range ext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+ext[k])
	}
	return strings.Join(parts, "\n")
}
