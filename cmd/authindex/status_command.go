package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"

	"authindex/internal/api"
	"authindex/internal/config"
	"authindex/internal/syncstate"
	"authindex/internal/updater"
)

const daemonProbeTimeout = 2 * time.Second

type statusReport struct {
	IndexPath   string            `json:"indexPath"`
	StatePath   string            `json:"statePath"`
	Daemon      *api.DaemonStatus `json:"daemon,omitempty"`
	DaemonError string            `json:"daemonError,omitempty"`
	Syncs       []api.SyncStatus  `json:"syncs"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon reachability and sync cursors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			report, err := buildStatusReport(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
			if report.Daemon != nil {
				fmt.Fprintln(out, renderTagged("authindexd", "up", ansiGreen, fmt.Sprintf("pid %d", report.Daemon.PID), colorize))
			} else {
				fmt.Fprintln(out, renderTagged("authindexd", "down", ansiYellow, report.DaemonError, colorize))
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, renderSectionHeader("Syncs", colorize))
			for _, st := range report.Syncs {
				for _, line := range renderSyncStatus(st, colorize) {
					fmt.Fprintln(out, line)
				}
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, renderSectionHeader("Paths", colorize))
			fmt.Fprintln(out, renderTagged("index", "", "", report.IndexPath, false))
			fmt.Fprintln(out, renderTagged("state", "", "", report.StatePath, false))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func buildStatusReport(ctx context.Context, cfg *config.Config) (statusReport, error) {
	report := statusReport{IndexPath: cfg.IndexPath(), StatePath: cfg.StatePath()}

	state, err := syncstate.Open(cfg.StatePath())
	if err != nil {
		return report, fmt.Errorf("open sync state: %w", err)
	}
	defer state.Close()
	for _, indexType := range []string{config.IndexTypeAuthority, config.IndexTypeBibliographic} {
		cur, err := state.Get(ctx, indexType)
		if err != nil {
			return report, err
		}
		report.Syncs = append(report.Syncs, api.FromSyncStatus(updater.Status{
			IndexType:      indexType,
			InProgress:     cur.InProgress,
			RunID:          cur.RunID,
			LastSyncTime:   cur.LastSyncTime,
			LastStartedAt:  cur.LastStartedAt,
			LastFinishedAt: cur.LastFinishedAt,
			LastError:      cur.LastError,
			LastResult:     cur.LastResult,
		}))
	}

	daemon, err := probeDaemon(ctx, cfg.Paths.APIBind)
	if err != nil {
		report.DaemonError = err.Error()
	} else {
		report.Daemon = daemon
		// The daemon also knows about runs it has claimed but not yet
		// persisted, so its view wins.
		if len(daemon.Syncs) > 0 {
			report.Syncs = daemon.Syncs
		}
	}
	return report, nil
}

// probeDaemon asks a local authindexd for its status. Wildcard binds are
// probed on loopback.
func probeDaemon(ctx context.Context, bind string) (*api.DaemonStatus, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return nil, fmt.Errorf("api_bind %q: %w", bind, err)
	}
	if port == "0" {
		return nil, fmt.Errorf("api_bind %q uses an ephemeral port", bind)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	ctx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+net.JoinHostPort(host, port)+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("not reachable at %s", net.JoinHostPort(host, port))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}
