package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/segmentio/encoding/json"

	"authindex/internal/api"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusIndent     = "  "
	statusLabelWidth = 14
	statusTagWidth   = 8
)

// syncState is the coarse state of one index type's cursor.
type syncState int

const (
	syncNever syncState = iota
	syncIdle
	syncRunning
	syncFailed
)

func (s syncState) tag() string {
	switch s {
	case syncIdle:
		return "idle"
	case syncRunning:
		return "running"
	case syncFailed:
		return "failed"
	default:
		return "never"
	}
}

func (s syncState) color() string {
	switch s {
	case syncIdle:
		return ansiGreen
	case syncRunning:
		return ansiBlue
	case syncFailed:
		return ansiRed
	default:
		return ansiYellow
	}
}

func classifySync(s api.SyncStatus) syncState {
	switch {
	case s.InProgress:
		return syncRunning
	case s.LastError != "":
		return syncFailed
	case s.LastSyncTime != "":
		return syncIdle
	default:
		return syncNever
	}
}

// lastRun is the part of a persisted sync result the status view shows.
type lastRun struct {
	WindowFrom time.Time `json:"windowFrom"`
	WindowTo   time.Time `json:"windowTo"`
	Records    int       `json:"records"`
	Added      int       `json:"added"`
	Updated    int       `json:"updated"`
	Renamed    int       `json:"renamed"`
	Rejected   int       `json:"rejected"`
	Deleted    int       `json:"deleted"`
}

func decodeLastRun(raw []byte) (lastRun, bool) {
	var run lastRun
	if len(raw) == 0 || json.Unmarshal(raw, &run) != nil || run.WindowTo.IsZero() {
		return lastRun{}, false
	}
	return run, true
}

func formatWindow(from, to time.Time) string {
	return from.UTC().Format(time.RFC3339) + " .. " + to.UTC().Format(time.RFC3339)
}

func syncHeadline(s api.SyncStatus, state syncState) string {
	switch state {
	case syncRunning:
		return fmt.Sprintf("run %s started %s", s.RunID, s.LastStartedAt)
	case syncFailed:
		return "last run failed: " + s.LastError
	case syncIdle:
		return "synced through " + s.LastSyncTime
	default:
		return "never synced"
	}
}

// renderSyncStatus renders one cursor as a tagged headline followed by the
// window and counts of the last completed run, when one is recorded.
func renderSyncStatus(s api.SyncStatus, colorize bool) []string {
	state := classifySync(s)
	lines := []string{renderTagged(s.IndexType, state.tag(), state.color(), syncHeadline(s, state), colorize)}
	if state == syncFailed && s.LastSyncTime != "" {
		lines = append(lines, renderDetail("cursor", s.LastSyncTime+" (unchanged)"))
	}
	if run, ok := decodeLastRun(s.LastResult); ok {
		lines = append(lines,
			renderDetail("window", formatWindow(run.WindowFrom, run.WindowTo)),
			renderDetail("result", fmt.Sprintf("records %d, added %d, updated %d, renamed %d, rejected %d, deleted %d",
				run.Records, run.Added, run.Updated, run.Renamed, run.Rejected, run.Deleted)),
		)
	}
	return lines
}

func renderTagged(label, tag, color, message string, colorize bool) string {
	if message != "" {
		tag = fmt.Sprintf("%-*s", statusTagWidth, tag)
	}
	if colorize && color != "" {
		tag = color + tag + ansiReset
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label, tag)
	if message != "" {
		line += " " + message
	}
	return line
}

func renderDetail(key, value string) string {
	return fmt.Sprintf("%s%-*s %-*s %s", statusIndent, statusLabelWidth, "", statusTagWidth, key, value)
}

func renderSectionHeader(title string, colorize bool) string {
	line := strings.ToUpper(strings.TrimSpace(title))
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
