// Package logging assembles structured slog loggers and formatting helpers used
// across authindex.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so index writers and the API can
// tag log lines with index types, run IDs, and correlation IDs. Dedicated file
// loggers and the tee handler back the duplicate-heading logs written during
// index builds. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
