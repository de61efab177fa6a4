// Package api defines wire-format types and converters for the HTTP API and
// the CLI's JSON output. It translates sync status, lookup and stats results
// into transport-friendly DTOs so that clients do not couple to internal types.
//
// # Key Types
//
// SyncStatus: cursor state of one index type with RFC3339 timestamps.
//
// StartSyncResponse: accepted/busy outcome of a sync request plus the current
// status of that index type.
//
// AuthorityRecord: stored entry of a native id merged with its external ids.
//
// DaemonStatus: lock, storage paths and per-type sync state.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// are omitted when zero. The last sync result is passed through as
// json.RawMessage to avoid double-encoding.
package api
