// Package daemon coordinates the long-running authindex process.
//
// It wires configuration, the service facade, the sync scheduler and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances per data directory. On start it clears running flags left in the
// cursor store by a crashed process.
//
// Keep orchestration logic here: indexing, sync and enrichment live in their
// respective packages while the daemon focuses on startup, shutdown, and
// request routing.
package daemon
