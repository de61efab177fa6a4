// Package main hosts the authindex operator CLI.
//
// The Cobra command tree wraps the internal packages for offline work: bulk
// index builds from authority dumps, external identifier joins, one-shot
// syncs, lookups, offline enrichment of MARCXML files and configuration
// scaffolding. Commands that touch the identity index open it directly, so
// they cannot run while authindexd holds the same data directory; status
// reads the cursor database and probes the daemon over HTTP instead.
package main
