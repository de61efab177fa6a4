// Package services defines shared error and context utilities consumed by the
// index writers, the synchronizer, and the API layer.
//
// Key responsibilities:
//   - Context helpers that stamp index types, run identifiers, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, with classification into
//     retryable failures and HTTP status codes.
//
// Use these helpers when wiring new components so failure reporting stays
// uniform between the CLI and the daemon API.
package services
