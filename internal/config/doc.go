// Package config loads, normalizes, and validates authindex configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AUTHINDEX_UPSTREAM_URL. The Config type centralizes every knob the daemon and
// CLI need, from upstream pacing to the heading tag priority used by the
// identity index.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
