// Package enrich injects authority identifiers into bibliographic records.
//
// A batch is processed in three passes: terms are extracted from every record
// by a bounded worker pool into per-record slots, distinct terms are looked up
// against the identity index in parallel chunks, and an immutable injection
// plan is built that the MARCXML writer applies on output. Records themselves
// are never modified, and output order always matches input order.
package enrich
