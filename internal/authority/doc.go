// Package authority turns authority records into identity index entries and
// decides which entry wins when several claim the same normalized heading.
//
// Extraction takes the first heading-bearing tag present in the configured
// priority order, so every record yields at most one candidate. Policy
// implements the tie-break rules shared by the bulk indexer and the
// synchronizer, and DuplicateLog records every collision to a combined log plus
// an inter-field or intra-field log for curation.
package authority
