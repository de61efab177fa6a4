// Package marc holds the MARC record model plus the permissive readers and the
// MARCXML writer used throughout authindex.
//
// Both readers (MARCXML via XMLReader, binary ISO 2709 via ISO2709Reader)
// apply the same tolerances so that structurally invalid upstream data never
// aborts a batch: control fields with unusable tags are dropped, data fields
// declaring a control-range tag are dropped together with their subfields, and
// missing or non-ASCII indicators become blanks. Text is normalized to NFC.
//
// Records are treated as immutable once read. Enrichment expresses additions
// as an Injections plan that WriteCollection applies during serialization.
package marc
