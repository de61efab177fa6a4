package testsupport

import (
	"bytes"
	"encoding/xml"
	"testing"

	"authindex/internal/marc"
)

// RecordOption customizes an authority record built by AuthorityRecord.
type RecordOption func(*marc.Record)

// AuthorityRecord builds an authority record with a 001 and one heading field
// whose $a holds heading.
func AuthorityRecord(nativeID, tag, heading string, opts ...RecordOption) *marc.Record {
	rec := &marc.Record{Leader: "00000nz  a2200000n  4500"}
	if nativeID != "" {
		rec.Fields = append(rec.Fields, marc.Field{Tag: "001", Value: nativeID})
	}
	if tag != "" {
		rec.Fields = append(rec.Fields, DataField(tag, "a", heading))
	}
	for _, opt := range opts {
		opt(rec)
	}
	return rec
}

// BibRecord builds a bibliographic record carrying the given fields.
func BibRecord(nativeID string, fields ...marc.Field) *marc.Record {
	rec := &marc.Record{Leader: "00000nam a2200000 i 4500"}
	rec.Fields = append(rec.Fields, marc.Field{Tag: "001", Value: nativeID})
	rec.Fields = append(rec.Fields, fields...)
	return rec
}

// DataField builds a data field with blank indicators from code/value pairs.
func DataField(tag string, pairs ...string) marc.Field {
	f := marc.Field{Tag: tag, Ind1: ' ', Ind2: ' '}
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Subfields = append(f.Subfields, marc.Subfield{Code: pairs[i], Value: pairs[i+1]})
	}
	return f
}

// WithAltID adds a 009 control field.
func WithAltID(id string) RecordOption {
	return func(r *marc.Record) {
		r.Fields = append(r.Fields, marc.Field{Tag: "009", Value: id})
	}
}

// WithSourceID adds a 010 $a.
func WithSourceID(id string) RecordOption {
	return func(r *marc.Record) {
		r.Fields = append(r.Fields, DataField("010", "a", id))
	}
}

// WithViaf adds a 024 carrying a VIAF URI.
func WithViaf(uri string) RecordOption {
	return func(r *marc.Record) {
		r.Fields = append(r.Fields, DataField("024", "a", uri, "2", "viaf"))
	}
}

// WithField appends an arbitrary field.
func WithField(f marc.Field) RecordOption {
	return func(r *marc.Record) {
		r.Fields = append(r.Fields, f)
	}
}

// MARCXML serializes records as a namespaced collection.
func MARCXML(t testing.TB, records ...*marc.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := marc.WriteCollection(&buf, records, nil); err != nil {
		t.Fatalf("write collection: %v", err)
	}
	return buf.Bytes()
}

// UpstreamPage wraps records in the upstream paging envelope. An empty next
// yields an empty nextPage element.
func UpstreamPage(t testing.TB, next string, records ...*marc.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("<resp><nextPage>")
	if err := xml.EscapeText(&buf, []byte(next)); err != nil {
		t.Fatalf("escape next page: %v", err)
	}
	buf.WriteString("</nextPage>")
	if err := marc.WriteCollection(&buf, records, nil); err != nil {
		t.Fatalf("write collection: %v", err)
	}
	buf.WriteString("</resp>")
	return buf.Bytes()
}
