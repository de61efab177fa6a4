package marc

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"
)

// Namespace is the MARCXML slim schema namespace.
const Namespace = "http://www.loc.gov/MARC21/slim"

// Injections maps record index to field index to subfields appended to that
// field on output. The source records are never modified.
type Injections map[int]map[int][]Subfield

// Add appends subfields to the plan for one field occurrence.
func (in Injections) Add(record, field int, subfields ...Subfield) {
	if len(subfields) == 0 {
		return
	}
	fields, ok := in[record]
	if !ok {
		fields = make(map[int][]Subfield)
		in[record] = fields
	}
	fields[field] = append(fields[field], subfields...)
}

// Count returns the number of planned subfields.
func (in Injections) Count() int {
	n := 0
	for _, fields := range in {
		for _, subs := range fields {
			n += len(subs)
		}
	}
	return n
}

// WriteCollection serializes records inside a <collection> element, applying
// the injection plan.
func WriteCollection(w io.Writer, records []*Record, plan Injections) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(`<collection xmlns="` + Namespace + `">`)
	for i, rec := range records {
		writeRecord(bw, rec, plan[i], false)
	}
	bw.WriteString("</collection>")
	return bw.Flush()
}

// EncodeRecord serializes a single record as a standalone MARCXML element.
func EncodeRecord(rec *Record) []byte {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	writeRecord(bw, rec, nil, true)
	_ = bw.Flush()
	return buf.Bytes()
}

func writeRecord(bw *bufio.Writer, rec *Record, extra map[int][]Subfield, standalone bool) {
	if standalone {
		bw.WriteString(`<record xmlns="` + Namespace + `">`)
	} else {
		bw.WriteString("<record>")
	}
	if rec == nil {
		bw.WriteString("</record>")
		return
	}
	if rec.Leader != "" {
		bw.WriteString("<leader>")
		escape(bw, rec.Leader)
		bw.WriteString("</leader>")
	}
	for i, f := range rec.Fields {
		if f.IsControl() {
			bw.WriteString(`<controlfield tag="`)
			escape(bw, f.Tag)
			bw.WriteString(`">`)
			escape(bw, f.Value)
			bw.WriteString("</controlfield>")
			continue
		}
		bw.WriteString(`<datafield tag="`)
		escape(bw, f.Tag)
		bw.WriteString(`" ind1="`)
		escape(bw, string(orBlank(f.Ind1)))
		bw.WriteString(`" ind2="`)
		escape(bw, string(orBlank(f.Ind2)))
		bw.WriteString(`">`)
		for _, sf := range f.Subfields {
			writeSubfield(bw, sf)
		}
		for _, sf := range extra[i] {
			writeSubfield(bw, sf)
		}
		bw.WriteString("</datafield>")
	}
	bw.WriteString("</record>")
}

func writeSubfield(bw *bufio.Writer, sf Subfield) {
	bw.WriteString(`<subfield code="`)
	escape(bw, sf.Code)
	bw.WriteString(`">`)
	escape(bw, sf.Value)
	bw.WriteString("</subfield>")
}

func escape(w io.Writer, s string) {
	_ = xml.EscapeText(w, []byte(s))
}

func orBlank(b byte) []byte {
	if b == 0 {
		return []byte{blankIndicator}
	}
	return []byte{b}
}
