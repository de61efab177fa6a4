package marc

import "strings"

const blankIndicator = ' '

// Subfield is one coded value inside a data field.
type Subfield struct {
	Code  string
	Value string
}

// Field is either a control field (Value set, no subfields) or a data field
// (indicators and subfields set).
type Field struct {
	Tag       string
	Ind1      byte
	Ind2      byte
	Value     string
	Subfields []Subfield
}

// Record is one MARC record.
type Record struct {
	Leader string
	Fields []Field
}

// IsControl reports whether the field carries a control-range tag.
func (f Field) IsControl() bool {
	return isControlTag(f.Tag)
}

// SubfieldValues returns the values of subfields whose code is one of the
// bytes in codes, in field order. An empty codes string selects every
// subfield. Codes that are not exactly one byte long never match a non-empty
// codes string.
func (f Field) SubfieldValues(codes string) []string {
	values := make([]string, 0, len(f.Subfields))
	for _, sf := range f.Subfields {
		if codes == "" || (len(sf.Code) == 1 && strings.IndexByte(codes, sf.Code[0]) >= 0) {
			values = append(values, sf.Value)
		}
	}
	return values
}

// Subfield returns the first value for code.
func (f Field) Subfield(code string) (string, bool) {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf.Value, true
		}
	}
	return "", false
}

// Text renders the field as display text: the value of a control field, or the
// subfield values joined by single spaces.
func (f Field) Text() string {
	if f.IsControl() || len(f.Subfields) == 0 {
		return f.Value
	}
	return strings.Join(f.SubfieldValues(""), " ")
}

// ControlValue returns the value of the first control field with tag.
func (r *Record) ControlValue(tag string) string {
	if r == nil {
		return ""
	}
	for _, f := range r.Fields {
		if f.Tag == tag {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// First returns the first field with tag.
func (r *Record) First(tag string) (Field, bool) {
	if r != nil {
		for _, f := range r.Fields {
			if f.Tag == tag {
				return f, true
			}
		}
	}
	return Field{}, false
}

// FieldsByTag returns every field whose tag is one of tags, in record order.
func (r *Record) FieldsByTag(tags ...string) []Field {
	if r == nil {
		return nil
	}
	var out []Field
	for _, f := range r.Fields {
		for _, tag := range tags {
			if f.Tag == tag {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// isControlTag reports whether tag is a three-digit number below 010.
func isControlTag(tag string) bool {
	if len(tag) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if tag[i] < '0' || tag[i] > '9' {
			return false
		}
	}
	return tag < "010"
}

// validDataTag reports whether tag may carry a data field. Tags inside the
// control range are reserved.
func validDataTag(tag string) bool {
	return len(tag) == 3 && !isControlTag(tag)
}

// indicator coerces a raw indicator value to one printable ASCII byte.
func indicator(raw string) byte {
	if len(raw) != 1 {
		return blankIndicator
	}
	c := raw[0]
	if c < 0x20 || c > 0x7e {
		return blankIndicator
	}
	return c
}
