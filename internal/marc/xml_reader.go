package marc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"authindex/internal/logging"
	"authindex/internal/textutil"
)

// Page is one upstream response: its records plus the continuation token found
// in the first child of the document root.
type Page struct {
	Next    string
	Records []*Record
}

// XMLReader streams records out of a MARCXML document. Element names are
// matched by local name, so namespaced and unprefixed documents read the same.
type XMLReader struct {
	dec    *xml.Decoder
	logger *slog.Logger

	depth       int
	sawChild    bool
	next        string
	index       int
	done        bool
	syntaxError error
}

// NewXMLReader wraps r in a non-strict XML decoder.
func NewXMLReader(r io.Reader, opts ...ReaderOption) *XMLReader {
	o := buildOptions(opts)
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.CharsetReader = charsetReader
	return &XMLReader{dec: dec, logger: o.logger}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// ContinuationToken returns the pagination token seen so far. It is complete
// once the root's first child has been read, which happens before the first
// record of a paginated response.
func (r *XMLReader) ContinuationToken() string {
	return r.next
}

// SyntaxError returns the XML syntax error that ended the stream early, if any.
func (r *XMLReader) SyntaxError() error {
	return r.syntaxError
}

// Next returns the next record or io.EOF. Syntax errors end the stream without
// being returned; they are logged and exposed through SyntaxError.
func (r *XMLReader) Next() (*Record, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, r.finish(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "record" {
				r.sawChild = r.sawChild || r.depth == 1
				rec, err := r.readRecord()
				if err != nil {
					return nil, r.finish(err)
				}
				r.index++
				return rec, nil
			}
			if r.depth == 1 && !r.sawChild {
				r.sawChild = true
				if name != "collection" {
					text, err := r.readText()
					if err != nil {
						return nil, r.finish(err)
					}
					r.next = strings.TrimSpace(text)
					continue
				}
			}
			r.depth++
		case xml.EndElement:
			if r.depth > 0 {
				r.depth--
			}
		}
	}
}

func (r *XMLReader) finish(err error) error {
	r.done = true
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		r.syntaxError = err
		logging.WarnWithContext(r.logger, "marcxml stream truncated by syntax error", "marcxml_syntax_error",
			logging.Int("records_read", r.index),
			logging.Error(err),
			logging.String(logging.FieldImpact, "records after the malformed fragment are skipped"),
		)
		return io.EOF
	}
	return err
}

func (r *XMLReader) readRecord() (*Record, error) {
	rec := &Record{}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "leader":
				text, err := r.readText()
				if err != nil {
					return nil, err
				}
				rec.Leader = text
			case "controlfield":
				tag := attr(t, "tag")
				text, err := r.readText()
				if err != nil {
					return nil, err
				}
				if !isControlTag(tag) {
					r.elided("controlfield", tag)
					continue
				}
				rec.Fields = append(rec.Fields, Field{Tag: tag, Value: textutil.NFC(text)})
			case "datafield":
				tag := attr(t, "tag")
				if !validDataTag(tag) {
					r.elided("datafield", tag)
					if err := r.dec.Skip(); err != nil {
						return nil, err
					}
					continue
				}
				field, err := r.readDataField(t, tag)
				if err != nil {
					return nil, err
				}
				rec.Fields = append(rec.Fields, field)
			default:
				if err := r.dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "record" {
				return rec, nil
			}
		}
	}
}

func (r *XMLReader) readDataField(start xml.StartElement, tag string) (Field, error) {
	field := Field{
		Tag:  tag,
		Ind1: indicator(attr(start, "ind1")),
		Ind2: indicator(attr(start, "ind2")),
	}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return field, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "subfield" {
				if err := r.dec.Skip(); err != nil {
					return field, err
				}
				continue
			}
			code := attr(t, "code")
			text, err := r.readText()
			if err != nil {
				return field, err
			}
			field.Subfields = append(field.Subfields, Subfield{Code: code, Value: textutil.NFC(text)})
		case xml.EndElement:
			return field, nil
		}
	}
}

// readText collects character data up to the end of the current element,
// skipping any nested elements.
func (r *XMLReader) readText() (string, error) {
	var b strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return b.String(), err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if err := r.dec.Skip(); err != nil {
				return b.String(), err
			}
		case xml.EndElement:
			return b.String(), nil
		}
	}
}

func (r *XMLReader) elided(kind, tag string) {
	r.logger.Debug("malformed field elided",
		logging.String("kind", kind),
		logging.String("tag", tag),
		logging.Int("record_index", r.index),
		logging.String(logging.FieldEventType, "marc_field_elided"),
	)
}

func attr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// ReadPage decodes a whole response document.
func ReadPage(r io.Reader, opts ...ReaderOption) (Page, error) {
	reader := NewXMLReader(r, opts...)
	var page Page
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return page, err
		}
		page.Records = append(page.Records, rec)
	}
	page.Next = reader.ContinuationToken()
	return page, nil
}
