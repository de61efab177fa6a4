package marc

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Formats accepted by NewReader.
const (
	FormatAuto     = "auto"
	FormatXML      = "marcxml"
	FormatISO2709  = "iso2709"
	sniffPeekBytes = 512
)

// RecordReader yields records until io.EOF.
type RecordReader interface {
	Next() (*Record, error)
}

// NewReader returns a reader for format. FormatAuto inspects the first
// non-whitespace byte: '<' selects MARCXML, anything else ISO 2709.
func NewReader(r io.Reader, format string, opts ...ReaderOption) (RecordReader, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatXML, "xml":
		return NewXMLReader(r, opts...), nil
	case FormatISO2709, "mrc":
		return NewISO2709Reader(r, opts...), nil
	case FormatAuto, "":
		br := bufio.NewReader(r)
		head, _ := br.Peek(sniffPeekBytes)
		trimmed := strings.TrimLeft(strings.TrimPrefix(string(head), "\ufeff"), " \t\r\n")
		if strings.HasPrefix(trimmed, "<") {
			return NewXMLReader(br, opts...), nil
		}
		return NewISO2709Reader(br, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported record format %q", format)
	}
}
