package marc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"authindex/internal/logging"
	"authindex/internal/textutil"
)

const (
	recordTerminator   = 0x1d
	fieldTerminator    = 0x1e
	subfieldDelimiter  = 0x1f
	leaderLength       = 24
	directoryEntrySize = 12
)

// ISO2709Reader reads binary MARC records. Records are delimited by the record
// terminator rather than the leader length, so a corrupt record is skipped and
// reading resumes at the next terminator.
type ISO2709Reader struct {
	br      *bufio.Reader
	logger  *slog.Logger
	index   int
	skipped int
}

// NewISO2709Reader wraps r.
func NewISO2709Reader(r io.Reader, opts ...ReaderOption) *ISO2709Reader {
	o := buildOptions(opts)
	return &ISO2709Reader{br: bufio.NewReaderSize(r, 64*1024), logger: o.logger}
}

// Skipped returns how many corrupt records were dropped so far.
func (r *ISO2709Reader) Skipped() int {
	return r.skipped
}

// Next returns the next decodable record or io.EOF.
func (r *ISO2709Reader) Next() (*Record, error) {
	for {
		raw, err := r.br.ReadBytes(recordTerminator)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		raw = bytes.TrimLeft(raw, "\r\n\t ")
		if len(raw) == 0 {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}
		r.index++
		rec, parseErr := r.parse(raw)
		if parseErr == nil {
			return rec, nil
		}
		r.skipped++
		logging.WarnWithContext(r.logger, "corrupt iso2709 record skipped", "iso2709_record_skipped",
			logging.Int("record_index", r.index),
			logging.Error(parseErr),
			logging.String(logging.FieldImpact, "record is not indexed"),
		)
		if err != nil {
			return nil, io.EOF
		}
	}
}

func (r *ISO2709Reader) parse(data []byte) (*Record, error) {
	if len(data) < leaderLength+1 {
		return nil, fmt.Errorf("record too short (%d bytes)", len(data))
	}
	base, err := strconv.Atoi(string(data[12:17]))
	if err != nil {
		return nil, fmt.Errorf("invalid base address %q", data[12:17])
	}
	if base <= leaderLength || base > len(data) {
		return nil, fmt.Errorf("base address %d out of range", base)
	}
	directory := bytes.TrimRight(data[leaderLength:base], string(rune(fieldTerminator)))
	if len(directory)%directoryEntrySize != 0 {
		return nil, fmt.Errorf("directory length %d is not a multiple of %d", len(directory), directoryEntrySize)
	}

	rec := &Record{Leader: decodeText(data[:leaderLength])}
	for off := 0; off < len(directory); off += directoryEntrySize {
		entry := directory[off : off+directoryEntrySize]
		tag := string(entry[0:3])
		length, lenErr := strconv.Atoi(string(entry[3:7]))
		start, offErr := strconv.Atoi(string(entry[7:12]))
		if lenErr != nil || offErr != nil {
			r.elided("directory", tag)
			continue
		}
		from, to := base+start, base+start+length
		if from > len(data) || to > len(data) || length <= 0 {
			r.elided("directory", tag)
			continue
		}
		body := bytes.TrimRight(data[from:to], string([]byte{fieldTerminator, recordTerminator}))

		switch {
		case isControlTag(tag):
			rec.Fields = append(rec.Fields, Field{Tag: tag, Value: decodeText(body)})
		case !bytes.Contains(body, []byte{subfieldDelimiter}):
			// a fixed-length body under a tag outside the control range
			r.elided("controlfield", tag)
		case !validDataTag(tag):
			r.elided("datafield", tag)
		default:
			rec.Fields = append(rec.Fields, parseDataField(tag, body))
		}
	}
	return rec, nil
}

func parseDataField(tag string, body []byte) Field {
	parts := bytes.Split(body, []byte{subfieldDelimiter})
	indicators := parts[0]
	field := Field{Tag: tag, Ind1: blankIndicator, Ind2: blankIndicator}
	if len(indicators) > 0 {
		field.Ind1 = indicator(string(indicators[0:1]))
	}
	if len(indicators) > 1 {
		field.Ind2 = indicator(string(indicators[1:2]))
	}
	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}
		field.Subfields = append(field.Subfields, Subfield{
			Code:  string(part[0:1]),
			Value: decodeText(part[1:]),
		})
	}
	return field
}

func (r *ISO2709Reader) elided(kind, tag string) {
	r.logger.Debug("malformed field elided",
		logging.String("kind", kind),
		logging.String("tag", tag),
		logging.Int("record_index", r.index),
		logging.String(logging.FieldEventType, "marc_field_elided"),
	)
}

func decodeText(b []byte) string {
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return textutil.NFC(s)
}
