package authority

import (
	"errors"
	"strings"

	"authindex/internal/marc"
)

var (
	// ErrMissingNativeID marks a record without a 001 control number.
	ErrMissingNativeID = errors.New("record has no native id")
	// ErrMissingHeading marks a record carrying none of the heading tags.
	ErrMissingHeading = errors.New("record has no heading field")
)

// Extractor builds entries from authority records.
type Extractor struct {
	headingTags []string
}

// NewExtractor returns an extractor scanning headingTags in priority order.
func NewExtractor(headingTags []string) *Extractor {
	return &Extractor{headingTags: append([]string(nil), headingTags...)}
}

// HeadingTags returns the configured priority order.
func (x *Extractor) HeadingTags() []string {
	return append([]string(nil), x.headingTags...)
}

// LeastPreferredTag returns the last tag of the priority order.
func (x *Extractor) LeastPreferredTag() string {
	if len(x.headingTags) == 0 {
		return ""
	}
	return x.headingTags[len(x.headingTags)-1]
}

// Extract builds the candidate entry for rec. Only the first heading tag
// present contributes, even when the record carries several.
func (x *Extractor) Extract(rec *marc.Record) (*Entry, error) {
	nativeID := rec.ControlValue("001")
	if nativeID == "" {
		return nil, ErrMissingNativeID
	}
	entry := &Entry{
		NativeID: nativeID,
		AltID:    rec.ControlValue("009"),
		SourceID: sourceID(rec),
		ViafURI:  viafURI(rec),
		Coords:   Coordinates(rec),
	}
	for _, tag := range x.headingTags {
		if field, ok := rec.First(tag); ok {
			entry.Heading = strings.TrimSpace(field.Text())
			entry.HeadingTag = tag
			break
		}
	}
	if entry.HeadingTag == "" || entry.NormalizedHeading() == "" {
		return entry, ErrMissingHeading
	}
	return entry, nil
}

func sourceID(rec *marc.Record) string {
	field, ok := rec.First("010")
	if !ok {
		return ""
	}
	if v, ok := field.Subfield("a"); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(field.Text())
}

func viafURI(rec *marc.Record) string {
	for _, field := range rec.FieldsByTag("024") {
		source, ok := field.Subfield("2")
		if !ok || source != "viaf" {
			continue
		}
		if v, ok := field.Subfield("a"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
