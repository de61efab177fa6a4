package authority

import "authindex/internal/textutil"

// Entry is the payload stored under both the id key and the heading key of the
// identity index.
type Entry struct {
	NativeID   string `json:"nativeId"`
	AltID      string `json:"altId"`
	SourceID   string `json:"sourceId"`
	ViafURI    string `json:"viafUri"`
	Coords     string `json:"coords"`
	Heading    string `json:"heading"`
	HeadingTag string `json:"headingTag"`
}

// NormalizedHeading returns the heading lookup key.
func (e *Entry) NormalizedHeading() string {
	if e == nil {
		return ""
	}
	return textutil.NormalizeHeading(e.Heading)
}

// TranslatedID returns the key of this entry in the external identifier map.
func (e *Entry) TranslatedID() string {
	if e == nil {
		return ""
	}
	return textutil.TranslateID(e.NativeID)
}
