package enrich

import (
	"context"
	"fmt"
	"strings"

	"authindex/internal/authority"
	"authindex/internal/logging"
	"authindex/internal/marc"
)

// DefaultDescriptorLinkBase prefixes native ids in linked-data views.
const DefaultDescriptorLinkBase = "https://dbn.bn.org.pl/descriptor-details/"

// RoleLabels names the role an access point plays in a bibliographic record,
// keyed by field tag. The labels are shown verbatim to catalog users.
var RoleLabels = map[string]string{
	"100": "Twórca/współtwórca",
	"110": "Twórca/współtwórca",
	"111": "Twórca/współtwórca",
	"700": "Twórca/współtwórca",
	"710": "Twórca/współtwórca",
	"711": "Twórca/współtwórca",
	"130": "Tytuł ujednolicony",
	"730": "Tytuł ujednolicony",
	"600": "Temat: osoba",
	"610": "Temat: instytucja",
	"611": "Temat: wydarzenie",
	"630": "Temat: dzieło",
	"648": "Temat: czas",
	"650": "Temat",
	"651": "Temat: miejsce",
	"655": "Rodzaj/gatunek",
	"658": "Dziedzina/ujęcie",
	"380": "Forma/typ",
	"385": "Odbiorca",
	"386": "Przynależność kulturowa",
	"388": "Czas powstania dzieła/realizacji",
	"830": "Seria/tytuł ujednolicony",
}

// Identifier type labels of the linked-data view.
const (
	LabelNativeID = "Identyfikator BN"
	LabelViaf     = "Identyfikator VIAF (URI)"
	LabelWikidata = "Identyfikator Wikidata (URI)"
	LabelCoords   = "Współrzędne geograficzne"
	LabelGeonames = "Identyfikator Geonames (URI)"
)

// LinkedIdentifier is one displayable identifier with its link.
type LinkedIdentifier struct {
	Type    string `json:"type"`
	Display string `json:"display"`
	Link    string `json:"link"`
}

// LinkedSubject is one resolved authority.
type LinkedSubject struct {
	Name        string             `json:"name"`
	Identifiers []LinkedIdentifier `json:"identifiers"`
}

// LinkedDescriptor groups the subjects sharing a role label.
type LinkedDescriptor struct {
	Name     string          `json:"name"`
	Subjects []LinkedSubject `json:"subjects"`
}

// LinkedData is the role-grouped view of one bibliographic record.
type LinkedData struct {
	Descriptors []LinkedDescriptor `json:"descriptors"`
	Partial     bool               `json:"-"`
}

// Subjects counts the subjects across all descriptors.
func (d LinkedData) Subjects() int {
	n := 0
	for _, desc := range d.Descriptors {
		n += len(desc.Subjects)
	}
	return n
}

// WithDescriptorLinkBase overrides the prefix used to link native ids.
func WithDescriptorLinkBase(base string) Option {
	return func(r *Resolver) {
		if strings.TrimSpace(base) != "" {
			r.descriptorBase = base
		}
	}
}

// Describe resolves the access points of rec in all-ids mode and groups the
// hits by role label. Roles and subjects keep the order in which their fields
// appear in the record; a term seen twice under one role is listed once.
// Unresolved terms are omitted.
func (r *Resolver) Describe(ctx context.Context, rec *marc.Record) (LinkedData, error) {
	var data LinkedData
	if rec == nil {
		return data, nil
	}
	occ, err := r.Extract(ctx, []*marc.Record{rec})
	if err != nil {
		return data, err
	}
	entries, err := r.lookupHeadings(ctx, occ.Terms)
	if err != nil {
		if ctx.Err() != nil {
			return data, ctx.Err()
		}
		logging.WarnWithContext(r.logger, "identity lookup failed; linked view is empty", "linked_lookup_failed",
			logging.String("native_id", rec.ControlValue("001")),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the index store"),
		)
		data.Partial = true
		return data, nil
	}
	external, err := r.lookupExternal(ctx, entries)
	if err != nil {
		if ctx.Err() != nil {
			return data, ctx.Err()
		}
		r.logger.Warn("external id lookup failed; linked view carries internal ids only", logging.Error(err))
		data.Partial = true
	}

	resolved := make(map[int]*authority.Entry)
	for i, term := range occ.Terms {
		if entries[i] == nil {
			continue
		}
		for _, o := range occ.ByTerm[term] {
			resolved[o.Field] = entries[i]
		}
	}

	roles := make(map[string]int)
	listed := make(map[string]struct{})
	for i, f := range rec.Fields {
		e, ok := resolved[i]
		if !ok {
			continue
		}
		role := RoleLabels[f.Tag]
		if role == "" {
			role = f.Tag
		}
		key := role + "\x00" + e.NormalizedHeading()
		if _, dup := listed[key]; dup {
			continue
		}
		listed[key] = struct{}{}
		idx, ok := roles[role]
		if !ok {
			idx = len(data.Descriptors)
			roles[role] = idx
			data.Descriptors = append(data.Descriptors, LinkedDescriptor{Name: role})
		}
		data.Descriptors[idx].Subjects = append(data.Descriptors[idx].Subjects, LinkedSubject{
			Name:        e.Heading,
			Identifiers: r.linkedIdentifiers(e, external[e.TranslatedID()]),
		})
	}
	return data, nil
}

func (r *Resolver) linkedIdentifiers(e *authority.Entry, external map[string]string) []LinkedIdentifier {
	ids := []LinkedIdentifier{{Type: LabelNativeID, Display: e.NativeID, Link: r.descriptorBase + e.NativeID}}
	if e.ViafURI != "" {
		ids = append(ids, LinkedIdentifier{Type: LabelViaf, Display: e.ViafURI, Link: e.ViafURI})
	}
	if uri := external["wikidata_uri"]; uri != "" {
		ids = append(ids, LinkedIdentifier{Type: LabelWikidata, Display: uri, Link: uri})
	}
	if id, ok := coordsIdentifier(e.Coords); ok {
		ids = append(ids, id)
	}
	if uri := external["geonames_uri"]; uri != "" {
		ids = append(ids, LinkedIdentifier{Type: LabelGeonames, Display: uri, Link: uri})
	}
	return ids
}

// coordsIdentifier reads the west and south edges of a "W,S,E,N" box as the
// point to show on a map.
func coordsIdentifier(coords string) (LinkedIdentifier, bool) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return LinkedIdentifier{}, false
	}
	lon, lat := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if lon == "" || lat == "" {
		return LinkedIdentifier{}, false
	}
	return LinkedIdentifier{
		Type:    LabelCoords,
		Display: fmt.Sprintf("długość: %s, szerokość: %s", lon, lat),
		Link:    fmt.Sprintf("http://www.openstreetmap.org/?mlat=%s&mlon=%s&zoom=6", lat, lon),
	}, true
}
