package extids

const (
	geonamesPrefix = "http://sws.geonames.org/"
	wikidataPrefix = "http://www.wikidata.org/entity/"
)

// Format renders a candidate id for a source format. Unknown formats and
// "verbatim" return id unchanged.
func Format(format, id string) string {
	switch format {
	case "geonames":
		return geonamesPrefix + id
	case "wikidata":
		return wikidataPrefix + id
	default:
		return id
	}
}
