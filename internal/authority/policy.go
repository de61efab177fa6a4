package authority

// Kind classifies a heading collision for the duplicate logs.
type Kind string

const (
	// KindNone marks a candidate that met no existing winner.
	KindNone Kind = ""
	// KindIntraField marks a collision between entries from the same tag.
	KindIntraField Kind = "intrafield"
	// KindInterField marks a collision between entries from different tags.
	KindInterField Kind = "interfield"
)

// Decision is the outcome of a tie-break.
type Decision struct {
	Accept bool
	Rule   int
	Kind   Kind
}

// Reason describes the decision for logs.
func (d Decision) Reason() string {
	switch d.Rule {
	case 1:
		return "least preferred tag cannot displace a preferred winner"
	case 2, 3:
		if d.Accept {
			return "winner has no source id; latest candidate replaces it"
		}
		return "winner has a source id"
	default:
		return "no existing winner"
	}
}

// Policy decides which of two entries sharing a normalized heading is kept.
type Policy struct {
	leastPreferred string
}

// NewPolicy returns a policy whose least-preferred tag is the last entry of
// headingTags.
func NewPolicy(headingTags []string) Policy {
	var least string
	if len(headingTags) > 0 {
		least = headingTags[len(headingTags)-1]
	}
	return Policy{leastPreferred: least}
}

// LeastPreferredTag returns the tag that never displaces another tag.
func (p Policy) LeastPreferredTag() string {
	return p.leastPreferred
}

// Decide applies the tie-break rules in order. A nil winner always accepts.
func (p Policy) Decide(winner, candidate *Entry) Decision {
	if winner == nil {
		return Decision{Accept: true, Rule: 4, Kind: KindNone}
	}
	if winner.HeadingTag != p.leastPreferred && candidate.HeadingTag == p.leastPreferred {
		return Decision{Accept: false, Rule: 1, Kind: KindInterField}
	}
	if winner.HeadingTag == candidate.HeadingTag {
		return Decision{Accept: winner.SourceID == "", Rule: 2, Kind: KindIntraField}
	}
	return Decision{Accept: winner.SourceID == "", Rule: 3, Kind: KindInterField}
}
