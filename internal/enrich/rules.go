package enrich

import (
	"fmt"
	"strings"

	"authindex/internal/marc"
	"authindex/internal/services"
	"authindex/internal/textutil"
)

// Mode selects which identifiers are injected.
type Mode string

const (
	ModeNative Mode = "native"
	ModeAlt    Mode = "alt"
	ModeAll    Mode = "all"
)

// ParseMode validates an identifier mode name.
func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case ModeNative, ModeAlt, ModeAll:
		return m, nil
	default:
		return "", services.Wrap(services.ErrValidation, "enrich", "parse mode", fmt.Sprintf("unknown identifier mode %q", value), nil)
	}
}

// Rule names a field tag and the subfield codes whose values form its term.
type Rule struct {
	Tag       string
	Subfields string
}

const (
	personSubfields = "abcd"
	groupSubfields  = "abcdn"
	titleSubfields  = "adfklmnoprs"
)

// DefaultRules lists the access point fields scanned in bibliographic records.
var DefaultRules = []Rule{
	{"100", personSubfields}, {"110", groupSubfields}, {"111", groupSubfields},
	{"130", titleSubfields},
	{"600", personSubfields}, {"610", groupSubfields}, {"611", groupSubfields}, {"630", titleSubfields},
	{"648", "a"}, {"650", "a"}, {"651", "a"}, {"655", "a"}, {"658", "a"},
	{"700", personSubfields}, {"710", groupSubfields}, {"711", groupSubfields}, {"730", titleSubfields},
	{"830", titleSubfields},
	{"380", "a"}, {"385", "a"}, {"386", "a"}, {"388", "a"},
}

// Occurrence locates one field of one record in a batch.
type Occurrence struct {
	Record int
	Field  int
}

// TermOccurrences groups field occurrences by normalized term across a batch.
// Terms keeps first-seen order.
type TermOccurrences struct {
	Terms  []string
	ByTerm map[string][]Occurrence
}

type hit struct {
	term  string
	field int
}

type ruleSet map[string]string

func newRuleSet(rules []Rule) ruleSet {
	set := make(ruleSet, len(rules))
	for _, r := range rules {
		if _, ok := set[r.Tag]; !ok {
			set[r.Tag] = r.Subfields
		}
	}
	return set
}

// extract returns the non-empty terms of rec in field order.
func (rs ruleSet) extract(rec *marc.Record) []hit {
	if rec == nil {
		return nil
	}
	var hits []hit
	for i, f := range rec.Fields {
		codes, ok := rs[f.Tag]
		if !ok || f.IsControl() {
			continue
		}
		term := textutil.NormalizeHeading(strings.Join(f.SubfieldValues(codes), " "))
		if term == "" {
			continue
		}
		hits = append(hits, hit{term: term, field: i})
	}
	return hits
}

func merge(slots [][]hit) TermOccurrences {
	occ := TermOccurrences{ByTerm: make(map[string][]Occurrence)}
	for rec, hits := range slots {
		for _, h := range hits {
			if _, seen := occ.ByTerm[h.term]; !seen {
				occ.Terms = append(occ.Terms, h.term)
			}
			occ.ByTerm[h.term] = append(occ.ByTerm[h.term], Occurrence{Record: rec, Field: h.field})
		}
	}
	return occ
}
