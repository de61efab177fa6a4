package authority

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"authindex/internal/marc"
)

const dmsLength = 8

// Coordinates converts the first 034 field into a "W,E,N,S"-ordered bounding
// box string built from subfields d,f,e,g. Each of the four subfields must
// appear exactly once as an 8-character hemisphere+DDDMMSS value; anything else
// yields an empty string.
func Coordinates(rec *marc.Record) string {
	field, ok := rec.First("034")
	if !ok {
		return ""
	}
	var values [4]float64
	for i, code := range []string{"d", "e", "f", "g"} {
		found := field.SubfieldValues(code)
		if len(found) != 1 {
			return ""
		}
		v, err := dmsToDecimal(found[0])
		if err != nil {
			return ""
		}
		values[i] = v
	}
	return strings.Join([]string{
		formatCoord(values[0]),
		formatCoord(values[2]),
		formatCoord(values[1]),
		formatCoord(values[3]),
	}, ",")
}

func dmsToDecimal(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != dmsLength || strings.Contains(raw, ".") {
		return 0, fmt.Errorf("coordinate %q is not hDDDMMSS", raw)
	}
	d, errD := strconv.Atoi(raw[1:4])
	m, errM := strconv.Atoi(raw[4:6])
	s, errS := strconv.Atoi(raw[6:8])
	if errD != nil || errM != nil || errS != nil {
		return 0, fmt.Errorf("coordinate %q has non-numeric parts", raw)
	}
	sign := -1.0
	if raw[0] == 'N' || raw[0] == 'E' {
		sign = 1
	}
	return (float64(d) + float64(m)/60 + float64(s)/3600) * sign, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}
