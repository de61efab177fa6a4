package textutil

import (
	"strconv"
	"strings"
)

const (
	nativeIDLength   = 14
	nativeIDMarker   = '0'
	nativeSuffixFrom = 7
	translatedPrefix = "a"
	bibPrefix        = "b"
	bibDigits        = 7
	bibPadding       = "000000"
)

// TranslateID maps a 14-character native id whose second character is '0' into
// the external-map numbering scheme: "a" + the 7-character suffix + its check
// digit. Ids of any other shape, or with a non-numeric suffix, are returned
// unchanged.
func TranslateID(id string) string {
	if len(id) != nativeIDLength || id[1] != nativeIDMarker {
		return id
	}
	suffix := id[nativeSuffixFrom:]
	check, ok := CheckDigit(suffix)
	if !ok {
		return id
	}
	return translatedPrefix + suffix + check
}

// CheckDigit computes the mod-11 check character for a digit string. Digits are
// weighted 2, 3, 4, ... from the rightmost one; a remainder of 10 yields "x".
// The boolean is false when digits is empty or holds a non-digit.
func CheckDigit(digits string) (string, bool) {
	if digits == "" {
		return "", false
	}
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return "", false
		}
		sum += int(c-'0') * weight
		weight++
	}
	rem := sum % 11
	if rem == 10 {
		return "x", true
	}
	return strconv.Itoa(rem), true
}

// NormalizeBibID reshapes the bibliographic id forms seen upstream into the
// canonical 14-character "b000000NNNNNNN" form:
//
//	1234567     7 digits
//	b1234567    prefixed
//	12345672    7 digits + check character
//	b12345672   prefixed + check character
//
// The canonical form and unrecognized shapes pass through unchanged.
func NormalizeBibID(id string) string {
	trimmed := strings.TrimSpace(id)
	lower := strings.ToLower(trimmed)
	var digits string
	switch len(lower) {
	case bibDigits:
		digits = lower
	case bibDigits + 1:
		if strings.HasPrefix(lower, bibPrefix) {
			digits = lower[1:]
		} else if isCheckChar(lower[bibDigits]) {
			digits = lower[:bibDigits]
		}
	case bibDigits + 2:
		if strings.HasPrefix(lower, bibPrefix) && isCheckChar(lower[bibDigits+1]) {
			digits = lower[1 : bibDigits+1]
		}
	}
	if digits == "" || !allDigits(digits) {
		return id
	}
	return bibPrefix + bibPadding + digits
}

func isCheckChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == 'x'
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
