package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reThousandDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reThousandComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	reThousandMixed = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+,\d+$`)
	reTrailingZero  = regexp.MustCompile(`^\d+\.0+$`)
)

// CleanNumber parses a spreadsheet numeric cell with locale separators:
// "1.234,56" -> 1234.56, "1,5" -> 1.5, "1 000" -> 1000. Blank or
// unparseable input yields 0; spreadsheet cells are untrusted and a
// zero is more useful downstream than an error.
func CleanNumber(input string) float64 {
	v, _ := ParseNumber(input)
	return v
}

// ParseNumber is CleanNumber with the parse outcome exposed.
func ParseNumber(input string) (float64, bool) {
	compact := strings.TrimSpace(strings.ReplaceAll(input, " ", " "))
	compact = strings.ReplaceAll(compact, " ", "")
	if compact == "" {
		return 0, false
	}

	switch {
	case reThousandMixed.MatchString(compact):
		compact = strings.ReplaceAll(compact, ".", "")
		compact = strings.ReplaceAll(compact, ",", ".")
	case reThousandDot.MatchString(compact):
		compact = strings.ReplaceAll(compact, ".", "")
	case reThousandComma.MatchString(compact):
		compact = strings.ReplaceAll(compact, ",", "")
	case strings.Contains(compact, ",") && !strings.Contains(compact, "."):
		compact = strings.ReplaceAll(compact, ",", ".")
	}

	parsed, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// CleanCode normalizes an article code cell. Spreadsheets routinely turn
// numeric-looking codes into floats, so "41021.0" comes back as "41021".
func CleanCode(input string) string {
	s := strings.TrimSpace(input)
	if reTrailingZero.MatchString(s) {
		return s[:strings.Index(s, ".")]
	}
	return s
}
