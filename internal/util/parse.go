package util

import (
	"regexp"
	"strconv"
	"strings"
)

// SafeAtoi parses s as an int, returning 0 when it is not a number.
func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

var dollarAmountRegex = regexp.MustCompile(`\$\s*(\d+)`)

// ParseDollarAmount extracts the first "$<integer>" token from free-text pricing.
// ok is false when the text carries no such token.
func ParseDollarAmount(pricing string) (amount int, ok bool) {
	m := dollarAmountRegex.FindStringSubmatch(pricing)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeText lowercases s and collapses runs of whitespace to single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SplitList splits a comma separated list, trimming blanks and dropping empties.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
