package consolidate

import (
	"regexp"
	"strings"

	"github.com/claimsight/claimsight/internal/model"
)

// maxQuality is the practical ceiling of the additive quality heuristic.
// Quality is never clamped; it only ranks candidates within one step.
const maxQuality = 2.3

// namePattern matches a plausible personal name: letters, one space, letters.
var namePattern = regexp.MustCompile(`^\p{L}+ \p{L}+$`)

// Quality scores a single normalized candidate by additive heuristics:
// digit density, name shape, and supporting provenance. Junk scores 0.
func Quality(n Normalized, prov *model.Provenance, stepKey string) float64 {
	if n.Junk {
		return 0
	}

	q := 1.0

	if len(digitsOf(n.Pretty)) >= 8 {
		q += 0.4
	}
	if namePattern.MatchString(n.Pretty) {
		q += 0.3
	}
	if prov.HasBBox() {
		q += 0.2
	}
	if prov != nil && prov.Page > 0 {
		q += 0.1
	}
	if prov != nil && quoteMatchesKey(prov.Quote, stepKey) {
		q += 0.3
	}

	return q
}

// quoteMatchesKey reports whether the supporting quote mentions a word
// from the field key, e.g. a quote containing "Schadennummer" backing
// the schadennummer field.
func quoteMatchesKey(quote, stepKey string) bool {
	if quote == "" || stepKey == "" {
		return false
	}
	quote = strings.ToLower(quote)
	for _, token := range keyTokens(stepKey) {
		if strings.Contains(quote, token) {
			return true
		}
	}
	return false
}

// keyTokens splits a field key into lowercase words long enough to be
// meaningful search terms (4+ runes).
func keyTokens(key string) []string {
	fields := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') &&
			r != 'ä' && r != 'ö' && r != 'ü' && r != 'ß'
	})
	var tokens []string
	for _, f := range fields {
		if len([]rune(f)) >= 4 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
