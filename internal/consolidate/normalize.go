package consolidate

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// minIDDigits is the digit count at which a value is treated as an
// identifier and compared by its digits alone, ignoring formatting.
const minIDDigits = 6

// Normalized is the outcome of canonicalizing one raw candidate value.
type Normalized struct {
	// Key is the normalization key attempts are bucketed under: the bare
	// digit string for ID-like values, the folded text otherwise.
	Key string
	// Pretty is the trimmed original string form, kept for display.
	Pretty string
	// DigitKey is true when Key is a digit collapse.
	DigitKey bool
	// Junk marks values excluded from voting entirely.
	Junk bool
}

// stopWords are stripped forms that carry no information: placeholders,
// refusals, and literal field-name leakage from the prompt.
var stopWords = map[string]struct{}{
	"na":             {},
	"none":           {},
	"null":           {},
	"nil":            {},
	"tbd":            {},
	"unknown":        {},
	"unbekannt":      {},
	"kein":           {},
	"keine":          {},
	"keineangabe":    {},
	"nichtangegeben": {},
	"nichtvorhanden": {},
	"nichtgefunden":  {},
	"notfound":       {},
	"notprovided":    {},
	"notspecified":   {},
	"schadennummer":  {},
}

// strippedRunes are removed wholesale during normalization.
const strippedRunes = " \t\n\r.,;:!?'\"`´()[]{}<>/\\|-_–—*+=~^%$§&#°"

// Normalize canonicalizes a raw candidate value for the given step key.
// Wrapper objects ({value: ...}) are unwrapped one level before calling.
func Normalize(raw any, stepKey string) Normalized {
	raw = Unwrap(raw)

	pretty := strings.TrimSpace(stringify(raw))
	if pretty == "" {
		return Normalized{Junk: true}
	}

	folded := fold(pretty)
	if folded == "" {
		return Normalized{Pretty: pretty, Junk: true}
	}
	if _, stop := stopWords[folded]; stop {
		return Normalized{Pretty: pretty, Junk: true}
	}
	// Field-name leakage: the model echoed the prompt's field back.
	if stepKey != "" && folded == fold(stepKey) {
		return Normalized{Pretty: pretty, Junk: true}
	}

	digits := digitsOf(folded)
	if len(digits) >= minIDDigits {
		return Normalized{Key: digits, Pretty: pretty, DigitKey: true}
	}

	// A value for an identifier field that cannot muster enough digits is
	// a partial or garbled ID, not a usable candidate.
	if isIdentifierKey(stepKey) {
		return Normalized{Pretty: pretty, Junk: true}
	}

	return Normalized{Key: folded, Pretty: pretty}
}

// Unwrap peels a single {value: ...} wrapper off a raw candidate.
func Unwrap(raw any) any {
	if m, ok := raw.(map[string]any); ok {
		if inner, ok := m["value"]; ok {
			return inner
		}
	}
	return raw
}

// fold lowercases, NFKC-normalizes, and strips whitespace and punctuation
// so that formatting variants of the same value compare equal.
func fold(s string) string {
	s = norm.NFKC.String(strings.ToLower(s))
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedRunes, r) {
			return -1
		}
		return r
	}, s)
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isIdentifierKey reports whether a step key semantically names an
// identifier field (claim numbers, policy numbers, record ids).
func isIdentifierKey(key string) bool {
	key = strings.ToLower(key)
	if key == "id" {
		return true
	}
	return strings.Contains(key, "nummer") ||
		strings.Contains(key, "number") ||
		strings.HasSuffix(key, "_id") ||
		strings.HasSuffix(key, "-id")
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
