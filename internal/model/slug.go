package model

import (
	"strings"
	"unicode"
)

// maxSlugWords caps how much of a prompt text flows into a derived slug.
const maxSlugWords = 6

// Slugify derives a stable field key from free prompt text. Used when a
// log entry carries no explicit decision_key. Lowercases, maps umlauts
// to their ASCII digraphs, and joins the leading words with underscores.
func Slugify(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case 'ä':
			b.WriteString("ae")
		case 'ö':
			b.WriteString("oe")
		case 'ü':
			b.WriteString("ue")
		case 'ß':
			b.WriteString("ss")
		default:
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
		}
	}

	words := strings.Fields(b.String())
	if len(words) > maxSlugWords {
		words = words[:maxSlugWords]
	}
	return strings.Join(words, "_")
}
