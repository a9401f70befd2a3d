package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that do not decompose into a base letter plus combining marks.
var ligatures = strings.NewReplacer(
	"Œ", "OE",
	"Æ", "AE",
	"ß", "SS",
	"ẞ", "SS",
	"Ø", "O",
	"Ł", "L",
	"Đ", "D",
	"Þ", "TH",
)

// Normalize upper-cases s and folds accented Latin letters to their base form.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// transform.Chain is stateful, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return ligatures.Replace(strings.ToUpper(folded))
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = Normalize(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
