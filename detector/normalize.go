package detector

import (
	"regexp"
	"slices"
	"strings"
)

var (
	dateLikeRegex  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?`)
	longDigitRegex = regexp.MustCompile(`\d{4,}`)
	referenceRegex = regexp.MustCompile(`#\d+|\bID:?\s*\d+`)
)

// Alias collapses any description containing one of Match into Name.
type Alias struct {
	Name  string   `mapstructure:"name" json:"name" yaml:"name"`
	Match []string `mapstructure:"match" json:"match" yaml:"match"`
}

// Normalizer turns raw transaction descriptions into merchant keys.
type Normalizer struct {
	noise   *regexp.Regexp
	aliases []Alias
}

func NewNormalizer(noise []string, aliases []Alias) *Normalizer {
	n := &Normalizer{}

	words := make([]string, 0, len(noise))
	for _, w := range noise {
		if w = strings.ToUpper(strings.TrimSpace(w)); w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	if len(words) > 0 {
		slices.SortStableFunc(words, func(a, b string) int { return len(b) - len(a) })
		n.noise = regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)\b`)
	}

	for _, a := range aliases {
		alias := Alias{Name: strings.ToUpper(strings.TrimSpace(a.Name))}
		for _, m := range a.Match {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				alias.Match = append(alias.Match, m)
			}
		}
		n.aliases = append(n.aliases, alias)
	}
	return n
}

// Normalize uppercases the description, drops dates, reference numbers and
// noise words, then applies the first alias whose pattern it contains.
// Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(description string) string {
	s := strings.ToUpper(description)

	// stripping can expose new noise, e.g. "DEBIT AUTH CARD"
	for range 8 {
		next := n.strip(s)
		if next == s {
			break
		}
		s = next
	}

	for _, a := range n.aliases {
		for _, m := range a.Match {
			if strings.Contains(s, m) {
				return a.Name
			}
		}
	}
	return s
}

func (n *Normalizer) strip(s string) string {
	s = dateLikeRegex.ReplaceAllString(s, " ")
	s = referenceRegex.ReplaceAllString(s, " ")
	s = longDigitRegex.ReplaceAllString(s, " ")
	if n.noise != nil {
		s = n.noise.ReplaceAllString(s, " ")
	}
	return strings.Join(strings.Fields(s), " ")
}
