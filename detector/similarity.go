package detector

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// TokenSetRatio scores two strings 0..100 by their word sets, so word order
// and repeated words do not matter. It compares the shared words against
// each side's full set and keeps the best score. A side without words
// scores 0.
func TokenSetRatio(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var shared, onlyA, onlyB []string
	for _, t := range ta {
		if _, ok := slices.BinarySearch(tb, t); ok {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if _, ok := slices.BinarySearch(ta, t); !ok {
			onlyB = append(onlyB, t)
		}
	}

	sect := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	return max(ratio(sect, combinedA), ratio(sect, combinedB), ratio(combinedA, combinedB))
}

// tokenSet lowercases s, splits it on anything that is not a letter or a
// digit and returns the sorted distinct words.
func tokenSet(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	slices.Sort(fields)
	return slices.Compact(fields)
}

// ratio is the Levenshtein similarity of a and b scaled to 0..100.
func ratio(a, b string) int {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	distance := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * float64(total-distance) / float64(total)))
}
