package resolver

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Weighting applied to the token based and partial similarity variants.
// A plain ratio always wins over a token or partial ratio of equal value.
const (
	unbaseScale      = 0.95
	partialScale     = 0.90
	longPartialScale = 0.60
	partialLenRatio  = 1.5
	longPartialRatio = 8.0
	maxScore         = 100
)

// Score returns the similarity of a and b in [0,100]. Comparison ignores case,
// punctuation and runs of whitespace, and tolerates reordered tokens and
// substrings of much longer names.
func Score(a, b string) int {
	p1, p2 := normalize(a), normalize(b)
	if p1 == "" || p2 == "" {
		return 0
	}

	base := ratio(p1, p2)

	l1, l2 := runeLen(p1), runeLen(p2)
	lenRatio := float64(max(l1, l2)) / float64(min(l1, l2))

	if lenRatio < partialLenRatio {
		tsor := tokenSortRatio(p1, p2, ratio) * unbaseScale
		tser := tokenSetRatio(p1, p2, ratio) * unbaseScale
		return round(max(base, tsor, tser))
	}

	scale := partialScale
	if lenRatio > longPartialRatio {
		scale = longPartialScale
	}
	partial := partialRatio(p1, p2) * scale
	ptsor := tokenSortRatio(p1, p2, partialRatio) * unbaseScale * scale
	ptser := tokenSetRatio(p1, p2, partialRatio) * unbaseScale * scale
	return round(max(base, partial, ptsor, ptser))
}

// normalize lowercases s, turns every non alphanumeric rune into a space and
// collapses whitespace.
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// ratio is the normalized Levenshtein similarity of a and b in [0,100].
func ratio(a, b string) float64 {
	la, lb := runeLen(a), runeLen(b)
	if la == 0 || lb == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return maxScore * (1 - float64(d)/float64(max(la, lb)))
}

// partialRatio scores the shorter string against its best aligned window
// of the longer one.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
		}
		if best == maxScore {
			break
		}
	}
	return best
}

func tokenSortRatio(a, b string, scorer func(string, string) float64) float64 {
	return scorer(sortedTokens(a), sortedTokens(b))
}

// tokenSetRatio compares the shared tokens of a and b against each side's
// shared-plus-remaining tokens, so extra words on one side cost little.
func tokenSetRatio(a, b string, scorer func(string, string) float64) float64 {
	t1, t2 := tokenSet(a), tokenSet(b)

	var inter, only1, only2 []string
	for tok := range t1 {
		if t2[tok] {
			inter = append(inter, tok)
		} else {
			only1 = append(only1, tok)
		}
	}
	for tok := range t2 {
		if !t1[tok] {
			only2 = append(only2, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(only1)
	sort.Strings(only2)

	sect := strings.Join(inter, " ")
	combined1 := strings.TrimSpace(sect + " " + strings.Join(only1, " "))
	combined2 := strings.TrimSpace(sect + " " + strings.Join(only2, " "))

	return max(
		scorer(sect, combined1),
		scorer(sect, combined2),
		scorer(combined1, combined2),
	)
}

func sortedTokens(s string) string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func runeLen(s string) int {
	return len([]rune(s))
}

func round(f float64) int {
	return int(math.Round(f))
}
