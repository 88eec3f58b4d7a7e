package reconcile

import "strings"

// honorifics and suffixes stripped during name normalization. Matching on
// scraped names has to survive "Sen. Maria Lopez Jr." vs "maria lopez".
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "hon": true,
	"sen": true, "senator": true, "rep": true, "representative": true,
	"gov": true, "governor": true, "mayor": true, "judge": true,
}

var suffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "esq": true,
}

// NormalizeName case-folds, collapses whitespace, drops punctuation, and
// strips leading honorifics and trailing generational suffixes.
func NormalizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '\'', '"', '(', ')':
			return -1
		case '-':
			return ' '
		}
		return r
	}, strings.ToLower(name))

	tokens := strings.Fields(cleaned)
	for len(tokens) > 0 && honorifics[tokens[0]] {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && suffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// normalizeOffice lower-cases and collapses whitespace; offices come from
// free-text scrapes so "US Senate " and "u.s. senate" must compare equal.
func normalizeOffice(office string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '.' {
			return -1
		}
		return r
	}, strings.ToLower(office))
	return strings.Join(strings.Fields(cleaned), " ")
}

// tokenOverlap computes the Jaccard similarity of the two names' token sets.
func tokenOverlap(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	set := make(map[string]bool, len(at))
	for _, tok := range at {
		set[tok] = true
	}
	union := len(set)
	shared := 0
	for _, tok := range bt {
		if set[tok] {
			shared++
			delete(set, tok)
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

// levenshtein computes the edit distance between two strings. Inputs are
// normalized names, so sizes stay small and the O(len(a)*len(b)) cost is fine.
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

// similarity blends token overlap with normalized edit distance. Token
// overlap dominates because scraped names reorder and drop middle names far
// more often than they misspell.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	edit := 1 - float64(levenshtein(a, b))/float64(maxLen)
	return 0.6*tokenOverlap(a, b) + 0.4*edit
}
