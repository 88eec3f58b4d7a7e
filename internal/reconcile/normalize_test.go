package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Maria Lopez", "maria lopez"},
		{"  MARIA   LOPEZ  ", "maria lopez"},
		{"Sen. Maria Lopez Jr.", "maria lopez"},
		{"Dr. James O'Neill, III", "james oneill"},
		{"Rep. Anna-Marie Walker", "anna marie walker"},
		{"Hon. Samuel Ortiz Sr", "samuel ortiz"},
		{"", ""},
		{"Jr.", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeOffice(t *testing.T) {
	assert.Equal(t, "us senate", normalizeOffice("U.S.  Senate"))
	assert.Equal(t, normalizeOffice("US Senate "), normalizeOffice("u.s. senate"))
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"maria lopez", "maria lopez", 0},
		{"maria lopez", "mario lopez", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, levenshtein(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap("maria lopez", "maria lopez"))
	assert.Equal(t, 0.0, tokenOverlap("maria lopez", "james walker"))
	// {maria, elena, lopez} vs {maria, lopez}: 2 shared of 3 union.
	assert.InDelta(t, 2.0/3.0, tokenOverlap("maria elena lopez", "maria lopez"), 1e-9)
}

func TestSimilarity(t *testing.T) {
	t.Run("identical names score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, similarity("maria lopez", "maria lopez"))
	})

	t.Run("single-typo name stays above threshold", func(t *testing.T) {
		assert.Greater(t, similarity("maria lopez", "maria lopes"), DefaultThreshold)
	})

	t.Run("unrelated names fall well below threshold", func(t *testing.T) {
		assert.Less(t, similarity("maria lopez", "devon ackerman"), 0.5)
	})
}
