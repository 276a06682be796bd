// Package answer checks free-text team answers against a canonical answer.
package answer

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// MinSimilarity is the lowest normalized similarity accepted for short answers.
	MinSimilarity = 0.8
	// maxFuzzyTokens is the longest canonical answer, in words, that allows typos.
	maxFuzzyTokens = 2
)

const punctuation = ".,/#!$%^&*;:{}=-_`~()\"'«»“”‘’"

var stripPunctuation = strings.NewReplacer(replacePairs()...)

func replacePairs() []string {
	var pairs []string
	for _, r := range punctuation {
		pairs = append(pairs, string(r), "")
	}
	return pairs
}

// Normalize lowercases s, removes punctuation and collapses whitespace to single spaces.
func Normalize(s string) string {
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	s = stripPunctuation.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Distance is the Levenshtein distance between a and b, counted in code points.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Similarity returns (maxLen - distance) / maxLen in [0, 1]. Two empty strings are identical.
func Similarity(a, b string) float64 {
	n := max(len([]rune(a)), len([]rune(b)))
	if n == 0 {
		return 1
	}

	return float64(n-Distance(a, b)) / float64(n)
}

// Validate reports whether submitted is an acceptable form of canonical.
//
// Normalized strings are accepted on exact match or when one contains the other.
// Canonical answers of at most two words also accept typos down to MinSimilarity.
func Validate(submitted, canonical string) bool {
	if submitted == "" || canonical == "" {
		return false
	}

	s, c := Normalize(submitted), Normalize(canonical)
	if s == "" || c == "" {
		return false
	}

	if s == c || strings.Contains(s, c) || strings.Contains(c, s) {
		return true
	}

	if len(strings.Fields(c)) <= maxFuzzyTokens {
		return Similarity(s, c) >= MinSimilarity
	}

	return false
}

// Validator adapts Validate to the interface used by sessions.
type Validator struct{}

func (Validator) Validate(submitted, canonical string) bool {
	return Validate(submitted, canonical)
}
