package challenge

import "strings"

// matchThreshold is the minimum fraction of expected words that must be
// found in the transcript for a phrase match.
const matchThreshold = 0.7

// matchPhrase reports whether spoken matches expected, with the achieved
// word-match ratio. The comparison is case and punctuation insensitive,
// and a transcript word counts as a match when either word contains the
// other, tolerating common STT boundary errors ("sixred" vs "six red").
func matchPhrase(spoken, expected string) (bool, float64) {
	spokenWords := tokenize(spoken)
	expectedWords := tokenize(expected)
	if len(spokenWords) == 0 || len(expectedWords) == 0 {
		return false, 0
	}

	matches := 0
	for _, exp := range expectedWords {
		for _, spk := range spokenWords {
			if exp == spk || strings.Contains(spk, exp) || strings.Contains(exp, spk) {
				matches++
				break
			}
		}
	}

	ratio := float64(matches) / float64(len(expectedWords))
	return ratio >= matchThreshold, ratio
}

// tokenize lowercases, strips non-letter/digit runes, and splits on
// whitespace.
func tokenize(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
