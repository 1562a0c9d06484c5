package challenge

import (
	"math/rand/v2"
	"strings"
)

// Word lists for phrase generation. Short, phonetically distinct English
// words keep transcription accuracy high even on small STT models.
var (
	adjectives = []string{
		"red", "blue", "green", "happy", "fast", "slow", "big", "small",
		"bright", "dark", "cold", "hot", "soft", "hard", "new", "old",
	}
	nouns = []string{
		"cat", "dog", "bird", "tree", "house", "car", "book", "phone",
		"table", "chair", "door", "window", "river", "mountain", "sky", "moon",
	}
	verbs = []string{
		"runs", "jumps", "walks", "flies", "sits", "stands", "reads", "writes",
		"opens", "closes", "brings", "takes", "gives", "shows", "finds", "makes",
	}
	numbers = []string{
		"one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	}
)

func pick(words []string) string {
	return words[rand.IntN(len(words))]
}

// phrasePatterns are the 3–5 word templates a challenge phrase is drawn
// from. Uniform pattern choice over a fixed corpus keeps the phrase space
// large enough that a pre-recorded utterance is useless.
var phrasePatterns = []func() []string{
	func() []string { return []string{pick(numbers), pick(adjectives), pick(nouns)} },
	func() []string { return []string{pick(adjectives), pick(nouns), pick(verbs)} },
	func() []string { return []string{pick(numbers), pick(nouns), pick(verbs)} },
	func() []string { return []string{pick(adjectives), pick(adjectives), pick(nouns)} },
	func() []string { return []string{pick(numbers), pick(adjectives), pick(nouns), pick(verbs)} },
	func() []string { return []string{"the", pick(adjectives), pick(nouns), pick(verbs)} },
	func() []string { return []string{pick(numbers), pick(adjectives), pick(nouns), pick(verbs), "today"} },
	func() []string { return []string{"my", pick(adjectives), pick(nouns), pick(verbs), "here"} },
}

// randomPhrase returns a freshly generated challenge phrase.
func randomPhrase() string {
	words := phrasePatterns[rand.IntN(len(phrasePatterns))]()
	return strings.Join(words, " ")
}
