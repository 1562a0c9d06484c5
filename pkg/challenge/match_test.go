package challenge

import (
	"slices"
	"strings"
	"testing"
)

func TestMatchPhrase(t *testing.T) {
	tests := []struct {
		name     string
		spoken   string
		expected string
		want     bool
	}{
		{"exact", "three red cats", "three red cats", true},
		{"case and punctuation", "Three, RED cats!", "three red cats", true},
		{"stt boundary error", "threered cats", "three red cats", true},
		{"one word missed of four", "the blue door opens", "two blue door opens", true},
		{"mostly wrong", "seven dark windows", "my soft river walks here", false},
		{"empty transcript", "", "three red cats", false},
		{"unrelated", "hello world", "nine old books", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ratio := matchPhrase(tt.spoken, tt.expected)
			if got != tt.want {
				t.Fatalf("matchPhrase(%q, %q) = %v (ratio %.2f), want %v",
					tt.spoken, tt.expected, got, ratio, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Three, RED cats!  ")
	want := []string{"three", "red", "cats"}
	if !slices.Equal(got, want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
}

func TestRandomPhraseShape(t *testing.T) {
	corpus := make(map[string]bool)
	for _, list := range [][]string{adjectives, nouns, verbs, numbers, {"the", "my", "today", "here"}} {
		for _, w := range list {
			corpus[w] = true
		}
	}

	for range 200 {
		phrase := randomPhrase()
		words := strings.Fields(phrase)
		if len(words) < 3 || len(words) > 5 {
			t.Fatalf("phrase %q has %d words, want 3..5", phrase, len(words))
		}
		for _, w := range words {
			if !corpus[w] {
				t.Fatalf("phrase %q contains word %q outside the corpus", phrase, w)
			}
		}
	}
}
