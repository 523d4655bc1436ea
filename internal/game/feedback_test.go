package game

import (
	"math/rand/v2"
	"testing"
)

func TestScore(t *testing.T) {
	C, P, A := MarkCorrect, MarkPresent, MarkAbsent
	tests := []struct {
		name          string
		guess, secret string
		want          []Mark
	}{
		{"duplicate letters", "aabbb", "abcab", []Mark{C, P, P, A, C}},
		{"exact", "crane", "crane", []Mark{C, C, C, C, C}},
		{"nothing", "fjord", "crane", []Mark{A, A, A, P, A}},
		{"surplus repeats", "eerie", "crane", []Mark{A, A, P, A, C}},
		{"correct consumes before present", "speed", "abide", []Mark{A, A, P, A, P}},
		{"length mismatch", "abc", "abcd", []Mark{A, A, A}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.guess, tt.secret)
			if !SameMarks(got, tt.want) {
				t.Fatalf("Score(%q,%q) = %v, want %v", tt.guess, tt.secret, got, tt.want)
			}
		})
	}
}

// Correct marks never exceed matching positions and correct+present for a
// letter never exceeds its multiplicity in the secret.
func TestScoreBoundedByMultiplicity(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	word := func() string {
		b := make([]byte, 5)
		for i := range b {
			b[i] = byte('a' + r.IntN(4))
		}
		return string(b)
	}
	for i := 0; i < 2000; i++ {
		secret, guess := word(), word()
		marks := Score(guess, secret)

		matching, correct := 0, 0
		used := map[byte]int{}
		for j := range guess {
			if guess[j] == secret[j] {
				matching++
			}
			if marks[j] == MarkCorrect {
				correct++
			}
			if marks[j] != MarkAbsent {
				used[guess[j]]++
			}
		}
		if correct > matching {
			t.Fatalf("%q/%q: %d correct > %d matching", guess, secret, correct, matching)
		}
		for letter, n := range used {
			mult := 0
			for j := range secret {
				if secret[j] == letter {
					mult++
				}
			}
			if n > mult {
				t.Fatalf("%q/%q: letter %c marked %d times, secret holds %d", guess, secret, letter, n, mult)
			}
		}
	}
}

func TestSolvedAndValid(t *testing.T) {
	if !Solved(Score("crane", "crane")) {
		t.Error("expected solved")
	}
	if Solved(nil) {
		t.Error("empty row must not be solved")
	}
	if !Valid(Normalize("  CRANE "), 5) {
		t.Error("normalized input should be valid")
	}
	for _, s := range []string{"cran", "cran3", "crané"} {
		if Valid(s, 5) {
			t.Errorf("%q should be invalid", s)
		}
	}
	if !StateWon.Terminal() || StatePlaying.Terminal() {
		t.Error("terminal states misreported")
	}
}
