// apps/duel-server/internal/game/feedback.go
//
// Word feedback evaluation. The same Score is used for human and bot guesses.
//
// Notes:
//   - Inputs are expected to be validated lowercase a–z of equal length.
//   - Score never allocates per-letter maps; counts live in a fixed array.

package game

import "strings"

// Score implements the two‑pass scoring algorithm.
//
// Pass 1:
//   - Mark exact matches as Correct; they consume their secret slot.
//   - Count the remaining (unconsumed) secret letters.
//
// Pass 2:
//   - For each unmarked guess letter: if an unconsumed occurrence remains,
//     mark Present and consume it; otherwise mark Absent.
//
// Consuming in guess order matches the left-to-right slot search, so repeated
// letters never earn more marks than the secret holds.
func Score(guess, secret string) []Mark {
	n := len(guess)
	res := make([]Mark, n)
	if len(secret) != n {
		for i := range res {
			res[i] = MarkAbsent
		}
		return res
	}

	var counts [26]int
	for i := 0; i < n; i++ {
		if guess[i] == secret[i] {
			res[i] = MarkCorrect
		} else if j := idx(secret[i]); j >= 0 {
			counts[j]++
		}
	}

	for i := 0; i < n; i++ {
		if res[i] == MarkCorrect {
			continue
		}
		j := idx(guess[i])
		if j >= 0 && counts[j] > 0 {
			res[i] = MarkPresent
			counts[j]--
		} else {
			res[i] = MarkAbsent
		}
	}
	return res
}

// idx maps a lowercase ASCII letter to 0..25, or -1.
func idx(b byte) int {
	if b < 'a' || b > 'z' {
		return -1
	}
	return int(b - 'a')
}

// Solved reports whether every mark is Correct.
func Solved(m []Mark) bool {
	if len(m) == 0 {
		return false
	}
	for _, x := range m {
		if x != MarkCorrect {
			return false
		}
	}
	return true
}

// SameMarks reports whether two feedback rows are identical.
func SameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Normalize trims and lowercases user input.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Valid reports whether s is exactly n lowercase letters.
func Valid(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
