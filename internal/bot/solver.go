// apps/duel-server/internal/bot/solver.go
//
// Bot solver: picks the synthetic opponent's next guess.
//
// Strategy:
//   - Keep only answers consistent with every feedback row seen so far.
//   - First guess comes from a pool of high-information openers.
//   - Otherwise take the candidate with the most distinct letters, except
//     that a profile-dependent share of guesses is picked at random.
//   - The secret is never chosen on attempt #2, nor at all in a match the
//     bot is fated to lose.

package bot

import (
	"math/rand/v2"

	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/words"
)

// Openers are preferred first guesses.
var Openers = []string{
	"crane", "slate", "trace", "crate", "raise", "arise",
	"stare", "roast", "least", "irate", "later", "adieu",
}

// Input is everything the solver knows about the bot's round.
type Input struct {
	MatchID string
	Secret  string
	History []game.Row
	Profile Profile
}

// Solver chooses guesses from an injected corpus.
type Solver struct {
	words *words.List
}

// NewSolver returns a solver over l.
func NewSolver(l *words.List) *Solver {
	return &Solver{words: l}
}

// Candidates returns the answers consistent with every row of history that
// have not been guessed yet.
func (s *Solver) Candidates(history []game.Row) []string {
	guessed := guessedSet(history)
	var out []string
	for _, c := range s.words.Answers() {
		if _, ok := guessed[c]; ok {
			continue
		}
		if consistent(c, history) {
			out = append(out, c)
		}
	}
	return out
}

// consistent reports whether c, taken as the secret, reproduces every row.
func consistent(c string, history []game.Row) bool {
	for _, row := range history {
		if !game.SameMarks(game.Score(row.Word, c), row.Marks) {
			return false
		}
	}
	return true
}

// NextGuess picks the bot's next guess.
func (s *Solver) NextGuess(r *rand.Rand, in Input) string {
	guessed := guessedSet(in.History)
	cands := s.Candidates(in.History)

	var choice string
	switch {
	case len(cands) == 0:
		choice = s.anyExcept(r, guessed, "")
	case len(in.History) == 0:
		choice = opener(r, cands)
	case r.Float64() < in.Profile.MistakeChance:
		choice = cands[r.IntN(len(cands))]
	default:
		choice = mostDistinct(r, cands)
	}

	attempt := len(in.History) + 1
	if choice == in.Secret && (attempt == 2 || Fated(in.MatchID, in.Profile.FailChance)) {
		choice = s.avoid(r, cands, guessed, in.Secret)
	}
	return choice
}

// avoid swaps the secret for another filtered candidate, or failing that any
// other answer.
func (s *Solver) avoid(r *rand.Rand, cands []string, guessed map[string]struct{}, secret string) string {
	others := make([]string, 0, len(cands))
	for _, c := range cands {
		if c != secret {
			others = append(others, c)
		}
	}
	if len(others) > 0 {
		return others[r.IntN(len(others))]
	}
	return s.anyExcept(r, guessed, secret)
}

// anyExcept returns a random unguessed answer other than skip. When every
// answer is used up it repeats an earlier word rather than return skip.
func (s *Solver) anyExcept(r *rand.Rand, guessed map[string]struct{}, skip string) string {
	all := s.words.Answers()
	var pool []string
	for _, w := range all {
		if _, ok := guessed[w]; !ok && w != skip {
			pool = append(pool, w)
		}
	}
	if len(pool) > 0 {
		return pool[r.IntN(len(pool))]
	}
	for _, w := range all {
		if w != skip {
			return w
		}
	}
	return skip
}

func opener(r *rand.Rand, cands []string) string {
	set := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		set[c] = struct{}{}
	}
	var pool []string
	for _, o := range Openers {
		if _, ok := set[o]; ok {
			pool = append(pool, o)
		}
	}
	if len(pool) == 0 {
		return mostDistinct(r, cands)
	}
	return pool[r.IntN(len(pool))]
}

// mostDistinct returns a random candidate among those with the most
// distinct letters.
func mostDistinct(r *rand.Rand, cands []string) string {
	best, top := -1, []string(nil)
	for _, c := range cands {
		n := distinct(c)
		switch {
		case n > best:
			best, top = n, []string{c}
		case n == best:
			top = append(top, c)
		}
	}
	return top[r.IntN(len(top))]
}

func distinct(w string) int {
	var seen [26]bool
	n := 0
	for i := 0; i < len(w); i++ {
		j := int(w[i] - 'a')
		if j >= 0 && j < 26 && !seen[j] {
			seen[j] = true
			n++
		}
	}
	return n
}

func guessedSet(history []game.Row) map[string]struct{} {
	m := make(map[string]struct{}, len(history))
	for _, row := range history {
		m[row.Word] = struct{}{}
	}
	return m
}
