// apps/duel-server/internal/words/words.go
//
// Word corpus shared by the match engine and the bot solver.
//
// Responsibilities:
//   - Load answer and allowed guess lists from files or fall back to the embedded assets.
//   - Maintain sets for quick lookups (answers only, answers∪guesses).
//   - Pick secret words for new matches and rounds.
//
// Word Lists:
//   - "answers": secret-word pool, also the bot's candidate set.
//   - "allowed": valid guesses (always includes answers).
//
// A List is read-only after construction and safe for concurrent use, so one
// instance can be injected wherever a game variant needs it.

package words

import (
	"crypto/rand"
	"errors"
	"math/big"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/robalobadob/wordle/apps/duel-server/assets"
)

// WordLength is the letter count of every word in a standard corpus.
const WordLength = 5

// ErrEmpty is returned when a corpus ends up with no answers.
var ErrEmpty = errors.New("words: answers list is empty")

// List is an immutable word corpus.
type List struct {
	answers    []string
	answersSet map[string]struct{}
	allowedSet map[string]struct{}
}

// New builds a List from raw answers and extra allowed guesses.
// Entries that are not WordLength lowercase letters are dropped.
func New(answers, allowed []string) (*List, error) {
	ans := normalize(answers)
	if len(ans) == 0 {
		return nil, ErrEmpty
	}
	l := &List{
		answers:    ans,
		answersSet: toSet(ans),
		allowedSet: toSet(ans),
	}
	for _, w := range normalize(allowed) {
		l.allowedSet[w] = struct{}{}
	}
	return l, nil
}

// Load resolves the corpus the same way the server always has:
//  1. both paths set: answers from the first, allowed guesses from the second;
//  2. only allowedPath set: that file serves as both lists;
//  3. neither set: embedded assets.
func Load(answersPath, allowedPath string) (*List, error) {
	switch {
	case answersPath != "" && allowedPath != "":
		ans, err := readWordFile(answersPath)
		if err != nil {
			return nil, err
		}
		allow, err := readWordFile(allowedPath)
		if err != nil {
			return nil, err
		}
		return New(ans, allow)
	case allowedPath != "":
		allow, err := readWordFile(allowedPath)
		if err != nil {
			return nil, err
		}
		return New(allow, nil)
	default:
		return Embedded()
	}
}

// Embedded returns the corpus compiled into the binary.
func Embedded() (*List, error) {
	ans, allow, err := assets.Corpus()
	if err != nil {
		return nil, eris.Wrap(err, "read embedded corpus")
	}
	return New(ans, allow)
}

// readWordFile loads a word file in the assets line format.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open word file %s", path)
	}
	defer f.Close()
	words, err := assets.ParseWords(f)
	return words, eris.Wrapf(err, "read word file %s", path)
}

// normalize lowercases, trims, de-duplicates and keeps only valid words.
func normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, line := range in {
		w := strings.TrimSpace(strings.ToLower(line))
		if len(w) != WordLength || !isAlpha(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Answers returns the answer pool. Callers must not modify it.
func (l *List) Answers() []string { return l.answers }

// RandomAnswer returns a cryptographically random answer.
func (l *List) RandomAnswer() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(l.answers))))
	return l.answers[n.Int64()]
}

// RandomAnswerExcept returns a random answer different from prev whenever the
// pool has more than one word.
func (l *List) RandomAnswerExcept(prev string) string {
	for i := 0; i < 8; i++ {
		if w := l.RandomAnswer(); w != prev || len(l.answers) == 1 {
			return w
		}
	}
	for _, w := range l.answers {
		if w != prev {
			return w
		}
	}
	return prev
}

// IsAllowed reports whether w is a valid guess (answers ∪ guesses).
func (l *List) IsAllowed(w string) bool {
	_, ok := l.allowedSet[strings.ToLower(w)]
	return ok
}

// IsAnswer reports whether w is an answer word.
func (l *List) IsAnswer(w string) bool {
	_, ok := l.answersSet[strings.ToLower(w)]
	return ok
}

// Stats returns counts of loaded words: (answers, allowed).
func (l *List) Stats() (answersCount int, allowedCount int) {
	return len(l.answers), len(l.allowedSet)
}
