// apps/duel-server/internal/game/types.go
//
// Core type definitions for word scoring.
// Defines:
//   - Mark: per-letter result of a guess (correct/present/absent).
//   - Row: one scored guess.
//   - State: a side's state within the current round.

package game

// Mark represents the evaluation result for a single letter in a guess.
//   - "correct": letter is in the secret at this position.
//   - "present": letter is in the secret at another unconsumed position.
//   - "absent":  no unconsumed occurrence remains.
type Mark string

const (
	MarkCorrect Mark = "correct"
	MarkPresent Mark = "present"
	MarkAbsent  Mark = "absent"
)

// Row is a scored guess as shown on a board.
type Row struct {
	Word  string `json:"word"`
	Marks []Mark `json:"marks"`
}

// State is a side's progress through one round.
type State string

const (
	StatePlaying      State = "playing"
	StateWon          State = "won"
	StateLost         State = "lost"
	StateDisconnected State = "disconnected"
)

// Terminal reports whether the state ends the side's round.
func (s State) Terminal() bool { return s != StatePlaying }

// Attempt limits.
const (
	MaxAttempts          = 6
	MaxAttemptsMultiWord = 9
)
