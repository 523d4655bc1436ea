package duel

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// StateError reports an operation attempted in the wrong state.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string { return e.Op + ": " + e.Reason }

func stateErr(op, format string, args ...any) error {
	return &StateError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// CooldownError reports a disruption sent before the sender's cooldown ran out.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("disruption on cooldown for %ds", e.Seconds())
}

// Seconds is the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) Seconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

var (
	// ErrRaceNoOp means a task's precondition went away before it ran.
	// Task handlers swallow it.
	ErrRaceNoOp = errors.New("precondition no longer holds")

	ErrInvalidGuess   = errors.New("guess not accepted")
	ErrInviteExpired  = errors.New("invite expired")
	ErrInvalidPlayer  = errors.New("player handle required")
	ErrNotParticipant = errors.New("session is not a participant in this match")

	ErrNotFound = store.ErrNotFound
)
