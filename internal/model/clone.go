package model

import (
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
)

// Clone returns a deep copy.
func (m *Match) Clone() *Match {
	c := *m
	c.FinishedAt = cloneTime(m.FinishedAt)
	c.NextRoundAt = cloneTime(m.NextRoundAt)
	if m.LastRoundSummary != nil {
		s := *m.LastRoundSummary
		s.Player1Guesses = cloneRows(s.Player1Guesses)
		s.Player2Guesses = cloneRows(s.Player2Guesses)
		c.LastRoundSummary = &s
	}
	return &c
}

// Clone returns a deep copy.
func (p *PlayerState) Clone() *PlayerState {
	c := *p
	c.Guesses = cloneRows(p.Guesses)
	c.FinishedAt = cloneTime(p.FinishedAt)
	c.LastDisruptionSentAt = cloneTime(p.LastDisruptionSentAt)
	c.DisruptionReceivedAt = cloneTime(p.DisruptionReceivedAt)
	return &c
}

// Clone returns a copy.
func (e *QueueEntry) Clone() *QueueEntry {
	c := *e
	return &c
}

// Clone returns a deep copy.
func (r *FriendBattleRequest) Clone() *FriendBattleRequest {
	c := *r
	c.RespondedAt = cloneTime(r.RespondedAt)
	return &c
}

// Clone returns a copy.
func (p *PresenceRecord) Clone() *PresenceRecord {
	c := *p
	return &c
}

func cloneRows(rows []game.Row) []game.Row {
	if rows == nil {
		return nil
	}
	out := make([]game.Row, len(rows))
	for i, r := range rows {
		out[i] = game.Row{Word: r.Word, Marks: append([]game.Mark(nil), r.Marks...)}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
