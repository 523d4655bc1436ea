package duel

import (
	"context"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// SendDisruption shakes the opponent's board. Each side may send one per
// cooldown window for the whole match.
func (s *Service) SendDisruption(ctx context.Context, matchID, sessionID string) error {
	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, side, err := loadParticipant(tx, matchID, sessionID)
		if err != nil {
			return err
		}
		if m.Status != model.MatchPlaying {
			return stateErr("send disruption", "match is %s", m.Status)
		}
		return s.disrupt(tx, fx, m, side)
	})
}

// disrupt stamps the sender's cooldown and the receiver's marker.
func (s *Service) disrupt(tx store.Tx, fx *effects, m *model.Match, from model.Side) error {
	me, err := tx.PlayerState(m.ID, m.Handle(from))
	if err != nil {
		return err
	}
	opp, err := tx.PlayerState(m.ID, m.Handle(from.Other()))
	if err != nil {
		return err
	}

	now := s.now()
	if me.LastDisruptionSentAt != nil {
		if elapsed := now.Sub(*me.LastDisruptionSentAt); elapsed < s.cfg.DisruptionCooldown {
			return &CooldownError{Remaining: s.cfg.DisruptionCooldown - elapsed}
		}
	}
	me.LastDisruptionSentAt = &now
	opp.DisruptionReceivedAt = &now
	if err := tx.PutPlayerState(me); err != nil {
		return err
	}
	if err := tx.PutPlayerState(opp); err != nil {
		return err
	}
	fx.publishMatch(m, Event{Type: EventDisruption, PlayerHandle: opp.PlayerHandle})
	return nil
}

// ClearDisruption drops the caller's received-disruption marker.
func (s *Service) ClearDisruption(ctx context.Context, matchID, sessionID string) error {
	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, side, err := loadParticipant(tx, matchID, sessionID)
		if err != nil {
			return err
		}
		me, err := tx.PlayerState(m.ID, m.Handle(side))
		if err != nil {
			return err
		}
		if me.DisruptionReceivedAt == nil {
			return nil
		}
		me.DisruptionReceivedAt = nil
		if err := tx.PutPlayerState(me); err != nil {
			return err
		}
		fx.publishMatch(m, Event{Type: EventDisruptionClear, PlayerHandle: me.PlayerHandle})
		return nil
	})
}
