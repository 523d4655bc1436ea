package duel

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// QueueResult is returned by JoinQueue and PlayBot.
type QueueResult struct {
	Status       model.QueueStatus `json:"status"`
	SessionID    string            `json:"sessionId"`
	EntryID      string            `json:"entryId"`
	MatchID      string            `json:"matchId,omitempty"`
	OpponentName string            `json:"opponentName,omitempty"`
}

// QueueStatus is the reconciled state of a queue session.
type QueueStatus struct {
	Status       model.QueueStatus `json:"status"`
	MatchID      string            `json:"matchId,omitempty"`
	Player1Name  string            `json:"player1Name,omitempty"`
	Player2Name  string            `json:"player2Name,omitempty"`
	OpponentName string            `json:"opponentName,omitempty"`
}

type fallbackPayload struct {
	EntryID string `json:"entryId"`
}

func cleanPlayer(p Player) (Player, error) {
	p.Handle = strings.TrimSpace(p.Handle)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.Handle == "" {
		return p, ErrInvalidPlayer
	}
	return p, nil
}

func (s *Service) newEntry(p Player) *model.QueueEntry {
	return &model.QueueEntry{
		ID:           uuid.NewString(),
		SessionID:    uuid.NewString(),
		PlayerHandle: p.Handle,
		DisplayName:  p.name(),
		SkillScore:   p.SkillScore,
		Status:       model.QueueWaiting,
		CreatedAt:    s.now(),
	}
}

func waitingResult(e *model.QueueEntry) *QueueResult {
	return &QueueResult{Status: model.QueueWaiting, SessionID: e.SessionID, EntryID: e.ID}
}

// JoinQueue pairs p with the longest-waiting other player, or parks p in the
// queue and arms the bot fallback. A handle that is already waiting gets its
// existing entry back.
func (s *Service) JoinQueue(ctx context.Context, p Player) (*QueueResult, error) {
	p, err := cleanPlayer(p)
	if err != nil {
		return nil, err
	}

	var res *QueueResult
	err = s.update(ctx, func(tx store.Tx, fx *effects) error {
		if e, err := tx.WaitingByHandle(p.Handle); err == nil {
			res = waitingResult(e)
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		me := s.newEntry(p)
		opp, err := tx.OldestWaiting(p.Handle)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := tx.PutQueueEntry(me); err != nil {
				return err
			}
			fx.schedule(kindBotFallback, fallbackPayload{EntryID: me.ID}, s.cfg.BotFallbackDelay)
			res = waitingResult(me)
			return nil
		case err != nil:
			return err
		}

		m, err := s.createMatch(tx,
			seat{opp.PlayerHandle, opp.DisplayName, opp.SessionID},
			seat{me.PlayerHandle, me.DisplayName, me.SessionID},
			matchOpts{bestOf: s.bestOfFor(opp.SkillScore, me.SkillScore)},
		)
		if err != nil {
			return err
		}
		for _, e := range []*model.QueueEntry{opp, me} {
			e.Status = model.QueueMatched
			e.MatchID = m.ID
			if err := tx.PutQueueEntry(e); err != nil {
				return err
			}
		}
		fx.publish(SessionTopic(opp.SessionID), Event{Type: EventQueueMatched, MatchID: m.ID})
		fx.publishMatch(m, Event{Type: EventMatchStarted})
		res = &QueueResult{
			Status:       model.QueueMatched,
			SessionID:    me.SessionID,
			EntryID:      me.ID,
			MatchID:      m.ID,
			OpponentName: opp.DisplayName,
		}
		return nil
	})
	return res, err
}

// PlayBot queues p for an immediate bot match. The entry is marked BotOnly
// so a human joining in the meantime does not take it.
func (s *Service) PlayBot(ctx context.Context, p Player) (*QueueResult, error) {
	p, err := cleanPlayer(p)
	if err != nil {
		return nil, err
	}

	var res *QueueResult
	err = s.update(ctx, func(tx store.Tx, fx *effects) error {
		e, err := tx.WaitingByHandle(p.Handle)
		switch {
		case errors.Is(err, store.ErrNotFound):
			e = s.newEntry(p)
		case err != nil:
			return err
		}
		e.BotOnly = true
		if err := tx.PutQueueEntry(e); err != nil {
			return err
		}
		fx.schedule(kindBotFallback, fallbackPayload{EntryID: e.ID}, 0)
		res = waitingResult(e)
		return nil
	})
	return res, err
}

// LeaveQueue cancels a waiting entry. Matched or cancelled entries are left alone.
func (s *Service) LeaveQueue(ctx context.Context, sessionID string) error {
	return s.update(ctx, func(tx store.Tx, _ *effects) error {
		e, err := tx.QueueEntryBySession(sessionID)
		if err != nil {
			return err
		}
		if e.Status != model.QueueWaiting {
			return nil
		}
		e.Status = model.QueueCancelled
		return tx.PutQueueEntry(e)
	})
}

// CheckStatus reports where a queue session stands.
func (s *Service) CheckStatus(ctx context.Context, sessionID string) (*QueueStatus, error) {
	var out *QueueStatus
	err := s.store.View(ctx, func(tx store.Tx) error {
		e, err := tx.QueueEntryBySession(sessionID)
		if err != nil {
			return err
		}
		out = &QueueStatus{Status: e.Status, MatchID: e.MatchID}
		if e.MatchID == "" {
			return nil
		}
		m, err := tx.Match(e.MatchID)
		if err != nil {
			return err
		}
		out.Player1Name, out.Player2Name = m.Player1Name, m.Player2Name
		if e.PlayerHandle == m.Player1Handle {
			out.OpponentName = m.Player2Name
		} else {
			out.OpponentName = m.Player1Name
		}
		return nil
	})
	return out, err
}
