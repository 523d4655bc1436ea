package duel

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// RoundState summarizes what a guess did to the round.
type RoundState string

const (
	RoundInProgress RoundState = "in_progress"
	RoundOver       RoundState = "round_over"
	MatchOver       RoundState = "match_over"
)

// GuessResult is returned by SubmitGuess.
type GuessResult struct {
	Feedback    []game.Mark `json:"feedback"`
	State       game.State  `json:"gameState"`
	RoundState  RoundState  `json:"roundState"`
	RoundWinner string      `json:"roundWinner,omitempty"`
}

type roundPayload struct {
	MatchID string `json:"matchId"`
	Round   int    `json:"round"`
}

type reportPayload struct {
	MatchID string `json:"matchId"`
}

// SubmitGuess scores a guess for the caller's side and resolves the round.
func (s *Service) SubmitGuess(ctx context.Context, matchID, sessionID, guess string) (*GuessResult, error) {
	var res *GuessResult
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, side, err := loadParticipant(tx, matchID, sessionID)
		if err != nil {
			return err
		}
		if m.Status != model.MatchPlaying {
			return stateErr("submit guess", "match is %s", m.Status)
		}
		me, err := tx.PlayerState(m.ID, m.Handle(side))
		if err != nil {
			return err
		}
		if me.GameState != game.StatePlaying {
			return stateErr("submit guess", "round already %s for this player", me.GameState)
		}
		res, err = s.applyGuess(tx, fx, m, side, me, guess)
		return err
	})
	return res, err
}

// applyGuess is the guess path shared by humans and the bot. The caller has
// checked that the match and me are playing.
func (s *Service) applyGuess(tx store.Tx, fx *effects, m *model.Match, side model.Side, me *model.PlayerState, guess string) (*GuessResult, error) {
	guess = game.Normalize(guess)
	if !game.Valid(guess, len(m.SecretWord)) || !s.words.IsAllowed(guess) {
		return nil, ErrInvalidGuess
	}

	opp, err := tx.PlayerState(m.ID, m.Handle(side.Other()))
	if err != nil {
		return nil, err
	}

	now := s.now()
	marks := game.Score(guess, m.SecretWord)
	me.Guesses = append(me.Guesses, game.Row{Word: guess, Marks: marks})
	me.CurrentGuessPreview = ""
	switch {
	case game.Solved(marks):
		me.Finish(game.StateWon, now)
	case len(me.Guesses) >= m.MaxAttempts:
		me.Finish(game.StateLost, now)
	}

	res := &GuessResult{Feedback: marks, RoundState: RoundInProgress}
	fx.publishMatch(m, Event{Type: EventGuess, PlayerHandle: me.PlayerHandle})

	decided, winner := resolveRound(m, side, me, opp, now)
	if decided {
		s.closeRound(fx, m, side, me, opp, winner, now)
		res.RoundState = RoundOver
		if winner != 0 {
			res.RoundWinner = m.Handle(winner)
		}
		if m.Status != model.MatchPlaying {
			res.RoundState = MatchOver
		}
		if err := tx.PutMatch(m); err != nil {
			return nil, err
		}
	}
	if err := tx.PutPlayerState(me); err != nil {
		return nil, err
	}
	if err := tx.PutPlayerState(opp); err != nil {
		return nil, err
	}
	res.State = me.GameState
	return res, nil
}

// resolveRound decides the round after side's latest guess, using the
// opponent state read in the same transaction. winner is 0 on a draw.
func resolveRound(m *model.Match, side model.Side, me, opp *model.PlayerState, now time.Time) (decided bool, winner model.Side) {
	if m.LastRoundSummary != nil && m.LastRoundSummary.Round == m.Round {
		return false, 0 // already credited
	}
	switch me.GameState {
	case game.StateWon:
		if opp.GameState == game.StatePlaying {
			opp.Finish(game.StateLost, now)
		}
		return true, side
	case game.StateLost:
		switch opp.GameState {
		case game.StateWon:
			return true, side.Other()
		case game.StatePlaying:
			return false, 0
		default:
			return true, 0
		}
	}
	return false, 0
}

// closeRound credits the round and either finishes the match or arms the next round.
func (s *Service) closeRound(fx *effects, m *model.Match, side model.Side, me, opp *model.PlayerState, winner model.Side, now time.Time) {
	p1, p2 := bySide(side, me, opp)
	summary := &model.RoundSummary{
		Round:          m.Round,
		Word:           m.SecretWord,
		Player1Guesses: p1.Guesses,
		Player2Guesses: p2.Guesses,
	}
	if winner != 0 {
		m.AddPoint(winner)
		summary.WinnerHandle = m.Handle(winner)
	}
	m.LastRoundSummary = summary

	logger := log.With().Str("matchId", m.ID).Int("round", m.Round).Str("winner", summary.WinnerHandle).Logger()

	if winner != 0 && m.Score(winner) >= m.WinsNeeded() {
		m.Status = model.MatchFinished
		m.WinnerHandle = m.Handle(winner)
		m.FinishedAt = &now
		m.NextRoundAt = nil
		s.enqueueReport(fx, m)
		fx.publishMatch(m, Event{Type: EventMatchFinished, PlayerHandle: m.WinnerHandle})
		logger.Info().Int("score1", m.Score1).Int("score2", m.Score2).Msg("match finished")
		return
	}

	next := now.Add(s.cfg.RoundDisplayWindow)
	m.NextRoundAt = &next
	fx.schedule(kindRoundAdvance, roundPayload{MatchID: m.ID, Round: m.Round}, s.cfg.RoundDisplayWindow)
	fx.publishMatch(m, Event{Type: EventRoundEnded, PlayerHandle: summary.WinnerHandle})
	logger.Debug().Msg("round ended")
}

// enqueueReport arms the one trophy report a match gets. Friendly matches
// are never reported.
func (s *Service) enqueueReport(fx *effects, m *model.Match) {
	if m.IsFriendlyMatch || m.Reported {
		return
	}
	m.Reported = true
	fx.schedule(kindReport, reportPayload{MatchID: m.ID}, 0)
}

// onRoundAdvance starts the next round after the display window.
func (s *Service) onRoundAdvance(ctx context.Context, p roundPayload) error {
	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, err := tx.Match(p.MatchID)
		if err != nil {
			return err
		}
		if m.Status != model.MatchPlaying || m.Round != p.Round {
			return ErrRaceNoOp
		}
		p1, p2, err := states(tx, m)
		if err != nil {
			return err
		}

		m.SecretWord = s.words.RandomAnswerExcept(m.SecretWord)
		m.Round++
		m.NextRoundAt = nil
		for _, ps := range []*model.PlayerState{p1, p2} {
			ps.ResetForRound()
			if err := tx.PutPlayerState(ps); err != nil {
				return err
			}
		}
		if err := tx.PutMatch(m); err != nil {
			return err
		}

		fx.publishMatch(m, Event{Type: EventRoundStarted})
		if m.IsBotMatch {
			s.armFirstBotMove(fx, m)
		}
		return nil
	})
}

// LeaveMatch forfeits the match for the caller's side.
func (s *Service) LeaveMatch(ctx context.Context, matchID, sessionID string) error {
	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, side, err := loadParticipant(tx, matchID, sessionID)
		if err != nil {
			return err
		}
		if m.Status != model.MatchPlaying {
			return stateErr("leave match", "match is %s", m.Status)
		}
		me, err := tx.PlayerState(m.ID, m.Handle(side))
		if err != nil {
			return err
		}

		now := s.now()
		me.Finish(game.StateDisconnected, now)
		m.Status = model.MatchAbandoned
		m.AbandonedBy = me.PlayerHandle
		m.WinnerHandle = m.Handle(side.Other())
		m.FinishedAt = &now
		m.NextRoundAt = nil
		s.enqueueReport(fx, m)

		if err := tx.PutPlayerState(me); err != nil {
			return err
		}
		if err := tx.PutMatch(m); err != nil {
			return err
		}
		fx.publishMatch(m, Event{Type: EventMatchAbandoned, PlayerHandle: me.PlayerHandle})
		log.Info().Str("matchId", m.ID).Str("leaver", me.PlayerHandle).Msg("match abandoned")
		return nil
	})
}

// UpdateTypingPreview stores the caller's in-progress guess. Non-letters are
// dropped and the preview is capped at the word length.
func (s *Service) UpdateTypingPreview(ctx context.Context, matchID, sessionID, preview string) error {
	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, side, err := loadParticipant(tx, matchID, sessionID)
		if err != nil {
			return err
		}
		if m.Status != model.MatchPlaying {
			return stateErr("update typing", "match is %s", m.Status)
		}
		me, err := tx.PlayerState(m.ID, m.Handle(side))
		if err != nil {
			return err
		}
		if me.GameState != game.StatePlaying {
			return stateErr("update typing", "round already %s for this player", me.GameState)
		}
		clean := lettersOnly(preview, len(m.SecretWord))
		if clean == me.CurrentGuessPreview {
			return nil
		}
		me.CurrentGuessPreview = clean
		if err := tx.PutPlayerState(me); err != nil {
			return err
		}
		fx.publishMatch(m, Event{Type: EventTyping, PlayerHandle: me.PlayerHandle})
		return nil
	})
}

func lettersOnly(s string, limit int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if b.Len() >= limit {
			break
		}
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
