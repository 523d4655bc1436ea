package duel

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
	"github.com/robalobadob/wordle/apps/duel-server/internal/trophy"
)

// onReport sends a decided match to the trophy service. Upstream failures
// are logged and not retried.
func (s *Service) onReport(ctx context.Context, p reportPayload) error {
	var (
		m      *model.Match
		p1, p2 *model.PlayerState
	)
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if m, err = tx.Match(p.MatchID); err != nil {
			return err
		}
		p1, p2, err = states(tx, m)
		return err
	})
	if err != nil {
		return err
	}
	if m.Status == model.MatchPlaying || m.IsFriendlyMatch {
		return ErrRaceNoOp
	}

	players := [2]trophy.Player{
		{ID: m.Player1Handle, Type: trophy.Human, Name: m.Player1Name},
		{ID: m.Player2Handle, Type: trophy.Human, Name: m.Player2Name},
	}
	gameType := "pvp"
	if m.IsBotMatch {
		players[1].Type = trophy.Bot
		if m.BotID != "" {
			players[1].ID = m.BotID
		}
		gameType = "bot"
	}

	won := [2]bool{m.WinnerHandle == m.Player1Handle, m.WinnerHandle == m.Player2Handle}
	var deltas [2]int
	var results [2]trophy.Result
	for i := range won {
		if won[i] {
			deltas[i], results[i] = s.cfg.WinTrophies, trophy.Win
		} else {
			deltas[i], results[i] = s.cfg.LoseTrophies, trophy.Lose
		}
	}

	res := trophy.MatchResult{
		MatchID:      m.ID,
		P1:           players[0],
		P2:           players[1],
		Attempts1:    len(p1.Guesses),
		Attempts2:    len(p2.Guesses),
		TrophyDelta1: deltas[0],
		TrophyDelta2: deltas[1],
		Word:         m.SecretWord,
		GameType:     gameType,
	}
	for i := range won {
		if won[i] {
			res.WinnerID, res.WinnerType = players[i].ID, players[i].Type
		}
	}

	logger := log.With().Str("matchId", m.ID).Logger()
	warn := func(err error, what string) {
		if err != nil {
			logger.Warn().Err(err).Msg("trophy: " + what)
		}
	}

	warn(s.trophies.LogMatchResult(ctx, res), "log match result")
	for i, pl := range players {
		switch {
		case pl.Type == trophy.Human:
			warn(s.trophies.ApplyUserTrophyResult(ctx, pl.ID, results[i], deltas[i]), "apply user result")
		case m.BotID != "":
			warn(s.trophies.ApplyBotTrophyResult(ctx, m.BotID, results[i], deltas[i]), "apply bot result")
		}
	}
	logger.Info().Str("winner", res.WinnerID).Str("status", string(m.Status)).Msg("match reported")
	return nil
}
