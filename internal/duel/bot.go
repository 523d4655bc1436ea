package duel

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/bot"
	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// botSide is always player 2 in bot matches.
const botSide = model.Side2

// botMovePayload is one step of a bot turn. Guess is chosen on the first
// step; Typed counts letters already shown in the preview.
type botMovePayload struct {
	MatchID string `json:"matchId"`
	Round   int    `json:"round"`
	Attempt int    `json:"attempt"`
	Guess   string `json:"guess,omitempty"`
	Typed   int    `json:"typed,omitempty"`
}

type botDisruptPayload struct {
	MatchID string `json:"matchId"`
	Round   int    `json:"round"`
}

// onBotFallback turns a still-waiting queue entry into a bot match.
func (s *Service) onBotFallback(ctx context.Context, p fallbackPayload) error {
	var entry *model.QueueEntry
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		entry, err = tx.QueueEntry(p.EntryID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrRaceNoOp
	}
	if err != nil {
		return err
	}
	if entry.Status != model.QueueWaiting {
		return ErrRaceNoOp
	}

	// Persona lookup is best effort and stays outside the transaction.
	diff := bot.DifficultyForSkill(entry.SkillScore)
	opp := seat{handle: "bot-" + uuid.NewString()[:8]}
	var botID string
	if prof, err := s.trophies.FetchRandomBotProfile(ctx, string(diff)); err == nil && prof != nil && prof.ID != "" {
		botID = prof.ID
		opp.handle = "bot-" + prof.ID
		opp.name = prof.Name
	} else if err != nil {
		log.Debug().Err(err).Str("entryId", entry.ID).Msg("bot profile unavailable, using local name")
	}
	if opp.name == "" {
		s.withRand(func(r *rand.Rand) { opp.name = bot.RandomName(r) })
	}

	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		e, err := tx.QueueEntry(p.EntryID)
		if err != nil {
			return err
		}
		if e.Status != model.QueueWaiting {
			return ErrRaceNoOp
		}
		m, err := s.createMatch(tx,
			seat{e.PlayerHandle, e.DisplayName, e.SessionID},
			opp,
			matchOpts{
				bestOf:     s.bestOfFor(e.SkillScore),
				isBot:      true,
				botID:      botID,
				difficulty: diff,
			},
		)
		if err != nil {
			return err
		}
		e.Status = model.QueueMatched
		e.MatchID = m.ID
		if err := tx.PutQueueEntry(e); err != nil {
			return err
		}

		log.Info().Str("matchId", m.ID).Str("entryId", e.ID).Str("difficulty", string(diff)).Msg("bot match created")
		fx.publish(SessionTopic(e.SessionID), Event{Type: EventQueueMatched, MatchID: m.ID})
		fx.publishMatch(m, Event{Type: EventMatchStarted})
		s.armFirstBotMove(fx, m)
		return nil
	})
}

func (s *Service) armFirstBotMove(fx *effects, m *model.Match) {
	fx.schedule(kindBotMove, botMovePayload{MatchID: m.ID, Round: m.Round},
		s.between(botFirstMoveMin, botFirstMoveMax))
}

// onBotMove advances the bot's turn by one step: choose, type a letter, or submit.
func (s *Service) onBotMove(ctx context.Context, p botMovePayload) error {
	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, err := tx.Match(p.MatchID)
		if err != nil {
			return err
		}
		if !m.IsBotMatch || m.Status != model.MatchPlaying || m.Round != p.Round {
			return ErrRaceNoOp
		}
		me, err := tx.PlayerState(m.ID, m.Handle(botSide))
		if err != nil {
			return err
		}
		if me.GameState != game.StatePlaying || len(me.Guesses) != p.Attempt {
			return ErrRaceNoOp
		}

		now := s.now()
		if me.DisruptionReceivedAt != nil {
			if now.Sub(*me.DisruptionReceivedAt) < s.cfg.DisruptionWindow {
				fx.schedule(kindBotMove, p, botDisruptedWait)
				return nil
			}
			me.DisruptionReceivedAt = nil
		}

		profile := bot.ProfileFor(m.BotDifficulty)
		if p.Guess == "" {
			s.withRand(func(r *rand.Rand) {
				p.Guess = s.solver.NextGuess(r, bot.Input{
					MatchID: m.ID,
					Secret:  m.SecretWord,
					History: me.Guesses,
					Profile: profile,
				})
			})
			p.Typed = 0
		}

		if p.Typed < len(p.Guess) {
			p.Typed++
			me.CurrentGuessPreview = p.Guess[:p.Typed]
			if err := tx.PutPlayerState(me); err != nil {
				return err
			}
			fx.publishMatch(m, Event{Type: EventTyping, PlayerHandle: me.PlayerHandle})
			fx.schedule(kindBotMove, p, botTypingStep)
			return nil
		}

		res, err := s.applyGuess(tx, fx, m, botSide, me, p.Guess)
		if err != nil {
			return err
		}
		if res.State != game.StatePlaying || m.Status != model.MatchPlaying {
			return nil
		}

		delay := profile.MinDelay
		s.withRand(func(r *rand.Rand) { delay = profile.Delay(r) })
		fx.schedule(kindBotMove, botMovePayload{MatchID: m.ID, Round: m.Round, Attempt: len(me.Guesses)}, delay)
		if s.chance(s.cfg.BotDisruptChance) {
			fx.schedule(kindBotDisrupt, botDisruptPayload{MatchID: m.ID, Round: m.Round}, botDisruptDelay)
		}
		return nil
	})
}

// onBotDisrupt sends a disruption from the bot. A cooldown just skips it.
func (s *Service) onBotDisrupt(ctx context.Context, p botDisruptPayload) error {
	return s.update(ctx, func(tx store.Tx, fx *effects) error {
		m, err := tx.Match(p.MatchID)
		if err != nil {
			return err
		}
		if !m.IsBotMatch || m.Status != model.MatchPlaying || m.Round != p.Round {
			return ErrRaceNoOp
		}
		var cd *CooldownError
		if err := s.disrupt(tx, fx, m, botSide); errors.As(err, &cd) {
			return ErrRaceNoOp
		} else if err != nil {
			return err
		}
		return nil
	})
}
