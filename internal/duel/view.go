package duel

import (
	"context"
	"math"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// MatchView is one side's picture of a match. The opponent's letters and the
// secret stay hidden while the round is being played.
type MatchView struct {
	ID              string              `json:"id"`
	Status          model.MatchStatus   `json:"status"`
	Round           int                 `json:"round"`
	BestOf          int                 `json:"bestOf"`
	MaxAttempts     int                 `json:"maxAttempts"`
	WordLength      int                 `json:"wordLength"`
	IsBotMatch      bool                `json:"isBotMatch"`
	IsFriendlyMatch bool                `json:"isFriendlyMatch"`
	WinnerHandle    string              `json:"winnerHandle,omitempty"`
	AbandonedBy     string              `json:"abandonedBy,omitempty"`
	NextRoundAt     *time.Time          `json:"nextRoundAt,omitempty"`
	SecretWord      string              `json:"secretWord,omitempty"`
	LastRound       *model.RoundSummary `json:"lastRound,omitempty"`
	You             SideView            `json:"you"`
	Opponent        SideView            `json:"opponent"`
}

// SideView is one side's board as seen by the viewer.
type SideView struct {
	Handle            string     `json:"handle"`
	Name              string     `json:"name"`
	Score             int        `json:"score"`
	State             game.State `json:"gameState"`
	Guesses           []game.Row `json:"guesses"`
	Preview           string     `json:"preview,omitempty"`
	PreviewLength     int        `json:"previewLength"`
	Disrupted         bool       `json:"disrupted"`
	CooldownRemaining int        `json:"cooldownRemaining,omitempty"` // seconds
}

// MatchView returns the match as seen by the caller's session.
func (s *Service) MatchView(ctx context.Context, matchID, sessionID string) (*MatchView, error) {
	var v *MatchView
	err := s.store.View(ctx, func(tx store.Tx) error {
		m, side, err := loadParticipant(tx, matchID, sessionID)
		if err != nil {
			return err
		}
		me, err := tx.PlayerState(m.ID, m.Handle(side))
		if err != nil {
			return err
		}
		opp, err := tx.PlayerState(m.ID, m.Handle(side.Other()))
		if err != nil {
			return err
		}
		v = s.buildView(m, side, me, opp)
		return nil
	})
	return v, err
}

func (s *Service) buildView(m *model.Match, side model.Side, me, opp *model.PlayerState) *MatchView {
	now := s.now()
	revealed := m.Status != model.MatchPlaying || m.NextRoundAt != nil

	v := &MatchView{
		ID:              m.ID,
		Status:          m.Status,
		Round:           m.Round,
		BestOf:          m.BestOf,
		MaxAttempts:     m.MaxAttempts,
		WordLength:      len(m.SecretWord),
		IsBotMatch:      m.IsBotMatch,
		IsFriendlyMatch: m.IsFriendlyMatch,
		WinnerHandle:    m.WinnerHandle,
		AbandonedBy:     m.AbandonedBy,
		NextRoundAt:     m.NextRoundAt,
		LastRound:       m.LastRoundSummary,
		You:             s.sideView(m, side, me, now, true),
		Opponent:        s.sideView(m, side.Other(), opp, now, revealed),
	}
	if revealed {
		v.SecretWord = m.SecretWord
	}
	return v
}

func (s *Service) sideView(m *model.Match, side model.Side, ps *model.PlayerState, now time.Time, showLetters bool) SideView {
	sv := SideView{
		Handle:        ps.PlayerHandle,
		Name:          m.Name(side),
		Score:         m.Score(side),
		State:         ps.GameState,
		PreviewLength: len(ps.CurrentGuessPreview),
		Disrupted:     ps.DisruptionReceivedAt != nil && now.Sub(*ps.DisruptionReceivedAt) < s.cfg.DisruptionWindow,
	}
	if ps.LastDisruptionSentAt != nil {
		if left := s.cfg.DisruptionCooldown - now.Sub(*ps.LastDisruptionSentAt); left > 0 {
			sv.CooldownRemaining = int(math.Ceil(left.Seconds()))
		}
	}
	sv.Guesses = make([]game.Row, len(ps.Guesses))
	for i, row := range ps.Guesses {
		sv.Guesses[i] = game.Row{Marks: row.Marks}
		if showLetters {
			sv.Guesses[i].Word = row.Word
		}
	}
	if showLetters {
		sv.Preview = ps.CurrentGuessPreview
	}
	return sv
}
