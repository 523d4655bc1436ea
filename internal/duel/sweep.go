package duel

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// CancelStaleEntries cancels queue entries left waiting past QueueStaleAfter.
func (s *Service) CancelStaleEntries(ctx context.Context) (int, error) {
	var n int
	err := s.update(ctx, func(tx store.Tx, _ *effects) error {
		stale, err := tx.WaitingBefore(s.now().Add(-s.cfg.QueueStaleAfter))
		if err != nil {
			return err
		}
		for _, e := range stale {
			e.Status = model.QueueCancelled
			if err := tx.PutQueueEntry(e); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

// Sweep runs the periodic housekeeping passes.
func (s *Service) Sweep(ctx context.Context) error {
	invites, errInv := s.ExpireInvites(ctx)
	entries, errQ := s.CancelStaleEntries(ctx)
	if invites > 0 || entries > 0 {
		log.Info().Int("invites", invites).Int("queueEntries", entries).Msg("sweep")
	}
	return errors.Join(errInv, errQ)
}
