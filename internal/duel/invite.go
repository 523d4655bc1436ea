package duel

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// friendlyBestOf is the fixed round count of friend battles.
const friendlyBestOf = 3

// InviteResult is returned by SendInvite and AcceptInvite.
type InviteResult struct {
	RequestID string    `json:"requestId"`
	SessionID string    `json:"sessionId"`
	MatchID   string    `json:"matchId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendInvite challenges toHandle to a friendly match.
func (s *Service) SendInvite(ctx context.Context, from Player, toHandle, toName string) (*InviteResult, error) {
	from, err := cleanPlayer(from)
	if err != nil {
		return nil, err
	}
	toHandle = strings.TrimSpace(toHandle)
	if toHandle == "" {
		return nil, ErrInvalidPlayer
	}
	if toHandle == from.Handle {
		return nil, stateErr("send invite", "cannot invite yourself")
	}

	var res *InviteResult
	err = s.update(ctx, func(tx store.Tx, fx *effects) error {
		now := s.now()
		prev, err := tx.PendingInvite(from.Handle, toHandle)
		switch {
		case err == nil && prev.Expired(now):
			if err := s.expire(tx, fx, prev, now); err != nil {
				return err
			}
		case err == nil:
			return stateErr("send invite", "an invite to %s is already pending", toHandle)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		r := &model.FriendBattleRequest{
			ID:            uuid.NewString(),
			FromHandle:    from.Handle,
			FromName:      from.name(),
			FromSessionID: uuid.NewString(),
			ToHandle:      toHandle,
			ToName:        strings.TrimSpace(toName),
			Status:        model.InvitePending,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.cfg.InviteTTL),
		}
		if err := tx.PutInvite(r); err != nil {
			return err
		}
		fx.publish(UserTopic(toHandle), Event{Type: EventInviteReceived, InviteID: r.ID, PlayerHandle: from.Handle})
		res = &InviteResult{RequestID: r.ID, SessionID: r.FromSessionID, ExpiresAt: r.ExpiresAt}
		return nil
	})
	return res, err
}

// AcceptInvite starts a friendly match between the sender and the accepter,
// who plays under accepterSession.
func (s *Service) AcceptInvite(ctx context.Context, id, accepterSession string) (*InviteResult, error) {
	if accepterSession == "" {
		accepterSession = uuid.NewString()
	}
	var (
		res     *InviteResult
		expired bool
	)
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		r, err := s.pendingInvite(tx, "accept invite", id)
		if err != nil {
			return err
		}
		now := s.now()
		if r.Expired(now) {
			expired = true
			return s.expire(tx, fx, r, now)
		}

		toName := r.ToName
		if toName == "" {
			toName = r.ToHandle
		}
		m, err := s.createMatch(tx,
			seat{r.FromHandle, r.FromName, r.FromSessionID},
			seat{r.ToHandle, toName, accepterSession},
			matchOpts{bestOf: friendlyBestOf, friendly: true},
		)
		if err != nil {
			return err
		}

		r.Status = model.InviteAccepted
		r.MatchID = m.ID
		r.ToSessionID = accepterSession
		r.RespondedAt = &now
		if err := tx.PutInvite(r); err != nil {
			return err
		}
		fx.publish(SessionTopic(r.FromSessionID), Event{Type: EventInviteAccepted, InviteID: r.ID, MatchID: m.ID})
		fx.publishMatch(m, Event{Type: EventMatchStarted})
		log.Info().Str("inviteId", r.ID).Str("matchId", m.ID).Msg("friend battle started")
		res = &InviteResult{RequestID: r.ID, SessionID: accepterSession, MatchID: m.ID, ExpiresAt: r.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrInviteExpired
	}
	return res, nil
}

// RejectInvite declines a pending invite.
func (s *Service) RejectInvite(ctx context.Context, id string) error {
	return s.respond(ctx, "reject invite", id, model.InviteRejected, EventInviteRejected)
}

// CancelInvite withdraws a pending invite.
func (s *Service) CancelInvite(ctx context.Context, id string) error {
	return s.respond(ctx, "cancel invite", id, model.InviteCancelled, EventInviteCancelled)
}

func (s *Service) respond(ctx context.Context, op, id string, to model.InviteStatus, evType string) error {
	var expired bool
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		r, err := s.pendingInvite(tx, op, id)
		if err != nil {
			return err
		}
		now := s.now()
		if r.Expired(now) {
			expired = true
			return s.expire(tx, fx, r, now)
		}
		r.Status = to
		r.RespondedAt = &now
		if err := tx.PutInvite(r); err != nil {
			return err
		}
		ev := Event{Type: evType, InviteID: r.ID}
		fx.publish(SessionTopic(r.FromSessionID), ev)
		fx.publish(UserTopic(r.ToHandle), ev)
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		return ErrInviteExpired
	}
	return nil
}

func (s *Service) pendingInvite(tx store.Tx, op, id string) (*model.FriendBattleRequest, error) {
	r, err := tx.Invite(id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.InvitePending {
		return nil, stateErr(op, "invite is %s", r.Status)
	}
	return r, nil
}

// expire flips a stale pending invite to expired.
func (s *Service) expire(tx store.Tx, fx *effects, r *model.FriendBattleRequest, now time.Time) error {
	r.Status = model.InviteExpired
	r.RespondedAt = &now
	if err := tx.PutInvite(r); err != nil {
		return err
	}
	ev := Event{Type: EventInviteExpired, InviteID: r.ID}
	fx.publish(SessionTopic(r.FromSessionID), ev)
	fx.publish(UserTopic(r.ToHandle), ev)
	return nil
}

// Invite returns a request for polling. A stale pending request reads as
// expired even before the sweep records it.
func (s *Service) Invite(ctx context.Context, id string) (*model.FriendBattleRequest, error) {
	var r *model.FriendBattleRequest
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.Invite(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if r.Expired(s.now()) {
		r.Status = model.InviteExpired
	}
	return r, nil
}

// IncomingInvites lists live pending invites addressed to handle, newest first.
func (s *Service) IncomingInvites(ctx context.Context, handle string) ([]*model.FriendBattleRequest, error) {
	now := s.now()
	out := []*model.FriendBattleRequest{}
	err := s.store.View(ctx, func(tx store.Tx) error {
		list, err := tx.InvitesTo(handle, model.InvitePending)
		if err != nil {
			return err
		}
		for _, r := range list {
			if !r.Expired(now) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// ExpireInvites marks every stale pending invite expired.
func (s *Service) ExpireInvites(ctx context.Context) (int, error) {
	var n int
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		now := s.now()
		due, err := tx.PendingExpiringBy(now)
		if err != nil {
			return err
		}
		for _, r := range due {
			if err := s.expire(tx, fx, r, now); err != nil {
				return err
			}
		}
		n = len(due)
		return nil
	})
	return n, err
}
