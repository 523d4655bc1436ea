package duel

import (
	"errors"
	"testing"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

func (h *harness) invite(from, to string) *InviteResult {
	h.t.Helper()
	res, err := h.svc.SendInvite(h.ctx, Player{Handle: from, DisplayName: from}, to, "")
	if err != nil {
		h.t.Fatalf("invite %s -> %s: %v", from, to, err)
	}
	return res
}

func TestAcceptInviteStartsFriendlyMatch(t *testing.T) {
	h := newHarness(t)
	inv := h.invite("alice", "bob")
	if inv.SessionID == "" || !inv.ExpiresAt.Equal(h.clock.Now().Add(60*time.Second)) {
		t.Fatalf("invite = %+v", inv)
	}

	h.sched.advance(30 * time.Second)
	acc, err := h.svc.AcceptInvite(h.ctx, inv.RequestID, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if acc.SessionID == "" || acc.MatchID == "" {
		t.Fatalf("accept = %+v", acc)
	}

	m := h.match(acc.MatchID)
	if !m.IsFriendlyMatch || m.BestOf != 3 || m.Player1Handle != "alice" || m.Player2Name != "bob" {
		t.Fatalf("match = %+v", m)
	}
	if side, ok := m.SideForSession(inv.SessionID); !ok || side != model.Side1 {
		t.Fatalf("sender session is not player 1")
	}

	r, _ := h.svc.Invite(h.ctx, inv.RequestID)
	if r.Status != model.InviteAccepted || r.MatchID != acc.MatchID || r.ToSessionID != acc.SessionID {
		t.Fatalf("invite record = %+v", r)
	}

	var se *StateError
	if _, err := h.svc.AcceptInvite(h.ctx, inv.RequestID, ""); !errors.As(err, &se) {
		t.Fatalf("second accept err = %v, want StateError", err)
	}

	// Friendly results never reach the trophy service.
	if err := h.svc.LeaveMatch(h.ctx, acc.MatchID, acc.SessionID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	h.sched.advance(time.Second)
	if n := h.trophies.reported(); n != 0 {
		t.Fatalf("friendly reports = %d, want 0", n)
	}
}

func TestAcceptAfterExpiry(t *testing.T) {
	h := newHarness(t)
	inv := h.invite("alice", "bob")

	h.sched.advance(61 * time.Second)
	if _, err := h.svc.AcceptInvite(h.ctx, inv.RequestID, ""); !errors.Is(err, ErrInviteExpired) {
		t.Fatalf("accept err = %v, want ErrInviteExpired", err)
	}

	var stored *model.FriendBattleRequest
	_ = h.store.View(h.ctx, func(tx store.Tx) error {
		var err error
		stored, err = tx.Invite(inv.RequestID)
		return err
	})
	if stored == nil || stored.Status != model.InviteExpired || stored.MatchID != "" {
		t.Fatalf("stored invite = %+v, want expired", stored)
	}
}

func TestInviteValidation(t *testing.T) {
	h := newHarness(t)
	var se *StateError
	if _, err := h.svc.SendInvite(h.ctx, Player{Handle: "alice"}, "alice", ""); !errors.As(err, &se) {
		t.Errorf("self invite err = %v", err)
	}
	if _, err := h.svc.SendInvite(h.ctx, Player{Handle: "alice"}, " ", ""); !errors.Is(err, ErrInvalidPlayer) {
		t.Errorf("blank target err = %v", err)
	}
	if _, err := h.svc.AcceptInvite(h.ctx, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing invite err = %v", err)
	}

	first := h.invite("alice", "bob")
	if _, err := h.svc.SendInvite(h.ctx, Player{Handle: "alice"}, "bob", ""); !errors.As(err, &se) {
		t.Errorf("duplicate invite err = %v", err)
	}

	// Once the first one lapses a fresh invite replaces it.
	h.sched.advance(time.Minute)
	second := h.invite("alice", "bob")
	if second.RequestID == first.RequestID {
		t.Fatal("expected a new request")
	}
	r, _ := h.svc.Invite(h.ctx, first.RequestID)
	if r.Status != model.InviteExpired {
		t.Errorf("first invite = %s, want expired", r.Status)
	}
}

func TestRejectAndCancel(t *testing.T) {
	h := newHarness(t)
	a := h.invite("alice", "bob")
	if err := h.svc.RejectInvite(h.ctx, a.RequestID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if r, _ := h.svc.Invite(h.ctx, a.RequestID); r.Status != model.InviteRejected || r.RespondedAt == nil {
		t.Fatalf("rejected invite = %+v", r)
	}

	c := h.invite("carol", "bob")
	if err := h.svc.CancelInvite(h.ctx, c.RequestID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	var se *StateError
	if err := h.svc.RejectInvite(h.ctx, c.RequestID); !errors.As(err, &se) {
		t.Fatalf("reject cancelled err = %v, want StateError", err)
	}
}

func TestIncomingAndExpireInvites(t *testing.T) {
	h := newHarness(t)
	h.invite("alice", "bob")
	h.sched.advance(30 * time.Second)
	newer := h.invite("carol", "bob")
	h.invite("bob", "dave")

	in, err := h.svc.IncomingInvites(h.ctx, "bob")
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if len(in) != 2 || in[0].ID != newer.RequestID {
		t.Fatalf("incoming = %+v, want carol's first", in)
	}

	h.sched.advance(31 * time.Second)
	in, _ = h.svc.IncomingInvites(h.ctx, "bob")
	if len(in) != 1 || in[0].FromHandle != "carol" {
		t.Fatalf("incoming after alice's lapsed = %+v", in)
	}

	n, err := h.svc.ExpireInvites(h.ctx)
	if err != nil || n != 1 {
		t.Fatalf("expire = %d, %v; want 1", n, err)
	}
	h.sched.advance(time.Minute)
	if n, _ := h.svc.ExpireInvites(h.ctx); n != 2 {
		t.Fatalf("second expire = %d, want 2", n)
	}
	if n, _ := h.svc.ExpireInvites(h.ctx); n != 0 {
		t.Fatalf("third expire = %d, want 0", n)
	}
}
