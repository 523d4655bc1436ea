package duel

import (
	"errors"
	"testing"
	"time"
)

func TestDisruptionCooldown(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(0)

	if err := h.svc.SendDisruption(h.ctx, p.matchID, p.s1); err != nil {
		t.Fatalf("first disruption: %v", err)
	}
	if st := h.state(p.matchID, p.h2); st.DisruptionReceivedAt == nil {
		t.Fatal("bob has no disruption marker")
	}
	v, _ := h.svc.MatchView(h.ctx, p.matchID, p.s2)
	if !v.You.Disrupted {
		t.Error("bob's view is not disrupted")
	}
	v, _ = h.svc.MatchView(h.ctx, p.matchID, p.s1)
	if v.You.CooldownRemaining != 30 {
		t.Errorf("alice cooldown = %d, want 30", v.You.CooldownRemaining)
	}

	h.sched.advance(10 * time.Second)
	var cd *CooldownError
	err := h.svc.SendDisruption(h.ctx, p.matchID, p.s1)
	if !errors.As(err, &cd) {
		t.Fatalf("second disruption err = %v, want CooldownError", err)
	}
	if cd.Seconds() != 20 {
		t.Errorf("remaining = %ds, want 20", cd.Seconds())
	}

	// The cooldown is per sender.
	if err := h.svc.SendDisruption(h.ctx, p.matchID, p.s2); err != nil {
		t.Fatalf("bob disruption: %v", err)
	}

	h.sched.advance(20 * time.Second)
	if err := h.svc.SendDisruption(h.ctx, p.matchID, p.s1); err != nil {
		t.Fatalf("disruption after cooldown: %v", err)
	}
}

func TestDisruptionWindowAndClear(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(0)
	if err := h.svc.SendDisruption(h.ctx, p.matchID, p.s1); err != nil {
		t.Fatalf("disrupt: %v", err)
	}

	h.sched.advance(3 * time.Second)
	if v, _ := h.svc.MatchView(h.ctx, p.matchID, p.s2); v.You.Disrupted {
		t.Error("still disrupted after the window")
	}

	if err := h.svc.ClearDisruption(h.ctx, p.matchID, p.s2); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if st := h.state(p.matchID, p.h2); st.DisruptionReceivedAt != nil {
		t.Fatal("marker not cleared")
	}
	// Clearing with nothing to clear is fine.
	if err := h.svc.ClearDisruption(h.ctx, p.matchID, p.s2); err != nil {
		t.Fatalf("clear again: %v", err)
	}
}

func TestDisruptionNeedsLiveMatch(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(0)
	if err := h.svc.LeaveMatch(h.ctx, p.matchID, p.s2); err != nil {
		t.Fatalf("leave: %v", err)
	}
	var se *StateError
	if err := h.svc.SendDisruption(h.ctx, p.matchID, p.s1); !errors.As(err, &se) {
		t.Fatalf("err = %v, want StateError", err)
	}
	if err := h.svc.SendDisruption(h.ctx, p.matchID, "nobody"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}
}
