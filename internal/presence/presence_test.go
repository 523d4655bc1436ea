package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

func TestOnlineWithinWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tr := NewStoreTracker(store.NewMemoryStore(), clock, 0)
	ctx := context.Background()

	if err := tr.Heartbeat(ctx, "s1", "alice", "Alice"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	tests := []struct {
		name    string
		advance time.Duration
		want    bool
	}{
		{"fresh", 0, true},
		{"just inside", 59 * time.Second, true},
		{"at threshold", time.Second, false},
		{"long gone", time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			got, err := tr.OnlineStatus(ctx, []string{"alice", "bob"})
			if err != nil {
				t.Fatalf("online: %v", err)
			}
			if got["alice"] != tt.want {
				t.Errorf("alice online = %v, want %v", got["alice"], tt.want)
			}
			if got["bob"] {
				t.Error("bob reported online without a heartbeat")
			}
		})
	}
}

func TestAnyFreshSessionCounts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewStoreTracker(store.NewMemoryStore(), clock, 0)
	ctx := context.Background()

	_ = tr.Heartbeat(ctx, "desktop", "alice", "")
	clock.Advance(2 * time.Minute)
	// Anonymous heartbeat keeps the handle from the first beat.
	_ = tr.Heartbeat(ctx, "phone", "alice", "")
	_ = tr.Heartbeat(ctx, "desktop", "", "")

	got, _ := tr.OnlineStatus(ctx, []string{"alice"})
	if !got["alice"] {
		t.Fatal("alice should be online via either session")
	}
}

func TestHeartbeatNeedsSession(t *testing.T) {
	tr := NewStoreTracker(store.NewMemoryStore(), clockwork.NewFakeClock(), 0)
	if err := tr.Heartbeat(context.Background(), "  ", "alice", ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestCleanupDropsStaleRecords(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewMemoryStore()
	tr := NewStoreTracker(st, clock, time.Hour)
	ctx := context.Background()

	_ = tr.Heartbeat(ctx, "old", "alice", "")
	clock.Advance(2 * time.Hour)
	_ = tr.Heartbeat(ctx, "new", "bob", "")

	n, err := tr.Cleanup(ctx)
	if err != nil || n != 1 {
		t.Fatalf("cleanup = %d, %v; want 1", n, err)
	}
	_ = st.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Presence("old"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("old record kept: %v", err)
		}
		if _, err := tx.Presence("new"); err != nil {
			t.Errorf("new record dropped: %v", err)
		}
		return nil
	})
}
