// apps/duel-server/internal/presence/presence.go
//
// Heartbeat-based online/offline inference.
//
// Clients heartbeat with a client-chosen session id and, when known, the
// user handle. A user is online iff any of their sessions heartbeated within
// OnlineWindow. Records older than the retention window are swept by Cleanup.

package presence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
)

// OnlineWindow is how recent a heartbeat must be to count as online.
const OnlineWindow = 60 * time.Second

// DefaultRetention is how long stale records are kept before Cleanup drops them.
const DefaultRetention = 24 * time.Hour

// ErrNoSession is returned for heartbeats without a session id.
var ErrNoSession = errors.New("presence: session id required")

// Tracker records heartbeats and answers online queries.
type Tracker interface {
	Heartbeat(ctx context.Context, sessionID, userHandle, displayName string) error
	OnlineStatus(ctx context.Context, handles []string) (map[string]bool, error)
	// Cleanup drops records older than the retention window.
	Cleanup(ctx context.Context) (int, error)
}

// StoreTracker keeps presence records in the duel store.
type StoreTracker struct {
	store     store.Store
	clock     clockwork.Clock
	retention time.Duration
}

// NewStoreTracker builds a StoreTracker. A zero retention uses DefaultRetention.
func NewStoreTracker(s store.Store, clock clockwork.Clock, retention time.Duration) *StoreTracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &StoreTracker{store: s, clock: clock, retention: retention}
}

// Heartbeat upserts the session's record. Empty handle or name keep the
// values from earlier heartbeats.
func (t *StoreTracker) Heartbeat(ctx context.Context, sessionID, userHandle, displayName string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrNoSession
	}
	now := t.clock.Now().UTC()
	return t.store.Update(ctx, func(tx store.Tx) error {
		rec, err := tx.Presence(sessionID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rec = &model.PresenceRecord{SessionID: sessionID}
		case err != nil:
			return eris.Wrap(err, "load presence")
		}
		if userHandle != "" {
			rec.UserHandle = userHandle
		}
		if displayName != "" {
			rec.DisplayName = displayName
		}
		rec.LastSeenAt = now
		return tx.PutPresence(rec)
	})
}

// OnlineStatus maps every requested handle to its online flag.
func (t *StoreTracker) OnlineStatus(ctx context.Context, handles []string) (map[string]bool, error) {
	out := make(map[string]bool, len(handles))
	for _, h := range handles {
		out[h] = false
	}
	if len(handles) == 0 {
		return out, nil
	}
	now := t.clock.Now()
	err := t.store.View(ctx, func(tx store.Tx) error {
		recs, err := tx.PresenceFor(handles)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if Online(r.LastSeenAt, now) {
				out[r.UserHandle] = true
			}
		}
		return nil
	})
	return out, err
}

// Cleanup drops records not seen within the retention window.
func (t *StoreTracker) Cleanup(ctx context.Context) (int, error) {
	cutoff := t.clock.Now().Add(-t.retention)
	var n int
	err := t.store.Update(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.DeletePresenceBefore(cutoff)
		return err
	})
	return n, err
}

// Online reports whether a heartbeat at lastSeen counts as online at now.
func Online(lastSeen, now time.Time) bool {
	return now.Sub(lastSeen) < OnlineWindow
}
