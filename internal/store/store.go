// apps/duel-server/internal/store/store.go
//
// Transactional document store for duel records.
//
// Every state transition runs inside Update: the callback reads, checks and
// writes through a Tx, and its writes become visible atomically when it
// returns nil. Returning an error discards them. Implementations serialize
// Update calls, so a callback never observes another writer's partial work.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/tasks"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("not found")

// ErrReadOnly is returned by writes attempted inside View.
var ErrReadOnly = errors.New("store: write in read-only transaction")

// Store is the persistence boundary of the duel service.
type Store interface {
	// Update runs fn in a serializable read-write transaction.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	tasks.Journal

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the record-level API available inside a transaction. Getters return
// copies; changes take effect only through the matching Put.
type Tx interface {
	Match(id string) (*model.Match, error)
	PutMatch(m *model.Match) error
	PlayerState(matchID, handle string) (*model.PlayerState, error)
	PutPlayerState(p *model.PlayerState) error

	QueueEntry(id string) (*model.QueueEntry, error)
	QueueEntryBySession(sessionID string) (*model.QueueEntry, error)
	// OldestWaiting returns the earliest waiting entry not owned by
	// excludeHandle. BotOnly entries are never returned.
	OldestWaiting(excludeHandle string) (*model.QueueEntry, error)
	// WaitingByHandle returns the handle's waiting entry, if any.
	WaitingByHandle(handle string) (*model.QueueEntry, error)
	// WaitingBefore lists waiting entries created before t, oldest first.
	WaitingBefore(t time.Time) ([]*model.QueueEntry, error)
	PutQueueEntry(e *model.QueueEntry) error

	Invite(id string) (*model.FriendBattleRequest, error)
	// PendingInvite returns the pending request for the ordered pair.
	PendingInvite(fromHandle, toHandle string) (*model.FriendBattleRequest, error)
	// InvitesTo lists requests addressed to handle with the given status,
	// newest first.
	InvitesTo(handle string, status model.InviteStatus) ([]*model.FriendBattleRequest, error)
	// PendingExpiringBy lists pending requests with ExpiresAt ≤ t.
	PendingExpiringBy(t time.Time) ([]*model.FriendBattleRequest, error)
	PutInvite(r *model.FriendBattleRequest) error

	Presence(sessionID string) (*model.PresenceRecord, error)
	// PresenceFor lists every record belonging to any of handles.
	PresenceFor(handles []string) ([]*model.PresenceRecord, error)
	PutPresence(p *model.PresenceRecord) error
	// DeletePresenceBefore removes records last seen before t.
	DeletePresenceBefore(t time.Time) (int, error)
}
