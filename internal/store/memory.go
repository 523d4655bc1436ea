// apps/duel-server/internal/store/memory.go
//
// In-memory implementation of Store.
// Used in development, in tests, and whenever no database path is configured.
//
// Characteristics:
//   - Records live in maps keyed by id; the store only ever hands out copies.
//   - Update holds the write lock for the whole callback and stages writes,
//     applying them only when the callback succeeds.
//   - View takes the read lock, so polling clients never block each other.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/tasks"
)

type stateKey struct{ matchID, handle string }

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex // guards every map below
	matches  map[string]*model.Match
	states   map[stateKey]*model.PlayerState
	queue    map[string]*model.QueueEntry
	queueSeq map[string]uint64 // insertion order for FIFO ties
	seq      uint64
	invites  map[string]*model.FriendBattleRequest
	presence map[string]*model.PresenceRecord

	taskMu sync.Mutex
	tasks  map[string]tasks.Task
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		matches:  make(map[string]*model.Match),
		states:   make(map[stateKey]*model.PlayerState),
		queue:    make(map[string]*model.QueueEntry),
		queueSeq: make(map[string]uint64),
		invites:  make(map[string]*model.FriendBattleRequest),
		presence: make(map[string]*model.PresenceRecord),
		tasks:    make(map[string]tasks.Task),
	}
}

// Update runs fn with exclusive access and commits its staged writes on success.
func (m *memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newMemTx(m, true)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against a consistent snapshot.
func (m *memory) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newMemTx(m, false))
}

func (m *memory) Ping(context.Context) error { return nil }
func (m *memory) Close() error               { return nil }

// SaveTask records an armed task.
func (m *memory) SaveTask(_ context.Context, t tasks.Task) error {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

// DeleteTask forgets a task once it has run.
func (m *memory) DeleteTask(_ context.Context, id string) error {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()
	delete(m.tasks, id)
	return nil
}

// PendingTasks lists tasks not yet run, earliest first.
func (m *memory) PendingTasks(context.Context) ([]tasks.Task, error) {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()
	out := make([]tasks.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

// ------------------------------- memTx --------------------------------------

// memTx overlays staged writes on top of the committed maps.
type memTx struct {
	m        *memory
	writable bool

	matches  map[string]*model.Match
	states   map[stateKey]*model.PlayerState
	queue    map[string]*model.QueueEntry
	invites  map[string]*model.FriendBattleRequest
	presence map[string]*model.PresenceRecord
	dropped  map[string]struct{} // presence deletions
}

func newMemTx(m *memory, writable bool) *memTx {
	return &memTx{
		m:        m,
		writable: writable,
		matches:  make(map[string]*model.Match),
		states:   make(map[stateKey]*model.PlayerState),
		queue:    make(map[string]*model.QueueEntry),
		invites:  make(map[string]*model.FriendBattleRequest),
		presence: make(map[string]*model.PresenceRecord),
		dropped:  make(map[string]struct{}),
	}
}

func (tx *memTx) commit() {
	m := tx.m
	for id, v := range tx.matches {
		m.matches[id] = v
	}
	for k, v := range tx.states {
		m.states[k] = v
	}
	for id, v := range tx.queue {
		if _, ok := m.queueSeq[id]; !ok {
			m.seq++
			m.queueSeq[id] = m.seq
		}
		m.queue[id] = v
	}
	for id, v := range tx.invites {
		m.invites[id] = v
	}
	for id := range tx.dropped {
		delete(m.presence, id)
	}
	for id, v := range tx.presence {
		m.presence[id] = v
	}
}

func (tx *memTx) Match(id string) (*model.Match, error) {
	if v, ok := tx.matches[id]; ok {
		return v.Clone(), nil
	}
	if v, ok := tx.m.matches[id]; ok {
		return v.Clone(), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) PutMatch(v *model.Match) error {
	if !tx.writable {
		return ErrReadOnly
	}
	tx.matches[v.ID] = v.Clone()
	return nil
}

func (tx *memTx) PlayerState(matchID, handle string) (*model.PlayerState, error) {
	k := stateKey{matchID, handle}
	if v, ok := tx.states[k]; ok {
		return v.Clone(), nil
	}
	if v, ok := tx.m.states[k]; ok {
		return v.Clone(), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) PutPlayerState(v *model.PlayerState) error {
	if !tx.writable {
		return ErrReadOnly
	}
	tx.states[stateKey{v.MatchID, v.PlayerHandle}] = v.Clone()
	return nil
}

// queueView merges staged and committed entries.
func (tx *memTx) queueView() []*model.QueueEntry {
	out := make([]*model.QueueEntry, 0, len(tx.m.queue)+len(tx.queue))
	for id, v := range tx.m.queue {
		if _, staged := tx.queue[id]; !staged {
			out = append(out, v)
		}
	}
	for _, v := range tx.queue {
		out = append(out, v)
	}
	return out
}

// before orders entries by creation time, then insertion order.
func (tx *memTx) before(a, b *model.QueueEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	sa, okA := tx.m.queueSeq[a.ID]
	sb, okB := tx.m.queueSeq[b.ID]
	switch {
	case okA && okB:
		return sa < sb
	case okA != okB:
		return okA // committed entries predate staged ones
	}
	return a.ID < b.ID
}

func (tx *memTx) QueueEntry(id string) (*model.QueueEntry, error) {
	if v, ok := tx.queue[id]; ok {
		return v.Clone(), nil
	}
	if v, ok := tx.m.queue[id]; ok {
		return v.Clone(), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) QueueEntryBySession(sessionID string) (*model.QueueEntry, error) {
	for _, v := range tx.queueView() {
		if v.SessionID == sessionID {
			return v.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memTx) OldestWaiting(excludeHandle string) (*model.QueueEntry, error) {
	var best *model.QueueEntry
	for _, v := range tx.queueView() {
		if v.Status != model.QueueWaiting || v.BotOnly || v.PlayerHandle == excludeHandle {
			continue
		}
		if best == nil || tx.before(v, best) {
			best = v
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

func (tx *memTx) WaitingByHandle(handle string) (*model.QueueEntry, error) {
	for _, v := range tx.queueView() {
		if v.Status == model.QueueWaiting && v.PlayerHandle == handle {
			return v.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memTx) WaitingBefore(t time.Time) ([]*model.QueueEntry, error) {
	var out []*model.QueueEntry
	for _, v := range tx.queueView() {
		if v.Status == model.QueueWaiting && v.CreatedAt.Before(t) {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return tx.before(out[i], out[j]) })
	return out, nil
}

func (tx *memTx) PutQueueEntry(v *model.QueueEntry) error {
	if !tx.writable {
		return ErrReadOnly
	}
	tx.queue[v.ID] = v.Clone()
	return nil
}

func (tx *memTx) inviteView() []*model.FriendBattleRequest {
	out := make([]*model.FriendBattleRequest, 0, len(tx.m.invites)+len(tx.invites))
	for id, v := range tx.m.invites {
		if _, staged := tx.invites[id]; !staged {
			out = append(out, v)
		}
	}
	for _, v := range tx.invites {
		out = append(out, v)
	}
	return out
}

func (tx *memTx) Invite(id string) (*model.FriendBattleRequest, error) {
	if v, ok := tx.invites[id]; ok {
		return v.Clone(), nil
	}
	if v, ok := tx.m.invites[id]; ok {
		return v.Clone(), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) PendingInvite(fromHandle, toHandle string) (*model.FriendBattleRequest, error) {
	for _, v := range tx.inviteView() {
		if v.Status == model.InvitePending && v.FromHandle == fromHandle && v.ToHandle == toHandle {
			return v.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memTx) InvitesTo(handle string, status model.InviteStatus) ([]*model.FriendBattleRequest, error) {
	var out []*model.FriendBattleRequest
	for _, v := range tx.inviteView() {
		if v.ToHandle == handle && v.Status == status {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (tx *memTx) PendingExpiringBy(t time.Time) ([]*model.FriendBattleRequest, error) {
	var out []*model.FriendBattleRequest
	for _, v := range tx.inviteView() {
		if v.Status == model.InvitePending && !v.ExpiresAt.After(t) {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (tx *memTx) PutInvite(v *model.FriendBattleRequest) error {
	if !tx.writable {
		return ErrReadOnly
	}
	tx.invites[v.ID] = v.Clone()
	return nil
}

func (tx *memTx) presenceView() []*model.PresenceRecord {
	out := make([]*model.PresenceRecord, 0, len(tx.m.presence)+len(tx.presence))
	for id, v := range tx.m.presence {
		if _, staged := tx.presence[id]; staged {
			continue
		}
		if _, gone := tx.dropped[id]; gone {
			continue
		}
		out = append(out, v)
	}
	for _, v := range tx.presence {
		out = append(out, v)
	}
	return out
}

func (tx *memTx) Presence(sessionID string) (*model.PresenceRecord, error) {
	if v, ok := tx.presence[sessionID]; ok {
		return v.Clone(), nil
	}
	if _, gone := tx.dropped[sessionID]; gone {
		return nil, ErrNotFound
	}
	if v, ok := tx.m.presence[sessionID]; ok {
		return v.Clone(), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) PresenceFor(handles []string) ([]*model.PresenceRecord, error) {
	want := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		want[h] = struct{}{}
	}
	var out []*model.PresenceRecord
	for _, v := range tx.presenceView() {
		if _, ok := want[v.UserHandle]; ok && v.UserHandle != "" {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (tx *memTx) PutPresence(v *model.PresenceRecord) error {
	if !tx.writable {
		return ErrReadOnly
	}
	delete(tx.dropped, v.SessionID)
	tx.presence[v.SessionID] = v.Clone()
	return nil
}

func (tx *memTx) DeletePresenceBefore(t time.Time) (int, error) {
	if !tx.writable {
		return 0, ErrReadOnly
	}
	n := 0
	for _, v := range tx.presenceView() {
		if v.LastSeenAt.Before(t) {
			delete(tx.presence, v.SessionID)
			tx.dropped[v.SessionID] = struct{}{}
			n++
		}
	}
	return n, nil
}
