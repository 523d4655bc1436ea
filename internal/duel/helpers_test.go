package duel

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
	"github.com/robalobadob/wordle/apps/duel-server/internal/tasks"
	"github.com/robalobadob/wordle/apps/duel-server/internal/trophy"
	"github.com/robalobadob/wordle/apps/duel-server/internal/words"
)

// manualScheduler queues tasks and runs them only when the test moves time.
type manualScheduler struct {
	clock *clockwork.FakeClock

	mu       sync.Mutex
	handlers map[string]tasks.Handler
	pending  []queuedTask
	seq      int
	errs     []error
}

type queuedTask struct {
	kind string
	raw  json.RawMessage
	due  time.Time
	seq  int
}

func newManualScheduler(clock *clockwork.FakeClock) *manualScheduler {
	return &manualScheduler{clock: clock, handlers: map[string]tasks.Handler{}}
}

func (m *manualScheduler) Handle(kind string, h tasks.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = h
}

func (m *manualScheduler) Schedule(_ context.Context, kind string, payload any, delay time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.pending = append(m.pending, queuedTask{kind: kind, raw: raw, due: m.clock.Now().Add(delay), seq: m.seq})
	return nil
}

// count reports how many tasks of kind are waiting.
func (m *manualScheduler) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if t.kind == kind {
			n++
		}
	}
	return n
}

// total reports how many tasks of any kind are waiting.
func (m *manualScheduler) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// next pops the earliest task due at or before limit.
func (m *manualScheduler) next(limit time.Time) (queuedTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.SliceStable(m.pending, func(i, j int) bool {
		if !m.pending[i].due.Equal(m.pending[j].due) {
			return m.pending[i].due.Before(m.pending[j].due)
		}
		return m.pending[i].seq < m.pending[j].seq
	})
	if len(m.pending) == 0 || m.pending[0].due.After(limit) {
		return queuedTask{}, false
	}
	t := m.pending[0]
	m.pending = m.pending[1:]
	return t, true
}

// advance moves the clock forward by d, running every task that comes due on
// the way at its own due time.
func (m *manualScheduler) advance(d time.Duration) {
	target := m.clock.Now().Add(d)
	for {
		t, ok := m.next(target)
		if !ok {
			break
		}
		if gap := t.due.Sub(m.clock.Now()); gap > 0 {
			m.clock.Advance(gap)
		}
		m.mu.Lock()
		h := m.handlers[t.kind]
		m.mu.Unlock()
		if h == nil {
			continue
		}
		if err := h(context.Background(), t.raw); err != nil {
			m.mu.Lock()
			m.errs = append(m.errs, err)
			m.mu.Unlock()
		}
	}
	if gap := target.Sub(m.clock.Now()); gap > 0 {
		m.clock.Advance(gap)
	}
}

type fakeTrophies struct {
	mu      sync.Mutex
	results []trophy.MatchResult
	users   map[string]int
	bots    map[string]int
	profile *trophy.BotProfile // nil: upstream unavailable
}

func newFakeTrophies() *fakeTrophies {
	return &fakeTrophies{users: map[string]int{}, bots: map[string]int{}}
}

func (f *fakeTrophies) LogMatchResult(_ context.Context, r trophy.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

func (f *fakeTrophies) ApplyUserTrophyResult(_ context.Context, id string, _ trophy.Result, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] += delta
	return nil
}

func (f *fakeTrophies) ApplyBotTrophyResult(_ context.Context, id string, _ trophy.Result, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bots[id] += delta
	return nil
}

func (f *fakeTrophies) FetchRandomBotProfile(context.Context, string) (*trophy.BotProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return nil, trophy.ErrUpstreamUnavailable
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeTrophies) reported() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type harness struct {
	t        *testing.T
	svc      *Service
	store    store.Store
	clock    *clockwork.FakeClock
	sched    *manualScheduler
	trophies *fakeTrophies
	ctx      context.Context
}

func newHarness(t *testing.T, tweak ...func(*Config)) *harness {
	t.Helper()
	wl, err := words.Embedded()
	if err != nil {
		t.Fatalf("words: %v", err)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sched := newManualScheduler(clock)
	st := store.NewMemoryStore()
	tr := newFakeTrophies()

	cfg := DefaultConfig()
	for _, fn := range tweak {
		fn(&cfg)
	}
	svc := New(Deps{
		Store:     st,
		Words:     wl,
		Trophies:  tr,
		Scheduler: sched,
		Clock:     clock,
		Rand:      rand.New(rand.NewPCG(7, 11)),
	}, cfg)
	svc.Register(sched)

	h := &harness{t: t, svc: svc, store: st, clock: clock, sched: sched, trophies: tr, ctx: context.Background()}
	t.Cleanup(func() {
		for _, err := range sched.errs {
			t.Errorf("task error: %v", err)
		}
	})
	return h
}

func (h *harness) match(id string) *model.Match {
	h.t.Helper()
	var m *model.Match
	if err := h.store.View(h.ctx, func(tx store.Tx) error {
		var err error
		m, err = tx.Match(id)
		return err
	}); err != nil {
		h.t.Fatalf("load match %s: %v", id, err)
	}
	return m
}

func (h *harness) state(matchID, handle string) *model.PlayerState {
	h.t.Helper()
	var ps *model.PlayerState
	if err := h.store.View(h.ctx, func(tx store.Tx) error {
		var err error
		ps, err = tx.PlayerState(matchID, handle)
		return err
	}); err != nil {
		h.t.Fatalf("load state %s/%s: %v", matchID, handle, err)
	}
	return ps
}

// wrongWord returns an allowed guess that is not the match's current secret.
func (h *harness) wrongWord(matchID string) string {
	secret := h.match(matchID).SecretWord
	for _, w := range h.svc.words.Answers() {
		if w != secret {
			return w
		}
	}
	h.t.Fatal("no wrong word available")
	return ""
}

type pvp struct {
	matchID string
	s1, s2  string // sessions of player 1 (first in queue) and player 2
	h1, h2  string
}

// startPvP queues two players and returns their match.
func (h *harness) startPvP(skill int) pvp {
	h.t.Helper()
	a, err := h.svc.JoinQueue(h.ctx, Player{Handle: "alice", DisplayName: "Alice", SkillScore: skill})
	if err != nil {
		h.t.Fatalf("alice join: %v", err)
	}
	b, err := h.svc.JoinQueue(h.ctx, Player{Handle: "bob", DisplayName: "Bob", SkillScore: skill})
	if err != nil {
		h.t.Fatalf("bob join: %v", err)
	}
	if b.Status != model.QueueMatched {
		h.t.Fatalf("bob status = %s, want matched", b.Status)
	}
	return pvp{matchID: b.MatchID, s1: a.SessionID, s2: b.SessionID, h1: "alice", h2: "bob"}
}

func (h *harness) guess(matchID, session, word string) *GuessResult {
	h.t.Helper()
	res, err := h.svc.SubmitGuess(h.ctx, matchID, session, word)
	if err != nil {
		h.t.Fatalf("guess %q: %v", word, err)
	}
	return res
}
