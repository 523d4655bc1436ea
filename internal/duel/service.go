// apps/duel-server/internal/duel/service.go
//
// The duel service: matchmaking, bot opponents, the match state machine,
// disruptions and friend invites.
//
// Every state transition is one store.Update. Work that must not happen
// unless the transition commits (arming tasks, publishing events) is
// collected in an effects value and flushed after the commit.
//
// Exported methods are the public surface used by the HTTP layer. Deferred
// steps (bot moves, round transitions, reporting) are unexported task
// handlers wired in by Register.

package duel

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/bot"
	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
	"github.com/robalobadob/wordle/apps/duel-server/internal/tasks"
	"github.com/robalobadob/wordle/apps/duel-server/internal/trophy"
	"github.com/robalobadob/wordle/apps/duel-server/internal/words"
)

// Task kinds owned by the duel service.
const (
	kindBotFallback  = "queue.bot_fallback"
	kindBotMove      = "bot.move"
	kindBotDisrupt   = "bot.disrupt"
	kindRoundAdvance = "round.advance"
	kindReport       = "trophy.report"
)

// Config tunes timings and scoring.
type Config struct {
	BotFallbackDelay   time.Duration
	RoundDisplayWindow time.Duration
	SkillBestOf3       int
	WinTrophies        int
	LoseTrophies       int
	InviteTTL          time.Duration
	DisruptionCooldown time.Duration
	DisruptionWindow   time.Duration
	BotDisruptChance   float64
	QueueStaleAfter    time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BotFallbackDelay:   5 * time.Second,
		RoundDisplayWindow: 10 * time.Second,
		SkillBestOf3:       200,
		WinTrophies:        25,
		LoseTrophies:       -20,
		InviteTTL:          60 * time.Second,
		DisruptionCooldown: 30 * time.Second,
		DisruptionWindow:   3 * time.Second,
		BotDisruptChance:   0.2,
		QueueStaleAfter:    10 * time.Minute,
	}
}

// Bot pacing that is not tuned per difficulty.
const (
	botFirstMoveMin  = 1500 * time.Millisecond
	botFirstMoveMax  = 3 * time.Second
	botTypingStep    = 250 * time.Millisecond
	botDisruptedWait = 1500 * time.Millisecond
	botDisruptDelay  = 3 * time.Second
)

// Deps are the collaborators of a Service.
type Deps struct {
	Store     store.Store
	Words     *words.List
	Trophies  trophy.Service
	Scheduler tasks.Scheduler
	Clock     clockwork.Clock
	Broker    *Broker
	Rand      *rand.Rand // nil: seeded from the runtime
}

// Service implements the duel operations.
type Service struct {
	store    store.Store
	words    *words.List
	solver   *bot.Solver
	trophies trophy.Service
	sched    tasks.Scheduler
	clock    clockwork.Clock
	events   *Broker
	cfg      Config

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New wires a Service.
func New(d Deps, cfg Config) *Service {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Broker == nil {
		d.Broker = NewBroker()
	}
	if d.Trophies == nil {
		d.Trophies = trophy.Noop{}
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Service{
		store:    d.Store,
		words:    d.Words,
		solver:   bot.NewSolver(d.Words),
		trophies: d.Trophies,
		sched:    d.Scheduler,
		clock:    d.Clock,
		events:   d.Broker,
		cfg:      cfg,
		rng:      d.Rand,
	}
}

// Events exposes the broker push transports subscribe to.
func (s *Service) Events() *Broker { return s.events }

// Words exposes the corpus (debug endpoint).
func (s *Service) Words() *words.List { return s.words }

// Register binds the service's task handlers.
func (s *Service) Register(r tasks.Registry) {
	r.Handle(kindBotFallback, handler(kindBotFallback, s.onBotFallback))
	r.Handle(kindBotMove, handler(kindBotMove, s.onBotMove))
	r.Handle(kindBotDisrupt, handler(kindBotDisrupt, s.onBotDisrupt))
	r.Handle(kindRoundAdvance, handler(kindRoundAdvance, s.onRoundAdvance))
	r.Handle(kindReport, handler(kindReport, s.onReport))
}

// handler decodes the payload and swallows stale firings.
func handler[T any](kind string, fn func(ctx context.Context, p T) error) tasks.Handler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var p T
		if err := json.Unmarshal(raw, &p); err != nil {
			return eris.Wrapf(err, "decode %s payload", kind)
		}
		err := fn(ctx, p)
		if errors.Is(err, ErrRaceNoOp) {
			log.Debug().Str("kind", kind).RawJSON("payload", raw).Msg("stale task skipped")
			return nil
		}
		return err
	}
}

// -------------------------------- effects -----------------------------------

type pendingTask struct {
	kind    string
	payload any
	delay   time.Duration
}

type publication struct {
	topic Topic
	event Event
	last  bool // close the topic after this event
}

// effects collects work to run once a transaction commits.
type effects struct {
	tasks  []pendingTask
	events []publication
}

func (fx *effects) schedule(kind string, payload any, delay time.Duration) {
	fx.tasks = append(fx.tasks, pendingTask{kind, payload, delay})
}

func (fx *effects) publish(topic Topic, ev Event) {
	fx.events = append(fx.events, publication{topic: topic, event: ev})
}

// publishMatch sends ev to the match topic. The topic ends with the match.
func (fx *effects) publishMatch(m *model.Match, ev Event) {
	ev.MatchID = m.ID
	if ev.Round == 0 {
		ev.Round = m.Round
	}
	fx.events = append(fx.events, publication{
		topic: MatchTopic(m.ID),
		event: ev,
		last:  m.Status != model.MatchPlaying,
	})
}

// update runs fn in a store transaction and flushes its effects on commit.
func (s *Service) update(ctx context.Context, fn func(tx store.Tx, fx *effects) error) error {
	var fx *effects
	err := s.store.Update(ctx, func(tx store.Tx) error {
		fx = &effects{}
		return fn(tx, fx)
	})
	if err != nil {
		return err
	}
	s.flush(ctx, fx)
	return nil
}

func (s *Service) flush(ctx context.Context, fx *effects) {
	// The transition already committed; arm its follow-ups even if the
	// caller's request has gone away.
	ctx = context.WithoutCancel(ctx)
	for _, t := range fx.tasks {
		if err := s.sched.Schedule(ctx, t.kind, t.payload, t.delay); err != nil {
			log.Error().Err(err).Str("kind", t.kind).Msg("schedule task")
		}
	}
	for _, p := range fx.events {
		s.events.Publish(p.topic, p.event)
	}
	for _, p := range fx.events {
		if p.last {
			s.events.CloseTopic(p.topic)
		}
	}
}

// --------------------------------- helpers ----------------------------------

func (s *Service) now() time.Time { return s.clock.Now().UTC() }

func (s *Service) withRand(fn func(r *rand.Rand)) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	fn(s.rng)
}

// between samples a duration in [lo, hi].
func (s *Service) between(lo, hi time.Duration) time.Duration {
	var d time.Duration
	s.withRand(func(r *rand.Rand) {
		d = lo + time.Duration(r.Int64N(int64(hi-lo)+1))
	})
	return d
}

func (s *Service) chance(p float64) bool {
	var hit bool
	s.withRand(func(r *rand.Rand) { hit = r.Float64() < p })
	return hit
}

// Player identifies a client joining the queue or sending an invite.
type Player struct {
	Handle      string `json:"playerHandle"`
	DisplayName string `json:"displayName"`
	SkillScore  int    `json:"skillScore"`
}

func (p Player) name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Handle
}

// seat is one side of a match being created.
type seat struct {
	handle  string
	name    string
	session string
}

type matchOpts struct {
	bestOf     int
	isBot      bool
	friendly   bool
	botID      string
	difficulty bot.Difficulty
}

// createMatch writes a new match and both player states.
func (s *Service) createMatch(tx store.Tx, p1, p2 seat, o matchOpts) (*model.Match, error) {
	m := &model.Match{
		ID:              uuid.NewString(),
		Player1Handle:   p1.handle,
		Player2Handle:   p2.handle,
		Player1Name:     p1.name,
		Player2Name:     p2.name,
		Player1Session:  p1.session,
		Player2Session:  p2.session,
		SecretWord:      s.words.RandomAnswer(),
		Status:          model.MatchPlaying,
		StartedAt:       s.now(),
		IsBotMatch:      o.isBot,
		IsFriendlyMatch: o.friendly,
		BotID:           o.botID,
		BotDifficulty:   o.difficulty,
		BestOf:          o.bestOf,
		Round:           1,
		MaxAttempts:     game.MaxAttempts,
	}
	if err := tx.PutMatch(m); err != nil {
		return nil, err
	}
	for _, h := range []string{p1.handle, p2.handle} {
		ps := &model.PlayerState{MatchID: m.ID, PlayerHandle: h}
		ps.ResetForRound()
		if err := tx.PutPlayerState(ps); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// bestOfFor picks the round count from the stronger player's skill.
func (s *Service) bestOfFor(skills ...int) int {
	for _, sk := range skills {
		if sk >= s.cfg.SkillBestOf3 {
			return 3
		}
	}
	return 1
}

// loadParticipant resolves a match and the caller's side.
func loadParticipant(tx store.Tx, matchID, sessionID string) (*model.Match, model.Side, error) {
	m, err := tx.Match(matchID)
	if err != nil {
		return nil, 0, err
	}
	side, ok := m.SideForSession(sessionID)
	if !ok {
		return nil, 0, ErrNotParticipant
	}
	return m, side, nil
}

// states loads both sides' boards.
func states(tx store.Tx, m *model.Match) (p1, p2 *model.PlayerState, err error) {
	if p1, err = tx.PlayerState(m.ID, m.Player1Handle); err != nil {
		return nil, nil, eris.Wrapf(err, "player state %s/%s", m.ID, m.Player1Handle)
	}
	if p2, err = tx.PlayerState(m.ID, m.Player2Handle); err != nil {
		return nil, nil, eris.Wrapf(err, "player state %s/%s", m.ID, m.Player2Handle)
	}
	return p1, p2, nil
}

// bySide orders (mine, theirs) into (p1, p2).
func bySide(side model.Side, mine, theirs *model.PlayerState) (p1, p2 *model.PlayerState) {
	if side == model.Side1 {
		return mine, theirs
	}
	return theirs, mine
}
