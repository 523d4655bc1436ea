// apps/duel-server/internal/tasks/runner.go
//
// gocron-backed implementation of Scheduler and Registry.
//
// Responsibilities:
//   - Journal every task before arming it, so pending work survives a restart.
//   - Arm one-time gocron jobs that dispatch to the registered handler.
//   - Re-arm journaled tasks on boot (Resume), running overdue ones immediately.
//   - Run periodic maintenance jobs (Every).
//
// Handlers are looked up at run time; a task whose kind has no handler is
// logged and dropped.

package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// handlerTimeout bounds a single task invocation.
const handlerTimeout = 30 * time.Second

// immediateWithin: tasks due sooner than this skip the date trigger.
const immediateWithin = 10 * time.Millisecond

// Runner arms journaled tasks on a gocron scheduler.
type Runner struct {
	sched   gocron.Scheduler
	clock   clockwork.Clock
	journal Journal

	mu       sync.RWMutex
	handlers map[string]Handler
	base     context.Context
}

// NewRunner builds a stopped Runner. Jobs armed before Start wait for it.
func NewRunner(j Journal, clock clockwork.Clock) (*Runner, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(zlogger{}),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, eris.Wrap(err, "new gocron scheduler")
	}
	return &Runner{
		sched:    s,
		clock:    clock,
		journal:  j,
		handlers: make(map[string]Handler),
		base:     context.Background(),
	}, nil
}

// Handle binds kind to h, replacing any previous handler.
func (r *Runner) Handle(kind string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Schedule journals a task and arms it to run after delay.
func (r *Runner) Schedule(ctx context.Context, kind string, payload any, delay time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "marshal %s payload", kind)
	}
	if delay < 0 {
		delay = 0
	}
	t := Task{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: raw,
		RunAt:   r.clock.Now().Add(delay).UTC(),
	}
	if err := r.journal.SaveTask(ctx, t); err != nil {
		return eris.Wrapf(err, "journal %s", kind)
	}
	return r.arm(t)
}

// Resume re-arms every journaled task. Call once at boot, before Start.
func (r *Runner) Resume(ctx context.Context) (int, error) {
	pending, err := r.journal.PendingTasks(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "list pending tasks")
	}
	for _, t := range pending {
		if err := r.arm(t); err != nil {
			return 0, err
		}
	}
	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("resumed pending tasks")
	}
	return len(pending), nil
}

// Every runs fn on a fixed interval until Shutdown. Overlapping runs are skipped.
func (r *Runner) Every(name string, interval time.Duration, fn func(ctx context.Context) error) error {
	_, err := r.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(r.baseContext(), handlerTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("job", name).Msg("periodic job failed")
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return eris.Wrapf(err, "register %s", name)
}

// Start begins executing armed jobs. Handlers receive contexts derived from ctx.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()
	r.sched.Start()
}

// Shutdown stops the scheduler and waits for running jobs. Tasks that have
// not fired stay in the journal for the next Resume.
func (r *Runner) Shutdown() error {
	return r.sched.Shutdown()
}

func (r *Runner) baseContext() context.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.base
}

func (r *Runner) arm(t Task) error {
	start := gocron.OneTimeJobStartImmediately()
	if t.RunAt.Sub(r.clock.Now()) > immediateWithin {
		start = gocron.OneTimeJobStartDateTime(t.RunAt)
	}
	_, err := r.sched.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(r.dispatch, t),
		gocron.WithName(t.Kind),
	)
	return eris.Wrapf(err, "arm %s", t.Kind)
}

func (r *Runner) dispatch(t Task) {
	ctx, cancel := context.WithTimeout(r.baseContext(), handlerTimeout)
	defer cancel()

	r.mu.RLock()
	h, ok := r.handlers[t.Kind]
	r.mu.RUnlock()

	logger := log.With().Str("task", t.ID).Str("kind", t.Kind).Logger()
	switch {
	case !ok:
		logger.Warn().Msg("no handler for task")
	default:
		if err := h(ctx, t.Payload); err != nil {
			logger.Error().Err(err).Msg("task failed")
		} else {
			logger.Debug().Dur("late", r.clock.Since(t.RunAt)).Msg("task done")
		}
	}

	// Use a fresh context: the task is done even if ctx expired.
	if err := r.journal.DeleteTask(context.Background(), t.ID); err != nil {
		logger.Error().Err(err).Msg("drop task from journal")
	}
}

// zlogger routes gocron's own logging into zerolog.
type zlogger struct{}

func (zlogger) Debug(msg string, args ...any) { log.Debug().Fields(args).Msg(msg) }
func (zlogger) Info(msg string, args ...any)  { log.Info().Fields(args).Msg(msg) }
func (zlogger) Warn(msg string, args ...any)  { log.Warn().Fields(args).Msg(msg) }
func (zlogger) Error(msg string, args ...any) { log.Error().Fields(args).Msg(msg) }
