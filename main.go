// apps/duel-server/main.go
//
// Process entry for the Word Duel match server.
//   - Loads .env (if present) and the typed config.
//   - Configures the global zerolog logger.
//   - Opens the store (SQLite when DB_PATH is set, memory otherwise) and,
//     when REDIS_URL is set, the Redis presence backend.
//   - Wires the duel service to the task runner, resumes journaled tasks and
//     arms the periodic sweep.
//   - Serves HTTP until SIGINT/SIGTERM, then shuts everything down.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/wordle/apps/duel-server/internal/config"
	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
	"github.com/robalobadob/wordle/apps/duel-server/internal/httpserver"
	"github.com/robalobadob/wordle/apps/duel-server/internal/presence"
	"github.com/robalobadob/wordle/apps/duel-server/internal/session"
	"github.com/robalobadob/wordle/apps/duel-server/internal/store"
	"github.com/robalobadob/wordle/apps/duel-server/internal/tasks"
	"github.com/robalobadob/wordle/apps/duel-server/internal/trophy"
	"github.com/robalobadob/wordle/apps/duel-server/internal/words"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatal().Str("trace", eris.ToString(err, true)).Msg("duel-server exited")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	wl, err := words.Load(cfg.AnswersFile, cfg.AllowedFile)
	if err != nil {
		return eris.Wrap(err, "loading word lists")
	}
	answers, allowed := wl.Stats()
	log.Info().Int("answers", answers).Int("allowed", allowed).Msg("word lists loaded")

	// --- store ---
	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	checks := map[string]httpserver.Checker{"store": httpserver.CheckFunc(st.Ping)}
	clock := clockwork.NewRealClock()

	// --- presence ---
	var tracker presence.Tracker = presence.NewStoreTracker(st, clock, cfg.PresenceRetention)
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		rt := presence.NewRedisTracker(rdb, clock, cfg.PresenceRetention)
		tracker = rt
		checks["redis"] = httpserver.CheckFunc(rt.Ping)
		log.Info().Msg("presence backed by redis")
	}

	// --- duel service + tasks ---
	runner, err := tasks.NewRunner(st, clock)
	if err != nil {
		return err
	}
	svc := duel.New(duel.Deps{
		Store:     st,
		Words:     wl,
		Trophies:  trophy.New(cfg.TrophyBaseURL, cfg.TrophyToken, cfg.TrophyTimeout),
		Scheduler: runner,
		Clock:     clock,
	}, duelConfig(cfg))
	svc.Register(runner)

	if _, err := runner.Resume(ctx); err != nil {
		return err
	}
	err = runner.Every("sweep", cfg.SweepInterval, func(ctx context.Context) error {
		n, errP := tracker.Cleanup(ctx)
		if n > 0 {
			log.Info().Int("presence", n).Msg("sweep")
		}
		return errors.Join(svc.Sweep(ctx), errP)
	})
	if err != nil {
		return err
	}

	// --- HTTP ---
	srv := httpserver.New(httpserver.Options{
		Duel:         svc,
		Presence:     tracker,
		Sessions:     session.NewSigner(cfg.SessionSecret, cfg.SessionTTL, clock),
		Checks:       checks,
		ClientOrigin: cfg.ClientOrigin,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runner.Start(gctx)
		log.Info().Str("addr", httpSrv.Addr).Msg("starting duel-server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(httpSrv.Shutdown(shutdownCtx), runner.Shutdown())
	})

	return g.Wait()
}

func openStore(ctx context.Context, dbPath string) (store.Store, error) {
	if dbPath == "" {
		log.Warn().Msg("DB_PATH not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	st, err := store.OpenSQLite(ctx, dbPath)
	if err != nil {
		return nil, eris.Wrapf(err, "opening sqlite %s", dbPath)
	}
	log.Info().Str("path", dbPath).Msg("connected to sqlite")
	return st, nil
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parsing redis url")
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func duelConfig(c *config.Config) duel.Config {
	return duel.Config{
		BotFallbackDelay:   c.BotFallbackDelay,
		RoundDisplayWindow: c.RoundDisplayWindow,
		SkillBestOf3:       c.SkillBestOf3,
		WinTrophies:        c.WinTrophies,
		LoseTrophies:       c.LoseTrophies,
		InviteTTL:          c.InviteTTL,
		DisruptionCooldown: c.DisruptionCooldown,
		DisruptionWindow:   c.DisruptionWindow,
		BotDisruptChance:   c.BotDisruptChance,
		QueueStaleAfter:    duel.DefaultConfig().QueueStaleAfter,
	}
}
