// apps/duel-server/internal/config/config.go
//
// Process configuration, read from the environment (after .env is loaded by main).
// Every knob has a working default, so an empty environment runs a local
// in-memory server on :5175.

package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type Config struct {
	Port         string        `env:"PORT" envDefault:"5175"`
	LogLevel     zerolog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool          `env:"LOG_PRETTY" envDefault:"false"`
	DBPath       string        `env:"DB_PATH"` // empty: in-memory store
	ClientOrigin string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	TrophyBaseURL string        `env:"TROPHY_BASE_URL"`
	TrophyToken   string        `env:"TROPHY_TOKEN"`
	TrophyTimeout time.Duration `env:"TROPHY_TIMEOUT" envDefault:"5s"`

	RedisURL string `env:"REDIS_URL"`

	AnswersFile string `env:"WORDS_ANSWERS_FILE"`
	AllowedFile string `env:"WORDS_ALLOWED_FILE"`

	BotFallbackDelay   time.Duration `env:"BOT_FALLBACK_DELAY" envDefault:"5s"`
	RoundDisplayWindow time.Duration `env:"ROUND_DISPLAY_WINDOW" envDefault:"10s"`
	SkillBestOf3       int           `env:"SKILL_BEST_OF_3" envDefault:"200"`
	WinTrophies        int           `env:"WIN_TROPHIES" envDefault:"25"`
	LoseTrophies       int           `env:"LOSE_TROPHIES" envDefault:"-20"`
	InviteTTL          time.Duration `env:"INVITE_TTL" envDefault:"60s"`
	DisruptionCooldown time.Duration `env:"DISRUPTION_COOLDOWN" envDefault:"30s"`
	DisruptionWindow   time.Duration `env:"DISRUPTION_WINDOW" envDefault:"3s"`
	BotDisruptChance   float64       `env:"BOT_DISRUPT_CHANCE" envDefault:"0.2"`

	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	PresenceRetention time.Duration `env:"PRESENCE_RETENTION" envDefault:"24h"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, eris.Wrap(err, "parsing environment")
	}
	if cfg.BotDisruptChance < 0 || cfg.BotDisruptChance > 1 {
		return nil, eris.Errorf("BOT_DISRUPT_CHANCE must be within [0,1], got %v", cfg.BotDisruptChance)
	}
	return &cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }
