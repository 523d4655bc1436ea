// apps/duel-server/internal/trophy/client.go
//
// Client for the external trophy/stats service.
//
// Responsibilities:
//   - Log finished match results.
//   - Apply trophy deltas to users and bots.
//   - Fetch a random bot profile for a difficulty tier.
//
// All calls are fire-and-forget from the duel service's point of view:
// failures surface as ErrUpstreamUnavailable and are logged by the caller.

package trophy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// ErrUpstreamUnavailable wraps every transport or non-2xx failure.
var ErrUpstreamUnavailable = errors.New("trophy service unavailable")

// Result is a per-player outcome.
type Result string

const (
	Win  Result = "win"
	Lose Result = "lose"
	Draw Result = "draw"
)

// PlayerType distinguishes humans from bots in match results.
type PlayerType string

const (
	Human PlayerType = "human"
	Bot   PlayerType = "bot"
)

// Player identifies one side of a reported match.
type Player struct {
	ID   string     `json:"id"`
	Type PlayerType `json:"type"`
	Name string     `json:"name"`
}

// MatchResult is the payload of POST /matches/results.
type MatchResult struct {
	MatchID      string     `json:"matchId"`
	P1           Player     `json:"p1"`
	P2           Player     `json:"p2"`
	WinnerID     string     `json:"winnerId"`
	WinnerType   PlayerType `json:"winnerType"`
	Attempts1    int        `json:"attempts1"`
	Attempts2    int        `json:"attempts2"`
	TrophyDelta1 int        `json:"trophyDelta1"`
	TrophyDelta2 int        `json:"trophyDelta2"`
	Word         string     `json:"word"`
	GameType     string     `json:"gameType"`
}

// BotProfile is a bot persona owned by the trophy service.
type BotProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
	Trophies   int    `json:"trophies"`
}

// Service is what the duel engine needs from the trophy backend.
type Service interface {
	LogMatchResult(ctx context.Context, r MatchResult) error
	ApplyUserTrophyResult(ctx context.Context, userID string, result Result, delta int) error
	ApplyBotTrophyResult(ctx context.Context, botID string, result Result, delta int) error
	FetchRandomBotProfile(ctx context.Context, difficulty string) (*BotProfile, error)
}

// Client talks JSON over HTTP with a bearer service token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a Client, or a Noop when baseURL is empty.
func New(baseURL, token string, timeout time.Duration) Service {
	if baseURL == "" {
		return Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type trophyBody struct {
	Result Result `json:"result"`
	Delta  int    `json:"delta"`
}

// LogMatchResult records a finished match.
func (c *Client) LogMatchResult(ctx context.Context, r MatchResult) error {
	return c.do(ctx, http.MethodPost, "/matches/results", r, nil)
}

// ApplyUserTrophyResult adjusts a user's trophy count.
func (c *Client) ApplyUserTrophyResult(ctx context.Context, userID string, result Result, delta int) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/trophies", trophyBody{result, delta}, nil)
}

// ApplyBotTrophyResult adjusts a bot's trophy count.
func (c *Client) ApplyBotTrophyResult(ctx context.Context, botID string, result Result, delta int) error {
	return c.do(ctx, http.MethodPost, "/bots/"+url.PathEscape(botID)+"/trophies", trophyBody{result, delta}, nil)
}

// FetchRandomBotProfile picks a bot persona for the tier.
func (c *Client) FetchRandomBotProfile(ctx context.Context, difficulty string) (*BotProfile, error) {
	var out BotProfile
	path := "/bots/random?difficulty=" + url.QueryEscape(difficulty)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrapf(err, "marshal %s", path)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return eris.Wrapf(err, "build request %s", path)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstreamUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstreamUnavailable, method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstreamUnavailable, path, err)
	}
	return nil
}

// Noop logs calls instead of sending them. Used when no trophy service is configured.
type Noop struct{}

func (Noop) LogMatchResult(_ context.Context, r MatchResult) error {
	log.Debug().Str("matchId", r.MatchID).Str("winnerId", r.WinnerID).Msg("trophy: match result (noop)")
	return nil
}

func (Noop) ApplyUserTrophyResult(_ context.Context, userID string, result Result, delta int) error {
	log.Debug().Str("userId", userID).Str("result", string(result)).Int("delta", delta).Msg("trophy: user result (noop)")
	return nil
}

func (Noop) ApplyBotTrophyResult(_ context.Context, botID string, result Result, delta int) error {
	log.Debug().Str("botId", botID).Str("result", string(result)).Int("delta", delta).Msg("trophy: bot result (noop)")
	return nil
}

// FetchRandomBotProfile always reports the service as unavailable, so
// callers fall back to a local bot name.
func (Noop) FetchRandomBotProfile(context.Context, string) (*BotProfile, error) {
	return nil, ErrUpstreamUnavailable
}
