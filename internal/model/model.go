// apps/duel-server/internal/model/model.go
//
// Records owned by the duel service and persisted by the store.
// Every record is a plain value; stores hand out copies, so mutating a record
// has no effect until it is written back inside a transaction.

package model

import (
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/bot"
	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
)

// QueueStatus is the lifecycle of a MatchQueueEntry.
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueMatched   QueueStatus = "matched"
	QueueCancelled QueueStatus = "cancelled"
)

// QueueEntry is a player waiting for an opponent.
type QueueEntry struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"sessionId"`
	PlayerHandle string      `json:"playerHandle"`
	DisplayName  string      `json:"displayName"`
	SkillScore   int         `json:"skillScore"`
	Status       QueueStatus `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	MatchID      string      `json:"matchId,omitempty"`
	BotOnly      bool        `json:"botOnly,omitempty"` // asked for a bot; never paired with a human
}

// MatchStatus is the lifecycle of a Match.
type MatchStatus string

const (
	MatchPlaying   MatchStatus = "playing"
	MatchFinished  MatchStatus = "finished"
	MatchAbandoned MatchStatus = "abandoned"
)

// RoundSummary is the final board of a decided round.
type RoundSummary struct {
	Round          int        `json:"round"`
	Word           string     `json:"word"`
	WinnerHandle   string     `json:"winnerHandle,omitempty"` // empty on a draw
	Player1Guesses []game.Row `json:"player1Guesses"`
	Player2Guesses []game.Row `json:"player2Guesses"`
}

// Match is one 1v1 contest of BestOf rounds.
type Match struct {
	ID               string         `json:"id"`
	Player1Handle    string         `json:"player1Handle"`
	Player2Handle    string         `json:"player2Handle"`
	Player1Name      string         `json:"player1Name"`
	Player2Name      string         `json:"player2Name"`
	Player1Session   string         `json:"player1Session,omitempty"`
	Player2Session   string         `json:"player2Session,omitempty"`
	SecretWord       string         `json:"secretWord"`
	Status           MatchStatus    `json:"status"`
	WinnerHandle     string         `json:"winnerHandle,omitempty"`
	AbandonedBy      string         `json:"abandonedBy,omitempty"`
	StartedAt        time.Time      `json:"startedAt"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
	IsBotMatch       bool           `json:"isBotMatch"`
	IsFriendlyMatch  bool           `json:"isFriendlyMatch"`
	BotID            string         `json:"botId,omitempty"`
	BotDifficulty    bot.Difficulty `json:"botDifficulty,omitempty"`
	BestOf           int            `json:"bestOf"`
	Score1           int            `json:"score1"`
	Score2           int            `json:"score2"`
	Round            int            `json:"round"`
	MaxAttempts      int            `json:"maxAttempts"`
	LastRoundSummary *RoundSummary  `json:"lastRoundSummary,omitempty"`
	NextRoundAt      *time.Time     `json:"nextRoundAt,omitempty"`
	Reported         bool           `json:"reported"`
}

// WinsNeeded is ceil(BestOf/2).
func (m *Match) WinsNeeded() int { return (m.BestOf + 1) / 2 }

// Side is player 1 or player 2.
type Side int

const (
	Side1 Side = 1
	Side2 Side = 2
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == Side1 {
		return Side2
	}
	return Side1
}

// Handle returns the handle playing side s.
func (m *Match) Handle(s Side) string {
	if s == Side1 {
		return m.Player1Handle
	}
	return m.Player2Handle
}

// Name returns the display name of side s.
func (m *Match) Name(s Side) string {
	if s == Side1 {
		return m.Player1Name
	}
	return m.Player2Name
}

// SideForSession resolves a client session to its side.
func (m *Match) SideForSession(sessionID string) (Side, bool) {
	switch {
	case sessionID == "":
		return 0, false
	case sessionID == m.Player1Session:
		return Side1, true
	case sessionID == m.Player2Session:
		return Side2, true
	}
	return 0, false
}

// AddPoint credits a round win to side s.
func (m *Match) AddPoint(s Side) {
	if s == Side1 {
		m.Score1++
	} else {
		m.Score2++
	}
}

// Score returns the set score of side s.
func (m *Match) Score(s Side) int {
	if s == Side1 {
		return m.Score1
	}
	return m.Score2
}

// PlayerState is one side's board for the current round.
type PlayerState struct {
	MatchID              string     `json:"matchId"`
	PlayerHandle         string     `json:"playerHandle"`
	Guesses              []game.Row `json:"guesses"`
	CurrentGuessPreview  string     `json:"currentGuessPreview"`
	GameState            game.State `json:"gameState"`
	FinishedAt           *time.Time `json:"finishedAt,omitempty"`
	LastDisruptionSentAt *time.Time `json:"lastDisruptionSentAt,omitempty"`
	DisruptionReceivedAt *time.Time `json:"disruptionReceivedAt,omitempty"`
}

// Finish moves the state to a terminal value.
func (p *PlayerState) Finish(s game.State, at time.Time) {
	p.GameState = s
	p.CurrentGuessPreview = ""
	p.FinishedAt = &at
}

// ResetForRound clears the board for a new round. The disruption cooldown
// carries over.
func (p *PlayerState) ResetForRound() {
	p.Guesses = []game.Row{}
	p.CurrentGuessPreview = ""
	p.GameState = game.StatePlaying
	p.FinishedAt = nil
	p.DisruptionReceivedAt = nil
}

// InviteStatus is the lifecycle of a FriendBattleRequest.
type InviteStatus string

const (
	InvitePending   InviteStatus = "pending"
	InviteAccepted  InviteStatus = "accepted"
	InviteRejected  InviteStatus = "rejected"
	InviteCancelled InviteStatus = "cancelled"
	InviteExpired   InviteStatus = "expired"
)

// FriendBattleRequest is a direct challenge between two players.
type FriendBattleRequest struct {
	ID            string       `json:"id"`
	FromHandle    string       `json:"fromHandle"`
	FromName      string       `json:"fromName"`
	FromSessionID string       `json:"fromSessionId"`
	ToHandle      string       `json:"toHandle"`
	ToName        string       `json:"toName,omitempty"`
	ToSessionID   string       `json:"toSessionId,omitempty"`
	Status        InviteStatus `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
	ExpiresAt     time.Time    `json:"expiresAt"`
	RespondedAt   *time.Time   `json:"respondedAt,omitempty"`
	MatchID       string       `json:"matchId,omitempty"`
}

// Expired reports whether a pending request has outlived its window.
func (r *FriendBattleRequest) Expired(now time.Time) bool {
	return r.Status == InvitePending && !now.Before(r.ExpiresAt)
}

// PresenceRecord is the last heartbeat seen for a client session.
type PresenceRecord struct {
	SessionID   string    `json:"sessionId"`
	UserHandle  string    `json:"userHandle,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}
