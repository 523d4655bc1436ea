// apps/duel-server/internal/bot/profile.go
//
// Difficulty tiers for the synthetic opponent.

package bot

import (
	"math/rand/v2"
	"time"
)

// Difficulty names a bot tier.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Profile tunes how fast and how well a bot plays.
type Profile struct {
	MinDelay      time.Duration // shortest think time between guesses
	MaxDelay      time.Duration // longest think time between guesses
	MistakeChance float64       // chance of a uniformly random candidate
	FailChance    float64       // share of matches the bot is fated to lose
}

var profiles = map[Difficulty]Profile{
	Easy:   {MinDelay: 6 * time.Second, MaxDelay: 12 * time.Second, MistakeChance: 0.4, FailChance: 0.45},
	Medium: {MinDelay: 4 * time.Second, MaxDelay: 9 * time.Second, MistakeChance: 0.2, FailChance: 0.25},
	Hard:   {MinDelay: 2 * time.Second, MaxDelay: 6 * time.Second, MistakeChance: 0.08, FailChance: 0.1},
}

// Skill bands.
const (
	MediumSkill = 100
	HardSkill   = 400
)

// DifficultyForSkill picks a tier from a player's skill score.
func DifficultyForSkill(skill int) Difficulty {
	switch {
	case skill >= HardSkill:
		return Hard
	case skill >= MediumSkill:
		return Medium
	default:
		return Easy
	}
}

// ProfileFor returns the tuning for d; unknown tiers play as Medium.
func ProfileFor(d Difficulty) Profile {
	if p, ok := profiles[d]; ok {
		return p
	}
	return profiles[Medium]
}

// Delay samples a think time in [MinDelay, MaxDelay].
func (p Profile) Delay(r *rand.Rand) time.Duration {
	span := p.MaxDelay - p.MinDelay
	if span <= 0 {
		return p.MinDelay
	}
	return p.MinDelay + time.Duration(r.Int64N(int64(span)+1))
}
