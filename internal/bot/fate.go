package bot

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Fated reports whether the bot must lose the match with this id. The answer
// is a pure function of the id, so every move in a match agrees on it.
func Fated(matchID string, failChance float64) bool {
	if failChance <= 0 {
		return false
	}
	sum := blake2b.Sum256([]byte(matchID))
	frac := float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
	return frac < failChance
}
