// apps/duel-server/internal/session/session.go
//
// Signed session ids handed to duel clients.
//
// The duel service works with raw session UUIDs. Clients only ever see them
// wrapped in an HS256 JWT whose subject is the raw id, so a client cannot act
// for a session id it was not issued.

package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const issuer = "duel-server"

// ErrInvalid is returned for tokens that fail signature, expiry or shape checks.
var ErrInvalid = errors.New("invalid session token")

// Signer issues and verifies session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewSigner returns a Signer. An empty secret falls back to a development value.
func NewSigner(secret string, ttl time.Duration, clock clockwork.Clock) *Signer {
	if secret == "" {
		secret = "dev_secret_change_me"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Signer{secret: []byte(secret), ttl: ttl, clock: clock}
}

// New mints a fresh session id and its token.
func (s *Signer) New() (id, token string, err error) {
	id = uuid.NewString()
	token, err = s.Issue(id)
	return id, token, err
}

// Issue signs an existing session id.
func (s *Signer) Issue(id string) (string, error) {
	now := s.clock.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	return t.SignedString(s.secret)
}

// Parse verifies token and returns the raw session id.
func (s *Signer) Parse(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalid
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}
