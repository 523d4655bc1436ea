package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
	"github.com/robalobadob/wordle/apps/duel-server/internal/presence"
	"github.com/robalobadob/wordle/apps/duel-server/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	CooldownRemaining int    `json:"cooldownRemaining,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// classify maps a domain error to its status code and client-facing body.
// Anything unrecognised is a 500 with a generic message.
func classify(err error) (int, errorBody) {
	var (
		se *duel.StateError
		cd *duel.CooldownError
	)
	switch {
	case errors.As(err, &cd):
		return http.StatusTooManyRequests, errorBody{Error: "disruption on cooldown", CooldownRemaining: cd.Seconds()}
	case errors.As(err, &se):
		return http.StatusConflict, errorBody{Error: se.Error()}
	case errors.Is(err, duel.ErrInvalidGuess):
		return http.StatusUnprocessableEntity, errorBody{Error: "not accepted"}
	case errors.Is(err, duel.ErrInviteExpired):
		return http.StatusGone, errorBody{Error: "invite expired"}
	case errors.Is(err, duel.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, duel.ErrNotParticipant), errors.Is(err, session.ErrInvalid):
		return http.StatusForbidden, errorBody{Error: err.Error()}
	case errors.Is(err, duel.ErrInvalidPlayer), errors.Is(err, presence.ErrNoSession):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

// writeServiceError writes err as a structured failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("requestId", chimw.GetReqID(r.Context())).Msg("request failed")
	}
	writeJSON(w, status, body)
}

// accessLog writes one zerolog line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			ev := log.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Str("requestId", chimw.GetReqID(r.Context())).
				Msg("http")
		}()
		next.ServeHTTP(ww, r)
	})
}

// sessionID verifies a client token and returns the raw session id.
func (s *Server) sessionID(token string) (string, error) {
	return s.sessions.Parse(token)
}

// token signs a raw session id for a response.
func (s *Server) token(id string) (string, error) {
	if id == "" {
		return "", nil
	}
	return s.sessions.Issue(id)
}
