// apps/duel-server/internal/httpserver/routes_match.go
//
// HTTP routes for a running match. Every call names the caller's signed
// session; the match id comes from the path.
//   - GET  /matches/{id}                → the caller's view of the match
//   - POST /matches/{id}/guess          → submit a guess
//   - POST /matches/{id}/typing         → update the typing preview
//   - POST /matches/{id}/disrupt        → shake the opponent's board
//   - POST /matches/{id}/disrupt/clear  → drop a received disruption
//   - POST /matches/{id}/leave          → forfeit

package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
)

type guessReq struct {
	SessionID string `json:"sessionId"`
	Guess     string `json:"guess"`
}

type guessRes struct {
	Success bool `json:"success"`
	*duel.GuessResult
	Match *duel.MatchView `json:"match,omitempty"`
}

type typingReq struct {
	SessionID string `json:"sessionId"`
	Preview   string `json:"preview"`
}

// mountMatches registers all /matches routes.
func (s *Server) mountMatches(r chi.Router) {
	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", s.handleMatchView)
		r.Post("/guess", s.handleGuess)
		r.Post("/typing", s.handleTyping)
		r.Post("/disrupt", s.matchAction(s.duel.SendDisruption))
		r.Post("/disrupt/clear", s.matchAction(s.duel.ClearDisruption))
		r.Post("/leave", s.matchAction(s.duel.LeaveMatch))
	})
}

func (s *Server) handleMatchView(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	v, err := s.duel.MatchView(r.Context(), chi.URLParam(r, "id"), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	id, err := s.sessionID(req.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	matchID := chi.URLParam(r, "id")
	res, err := s.duel.SubmitGuess(r.Context(), matchID, id, req.Guess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := guessRes{Success: true, GuessResult: res}
	if v, err := s.duel.MatchView(r.Context(), matchID, id); err == nil {
		out.Match = v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	var req typingReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	id, err := s.sessionID(req.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.duel.UpdateTypingPreview(r.Context(), chi.URLParam(r, "id"), id, req.Preview); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// matchAction serves the endpoints that take only the caller's session.
func (s *Server) matchAction(fn func(ctx context.Context, matchID, sessionID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionReq
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		id, err := s.sessionID(req.SessionID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := fn(r.Context(), chi.URLParam(r, "id"), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
