// apps/duel-server/internal/httpserver/routes_queue.go
//
// HTTP routes for matchmaking.
//   - POST /queue/join   → enqueue, or pair with the oldest waiting player
//   - POST /queue/bot    → skip the wait and play a bot
//   - POST /queue/leave  → cancel a waiting entry
//   - GET  /queue/status → poll a queue session

package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
)

// sessionReq is the body of endpoints that only identify the caller.
type sessionReq struct {
	SessionID string `json:"sessionId"`
}

// mountQueue registers all /queue routes.
func (s *Server) mountQueue(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Post("/join", s.handleEnqueue(s.duel.JoinQueue))
		r.Post("/bot", s.handleEnqueue(s.duel.PlayBot))
		r.Post("/leave", s.handleLeaveQueue)
		r.Get("/status", s.handleQueueStatus)
	})
}

// handleEnqueue serves both join flavors; the response carries a signed session.
func (s *Server) handleEnqueue(join func(context.Context, duel.Player) (*duel.QueueResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p duel.Player
		if err := readJSON(r, &p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := join(r.Context(), p)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		tok, err := s.token(res.SessionID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := *res
		out.SessionID = tok
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
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
	if err := s.duel.LeaveQueue(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	st, err := s.duel.CheckStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
