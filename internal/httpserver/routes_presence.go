// apps/duel-server/internal/httpserver/routes_presence.go
//
// HTTP routes for presence.
//   - POST /presence/heartbeat → record a heartbeat for a client-chosen session
//   - POST /presence/online    → online flags for a list of user handles

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type heartbeatReq struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type onlineReq struct {
	UserIDs []string `json:"userIds"`
}

// mountPresence registers all /presence routes.
func (s *Server) mountPresence(r chi.Router) {
	r.Route("/presence", func(r chi.Router) {
		r.Post("/heartbeat", s.handleHeartbeat)
		r.Post("/online", s.handleOnline)
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := s.presence.Heartbeat(r.Context(), req.SessionID, req.UserID, req.DisplayName); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	online, err := s.presence.OnlineStatus(r.Context(), req.UserIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, online)
}
