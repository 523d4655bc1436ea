// apps/duel-server/internal/httpserver/routes_invite.go
//
// HTTP routes for friend battles.
//   - POST /invites              → challenge a player (returns the sender's session)
//   - GET  /invites?to=handle    → live invites addressed to a player
//   - GET  /invites/{id}         → poll one invite
//   - POST /invites/{id}/accept  → start the friendly match (returns the accepter's session)
//   - POST /invites/{id}/reject
//   - POST /invites/{id}/cancel
//
// Invite records hold raw session ids, so responses go through inviteView.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
)

type inviteReq struct {
	duel.Player
	ToHandle string `json:"toHandle"`
	ToName   string `json:"toName"`
}

// inviteView is an invite as clients see it.
type inviteView struct {
	ID          string             `json:"id"`
	FromHandle  string             `json:"fromHandle"`
	FromName    string             `json:"fromName"`
	ToHandle    string             `json:"toHandle"`
	ToName      string             `json:"toName,omitempty"`
	Status      model.InviteStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	RespondedAt *time.Time         `json:"respondedAt,omitempty"`
	MatchID     string             `json:"matchId,omitempty"`
}

func newInviteView(r *model.FriendBattleRequest) inviteView {
	return inviteView{
		ID:          r.ID,
		FromHandle:  r.FromHandle,
		FromName:    r.FromName,
		ToHandle:    r.ToHandle,
		ToName:      r.ToName,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		RespondedAt: r.RespondedAt,
		MatchID:     r.MatchID,
	}
}

// mountInvites registers all /invites routes.
func (s *Server) mountInvites(r chi.Router) {
	r.Route("/invites", func(r chi.Router) {
		r.Post("/", s.handleSendInvite)
		r.Get("/", s.handleIncomingInvites)
		r.Get("/{id}", s.handleGetInvite)
		r.Post("/{id}/accept", s.handleAcceptInvite)
		r.Post("/{id}/reject", s.inviteAction(s.duel.RejectInvite))
		r.Post("/{id}/cancel", s.inviteAction(s.duel.CancelInvite))
	})
}

func (s *Server) handleSendInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	res, err := s.duel.SendInvite(r.Context(), req.Player, req.ToHandle, req.ToName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeInviteResult(w, r, res)
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	id, _, err := s.sessions.New()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := s.duel.AcceptInvite(r.Context(), chi.URLParam(r, "id"), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.writeInviteResult(w, r, res)
}

func (s *Server) writeInviteResult(w http.ResponseWriter, r *http.Request, res *duel.InviteResult) {
	tok, err := s.token(res.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := *res
	out.SessionID = tok
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetInvite(w http.ResponseWriter, r *http.Request) {
	inv, err := s.duel.Invite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInviteView(inv))
}

func (s *Server) handleIncomingInvites(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if to == "" {
		writeError(w, http.StatusBadRequest, "to query parameter required")
		return
	}
	list, err := s.duel.IncomingInvites(r.Context(), to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]inviteView, 0, len(list))
	for _, inv := range list {
		out = append(out, newInviteView(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) inviteAction(fn func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
