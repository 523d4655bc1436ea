package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
)

const pingInterval = 30 * time.Second

// startStream switches the response to text/event-stream.
func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()
	return flusher, true
}

// handleMatchEvents streams a match's events to one of its participants.
// The first event is the caller's current view; an end event closes the
// stream once the match is over.
func (s *Server) handleMatchEvents(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	matchID := chi.URLParam(r, "id")
	view, err := s.duel.MatchView(r.Context(), matchID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sub := s.duel.Events().Subscribe(duel.MatchTopic(matchID))
	defer sub.Close()

	flusher, ok := startStream(w)
	if !ok {
		return
	}
	snapshot, _ := json.Marshal(view)
	fmt.Fprintf(w, "event: state\ndata: %s\n\n", snapshot)
	flusher.Flush()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-sub.C:
			if !ok {
				fmt.Fprint(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: match\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// handleSessionEvents streams queue and invite notifications for a session,
// plus invites addressed to ?user= when given.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	broker := s.duel.Events()
	sess := broker.Subscribe(duel.SessionTopic(id))
	defer sess.Close()

	var userCh <-chan []byte
	if user := r.URL.Query().Get("user"); user != "" {
		sub := broker.Subscribe(duel.UserTopic(user))
		defer sub.Close()
		userCh = sub.C
	}

	flusher, ok := startStream(w)
	if !ok {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-sess.C:
			fmt.Fprintf(w, "event: session\ndata: %s\n\n", data)
			flusher.Flush()
		case data := <-userCh:
			fmt.Fprintf(w, "event: user\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
