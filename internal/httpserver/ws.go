package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadWait  = 2 * pingInterval
)

// wsIn is a client command on a match socket.
type wsIn struct {
	T       string `json:"t"` // guess | typing | disrupt | clear | leave
	ReqID   string `json:"reqId,omitempty"`
	Guess   string `json:"guess,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// wsOut is a server frame: an event, a reply, or an error. Errors carry the
// status the same failure gets over plain HTTP.
type wsOut struct {
	T                 string `json:"t"`
	ReqID             string `json:"reqId,omitempty"`
	Data              any    `json:"data,omitempty"`
	Status            int    `json:"status,omitempty"`
	Error             string `json:"error,omitempty"`
	CooldownRemaining int    `json:"cooldownRemaining,omitempty"`
}

// wsError builds the error frame answering reqID.
func wsError(reqID string, status int, body errorBody) wsOut {
	return wsOut{T: "error", ReqID: reqID, Status: status, Error: body.Error, CooldownRemaining: body.CooldownRemaining}
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == s.origin
		},
	}
}

// handleMatchSocket is the WebSocket flavor of the match stream. Besides
// receiving events the client can send match commands over it.
func (s *Server) handleMatchSocket(w http.ResponseWriter, r *http.Request) {
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

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("matchId", matchID).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.duel.Events().Subscribe(duel.MatchTopic(matchID))
	defer sub.Close()

	send := make(chan []byte, 16)
	queue(send, wsOut{T: "state", Data: view})

	go writePump(ctx, conn, sub.C, send)
	s.readPump(ctx, conn, matchID, id, send)
}

// writePump owns every write on conn.
func writePump(ctx context.Context, conn *websocket.Conn, events <-chan []byte, send <-chan []byte) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(kind int, msg []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(kind, msg) == nil
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data, ok := <-events:
			if !ok {
				// Match over.
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"))
				return
			}
			frame, _ := json.Marshal(wsOut{T: "event", Data: json.RawMessage(data)})
			if !write(websocket.TextMessage, frame) {
				return
			}
		case msg := <-send:
			if !write(websocket.TextMessage, msg) {
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// readPump runs client commands until the socket closes.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, matchID, sessionID string, send chan<- []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("matchId", matchID).Msg("websocket read ended")
			}
			return
		}
		var in wsIn
		if err := json.Unmarshal(data, &in); err != nil {
			queue(send, wsError("", http.StatusBadRequest, errorBody{Error: "invalid_json"}))
			continue
		}
		queue(send, s.command(ctx, matchID, sessionID, in))
	}
}

func (s *Server) command(ctx context.Context, matchID, sessionID string, in wsIn) wsOut {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		data any
		err  error
	)
	switch in.T {
	case "guess":
		data, err = s.duel.SubmitGuess(ctx, matchID, sessionID, in.Guess)
	case "typing":
		err = s.duel.UpdateTypingPreview(ctx, matchID, sessionID, in.Preview)
	case "disrupt":
		err = s.duel.SendDisruption(ctx, matchID, sessionID)
	case "clear":
		err = s.duel.ClearDisruption(ctx, matchID, sessionID)
	case "leave":
		err = s.duel.LeaveMatch(ctx, matchID, sessionID)
	default:
		return wsError(in.ReqID, http.StatusBadRequest, errorBody{Error: "unknown command: " + in.T})
	}
	if err != nil {
		status, body := classify(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("matchId", matchID).Str("command", in.T).Msg("websocket command failed")
		}
		return wsError(in.ReqID, status, body)
	}
	return wsOut{T: "ok", ReqID: in.ReqID, Data: data}
}

// queue hands a frame to the writer, dropping it if the writer is backed up.
func queue(send chan<- []byte, out wsOut) {
	b, _ := json.Marshal(out)
	select {
	case send <- b:
	default:
	}
}
