// apps/duel-server/internal/httpserver/server.go
//
// HTTP server wiring for the duel backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/healthz", "/debug/words".
//   - Queue, match, invite and presence endpoints (mounted from routes_*.go).
//   - Push transports: SSE and WebSocket streams fed by the duel event broker.
//
// Notes:
//   - Clients never see raw session ids. Every sessionId in a response is a
//     signed token and every sessionId in a request is verified before use.
//   - Streaming routes sit outside the request timeout.

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/robalobadob/wordle/apps/duel-server/internal/duel"
	"github.com/robalobadob/wordle/apps/duel-server/internal/presence"
	"github.com/robalobadob/wordle/apps/duel-server/internal/session"
)

// requestTimeout bounds every non-streaming handler.
const requestTimeout = 10 * time.Second

// Options are the collaborators of a Server.
type Options struct {
	Duel         *duel.Service
	Presence     presence.Tracker
	Sessions     *session.Signer
	Checks       map[string]Checker
	ClientOrigin string
}

// Server bundles the router and the services behind it.
type Server struct {
	r        *chi.Mux
	duel     *duel.Service
	presence presence.Tracker
	sessions *session.Signer
	checks   map[string]Checker
	origin   string
}

// New constructs a Server, installs middleware, and registers routes.
func New(o Options) *Server {
	if o.ClientOrigin == "" {
		o.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{
		r:        chi.NewRouter(),
		duel:     o.Duel,
		presence: o.Presence,
		sessions: o.Sessions,
		checks:   o.Checks,
		origin:   o.ClientOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)       // one zerolog line per request
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "duel-server",
			"endpoints": []string{"/health", "POST /queue/join", "POST /matches/{id}/guess", "POST /invites", "POST /presence/heartbeat"},
		})
	})
	health := s.handleHealth()
	s.r.Get("/health", health)
	s.r.Get("/healthz", health)
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		a, g := s.duel.Words().Stats()
		writeJSON(w, http.StatusOK, map[string]int{"answers": a, "allowed": g})
	})

	// --- API (bounded) ---
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		s.mountQueue(r)
		s.mountMatches(r)
		s.mountInvites(r)
		s.mountPresence(r)
	})

	// --- push (unbounded) ---
	s.r.Get("/matches/{id}/events", s.handleMatchEvents)
	s.r.Get("/sessions/events", s.handleSessionEvents)
	s.r.Get("/ws/matches/{id}", s.handleMatchSocket)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Router exposes the internal router (used by main and tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
