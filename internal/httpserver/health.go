package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a ping function to a Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type checkResult struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]checkResult, len(s.checks))
		status := http.StatusOK

		for name, c := range s.checks {
			if err := c.Check(ctx); err != nil {
				log.Error().Err(err).Str("name", name).Msg("health check failed")
				results[name] = checkResult{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = checkResult{Status: "ok"}
		}

		writeJSON(w, status, map[string]any{"ok": status == http.StatusOK, "checks": results})
	}
}
