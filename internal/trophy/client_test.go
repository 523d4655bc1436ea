package trophy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientSendsBearerAndBody(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody trophyBody
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "svc-token", time.Second)
	if err := c.ApplyUserTrophyResult(context.Background(), "alice", Win, 25); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if gotPath != "/users/alice/trophies" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer svc-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Result != Win || gotBody.Delta != 25 {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestFetchRandomBotProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bots/random" || r.URL.Query().Get("difficulty") != "hard" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(BotProfile{ID: "b7", Name: "Quill", Difficulty: "hard", Trophies: 900})
	}))
	defer srv.Close()

	p, err := New(srv.URL, "", time.Second).FetchRandomBotProfile(context.Background(), "hard")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.ID != "b7" || p.Name != "Quill" {
		t.Errorf("profile = %+v", p)
	}
}

func TestUpstreamFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	c := New(srv.URL, "", time.Second)

	err := c.LogMatchResult(context.Background(), MatchResult{MatchID: "m1"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("5xx err = %v", err)
	}

	srv.Close()
	err = c.ApplyBotTrophyResult(context.Background(), "b1", Lose, -20)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("closed server err = %v", err)
	}
}

func TestNoopWhenUnconfigured(t *testing.T) {
	c := New("", "", 0)
	if _, ok := c.(Noop); !ok {
		t.Fatalf("New(\"\") = %T, want Noop", c)
	}
	if err := c.LogMatchResult(context.Background(), MatchResult{}); err != nil {
		t.Errorf("noop log: %v", err)
	}
	if _, err := c.FetchRandomBotProfile(context.Background(), "easy"); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("noop fetch err = %v", err)
	}
}
