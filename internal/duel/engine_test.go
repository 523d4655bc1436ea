package duel

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/wordle/apps/duel-server/internal/game"
	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
)

func TestBestOfThreeFinishesAtTwoWins(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(300)

	// Round 1: alice solves it.
	secret := h.match(p.matchID).SecretWord
	res := h.guess(p.matchID, p.s1, secret)
	if res.RoundState != RoundOver || res.RoundWinner != "alice" || res.State != game.StateWon {
		t.Fatalf("round 1 result = %+v", res)
	}
	m := h.match(p.matchID)
	if m.Score1 != 1 || m.Score2 != 0 || m.Status != model.MatchPlaying || m.NextRoundAt == nil {
		t.Fatalf("after round 1: %+v", m)
	}
	if st := h.state(p.matchID, p.h2); st.GameState != game.StateLost {
		t.Fatalf("bob state = %s, want lost once alice won", st.GameState)
	}

	// Nobody can guess during the display window.
	var se *StateError
	if _, err := h.svc.SubmitGuess(h.ctx, p.matchID, p.s2, h.wrongWord(p.matchID)); !errors.As(err, &se) {
		t.Fatalf("guess between rounds err = %v, want StateError", err)
	}

	h.sched.advance(10 * time.Second)
	m = h.match(p.matchID)
	if m.Round != 2 || m.SecretWord == secret || m.NextRoundAt != nil {
		t.Fatalf("round 2 = %+v", m)
	}
	for _, handle := range []string{p.h1, p.h2} {
		if st := h.state(p.matchID, handle); st.GameState != game.StatePlaying || len(st.Guesses) != 0 {
			t.Fatalf("%s not reset: %+v", handle, st)
		}
	}

	// Round 2: alice again; the match ends at two wins.
	res = h.guess(p.matchID, p.s1, m.SecretWord)
	if res.RoundState != MatchOver {
		t.Fatalf("round 2 result = %+v", res)
	}
	m = h.match(p.matchID)
	if m.Status != model.MatchFinished || m.WinnerHandle != "alice" || m.Score1 != 2 || m.FinishedAt == nil || !m.Reported {
		t.Fatalf("finished match = %+v", m)
	}
	if n := h.sched.count(kindRoundAdvance); n != 0 {
		t.Errorf("round advances pending = %d, want 0", n)
	}

	h.sched.advance(time.Second)
	if n := h.trophies.reported(); n != 1 {
		t.Fatalf("reports = %d, want 1", n)
	}
	if h.trophies.users["alice"] != 25 || h.trophies.users["bob"] != -20 {
		t.Errorf("trophy deltas = %v", h.trophies.users)
	}
	r := h.trophies.results[0]
	if r.WinnerID != "alice" || r.Attempts1 != 1 || r.GameType != "pvp" {
		t.Errorf("match result = %+v", r)
	}
}

func TestSimultaneousLossIsADraw(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(300)
	wrong := h.wrongWord(p.matchID)

	for i := 0; i < game.MaxAttempts; i++ {
		res := h.guess(p.matchID, p.s1, wrong)
		if i < game.MaxAttempts-1 && res.State != game.StatePlaying {
			t.Fatalf("alice finished early at guess %d", i+1)
		}
		if i == game.MaxAttempts-1 && (res.State != game.StateLost || res.RoundState != RoundInProgress) {
			t.Fatalf("alice last guess = %+v, want lost with round still on", res)
		}
	}
	for i := 0; i < game.MaxAttempts; i++ {
		res := h.guess(p.matchID, p.s2, wrong)
		if i == game.MaxAttempts-1 && (res.RoundState != RoundOver || res.RoundWinner != "") {
			t.Fatalf("bob last guess = %+v, want draw", res)
		}
	}

	m := h.match(p.matchID)
	if m.Score1 != 0 || m.Score2 != 0 || m.BestOf != 3 || m.Status != model.MatchPlaying {
		t.Fatalf("after draw: %+v", m)
	}
	if m.LastRoundSummary == nil || m.LastRoundSummary.WinnerHandle != "" || len(m.LastRoundSummary.Player2Guesses) != game.MaxAttempts {
		t.Fatalf("summary = %+v", m.LastRoundSummary)
	}
	if n := h.sched.count(kindRoundAdvance); n != 1 {
		t.Fatalf("round advances = %d, want 1", n)
	}

	h.sched.advance(10 * time.Second)
	m = h.match(p.matchID)
	if m.Round != 2 || m.BestOf != 3 || m.Score1 != 0 || m.Score2 != 0 {
		t.Fatalf("round 2 = %+v", m)
	}
}

func TestLossAgainstPlayingOpponentContinues(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(0)
	wrong := h.wrongWord(p.matchID)
	for i := 0; i < game.MaxAttempts; i++ {
		h.guess(p.matchID, p.s1, wrong)
	}
	// bob can still win the round after alice ran out.
	res := h.guess(p.matchID, p.s2, h.match(p.matchID).SecretWord)
	if res.RoundState != MatchOver || res.RoundWinner != "bob" {
		t.Fatalf("bob result = %+v", res)
	}
	if m := h.match(p.matchID); m.WinnerHandle != "bob" || m.Score2 != 1 {
		t.Fatalf("match = %+v", m)
	}
}

func TestInvalidGuesses(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(0)

	for _, g := range []string{"", "abc", "toolong", "12345", "zzzzz"} {
		if _, err := h.svc.SubmitGuess(h.ctx, p.matchID, p.s1, g); !errors.Is(err, ErrInvalidGuess) {
			t.Errorf("guess %q err = %v, want ErrInvalidGuess", g, err)
		}
	}
	if st := h.state(p.matchID, p.h1); len(st.Guesses) != 0 {
		t.Fatalf("rejected guesses were recorded: %+v", st.Guesses)
	}

	if _, err := h.svc.SubmitGuess(h.ctx, p.matchID, "stranger", "crane"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger err = %v", err)
	}
	if _, err := h.svc.SubmitGuess(h.ctx, "missing", p.s1, "crane"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing match err = %v", err)
	}

	// Mixed case and whitespace are normalized.
	w := h.wrongWord(p.matchID)
	res := h.guess(p.matchID, p.s1, "  "+strings.ToUpper(w)+" ")
	if len(res.Feedback) != len(w) {
		t.Fatalf("feedback = %v", res.Feedback)
	}
}

func TestLeaveMatchForfeits(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(0)

	if err := h.svc.LeaveMatch(h.ctx, p.matchID, p.s1); err != nil {
		t.Fatalf("leave: %v", err)
	}
	m := h.match(p.matchID)
	if m.Status != model.MatchAbandoned || m.AbandonedBy != "alice" || m.WinnerHandle != "bob" || m.FinishedAt == nil {
		t.Fatalf("abandoned match = %+v", m)
	}
	if st := h.state(p.matchID, p.h1); st.GameState != game.StateDisconnected {
		t.Fatalf("leaver state = %s", st.GameState)
	}

	var se *StateError
	if err := h.svc.LeaveMatch(h.ctx, p.matchID, p.s2); !errors.As(err, &se) {
		t.Fatalf("second leave err = %v, want StateError", err)
	}

	h.sched.advance(time.Second)
	if h.trophies.users["bob"] != 25 || h.trophies.users["alice"] != -20 || h.trophies.reported() != 1 {
		t.Fatalf("forfeit report: users=%v reports=%d", h.trophies.users, h.trophies.reported())
	}
}

func TestMatchViewHidesOpponentLetters(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(300)
	wrong := h.wrongWord(p.matchID)
	h.guess(p.matchID, p.s1, wrong)
	if err := h.svc.UpdateTypingPreview(h.ctx, p.matchID, p.s1, "Ab1c"); err != nil {
		t.Fatalf("typing: %v", err)
	}

	mine, err := h.svc.MatchView(h.ctx, p.matchID, p.s1)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if mine.You.Guesses[0].Word != wrong || mine.You.Preview != "abc" {
		t.Fatalf("own view = %+v", mine.You)
	}

	theirs, _ := h.svc.MatchView(h.ctx, p.matchID, p.s2)
	opp := theirs.Opponent
	if len(opp.Guesses) != 1 || opp.Guesses[0].Word != "" || len(opp.Guesses[0].Marks) != 5 {
		t.Fatalf("opponent guesses = %+v", opp.Guesses)
	}
	if opp.Preview != "" || opp.PreviewLength != 3 || theirs.SecretWord != "" {
		t.Fatalf("opponent leaked letters: %+v secret=%q", opp, theirs.SecretWord)
	}

	// Once the round ends everything is shown.
	h.guess(p.matchID, p.s2, h.match(p.matchID).SecretWord)
	theirs, _ = h.svc.MatchView(h.ctx, p.matchID, p.s2)
	if theirs.Opponent.Guesses[0].Word != wrong || theirs.SecretWord == "" || theirs.LastRound == nil {
		t.Fatalf("view after round = %+v", theirs)
	}
}

func TestRoundAdvanceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(300)
	h.guess(p.matchID, p.s1, h.match(p.matchID).SecretWord)

	// A duplicate firing for the same round is a no-op.
	_ = h.sched.Schedule(h.ctx, kindRoundAdvance, roundPayload{MatchID: p.matchID, Round: 1}, 10*time.Second)
	h.sched.advance(10 * time.Second)
	if m := h.match(p.matchID); m.Round != 2 {
		t.Fatalf("round = %d, want 2", m.Round)
	}
}

func TestSimultaneousSolveCreditsOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t)
		p := h.startPvP(300)
		secret := h.match(p.matchID).SecretWord

		var (
			wg      sync.WaitGroup
			start   = make(chan struct{})
			results [2]*GuessResult
			errs    [2]error
		)
		for j, session := range []string{p.s1, p.s2} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				results[j], errs[j] = h.svc.SubmitGuess(h.ctx, p.matchID, session, secret)
			}()
		}
		close(start)
		wg.Wait()

		winners := 0
		for j := range errs {
			var se *StateError
			switch {
			case errs[j] == nil && results[j].RoundWinner != "":
				winners++
			case errors.As(errs[j], &se):
				// Lost the race: the round was already over.
			default:
				t.Fatalf("run %d: side %d got %+v, %v", i, j+1, results[j], errs[j])
			}
		}
		m := h.match(p.matchID)
		if winners != 1 || m.Score1+m.Score2 != 1 {
			t.Fatalf("run %d: winners = %d, score %d-%d", i, winners, m.Score1, m.Score2)
		}
		if m.LastRoundSummary == nil || m.LastRoundSummary.Round != 1 || m.Status != model.MatchPlaying {
			t.Fatalf("run %d: match = %+v", i, m)
		}
		if n := h.sched.count(kindRoundAdvance); n != 1 {
			t.Fatalf("run %d: round advances = %d, want 1", i, n)
		}
	}
}
