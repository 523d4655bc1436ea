package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type memJournal struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func newMemJournal() *memJournal { return &memJournal{tasks: map[string]Task{}} }

func (j *memJournal) SaveTask(_ context.Context, t Task) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tasks[t.ID] = t
	return nil
}

func (j *memJournal) DeleteTask(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.tasks, id)
	return nil
}

func (j *memJournal) PendingTasks(context.Context) ([]Task, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Task
	for _, t := range j.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (j *memJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.tasks)
}

func newTestRunner(t *testing.T, j Journal) *Runner {
	t.Helper()
	r, err := NewRunner(j, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for task")
		return ""
	}
}

// eventually polls cond until it holds or a deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type ping struct {
	MatchID string `json:"matchId"`
}

func TestScheduleDispatchesAndClearsJournal(t *testing.T) {
	j := newMemJournal()
	r := newTestRunner(t, j)

	got := make(chan string, 1)
	r.Handle("ping", func(_ context.Context, raw json.RawMessage) error {
		var p ping
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		got <- p.MatchID
		return nil
	})
	r.Start(context.Background())

	if err := r.Schedule(context.Background(), "ping", ping{MatchID: "m1"}, 50*time.Millisecond); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if j.len() != 1 {
		t.Fatalf("journal len = %d, want 1", j.len())
	}
	if id := waitFor(t, got); id != "m1" {
		t.Fatalf("payload matchId = %q", id)
	}
	eventually(t, func() bool { return j.len() == 0 })
}

func TestResumeRunsOverdueTasks(t *testing.T) {
	j := newMemJournal()
	_ = j.SaveTask(context.Background(), Task{
		ID: "t1", Kind: "ping",
		Payload: json.RawMessage(`{"matchId":"m9"}`),
		RunAt:   time.Now().Add(-time.Minute),
	})

	r := newTestRunner(t, j)
	got := make(chan string, 1)
	r.Handle("ping", func(_ context.Context, raw json.RawMessage) error {
		var p ping
		_ = json.Unmarshal(raw, &p)
		got <- p.MatchID
		return nil
	})

	n, err := r.Resume(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("resume = %d, %v", n, err)
	}
	r.Start(context.Background())
	if id := waitFor(t, got); id != "m9" {
		t.Fatalf("payload matchId = %q", id)
	}
	eventually(t, func() bool { return j.len() == 0 })
}

func TestUnknownKindIsDropped(t *testing.T) {
	j := newMemJournal()
	r := newTestRunner(t, j)
	r.Start(context.Background())

	if err := r.Schedule(context.Background(), "nobody", struct{}{}, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	eventually(t, func() bool { return j.len() == 0 })
}

func TestEvery(t *testing.T) {
	r := newTestRunner(t, newMemJournal())
	var (
		mu    sync.Mutex
		count int
	)
	if err := r.Every("tick", 20*time.Millisecond, func(context.Context) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("every: %v", err)
	}
	r.Start(context.Background())
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 2
	})
}
