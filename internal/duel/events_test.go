package duel

import (
	"encoding/json"
	"testing"
)

func TestBrokerRoutesByTopic(t *testing.T) {
	b := NewBroker()
	alice := b.Subscribe(UserTopic("alice"))
	defer alice.Close()
	bob := b.Subscribe(UserTopic("bob"))
	defer bob.Close()
	// Same key, different kind.
	sess := b.Subscribe(SessionTopic("alice"))
	defer sess.Close()

	b.Publish(UserTopic("alice"), Event{Type: EventInviteReceived, InviteID: "i1"})

	var ev Event
	select {
	case data := <-alice.C:
		if err := json.Unmarshal(data, &ev); err != nil || ev.InviteID != "i1" {
			t.Fatalf("event = %s, %v", data, err)
		}
	default:
		t.Fatal("alice got nothing")
	}
	if len(bob.C) != 0 || len(sess.C) != 0 {
		t.Fatal("event leaked to another topic")
	}
}

func TestSubscriptionClose(t *testing.T) {
	b := NewBroker()
	topic := MatchTopic("m1")
	sub := b.Subscribe(topic)
	if n := b.Subscribers(topic); n != 1 {
		t.Fatalf("subscribers = %d", n)
	}
	sub.Close()
	sub.Close()
	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after Close")
	}
	if n := b.Subscribers(topic); n != 0 {
		t.Fatalf("subscribers after close = %d", n)
	}
	b.Publish(topic, Event{Type: EventGuess}) // nobody listening
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(MatchTopic("m1"))
	defer sub.Close()
	for i := 0; i < subscriberBuffer+4; i++ {
		b.Publish(MatchTopic("m1"), Event{Type: EventTyping})
	}
	if sub.Dropped() != 4 || len(sub.C) != subscriberBuffer {
		t.Fatalf("dropped = %d, buffered = %d", sub.Dropped(), len(sub.C))
	}
}

func TestMatchTopicEndsWithMatch(t *testing.T) {
	h := newHarness(t)
	p := h.startPvP(0)
	sub := h.svc.Events().Subscribe(MatchTopic(p.matchID))
	defer sub.Close()

	h.guess(p.matchID, p.s1, h.match(p.matchID).SecretWord)

	var last Event
	for data := range sub.C {
		if err := json.Unmarshal(data, &last); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	if last.Type != EventMatchFinished || last.PlayerHandle != "alice" {
		t.Fatalf("last event = %+v", last)
	}
	if n := h.svc.Events().Subscribers(MatchTopic(p.matchID)); n != 0 {
		t.Fatalf("subscribers = %d after the match ended", n)
	}
}
