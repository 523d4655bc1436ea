package duel

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Event types pushed to subscribers. Clients treat every event as a hint to
// refetch their view; payloads carry only what is needed to route them.
const (
	EventQueueMatched    = "queue.matched"
	EventMatchStarted    = "match.started"
	EventGuess           = "guess"
	EventTyping          = "typing"
	EventRoundEnded      = "round.ended"
	EventRoundStarted    = "round.started"
	EventMatchFinished   = "match.finished"
	EventMatchAbandoned  = "match.abandoned"
	EventDisruption      = "disruption"
	EventDisruptionClear = "disruption.cleared"
	EventInviteReceived  = "invite.received"
	EventInviteAccepted  = "invite.accepted"
	EventInviteRejected  = "invite.rejected"
	EventInviteCancelled = "invite.cancelled"
	EventInviteExpired   = "invite.expired"
)

// Event is the payload published to subscribers.
type Event struct {
	Type         string `json:"type"`
	MatchID      string `json:"matchId,omitempty"`
	InviteID     string `json:"inviteId,omitempty"`
	Round        int    `json:"round,omitempty"`
	PlayerHandle string `json:"playerHandle,omitempty"`
}

// Topic names one event stream. Build topics with MatchTopic, SessionTopic
// or UserTopic.
type Topic struct {
	kind string
	key  string
}

func (t Topic) String() string { return t.kind + ":" + t.key }

// MatchTopic carries every event of one match. It is closed once the match
// finishes or is abandoned.
func MatchTopic(matchID string) Topic { return Topic{"match", matchID} }

// SessionTopic carries events addressed to one client session.
func SessionTopic(sessionID string) Topic { return Topic{"session", sessionID} }

// UserTopic carries events addressed to a player handle (incoming invites).
func UserTopic(handle string) Topic { return Topic{"user", handle} }

const subscriberBuffer = 16

// Subscription is one subscriber's feed. C yields JSON-encoded events and is
// closed by Close or when the topic ends.
type Subscription struct {
	C <-chan []byte

	topic   Topic
	ch      chan []byte
	broker  *Broker
	dropped atomic.Int64
}

// Close detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() { s.broker.remove(s) }

// Dropped counts events skipped because the subscriber fell behind.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Broker is an in-process pub/sub for push events, keyed by topic.
type Broker struct {
	mu   sync.RWMutex
	subs map[Topic]map[*Subscription]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[Topic]map[*Subscription]struct{}),
	}
}

// Subscribe opens a feed of the events published to topic from now on.
func (b *Broker) Subscribe(topic Topic) *Subscription {
	ch := make(chan []byte, subscriberBuffer)
	sub := &Subscription{C: ch, topic: topic, ch: ch, broker: b}
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[sub.topic]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.topic)
	}
	close(sub.ch)
}

// Publish sends an event to every subscriber of topic. A subscriber whose
// buffer is full misses the event.
func (b *Broker) Publish(topic Topic, event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- data:
		default:
			if sub.dropped.Add(1) == 1 {
				log.Debug().Str("topic", topic.String()).Msg("subscriber behind, dropping events")
			}
		}
	}
	b.mu.RUnlock()
}

// CloseTopic ends every subscription on topic.
func (b *Broker) CloseTopic(topic Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[topic] {
		close(sub.ch)
	}
	delete(b.subs, topic)
}

// Subscribers reports how many feeds are open on topic.
func (b *Broker) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
