package fleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/fracturedsurvival/npcruntime/pkg/scaling"
)

// EventKind labels a fleet-level event published onto the bounded ring
// (§4.6 World tick; §6 event-stream surface).
type EventKind string

const (
	EventAgentRegistered   EventKind = "agent_registered"
	EventAgentUnregistered EventKind = "agent_unregistered"
	EventAgentInteraction  EventKind = "agent_interaction"
	EventWorldTick         EventKind = "world_tick"
	EventGossip            EventKind = "gossip"
	EventQuestGenerated    EventKind = "quest_generated"
	EventQuestExpired      EventKind = "quest_expired"
	EventBattleResolved    EventKind = "battle_resolved"
)

// Event is one entry in the fleet's bounded history / publish stream.
type Event struct {
	Kind    EventKind
	Subject string
	Detail  string
	At      time.Time
}

// ring is a bounded last-N event buffer with fan-out to live subscribers.
// It exists so a newly connected external surface (pkg/surface) can replay
// recent history before receiving live events.
type ring struct {
	mu   sync.Mutex
	buf  []Event
	cap  int
	subs map[int]chan Event
	next int
}

func newRing(capacity int) *ring {
	return &ring{cap: capacity, subs: make(map[int]chan Event)}
}

func (r *ring) push(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, e)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
			// slow subscriber: drop rather than block the publisher.
		}
	}
}

// History returns a copy of the currently buffered events, oldest first.
func (r *ring) History() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.buf))
	copy(out, r.buf)
	return out
}

// Subscribe returns a channel of future events and an unsubscribe func.
// The channel is buffered; a subscriber that falls behind silently misses
// events rather than stalling the fleet.
func (r *ring) Subscribe(buffer int) (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	ch := make(chan Event, buffer)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

func (c *Coordinator) publish(e Event) {
	c.events.push(e)
	if c.bus != nil {
		c.bus.Publish(scaling.Event{Topic: eventTopic(e), Payload: e})
	}
}

// eventTopic maps an Event onto the trie-routed bus's hierarchical topic
// space, so external surfaces can subscribe narrowly (e.g.
// "/fleet/quest/generated") or broadly ("/fleet/quest/#").
func eventTopic(e Event) string {
	switch e.Kind {
	case EventAgentRegistered, EventAgentUnregistered, EventAgentInteraction:
		return fmt.Sprintf("/fleet/agent/%s", e.Kind)
	case EventQuestGenerated, EventQuestExpired:
		return fmt.Sprintf("/fleet/quest/%s", e.Kind)
	case EventBattleResolved:
		return "/fleet/battle/resolved"
	case EventGossip:
		return "/fleet/gossip"
	default:
		return "/fleet/world/tick"
	}
}

// Events returns a copy of the fleet's recent event history.
func (c *Coordinator) Events() []Event {
	return c.events.History()
}

// Subscribe streams future fleet events to the caller via the fleet's own
// bounded-history channel. Use Bus (if configured) for trie-pattern
// topic filtering instead.
func (c *Coordinator) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.Subscribe(buffer)
}
