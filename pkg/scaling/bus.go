package scaling

import (
	"sync"

	"github.com/fracturedsurvival/npcruntime/pkg/trie"
)

// Event is one published message on the event bus. Topic follows the
// trie's MQTT-style path convention, e.g. "/world/tick",
// "/faction/guards/trust_changed", "/quest/generated".
type Event struct {
	Topic   string
	Payload any
}

// subscription pairs a delivery channel with a single-pattern trie used
// only to test whether a concrete topic matches this subscriber's pattern.
// pkg/trie.Trie resolves one winning match per lookup (first match wins
// along exact > + > # precedence), which is the right shape for routing a
// single handler to a single topic but not for fanning a publish out to
// every matching subscriber at once; EventBus works around that by giving
// each subscriber its own single-entry matcher and testing all of them on
// publish, which is the intended repurposing of the MQTT routing trie as a
// multi-subscriber topic filter (SPEC_FULL DOMAIN STACK).
type subscription struct {
	id      uint64
	pattern string
	matcher *trie.Trie[bool]
	ch      chan Event
}

// EventBus fans published events out to every subscriber whose pattern
// matches the event's topic (component H: event-stream subscription
// topic matching).
type EventBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	next uint64
}

// NewEventBus constructs an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[uint64]*subscription)}
}

// Subscribe registers pattern (an MQTT-style trie path, e.g. "/quest/#" or
// "/faction/+/trust_changed") and returns a channel of matching events plus
// an unsubscribe function.
func (b *EventBus) Subscribe(pattern string, buffer int) (<-chan Event, func(), error) {
	matcher := trie.New[bool]()
	if err := matcher.SetValue(pattern, true); err != nil {
		return nil, nil, err
	}

	b.mu.Lock()
	id := b.next
	b.next++
	sub := &subscription{id: id, pattern: pattern, matcher: matcher, ch: make(chan Event, buffer)}
	b.subs[id] = sub
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, unsubscribe, nil
}

// Publish delivers e to every subscriber whose pattern matches e.Topic. A
// slow subscriber's buffer filling up drops that event for that subscriber
// rather than blocking the publisher.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if _, _, ok := s.matcher.Match(e.Topic); !ok {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions, for
// diagnostics.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
