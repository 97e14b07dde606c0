package bus

import (
	"encoding/json"
	"strings"
	"sync"
)

// Channel names, one triple per session.
func QRChannel(sessionID string) string      { return "wa:qr:" + sessionID }
func StatusChannel(sessionID string) string  { return "wa:status:" + sessionID }
func MessageChannel(sessionID string) string { return "wa:msg:" + sessionID }

// SessionID extracts the session id from a channel name, or "" if the name
// is not in the wa:<kind>:<id> form.
func SessionID(channel string) string {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

// Event is a published payload tagged with its channel. Data is serialized
// once at publish time and shared by all subscribers.
type Event struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

const subscriptionBuffer = 64

// Bus is an in-process publish/subscribe fan-out. Publish never blocks: a
// subscriber whose buffer is full loses the event. Delivery is at-most-once
// and non-durable; lifecycle state is mirrored in the session store, so a
// late subscriber recovers current status through the control API.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscription]struct{}
	firehose map[*Subscription]struct{}
}

// Subscription receives events on C until Close. A channel-scoped
// subscription sees only its channel; a firehose subscription sees every
// publish on the bus.
type Subscription struct {
	C chan Event

	bus       *Bus
	channel   string
	firehose  bool
	closeOnce sync.Once
}

func New() *Bus {
	return &Bus{
		channels: make(map[string]map[*Subscription]struct{}),
		firehose: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers interest in one channel. The channel's subscriber set
// is created on first subscribe and removed when the last subscription
// closes.
func (b *Bus) Subscribe(channel string) *Subscription {
	sub := &Subscription{C: make(chan Event, subscriptionBuffer), bus: b, channel: channel}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.channels[channel] == nil {
		b.channels[channel] = make(map[*Subscription]struct{})
	}
	b.channels[channel][sub] = struct{}{}
	return sub
}

// SubscribeAll registers a firehose subscription covering every channel.
// The realtime gateway holds one per client connection and filters by the
// client's interest set.
func (b *Bus) SubscribeAll() *Subscription {
	sub := &Subscription{C: make(chan Event, subscriptionBuffer), bus: b, firehose: true}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.firehose[sub] = struct{}{}
	return sub
}

// Close removes the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		b := s.bus
		b.mu.Lock()
		if s.firehose {
			delete(b.firehose, s)
		} else if set := b.channels[s.channel]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(b.channels, s.channel)
			}
		}
		// Closed under the lock so Publish never sends on a closed channel.
		close(s.C)
		b.mu.Unlock()
	})
}

// Publish serializes payload and delivers it to the channel's subscribers and
// every firehose subscription. Returns the number of subscriptions that
// accepted the event.
func (b *Bus) Publish(channel string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	ev := Event{Channel: channel, Data: data}

	// Sends happen under the read lock; they are non-blocking, so a slow
	// consumer cannot stall the bus, and a concurrent Close cannot slip a
	// channel close between snapshot and send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.channels[channel] {
		select {
		case sub.C <- ev:
			delivered++
		default:
		}
	}
	for sub := range b.firehose {
		select {
		case sub.C <- ev:
			delivered++
		default:
		}
	}
	return delivered
}
