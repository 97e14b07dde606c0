package bus

import (
	"encoding/json"
	"testing"
	"time"
)

func recvEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func TestChannelNames(t *testing.T) {
	if QRChannel("s1") != "wa:qr:s1" || StatusChannel("s1") != "wa:status:s1" || MessageChannel("s1") != "wa:msg:s1" {
		t.Fatalf("unexpected channel names")
	}
	if SessionID("wa:msg:s1") != "s1" {
		t.Fatalf("expected s1, got %q", SessionID("wa:msg:s1"))
	}
	if SessionID("garbage") != "" {
		t.Fatalf("expected empty session id for malformed channel")
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe("wa:status:s1")
	defer sub.Close()

	if n := b.Publish("wa:status:s1", map[string]string{"status": "connected"}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}

	ev := recvEvent(t, sub)
	if ev.Channel != "wa:status:s1" {
		t.Fatalf("unexpected channel %s", ev.Channel)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["status"] != "connected" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestSubscriptionIsChannelScoped(t *testing.T) {
	b := New()
	sub := b.Subscribe("wa:msg:s1")
	defer sub.Close()

	b.Publish("wa:msg:s2", "other session")
	b.Publish("wa:msg:s1", "mine")

	ev := recvEvent(t, sub)
	if ev.Channel != "wa:msg:s1" {
		t.Fatalf("received event for wrong channel: %s", ev.Channel)
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestFirehoseSeesAllChannels(t *testing.T) {
	b := New()
	sub := b.SubscribeAll()
	defer sub.Close()

	b.Publish("wa:qr:s1", "qr")
	b.Publish("wa:msg:s2", "msg")

	first := recvEvent(t, sub)
	second := recvEvent(t, sub)
	if first.Channel != "wa:qr:s1" || second.Channel != "wa:msg:s2" {
		t.Fatalf("unexpected order: %s, %s", first.Channel, second.Channel)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe("wa:status:s1")
	sub.Close()
	sub.Close() // safe to call twice

	if n := b.Publish("wa:status:s1", "late"); n != 0 {
		t.Fatalf("expected 0 deliveries after close, got %d", n)
	}
	if _, ok := <-sub.C; ok {
		t.Fatalf("expected closed subscription channel")
	}
}

func TestLastCloseReleasesChannel(t *testing.T) {
	b := New()
	first := b.Subscribe("wa:status:s1")
	second := b.Subscribe("wa:status:s1")

	first.Close()
	if n := b.Publish("wa:status:s1", "x"); n != 1 {
		t.Fatalf("expected remaining subscriber to receive, got %d", n)
	}

	second.Close()
	b.mu.RLock()
	_, exists := b.channels["wa:status:s1"]
	b.mu.RUnlock()
	if exists {
		t.Fatalf("expected channel entry removed after last unsubscribe")
	}
}

func TestSlowConsumerDoesNotBlockPublish(t *testing.T) {
	b := New()
	slow := b.Subscribe("wa:msg:s1")
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		// Nobody drains slow.C; publishes beyond the buffer must drop
		// instead of stalling.
		for i := 0; i < subscriptionBuffer*2; i++ {
			b.Publish("wa:msg:s1", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on slow consumer")
	}
	if len(slow.C) != subscriptionBuffer {
		t.Fatalf("expected full buffer, got %d", len(slow.C))
	}
}
