package session

import (
	"fmt"
	"testing"

	"wabridge/internal/model"
)

func TestChatCache_AddAndList(t *testing.T) {
	c := newChatCache(10)

	c.Add(model.NormalizedMessage{ID: "1", ChatID: "a", SenderName: "Alice", Timestamp: 100})
	c.Add(model.NormalizedMessage{ID: "2", ChatID: "b", SenderName: "Bob", Timestamp: 200})
	c.Add(model.NormalizedMessage{ID: "3", ChatID: "a", SenderName: "Alice", Timestamp: 300})

	chats := c.Chats()
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].ID != "a" || chats[0].LastMessageAt != 300 || chats[0].Name != "Alice" {
		t.Fatalf("expected chat a most recent: %+v", chats[0])
	}

	msgs := c.Messages("a", 0)
	if len(msgs) != 2 || msgs[0].ID != "1" || msgs[1].ID != "3" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestChatCache_TrimsToLimit(t *testing.T) {
	c := newChatCache(3)
	for i := 0; i < 10; i++ {
		c.Add(model.NormalizedMessage{ID: fmt.Sprintf("m%d", i), ChatID: "a", Timestamp: int64(i)})
	}

	msgs := c.Messages("a", 0)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages after trim, got %d", len(msgs))
	}
	if msgs[0].ID != "m7" || msgs[2].ID != "m9" {
		t.Fatalf("expected oldest dropped, got %+v", msgs)
	}
}

func TestChatCache_MessagesLimitAndUnknownChat(t *testing.T) {
	c := newChatCache(10)
	for i := 0; i < 5; i++ {
		c.Add(model.NormalizedMessage{ID: fmt.Sprintf("m%d", i), ChatID: "a", Timestamp: int64(i)})
	}

	msgs := c.Messages("a", 2)
	if len(msgs) != 2 || msgs[0].ID != "m3" {
		t.Fatalf("expected last 2 messages, got %+v", msgs)
	}
	if got := c.Messages("unknown", 5); len(got) != 0 {
		t.Fatalf("expected empty result for unknown chat, got %+v", got)
	}
}

