package session

import (
	"sort"
	"sync"

	"wabridge/internal/model"
)

// chatCache keeps the most recent messages per chat, in memory only. The
// underlying network does not always expose a chat index, so chats are
// discovered experientially as messages arrive. The cache survives
// reconnects and is discarded on destroy.
type chatCache struct {
	mu    sync.Mutex
	limit int
	chats map[string]*chatEntry
}

type chatEntry struct {
	name          string
	lastMessageAt int64
	messages      []model.NormalizedMessage
}

func newChatCache(limit int) *chatCache {
	return &chatCache{limit: limit, chats: make(map[string]*chatEntry)}
}

func (c *chatCache) Add(msg model.NormalizedMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.chats[msg.ChatID]
	if entry == nil {
		entry = &chatEntry{}
		c.chats[msg.ChatID] = entry
	}
	if msg.SenderName != "" && !msg.FromMe {
		entry.name = msg.SenderName
	}
	if msg.Timestamp > entry.lastMessageAt {
		entry.lastMessageAt = msg.Timestamp
	}
	entry.messages = append(entry.messages, msg)
	if len(entry.messages) > c.limit {
		entry.messages = entry.messages[len(entry.messages)-c.limit:]
	}
}

func (c *chatCache) Chats() []model.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()

	chats := make([]model.Chat, 0, len(c.chats))
	for id, entry := range c.chats {
		chats = append(chats, model.Chat{ID: id, Name: entry.name, LastMessageAt: entry.lastMessageAt})
	}
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].LastMessageAt != chats[j].LastMessageAt {
			return chats[i].LastMessageAt > chats[j].LastMessageAt
		}
		return chats[i].ID < chats[j].ID
	})
	return chats
}

// Messages returns up to limit of the most recent messages for the chat, in
// arrival order. Unknown chat ids yield an empty slice.
func (c *chatCache) Messages(chatID string, limit int) []model.NormalizedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.chats[chatID]
	if entry == nil {
		return nil
	}
	msgs := entry.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.NormalizedMessage, len(msgs))
	copy(out, msgs)
	return out
}
