// Package provider defines the boundary to the external messaging network.
// The bridge treats the network purely as a capability: connect, authenticate
// via QR or pairing code, send and receive messages, emit lifecycle events.
// Concrete network drivers register themselves like database/sql drivers and
// are linked into the binary; the bridge core never touches the wire
// protocol or its cryptography.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wabridge/internal/model"
)

// Media kinds for outbound attachments. The session manager picks the kind
// from the upload's mimetype family; Voice is used for audio sends.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaVoice    MediaKind = "voice"
)

// Message kinds a driver reports for inbound content. Anything outside this
// set normalizes to "other"; the bridge never drops a message over an
// unknown kind.
const (
	KindText     = "text"
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
	KindSticker  = "sticker"
)

// Message is the raw inbound message shape a driver emits, before
// normalization.
type Message struct {
	ID         string
	ChatID     string
	SenderName string
	FromMe     bool
	Group      bool
	Timestamp  time.Time
	Kind       string
	Text       string
	Caption    string
	Mimetype   string
	Filename   string
	QuotedID   string
	QuotedText string
}

type Chat struct {
	ID            string
	Name          string
	LastMessageAt time.Time
}

// Event is a tagged variant delivered on the per-session event channel.
type Event interface {
	isEvent()
}

// QREvent carries a pairable QR payload for first-time auth.
type QREvent struct {
	Code string
}

// ConnectedEvent reports a successful handshake and the account profile.
type ConnectedEvent struct {
	Phone         string
	DisplayName   string
	ProfilePicURL string
}

// DisconnectedEvent reports a lost connection. Terminal means the remote end
// logged the device out and stored credentials are no longer valid; anything
// else is a transient drop the manager will retry.
type DisconnectedEvent struct {
	Reason   string
	Terminal bool
}

// CredentialsEvent hands the bridge updated auth state to persist. The
// driver owns the blob's structure; the bridge only stores it.
type CredentialsEvent struct {
	State *model.AuthState
}

// MessageEvent carries one inbound message.
type MessageEvent struct {
	Message Message
}

func (QREvent) isEvent()           {}
func (ConnectedEvent) isEvent()    {}
func (DisconnectedEvent) isEvent() {}
func (CredentialsEvent) isEvent()  {}
func (MessageEvent) isEvent()      {}

// Client is one live connection to the network on behalf of one session.
// Send methods block for provider acknowledgment and return the
// provider-assigned message id; callers apply their own timeouts via ctx.
type Client interface {
	// Connect issues the connection attempt and returns without waiting
	// for the handshake; progress arrives on the event channel.
	Connect(ctx context.Context) error
	// Logout tells the remote end to invalidate the device registration.
	Logout(ctx context.Context) error
	// Close tears down the connection without touching remote state.
	Close()

	SendText(ctx context.Context, chatID, text string) (string, error)
	SendMedia(ctx context.Context, chatID string, kind MediaKind, data []byte, mimetype, filename, caption string) (string, error)
	RequestPairingCode(ctx context.Context, phone string) (string, error)
	// ListChats is best-effort; drivers without a chat index return an
	// empty list and chats surface as messages arrive.
	ListChats(ctx context.Context) ([]Chat, error)
}

// Dialer creates clients. Dial hands the driver the session's stored auth
// state and the channel it must emit events on; it must not block for the
// network handshake.
type Dialer interface {
	Dial(ctx context.Context, sessionID string, state *model.AuthState, events chan<- Event) (Client, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Dialer)
)

// Register makes a network driver available under the given name. Drivers
// call this from an init function, mirroring database/sql.
func Register(name string, dialer Dialer) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if dialer == nil {
		panic("provider: Register dialer is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("provider: Register called twice for driver " + name)
	}
	drivers[name] = dialer
}

// Open returns the registered driver by name.
func Open(name string) (Dialer, error) {
	driversMu.RLock()
	dialer, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: unknown driver %q (forgotten import?)", name)
	}
	return dialer, nil
}

// Drivers lists the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
