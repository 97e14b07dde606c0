package model

import (
	"crypto/rand"
	"encoding/binary"
)

type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusQRReady      SessionStatus = "qr_ready"
	StatusConnected    SessionStatus = "connected"
)

// Session is one tenant's connection slot to the messaging network. Status
// and profile fields are mutated exclusively by the session manager; a normal
// disconnect only resets status, it never deletes the row.
type Session struct {
	ID            string
	OwnerID       string
	Slot          int
	Status        SessionStatus
	Phone         string
	DisplayName   string
	ProfilePicURL string
	LastSeen      int64
	CreatedAt     int64
	UpdatedAt     int64
}

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
	MessageSticker  MessageType = "sticker"
	MessageOther    MessageType = "other"
)

type QuotedMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// NormalizedMessage is the uniform projection of any inbound network message.
// Timestamp is unix seconds.
type NormalizedMessage struct {
	ID         string         `json:"id"`
	ChatID     string         `json:"chatId"`
	Content    string         `json:"content"`
	Timestamp  int64          `json:"timestamp"`
	FromMe     bool           `json:"fromMe"`
	SenderName string         `json:"senderName,omitempty"`
	Type       MessageType    `json:"type"`
	Mimetype   string         `json:"mimetype,omitempty"`
	Filename   string         `json:"filename,omitempty"`
	Caption    string         `json:"caption,omitempty"`
	Quoted     *QuotedMessage `json:"quotedMessage,omitempty"`
}

type Chat struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	LastMessageAt int64  `json:"lastMessageAt,omitempty"`
}

// Credentials is the long-lived identity material the network client needs to
// resume a session without re-pairing. Opaque to everything except the
// provider: the bridge only stores and returns it.
type Credentials struct {
	NoiseKey       []byte
	IdentityKey    []byte
	SignedPreKey   []byte
	RegistrationID uint32
	AdvSecret      []byte
	Me             string
	Platform       string
}

// AuthState bundles Credentials with the ephemeral protocol key material,
// keyed category -> key id -> bytes. Entries come and go as the provider
// negotiates; the store persists the whole map on every save.
type AuthState struct {
	Credentials Credentials
	Keys        map[string]map[string][]byte
}

// NewAuthState returns fresh first-time-auth state: new random identity
// material and an empty key map. The provider fills in Me/Platform once the
// user pairs the session.
func NewAuthState() *AuthState {
	return &AuthState{
		Credentials: Credentials{
			NoiseKey:       randomKey(),
			IdentityKey:    randomKey(),
			SignedPreKey:   randomKey(),
			RegistrationID: randomRegistrationID(),
			AdvSecret:      randomKey(),
		},
		Keys: make(map[string]map[string][]byte),
	}
}

func randomKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("model: crypto/rand failed: " + err.Error())
	}
	return key
}

func randomRegistrationID() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("model: crypto/rand failed: " + err.Error())
	}
	// Registration ids are 14-bit in the underlying protocol.
	return binary.BigEndian.Uint32(buf[:])%16380 + 1
}
