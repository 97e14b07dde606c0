package session

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"wabridge/internal/bus"
	"wabridge/internal/model"
	"wabridge/internal/provider"
	"wabridge/internal/store"
)

const eventBuffer = 64

type Config struct {
	// ReconnectDelay is the fixed wait before retrying after a transient
	// disconnect. Retries continue until reconnection succeeds or the
	// session is logged out or destroyed.
	ReconnectDelay time.Duration
	// AllowGroupMessages lets group-sourced messages through ingestion.
	// Off by default: the bridge currently targets person-to-person
	// traffic only.
	AllowGroupMessages bool
	// ChatCacheLimit caps the in-memory recent messages kept per chat.
	ChatCacheLimit int
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	if c.ChatCacheLimit <= 0 {
		c.ChatCacheLimit = 100
	}
	return c
}

// Manager owns at most one live network connection per session id and drives
// the session lifecycle state machine. All map mutations go through mu; each
// live session's provider events are consumed by a single goroutine, so
// per-session handling stays ordered.
type Manager struct {
	store  *store.Store
	bus    *bus.Bus
	dialer provider.Dialer
	log    zerolog.Logger
	cfg    Config

	mu     sync.Mutex
	active map[string]*activeSession
	timers map[string]*time.Timer
	caches map[string]*chatCache
}

type activeSession struct {
	id     string
	client provider.Client
	events chan provider.Event
	cache  *chatCache

	done      chan struct{}
	closeOnce sync.Once
}

func (as *activeSession) close() {
	as.closeOnce.Do(func() { close(as.done) })
}

func NewManager(st *store.Store, b *bus.Bus, dialer provider.Dialer, log zerolog.Logger, cfg Config) *Manager {
	return &Manager{
		store:  st,
		bus:    b,
		dialer: dialer,
		log:    log.With().Str("component", "session_manager").Logger(),
		cfg:    cfg.withDefaults(),
		active: make(map[string]*activeSession),
		timers: make(map[string]*time.Timer),
		caches: make(map[string]*chatCache),
	}
}

type statusPayload struct {
	Status      model.SessionStatus `json:"status"`
	Phone       string              `json:"phone,omitempty"`
	DisplayName string              `json:"displayName,omitempty"`
	Reason      string              `json:"reason,omitempty"`
}

type qrPayload struct {
	QR    string `json:"qr"`
	Image string `json:"image,omitempty"`
}

// Create opens the underlying connection for an existing session row. It
// returns once the connection attempt has been issued; handshake progress is
// published on the session's status/QR channels.
func (m *Manager) Create(ctx context.Context, id string) error {
	m.mu.Lock()
	_, exists := m.active[id]
	m.mu.Unlock()
	if exists {
		return ErrAlreadyActive
	}

	if _, err := m.store.GetSession(id); err != nil {
		if err == store.ErrNotFound {
			return ErrNotFound
		}
		return err
	}

	state, err := m.store.LoadAuthState(id)
	if err != nil {
		return err
	}

	events := make(chan provider.Event, eventBuffer)
	client, err := m.dialer.Dial(ctx, id, state, events)
	if err != nil {
		return &ProviderError{Err: err}
	}

	as := &activeSession{
		id:     id,
		client: client,
		events: events,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if _, exists := m.active[id]; exists {
		m.mu.Unlock()
		client.Close()
		return ErrAlreadyActive
	}
	cache := m.caches[id]
	if cache == nil {
		cache = newChatCache(m.cfg.ChatCacheLimit)
		m.caches[id] = cache
	}
	as.cache = cache
	m.active[id] = as
	m.mu.Unlock()

	if err := m.store.UpdateSessionStatus(id, model.StatusConnecting); err != nil {
		m.log.Error().Err(err).Str("session_id", id).Msg("Failed to persist connecting status")
	}
	m.bus.Publish(bus.StatusChannel(id), statusPayload{Status: model.StatusConnecting})

	go m.loop(as)

	if err := client.Connect(ctx); err != nil {
		m.removeActive(as)
		if uerr := m.store.UpdateSessionStatus(id, model.StatusDisconnected); uerr != nil {
			m.log.Error().Err(uerr).Str("session_id", id).Msg("Failed to persist disconnected status")
		}
		return &ProviderError{Err: err}
	}

	m.log.Info().Str("session_id", id).Msg("Connection attempt issued")
	return nil
}

// Destroy logs out any live connection (best effort), deletes auth state
// unconditionally, and resets the durable row. Idempotent: destroying an
// already-disconnected session is a no-op success.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	as := m.active[id]
	delete(m.active, id)
	if t := m.timers[id]; t != nil {
		t.Stop()
		delete(m.timers, id)
	}
	delete(m.caches, id)
	m.mu.Unlock()

	if as != nil {
		if err := as.client.Logout(ctx); err != nil {
			m.log.Warn().Err(err).Str("session_id", id).Msg("Remote logout failed")
		}
		as.client.Close()
		as.close()
	}

	if err := m.store.DeleteAuthState(id); err != nil {
		return err
	}
	if err := m.store.ResetSession(id); err != nil {
		return err
	}

	m.bus.Publish(bus.StatusChannel(id), statusPayload{Status: model.StatusDisconnected, Reason: "destroyed"})
	m.log.Info().Str("session_id", id).Msg("Session destroyed")
	return nil
}

// RestoreAll reconnects every session whose durable status is not
// "disconnected". Called once at startup. A failure restoring one session is
// logged, the row forced back to disconnected, and restoration continues.
func (m *Manager) RestoreAll(ctx context.Context) error {
	sessions, err := m.store.ListActiveSessions()
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		if err := m.Create(ctx, sess.ID); err != nil {
			m.log.Error().Err(err).Str("session_id", sess.ID).Msg("Session restore failed")
			if uerr := m.store.UpdateSessionStatus(sess.ID, model.StatusDisconnected); uerr != nil {
				m.log.Error().Err(uerr).Str("session_id", sess.ID).Msg("Failed to reset status after restore failure")
			}
		}
	}
	m.log.Info().Int("count", len(sessions)).Msg("Session restoration complete")
	return nil
}

// Status merges the durable row with the live in-memory activity flag.
func (m *Manager) Status(id string) (model.Session, bool, error) {
	sess, err := m.store.GetSession(id)
	if err != nil {
		if err == store.ErrNotFound {
			return model.Session{}, false, ErrNotFound
		}
		return model.Session{}, false, err
	}

	m.mu.Lock()
	_, active := m.active[id]
	m.mu.Unlock()
	return sess, active, nil
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown closes all live connections without touching durable status, so
// they are restored on the next start. Pending reconnect timers are stopped.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*activeSession, 0, len(m.active))
	for id, as := range m.active {
		sessions = append(sessions, as)
		delete(m.active, id)
	}
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	for _, as := range sessions {
		as.client.Close()
		as.close()
	}
}

func (m *Manager) SendText(ctx context.Context, id, chatID, text string) (string, error) {
	client, err := m.liveClient(id)
	if err != nil {
		return "", err
	}
	msgID, err := client.SendText(ctx, chatID, text)
	if err != nil {
		return "", &ProviderError{Err: err}
	}
	return msgID, nil
}

// SendMedia dispatches on the mimetype family: images and videos keep their
// kind, everything else goes out as a generic document.
func (m *Manager) SendMedia(ctx context.Context, id, chatID string, data []byte, mimetype, filename, caption string) (string, error) {
	client, err := m.liveClient(id)
	if err != nil {
		return "", err
	}

	kind := provider.MediaDocument
	switch {
	case strings.HasPrefix(mimetype, "image/"):
		kind = provider.MediaImage
	case strings.HasPrefix(mimetype, "video/"):
		kind = provider.MediaVideo
	}

	msgID, err := client.SendMedia(ctx, chatID, kind, data, mimetype, filename, caption)
	if err != nil {
		return "", &ProviderError{Err: err}
	}
	return msgID, nil
}

// SendAudio always sends a voice-note-style attachment.
func (m *Manager) SendAudio(ctx context.Context, id, chatID string, data []byte) (string, error) {
	client, err := m.liveClient(id)
	if err != nil {
		return "", err
	}
	msgID, err := client.SendMedia(ctx, chatID, provider.MediaVoice, data, "audio/ogg; codecs=opus", "", "")
	if err != nil {
		return "", &ProviderError{Err: err}
	}
	return msgID, nil
}

// PairingCode requests a phone-number pairing code, the QR alternative.
func (m *Manager) PairingCode(ctx context.Context, id, phone string) (string, error) {
	client, err := m.liveClient(id)
	if err != nil {
		return "", err
	}
	code, err := client.RequestPairingCode(ctx, phone)
	if err != nil {
		return "", &ProviderError{Err: err}
	}
	return code, nil
}

// Chats merges the provider's chat index (when it has one) with chats
// discovered from inbound messages. An empty list is a valid answer for a
// fresh session; see Messages.
func (m *Manager) Chats(ctx context.Context, id string) ([]model.Chat, error) {
	m.mu.Lock()
	as := m.active[id]
	cache := m.caches[id]
	m.mu.Unlock()

	var chats []model.Chat
	seen := make(map[string]bool)
	if as != nil {
		providerChats, err := as.client.ListChats(ctx)
		if err != nil {
			m.log.Debug().Err(err).Str("session_id", id).Msg("Provider chat listing unavailable")
		}
		for _, ch := range providerChats {
			chats = append(chats, model.Chat{ID: ch.ID, Name: ch.Name, LastMessageAt: ch.LastMessageAt.Unix()})
			seen[ch.ID] = true
		}
	}
	if cache != nil {
		for _, ch := range cache.Chats() {
			if !seen[ch.ID] {
				chats = append(chats, ch)
			}
		}
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	return chats, nil
}

// Messages returns the recent in-memory messages for a chat, oldest first.
func (m *Manager) Messages(id, chatID string, limit int) []model.NormalizedMessage {
	m.mu.Lock()
	cache := m.caches[id]
	m.mu.Unlock()
	if cache == nil {
		return []model.NormalizedMessage{}
	}
	msgs := cache.Messages(chatID, limit)
	if msgs == nil {
		msgs = []model.NormalizedMessage{}
	}
	return msgs
}

func (m *Manager) liveClient(id string) (provider.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	as := m.active[id]
	if as == nil {
		return nil, ErrSessionNotActive
	}
	return as.client, nil
}

func (m *Manager) removeActive(as *activeSession) {
	m.mu.Lock()
	if m.active[as.id] == as {
		delete(m.active, as.id)
	}
	m.mu.Unlock()
	as.close()
}

// loop consumes one session's provider events until the session stops. A
// handler failure never escapes: worst case it is logged and treated as a
// disconnect.
func (m *Manager) loop(as *activeSession) {
	log := m.log.With().Str("session_id", as.id).Logger()
	for {
		select {
		case <-as.done:
			return
		case ev, ok := <-as.events:
			if !ok {
				return
			}
			if stop := m.handleEvent(as, log, ev); stop {
				return
			}
		}
	}
}

func (m *Manager) handleEvent(as *activeSession, log zerolog.Logger, ev provider.Event) bool {
	switch ev := ev.(type) {
	case provider.QREvent:
		m.handleQR(as, log, ev)
	case provider.ConnectedEvent:
		m.handleConnected(as, log, ev)
	case provider.CredentialsEvent:
		if err := m.store.SaveAuthState(as.id, ev.State); err != nil {
			// Fire and forget: in-memory state stays authoritative
			// until the next successful save.
			log.Error().Err(err).Msg("Failed to persist auth state")
		}
	case provider.MessageEvent:
		m.handleMessage(as, log, ev.Message)
	case provider.DisconnectedEvent:
		if ev.Terminal {
			m.handleLogout(as, log, ev.Reason)
		} else {
			m.handleTransientDisconnect(as, log, ev.Reason)
		}
		return true
	}
	return false
}

func (m *Manager) handleQR(as *activeSession, log zerolog.Logger, ev provider.QREvent) {
	if err := m.store.UpdateSessionStatus(as.id, model.StatusQRReady); err != nil {
		log.Error().Err(err).Msg("Failed to persist qr_ready status")
	}

	payload := qrPayload{QR: ev.Code}
	if png, err := qrcode.Encode(ev.Code, qrcode.Medium, 256); err != nil {
		log.Warn().Err(err).Msg("QR image rendering failed")
	} else {
		payload.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	}

	m.bus.Publish(bus.QRChannel(as.id), payload)
	m.bus.Publish(bus.StatusChannel(as.id), statusPayload{Status: model.StatusQRReady})
	log.Info().Msg("QR code published")
}

func (m *Manager) handleConnected(as *activeSession, log zerolog.Logger, ev provider.ConnectedEvent) {
	if err := m.store.SetSessionConnected(as.id, ev.Phone, ev.DisplayName, ev.ProfilePicURL); err != nil {
		log.Error().Err(err).Msg("Failed to persist connected status")
	}
	m.bus.Publish(bus.StatusChannel(as.id), statusPayload{
		Status:      model.StatusConnected,
		Phone:       ev.Phone,
		DisplayName: ev.DisplayName,
	})
	log.Info().Str("phone", ev.Phone).Msg("Session connected")
}

func (m *Manager) handleMessage(as *activeSession, log zerolog.Logger, raw provider.Message) {
	if raw.FromMe {
		return
	}
	if raw.Group && !m.cfg.AllowGroupMessages {
		return
	}

	msg := Normalize(raw)
	as.cache.Add(msg)
	if err := m.store.TouchSession(as.id, time.Now().UnixMilli()); err != nil {
		log.Error().Err(err).Msg("Failed to update last seen")
	}
	m.bus.Publish(bus.MessageChannel(as.id), msg)
}

// handleLogout is the terminal path: the remote end invalidated the device,
// so stored credentials are purged and the row reset. The session does not
// reconnect; a new create starts a fresh QR/pairing auth.
func (m *Manager) handleLogout(as *activeSession, log zerolog.Logger, reason string) {
	m.removeActive(as)
	as.client.Close()

	if err := m.store.DeleteAuthState(as.id); err != nil {
		log.Error().Err(err).Msg("Failed to delete auth state on logout")
	}
	if err := m.store.ResetSession(as.id); err != nil {
		log.Error().Err(err).Msg("Failed to reset session on logout")
	}
	m.bus.Publish(bus.StatusChannel(as.id), statusPayload{Status: model.StatusDisconnected, Reason: reason})
	log.Info().Str("reason", reason).Msg("Session logged out")
}

func (m *Manager) handleTransientDisconnect(as *activeSession, log zerolog.Logger, reason string) {
	m.removeActive(as)
	as.client.Close()

	if err := m.store.MarkSessionReconnecting(as.id); err != nil {
		log.Error().Err(err).Msg("Failed to persist connecting status")
	}
	m.bus.Publish(bus.StatusChannel(as.id), statusPayload{Status: model.StatusConnecting, Reason: reason})
	log.Warn().Str("reason", reason).Dur("delay", m.cfg.ReconnectDelay).Msg("Disconnected, reconnect scheduled")

	m.scheduleReconnect(as.id)
}

func (m *Manager) scheduleReconnect(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, pending := m.timers[id]; pending {
		return
	}
	m.timers[id] = time.AfterFunc(m.cfg.ReconnectDelay, func() { m.retryConnect(id) })
}

// retryConnect runs when a reconnect timer fires. A session destroyed while
// the timer was pending has a disconnected row, which makes this a no-op
// rather than a resurrection.
func (m *Manager) retryConnect(id string) {
	m.mu.Lock()
	delete(m.timers, id)
	m.mu.Unlock()

	sess, err := m.store.GetSession(id)
	if err != nil {
		m.log.Error().Err(err).Str("session_id", id).Msg("Reconnect aborted, session row unavailable")
		return
	}
	if sess.Status == model.StatusDisconnected {
		return
	}

	err = m.Create(context.Background(), id)
	switch err {
	case nil, ErrAlreadyActive:
		return
	default:
		m.log.Warn().Err(err).Str("session_id", id).Msg("Reconnect attempt failed, retrying")
		m.scheduleReconnect(id)
	}
}
