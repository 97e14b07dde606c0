package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wabridge/internal/bus"
)

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readGatewayEvent(t *testing.T, ws *websocket.Conn) bus.Event {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev bus.Event
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestGateway_RejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?apiKey=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}

	url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatalf("expected handshake failure without credentials")
	}
}

func TestGateway_FiltersBySubscription(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ws := dialWS(t, srv, "apiKey="+testAPIKey)
	if err := ws.WriteJSON(map[string]string{"type": "subscribe", "sessionId": "s1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// Give the read loop a moment to register the interest.
	time.Sleep(50 * time.Millisecond)

	env.bus.Publish(bus.QRChannel("s2"), map[string]string{"qr": "not-mine"})
	env.bus.Publish(bus.QRChannel("s1"), map[string]string{"qr": "mine"})

	ev := readGatewayEvent(t, ws)
	if ev.Channel != "wa:qr:s1" {
		t.Fatalf("received event for unsubscribed session: %s", ev.Channel)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload["qr"] != "mine" {
		t.Fatalf("unexpected payload: %s %v", ev.Data, err)
	}
}

func TestGateway_UnsubscribeStopsDelivery(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ws := dialWS(t, srv, "apiKey="+testAPIKey)
	ws.WriteJSON(map[string]string{"type": "subscribe", "sessionId": "s1"})
	time.Sleep(50 * time.Millisecond)

	env.bus.Publish(bus.StatusChannel("s1"), map[string]string{"status": "connecting"})
	if ev := readGatewayEvent(t, ws); ev.Channel != "wa:status:s1" {
		t.Fatalf("unexpected channel %s", ev.Channel)
	}

	ws.WriteJSON(map[string]string{"type": "unsubscribe", "sessionId": "s1"})
	time.Sleep(50 * time.Millisecond)

	env.bus.Publish(bus.StatusChannel("s1"), map[string]string{"status": "connected"})
	ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var ev bus.Event
	if err := ws.ReadJSON(&ev); err == nil {
		t.Fatalf("expected no delivery after unsubscribe, got %+v", ev)
	}
}

func TestGateway_TokenAuthAndCleanup(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	w := env.do(t, http.MethodPost, "/realtime/token", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("mint token: %d", w.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	ws := dialWS(t, srv, "token="+resp.Token)
	ws.WriteJSON(map[string]string{"type": "subscribe", "sessionId": "s1"})
	time.Sleep(50 * time.Millisecond)

	env.bus.Publish(bus.MessageChannel("s1"), map[string]string{"content": "hi"})
	if ev := readGatewayEvent(t, ws); ev.Channel != "wa:msg:s1" {
		t.Fatalf("unexpected channel %s", ev.Channel)
	}

	// Closing the client must release the connection's bus listener.
	ws.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.bus.Publish(bus.MessageChannel("s1"), map[string]string{"content": "gone"}) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("gateway leaked its bus subscription after disconnect")
}
