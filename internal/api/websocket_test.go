package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/config"
	"github.com/skybridge-obs/skybridge-core/internal/protocol"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
	}
}

// newTestClient builds a hub client without a network connection, for
// exercising broadcast plumbing directly.
func newTestClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

func receiveMessage(t *testing.T, client *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal hub message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hub message")
		return WSMessage{}
	}
}

// ─── Hub Unit Tests ────────────────────────────────────────────────

func TestHubBroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, ChannelConnected)
	hub.Register(client)
	defer hub.Unregister(client)

	hub.Broadcast(ChannelConnected, map[string]any{"slot": 3})

	msg := receiveMessage(t, client)
	if msg.Type != WSTypeEvent {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeEvent)
	}
	if msg.EventType != ChannelConnected {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelConnected)
	}
	if !strings.HasPrefix(msg.EventID, "evt-") {
		t.Errorf("event_id = %q, want evt- prefix", msg.EventID)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp should be set")
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want map", msg.Payload)
	}
	if int(payload["slot"].(float64)) != 3 {
		t.Errorf("payload slot = %v, want 3", payload["slot"])
	}
}

func TestHubNoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, ChannelPosition)
	hub.Register(client)
	defer hub.Unregister(client)

	hub.Broadcast(ChannelConnected, map[string]any{"slot": 1})

	select {
	case data := <-client.send:
		t.Errorf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	a := newTestClient(hub, ChannelConnected)
	b := newTestClient(hub, ChannelConnected)
	hub.Register(a)
	hub.Register(b)

	if got := hub.ClientCount(); got != 2 {
		t.Errorf("ClientCount() = %d, want 2", got)
	}

	hub.Unregister(a)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() after unregister = %d, want 1", got)
	}
	hub.Unregister(b)
}

func TestHubDropsOnFullBuffer(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelConnected: {}},
	}
	hub.Register(client)
	defer hub.Unregister(client)

	hub.Broadcast(ChannelConnected, map[string]any{"n": 1})
	hub.Broadcast(ChannelConnected, map[string]any{"n": 2})

	// First message fills the buffer, second is dropped without
	// blocking the broadcaster.
	<-client.send
	select {
	case data := <-client.send:
		t.Errorf("second message should have been dropped, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNotifyEvent(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, ChannelDisconnected)
	hub.Register(client)
	defer hub.Unregister(client)

	at := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)
	hub.Notify(telescope.Event{Type: telescope.EventDisconnected, Slot: 4, Name: "West", At: at})

	msg := receiveMessage(t, client)
	if msg.EventType != ChannelDisconnected {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelDisconnected)
	}
	payload := msg.Payload.(map[string]any)
	if payload["name"] != "West" {
		t.Errorf("name = %v, want West", payload["name"])
	}
	if payload["at"] != "2026-03-14T21:30:00Z" {
		t.Errorf("at = %v, want 2026-03-14T21:30:00Z", payload["at"])
	}
}

func TestHubSamplePosition(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := newTestClient(hub, ChannelPosition)
	hub.Register(client)
	defer hub.Unregister(client)

	sample := telescope.PositionSample{
		Direction:  protocol.Vec3{X: 0, Y: 1, Z: 0}, // 6h, 0 deg
		Status:     2,
		ObservedAt: time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC),
	}
	hub.Sample(7, "East", sample)

	msg := receiveMessage(t, client)
	payload := msg.Payload.(map[string]any)

	if int(payload["slot"].(float64)) != 7 {
		t.Errorf("slot = %v, want 7", payload["slot"])
	}
	ra := payload["ra_hours"].(float64)
	if ra < 5.999999 || ra > 6.000001 {
		t.Errorf("ra_hours = %v, want 6", ra)
	}
	if int(payload["device_status"].(float64)) != 2 {
		t.Errorf("device_status = %v, want 2", payload["device_status"])
	}
	if payload["observed_at"] != "2026-03-14T21:30:00Z" {
		t.Errorf("observed_at = %v", payload["observed_at"])
	}
}

// ─── WebSocket Integration Tests ───────────────────────────────────

func dialWS(t *testing.T, baseURL, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

func TestWebSocketFlow(t *testing.T) {
	srv, core, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWS(t, ts.URL, "")

	// Subscribe to connection events only
	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "req-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelConnected}},
	}
	if err := ws.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	resp := readWS(t, ws)
	if resp.Type != WSTypeResponse {
		t.Fatalf("subscribe response type = %q, want %q", resp.Type, WSTypeResponse)
	}
	if resp.ID != "req-1" {
		t.Errorf("response id = %q, want req-1", resp.ID)
	}

	// Drive the registry: a started virtual mount connects on the
	// next communication tick.
	if err := core.Add(2, telescope.Description{Name: "Sim", Kind: "virtual"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := core.Start(2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	core.Communicate(time.Now())

	event := readWS(t, ws)
	if event.Type != WSTypeEvent {
		t.Fatalf("event type = %q, want %q", event.Type, WSTypeEvent)
	}
	if event.EventType != ChannelConnected {
		t.Errorf("event_type = %q, want %q", event.EventType, ChannelConnected)
	}
	payload := event.Payload.(map[string]any)
	if int(payload["slot"].(float64)) != 2 {
		t.Errorf("slot = %v, want 2", payload["slot"])
	}
	if payload["name"] != "Sim" {
		t.Errorf("name = %v, want Sim", payload["name"])
	}

	// Ping keeps the app-level protocol alive
	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "req-2"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	pong := readWS(t, ws)
	if pong.Type != WSTypePong {
		t.Errorf("ping response = %q, want %q", pong.Type, WSTypePong)
	}

	// Unsubscribe is acknowledged
	unsub := WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "req-3",
		Payload: WSSubscribePayload{Channels: []string{ChannelConnected}},
	}
	if err := ws.WriteJSON(unsub); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypeResponse {
		t.Errorf("unsubscribe response type = %q, want %q", resp.Type, WSTypeResponse)
	}
}

func TestWebSocketInvalidMessage(t *testing.T) {
	srv, _, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWS(t, ts.URL, "")

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write raw message: %v", err)
	}

	msg := readWS(t, ws)
	if msg.Type != WSTypeError {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeError)
	}
}

func TestWebSocketUnknownType(t *testing.T) {
	srv, _, _ := testServer(t, "")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws := dialWS(t, ts.URL, "")

	if err := ws.WriteJSON(WSMessage{Type: "teleport", ID: "req-1"}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	msg := readWS(t, ws)
	if msg.Type != WSTypeError {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeError)
	}
	if msg.ID != "req-1" {
		t.Errorf("id = %q, want req-1", msg.ID)
	}
}

func TestWebSocketTicketAuth(t *testing.T) {
	srv, _, _ := testServer(t, "secret-token")
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	// Without a ticket the upgrade is refused
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial without ticket should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %v, want 401", resp)
	}

	// Fetch a ticket over the authenticated REST surface
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/ws-ticket", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ticket request: %v", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("ticket status = %d, want 200", httpResp.StatusCode)
	}
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&ticketResp); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}

	ws := dialWS(t, ts.URL, "?ticket="+ticketResp.Ticket)
	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypePong {
		t.Errorf("type = %q, want %q", msg.Type, WSTypePong)
	}

	// Tickets are single use
	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?ticket="+ticketResp.Ticket, nil)
	if err == nil {
		t.Fatal("reused ticket should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reuse handshake response = %v, want 401", resp)
	}
}
