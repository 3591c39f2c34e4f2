package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil || hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("hub channels not initialized")
	}
}

// dialTestHub runs a hub behind an httptest server and returns a
// connected client.
func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := &Client{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 256),
		}

		hub.register <- client
		go client.writePump()
		go client.readPump()
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Give the hub a beat to register the client.
	time.Sleep(100 * time.Millisecond)
	return conn
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := dialTestHub(t, hub)

	hub.Broadcast(ProgressMessage{
		Type:      "progress",
		Operation: "scan",
		Stage:     "probe",
		Progress:  50,
		Message:   "halfway there",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	var received ProgressMessage
	if err := json.Unmarshal(data, &received); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}

	if received.Type != "progress" || received.Operation != "scan" {
		t.Errorf("unexpected message %+v", received)
	}
	if received.Progress != 50 {
		t.Errorf("expected progress 50, got %d", received.Progress)
	}
	if received.Timestamp == "" {
		t.Error("timestamp should be filled in automatically")
	}
}

func TestHubHelpers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := dialTestHub(t, hub)

	read := func() ProgressMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read message: %v", err)
		}
		var msg ProgressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		return msg
	}

	hub.Progress("scan", "hash", "hashing recordings", 25)
	if msg := read(); msg.Type != "progress" || msg.Stage != "hash" || msg.Progress != 25 {
		t.Errorf("unexpected progress message %+v", msg)
	}

	hub.Complete("scan", "scan finished", map[string]any{"scanned": 12})
	msg := read()
	if msg.Type != "complete" || msg.Progress != 100 {
		t.Errorf("unexpected complete message %+v", msg)
	}
	if msg.Data == nil {
		t.Error("expected data map on complete message")
	}

	hub.Error("scan", "scan blew up")
	if msg := read(); msg.Type != "error" || msg.Message != "scan blew up" {
		t.Errorf("unexpected error message %+v", msg)
	}
}

func TestHandleWebSocket(t *testing.T) {
	setupServerTest(t)

	server := httptest.NewServer(http.HandlerFunc(handleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("expected status 101, got %d", resp.StatusCode)
	}

	time.Sleep(100 * time.Millisecond)
	GlobalHub.mu.RLock()
	clientCount := len(GlobalHub.clients)
	GlobalHub.mu.RUnlock()

	if clientCount != 1 {
		t.Errorf("expected 1 client, got %d", clientCount)
	}
}

func TestHandleWebSocketNoHub(t *testing.T) {
	originalHub := GlobalHub
	GlobalHub = nil
	defer func() { GlobalHub = originalHub }()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()

	handleWebSocket(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
}

func TestHandleWebSocketOriginRejected(t *testing.T) {
	setupServerTest(t)

	origUpgrader := wsUpgrader
	wsUpgrader = newUpgrader([]string{"https://lab.example.com"})
	defer func() { wsUpgrader = origUpgrader }()

	server := httptest.NewServer(http.HandlerFunc(handleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.test"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to be refused for disallowed origin")
	}
}

func TestClientDisconnect(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := dialTestHub(t, hub)

	hub.mu.RLock()
	before := len(hub.clients)
	hub.mu.RUnlock()
	if before != 1 {
		t.Fatalf("expected 1 client before disconnect, got %d", before)
	}

	conn.Close()
	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	after := len(hub.clients)
	hub.mu.RUnlock()
	if after != 0 {
		t.Errorf("expected 0 clients after disconnect, got %d", after)
	}
}
