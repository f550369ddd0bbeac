package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nlzhang/study-buddy/backend/internal/model/chat"
	"github.com/nlzhang/study-buddy/backend/internal/service/session"
)

func setupHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	r := chi.NewRouter()
	hub.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSessionListenerBroadcastsToClient(t *testing.T) {
	hub, url := setupHub(t)
	conn := dial(t, url)

	sess := chat.NewSession("user-1")
	hub.SessionListener()(session.Event{
		Type:      session.EventUpdated,
		UserID:    "user-1",
		SessionID: sess.ID,
		Session:   &sess,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var payload map[string]interface{}
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}
	if payload["type"] != session.EventUpdated {
		t.Fatalf("unexpected event type: %v", payload["type"])
	}
	if payload["sessionId"] != sess.ID {
		t.Fatalf("unexpected session id: %v", payload["sessionId"])
	}
	if payload["session"] == nil {
		t.Fatal("update events must carry the session body")
	}
}

func TestDeleteEventOmitsSessionBody(t *testing.T) {
	hub, url := setupHub(t)
	conn := dial(t, url)

	hub.SessionListener()(session.Event{
		Type:      session.EventDeleted,
		UserID:    "user-1",
		SessionID: "gone",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var payload map[string]interface{}
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}
	if _, ok := payload["session"]; ok {
		t.Fatal("delete events must not carry a session body")
	}
}

func TestBroadcastDropsDisconnectedClient(t *testing.T) {
	hub, url := setupHub(t)
	conn := dial(t, url)

	if got := hub.clientCount(); got != 1 {
		t.Fatalf("expected 1 client, got %d", got)
	}
	conn.Close()

	// Either the read loop or a failing broadcast write unregisters the
	// client; keep broadcasting until the hub notices.
	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("disconnected client was never dropped")
		}
		hub.Broadcast(map[string]string{"type": session.EventUpdated})
		time.Sleep(10 * time.Millisecond)
	}
}
