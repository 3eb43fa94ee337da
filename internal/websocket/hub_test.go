package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xelth-com/parcprepgo/internal/store"
)

func dialHub(t *testing.T, hub *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_NotifyReachesViews(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	conn := dialHub(t, hub, "?client=list-view")
	waitForClients(t, hub, 1)

	hub.Notify(store.ChangeEvent{Kind: store.ChangeLogInserted, ParcPrepID: "F1", LogID: "L1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev store.ChangeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != store.ChangeLogInserted || ev.ParcPrepID != "F1" || ev.LogID != "L1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestHub_PingPong(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	conn := dialHub(t, hub, "")
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(BaseMessage{Type: "PING", MsgID: "m1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply map[string]string
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply["type"] != "PONG" || reply["msgId"] != "m1" {
		t.Errorf("reply = %v", reply)
	}
}

func TestHub_ReconnectReplacesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	dialHub(t, hub, "?client=same")
	waitForClients(t, hub, 1)
	dialHub(t, hub, "?client=same")

	time.Sleep(50 * time.Millisecond)
	if n := hub.ClientCount(); n != 1 {
		t.Errorf("clients = %d, want 1", n)
	}
}
