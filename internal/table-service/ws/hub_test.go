package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	var connected atomic.Int32
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	hub.OnConnect = func() { connected.Add(1) }
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	viaQuery := dial(t, srv, "?table=table-1")
	defer viaQuery.Close()
	viaMsg := dial(t, srv, "")
	defer viaMsg.Close()
	other := dial(t, srv, "?table=table-2")
	defer other.Close()

	if err := viaMsg.WriteJSON(ClientMsg{Type: "subscribe", TableID: "table-1"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return hub.Subscribers("table-1") == 2 })

	hub.Broadcast(TableUpdate{TableID: "table-1", Payload: json.RawMessage(`{"kind":"roll"}`)})

	for _, c := range []*websocket.Conn{viaQuery, viaMsg} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got TableUpdate
		if err := c.ReadJSON(&got); err != nil {
			t.Fatal(err)
		}
		if got.TableID != "table-1" || string(got.Payload) != `{"kind":"roll"}` {
			t.Errorf("got %+v", got)
		}
	}

	_ = other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("table-2 subscriber should not receive table-1 updates")
	}
	if connected.Load() != 3 {
		t.Errorf("connected = %d", connected.Load())
	}
}

func TestHubPingAndUnsubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv, "?table=table-1")
	defer c.Close()
	waitFor(t, func() bool { return hub.Subscribers("table-1") == 1 })

	_ = c.WriteJSON(ClientMsg{Type: "ping"})
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]string
	if err := c.ReadJSON(&pong); err != nil || pong["type"] != "pong" {
		t.Fatalf("pong = %v err = %v", pong, err)
	}

	_ = c.WriteJSON(ClientMsg{Type: "unsubscribe", TableID: "table-1"})
	waitFor(t, func() bool { return hub.Subscribers("table-1") == 0 })
}
