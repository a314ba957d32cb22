package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client serializa as escritas; o gorilla não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *client) write(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por mesa
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	// tableID -> conexões
	subs map[string]map[*client]struct{}

	OnConnect    func()
	OnDisconnect func()
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// ?table=<id> já inscreve na conexão; subscribe/unsubscribe trocam depois.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer conn.Close()
	if h.OnConnect != nil {
		h.OnConnect()
	}

	if t := r.URL.Query().Get("table"); t != "" {
		h.subscribe(t, c)
	}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.subscribe(msg.TableID, c)
		case "unsubscribe":
			h.unsubscribe(msg.TableID, c)
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}

	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

func (h *Hub) subscribe(tableID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[tableID]; !ok {
		h.subs[tableID] = make(map[*client]struct{})
	}
	h.subs[tableID][c] = struct{}{}
}

func (h *Hub) unsubscribe(tableID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[tableID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, tableID)
		}
	}
}

// Subscribers informa quantas conexões acompanham a mesa
func (h *Hub) Subscribers(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tableID])
}

// Broadcast envia a atualização para todos os clientes inscritos na mesa
func (h *Hub) Broadcast(update TableUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.TableID]))
	for c := range h.subs[update.TableID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
			_ = c.conn.Close()
		}
	}
}
