package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	TableID string `json:"tableId"` // requerido em subscribe/unsubscribe
}

// TableUpdate é o envelope repassado aos clientes (payload = events.TableEvent)
type TableUpdate struct {
	TableID string          `json:"tableId"`
	Payload json.RawMessage `json:"payload"`
}
