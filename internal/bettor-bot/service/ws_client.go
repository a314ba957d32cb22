package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

// envelope igual ao TableUpdate do hub
type envelope struct {
	TableID string            `json:"tableId"`
	Payload events.TableEvent `json:"payload"`
}

// WSClient acompanha o stream de uma mesa e entrega cada evento ao handler.
// Em caso de desconexão, reconecta com backoff.
type WSClient struct {
	URL     string
	TableID string
	Log     *zap.Logger
	Backoff time.Duration
	Handle  func(ctx context.Context, ev events.TableEvent)
}

// Start bloqueia até o contexto ser cancelado
func (c *WSClient) Start(ctx context.Context) {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	for {
		if ctx.Err() != nil {
			c.Log.Info("context canceled, stopping WS client")
			return
		}
		if err := c.connectAndListen(ctx); err != nil {
			c.Log.Warn("connection closed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
	}
}

func (c *WSClient) dialURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("table", c.TableID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to table WS", zap.String("url", target))

	// fecha a conexão quando o contexto acaba para destravar o ReadMessage
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Payload.Kind == "" {
			c.Log.Debug("ignoring ws message", zap.ByteString("raw", message))
			continue
		}
		if c.Handle != nil {
			c.Handle(ctx, env.Payload)
		}
	}
}
