package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, payload []byte) error {
	return b.r.Publish(ctx, b.channel, payload).Err()
}

// WSUpdate é o envelope lido pelo hub WS do table-service
type WSUpdate struct {
	TableID string            `json:"tableId"`
	Payload events.TableEvent `json:"payload"`
}

// Encode monta o envelope de broadcast para um evento da mesa
func Encode(e events.TableEvent) ([]byte, error) {
	return json.Marshal(WSUpdate{TableID: e.TableID, Payload: e})
}
