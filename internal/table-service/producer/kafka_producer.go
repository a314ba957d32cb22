package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

// MessageWriter é o pedaço do kafka.Writer que usamos
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica eventos da mesa e apostas aceitas.
// A chave da mensagem é a mesa (eventos) ou a série (apostas), mantendo a ordem por partição.
type KafkaPublisher struct {
	Events MessageWriter
	Bets   MessageWriter
}

func NewKafkaPublisher(events, bets MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Events: events, Bets: bets}
}

func (p *KafkaPublisher) PublishTableEvent(ctx context.Context, e events.TableEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Events.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.TableID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		},
	})
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Bets.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.TableID + ":" + strconv.FormatInt(e.SeriesID, 10)),
		Value: b,
	})
}
