package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

type memWriter struct{ msgs []kafka.Message }

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishTableEventKeyedByTable(t *testing.T) {
	ev, bets := &memWriter{}, &memWriter{}
	p := NewKafkaPublisher(ev, bets)

	err := p.PublishTableEvent(context.Background(), events.TableEvent{Kind: events.KindRoll, TableID: "table-1", SeriesID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.msgs) != 1 || len(bets.msgs) != 0 {
		t.Fatalf("writes = %d/%d", len(ev.msgs), len(bets.msgs))
	}
	m := ev.msgs[0]
	if string(m.Key) != "table-1" || len(m.Headers) != 1 || string(m.Headers[0].Value) != "roll" {
		t.Errorf("message = %+v", m)
	}
	var back events.TableEvent
	if err := json.Unmarshal(m.Value, &back); err != nil || back.SeriesID != 3 {
		t.Errorf("payload = %s (%v)", m.Value, err)
	}
}

func TestPublishBetPlacedStampsTime(t *testing.T) {
	bets := &memWriter{}
	p := NewKafkaPublisher(&memWriter{}, bets)

	if err := p.PublishBetPlaced(context.Background(), events.BetPlaced{BetID: "b1", TableID: "table-1", SeriesID: 7}); err != nil {
		t.Fatal(err)
	}
	var back events.BetPlaced
	_ = json.Unmarshal(bets.msgs[0].Value, &back)
	if back.TsUnixMs == 0 || string(bets.msgs[0].Key) != "table-1:7" {
		t.Errorf("bet placed = %+v key=%s", back, bets.msgs[0].Key)
	}
}
