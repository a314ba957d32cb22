package pubsub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

func TestEncodeMatchesHubEnvelope(t *testing.T) {
	b, err := Encode(events.TableEvent{
		Kind:     events.KindSeriesEnded,
		TableID:  "table-7",
		SeriesID: 3,
		Phase:    "IDLE",
		Outcome:  "SEVEN_OUT",
		Ts:       time.Unix(0, 0).UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// o hub decodifica o payload como json.RawMessage
	var env struct {
		TableID string          `json:"tableId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatal(err)
	}
	if env.TableID != "table-7" {
		t.Errorf("tableId = %q", env.TableID)
	}
	var ev events.TableEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != events.KindSeriesEnded || ev.Outcome != "SEVEN_OUT" || ev.SeriesID != 3 {
		t.Errorf("payload = %+v", ev)
	}
}
