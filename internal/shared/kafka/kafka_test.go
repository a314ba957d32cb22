package kafka

import (
	"reflect"
	"testing"
)

func TestBrokers(t *testing.T) {
	cases := map[string][]string{
		"localhost:9092": {"localhost:9092"},
		"a:9092, b:9092": {"a:9092", "b:9092"},
		"a:9092,,":       {"a:9092"},
		"":               nil,
	}
	for in, want := range cases {
		if got := Brokers(in); !reflect.DeepEqual(got, want) {
			t.Errorf("Brokers(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("a:9092,b:9092", "craps_table_events")
	defer w.Close()
	if w.Topic != "craps_table_events" || w.Addr == nil || !w.AllowAutoTopicCreation {
		t.Errorf("writer = %+v", w)
	}
}
