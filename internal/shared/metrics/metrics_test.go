package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthzReportsFirstFailingDependency(t *testing.T) {
	h := Handler(
		Check{Name: "postgres", Fn: func(context.Context) error { return nil }},
		Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "redis not healthy") {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}

	ok := Handler(Check{Name: "postgres", Fn: func(context.Context) error { return nil }})
	rec = httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestGameCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGame(reg)

	g.ObserveRoll("NATURAL_WIN", false)
	g.ObserveRoll("NATURAL_WIN", false)
	g.ObserveRoll("SEVEN_OUT", true)
	g.ObserveSettled(40, 10, 1)
	g.ObservePending("wait")

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			values[f.GetName()] += m.GetCounter().GetValue()
		}
	}
	want := map[string]float64{
		"craps_rolls_total":               3,
		"craps_settlement_credited_total": 40,
		"craps_settlement_lost_total":     10,
		"craps_settlement_failures_total": 1,
		"craps_roll_pending_total":        1,
	}
	for name, v := range want {
		if values[name] != v {
			t.Errorf("%s = %v, want %v", name, values[name], v)
		}
	}
}
