package oraclesim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/game/oracle"
)

func TestSimulatorFulfilsAfterDelay(t *testing.T) {
	var clock atomic.Int64
	clock.Store(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	sim := New("server-seed", 2*time.Second, 0, zap.NewNop()).WithClock(func() time.Time { return time.Unix(0, clock.Load()) })
	var fulfils, pendings atomic.Int32
	sim.OnFulfil = func() { fulfils.Add(1) }
	sim.OnPending = func() { pendings.Add(1) }

	srv := httptest.NewServer(sim.Router())
	defer srv.Close()

	// o cliente HTTP da mesa fala o mesmo contrato
	c := oracle.NewHTTPClient(srv.URL)
	ctx := context.Background()

	id, err := c.SubmitRollRequest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.ReadRollResult(ctx, id); ok || err != nil {
		t.Fatalf("read before delay: ok=%v err=%v", ok, err)
	}

	clock.Add(int64(2 * time.Second))
	d, ok, err := c.ReadRollResult(ctx, id)
	if err != nil || !ok {
		t.Fatalf("read after delay: ok=%v err=%v", ok, err)
	}
	if want := oracle.FairDice("server-seed", string(id)); d != want {
		t.Errorf("dice = %v, want %v", d, want)
	}
	// leituras repetidas não mudam o resultado nem recontam
	again, _, _ := c.ReadRollResult(ctx, id)
	if again != d || fulfils.Load() != 1 || pendings.Load() != 1 {
		t.Errorf("again=%v fulfils=%d pendings=%d", again, fulfils.Load(), pendings.Load())
	}
}

func TestSimulatorNeverFulfils(t *testing.T) {
	sim := New("seed", 0, 1, zap.NewNop())
	srv := httptest.NewServer(sim.Router())
	defer srv.Close()

	c := oracle.NewHTTPClient(srv.URL)
	src := oracle.NewSource(c, nil)
	h, err := src.RequestRoll(context.Background(), "table-1:1")
	if err != nil {
		t.Fatal(err)
	}
	out, err := src.PollResult(context.Background(), h, 3, time.Millisecond)
	if err != nil || out.Status != oracle.Pending || out.Attempts != 3 {
		t.Errorf("outcome = %+v err = %v", out, err)
	}
}

func TestSimulatorUnknownRequest(t *testing.T) {
	sim := New("seed", 0, 0, zap.NewNop())
	rec := httptest.NewRecorder()
	sim.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oracle/rolls/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d", rec.Code)
	}
	if len(sim.SeedHash()) != 64 {
		t.Errorf("seed hash = %q", sim.SeedHash())
	}
}
