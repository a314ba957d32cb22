package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	oracledto "github.com/radieske/craps-oracle-table/internal/game/oracle/dto"
)

// flakyOracle falha as primeiras leituras e depois cumpre
type flakyOracle struct {
	submitErr error
	failReads int
	pending   int
	reads     atomic.Int32
}

func (f *flakyOracle) SubmitRollRequest(context.Context) (RequestID, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "req-1", nil
}

func (f *flakyOracle) ReadRollResult(context.Context, RequestID) (Dice, bool, error) {
	n := int(f.reads.Add(1))
	if n <= f.failReads {
		return Dice{}, false, errors.New("rpc timeout")
	}
	if n <= f.failReads+f.pending {
		return Dice{}, false, nil
	}
	return Dice{Die1: 3, Die2: 4}, true, nil
}

func TestRequestRollUnavailable(t *testing.T) {
	s := NewSource(&flakyOracle{submitErr: errors.New("tx rejected")}, nil)
	_, err := s.RequestRoll(context.Background(), "series-1")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("err = %v, want ErrOracleUnavailable", err)
	}
	if s.InFlight() != 0 {
		t.Errorf("failed request must free the slot")
	}
}

func TestRequestRollSlot(t *testing.T) {
	s := NewSource(&flakyOracle{}, nil)
	ctx := context.Background()

	h, err := s.RequestRoll(ctx, "series-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RequestRoll(ctx, "series-1"); !errors.Is(err, ErrSlotBusy) {
		t.Fatalf("second request err = %v, want ErrSlotBusy", err)
	}
	s.Release(h)
	if _, err := s.RequestRoll(ctx, "series-1"); err != nil {
		t.Fatalf("after release: %v", err)
	}
}

func TestPollSwallowsReadErrors(t *testing.T) {
	o := &flakyOracle{failReads: 2, pending: 1}
	s := NewSource(o, nil)

	out, err := s.PollResult(context.Background(), Handle{ID: "req-1"}, 5, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != Fulfilled || out.Dice != (Dice{Die1: 3, Die2: 4}) || out.Attempts != 4 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestPollExhaustsToPending(t *testing.T) {
	o := &flakyOracle{failReads: 1, pending: 100}
	s := NewSource(o, nil)

	out, err := s.PollResult(context.Background(), Handle{ID: "req-1"}, 3, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != Pending || out.Attempts != 3 {
		t.Errorf("outcome = %+v, want pending after 3 attempts", out)
	}
	if got := o.reads.Load(); got != 3 {
		t.Errorf("reads = %d, want exactly maxAttempts", got)
	}
}

func TestPollHonoursCancel(t *testing.T) {
	s := NewSource(&flakyOracle{pending: 100}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.PollResult(ctx, Handle{ID: "req-1"}, 10, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFairDiceDeterministic(t *testing.T) {
	a := FairDice("seed", "req-42")
	b := FairDice("seed", "req-42")
	if a != b {
		t.Fatalf("same inputs gave %v and %v", a, b)
	}
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		d := FairDice("seed", "n-"+strconv.Itoa(i))
		if d.Die1 < 1 || d.Die1 > 6 || d.Die2 < 1 || d.Die2 > 6 {
			t.Fatalf("out of range: %v", d)
		}
		seen[d.Die1] = true
	}
	if len(seen) != 6 {
		t.Errorf("expected all faces over 500 rolls, saw %v", seen)
	}
}

func TestParsePendingPolicy(t *testing.T) {
	for in, want := range map[string]PendingPolicy{"": PolicyWait, "WAIT": PolicyWait, "fail": PolicyFail, " substitute ": PolicySubstitute} {
		got, err := ParsePendingPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePendingPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePendingPolicy("random"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("err = %v", err)
	}
}

func TestLocalOracleFulfilsAfterReads(t *testing.T) {
	o := NewLocalOracle("seed", 2)
	o.Script(Dice{Die1: 6, Die2: 6})
	ctx := context.Background()

	id, _ := o.SubmitRollRequest(ctx)
	for i := 0; i < 2; i++ {
		if _, ok, _ := o.ReadRollResult(ctx, id); ok {
			t.Fatalf("read %d should still be pending", i+1)
		}
	}
	d, ok, _ := o.ReadRollResult(ctx, id)
	if !ok || d != (Dice{Die1: 6, Die2: 6}) {
		t.Fatalf("got %v %v", d, ok)
	}
	// leituras seguintes devolvem o mesmo valor
	if again, ok, _ := o.ReadRollResult(ctx, id); !ok || again != d {
		t.Errorf("result changed: %v", again)
	}
}

func TestHTTPClient(t *testing.T) {
	var reads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/oracle/rolls":
			_ = json.NewEncoder(w).Encode(oracledto.RollRequestResponse{RequestID: "abc", Seq: 1})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/oracle/rolls/abc"):
			if reads.Add(1) == 1 {
				_ = json.NewEncoder(w).Encode(oracledto.RollResultResponse{RequestID: "abc", Status: oracledto.StatusPending})
				return
			}
			_ = json.NewEncoder(w).Encode(oracledto.RollResultResponse{RequestID: "abc", Status: oracledto.StatusFulfilled, Die1: 2, Die2: 5})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	ctx := context.Background()
	id, err := c.SubmitRollRequest(ctx)
	if err != nil || id != "abc" {
		t.Fatalf("submit: %q %v", id, err)
	}
	if _, ok, err := c.ReadRollResult(ctx, id); ok || err != nil {
		t.Fatalf("first read should be pending: ok=%v err=%v", ok, err)
	}
	d, ok, err := c.ReadRollResult(ctx, id)
	if err != nil || !ok || d != (Dice{Die1: 2, Die2: 5}) {
		t.Fatalf("second read: %v %v %v", d, ok, err)
	}
	if _, _, err := c.ReadRollResult(ctx, "missing"); err == nil {
		t.Errorf("expected error on 404")
	}
}
