package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radieske/craps-oracle-table/internal/game/betbook"
	"github.com/radieske/craps-oracle-table/internal/game/phase"
)

var testNow = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func fund(t *testing.T, l *Ledger, bettors map[string]int64) {
	t.Helper()
	for id, amount := range bettors {
		if _, err := l.Deposit(context.Background(), id, amount, "seed-"+id); err != nil {
			t.Fatalf("deposit %s: %v", id, err)
		}
	}
}

func TestReserveMapsInsufficientFunds(t *testing.T) {
	l := New(NewMemoryStore(), DefaultMultiplier, nil)
	fund(t, l, map[string]int64{"u1": 5})

	err := l.Reserve(context.Background(), "u1", 10, "bet:1")
	if !errors.Is(err, betbook.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if err := l.Reserve(context.Background(), "ghost", 1, "bet:2"); !errors.Is(err, betbook.ErrInsufficientBalance) {
		t.Errorf("unknown bettor err = %v", err)
	}
}

func TestApplyCreditsWinnersAndTracksLosses(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), DefaultMultiplier, nil)
	fund(t, l, map[string]int64{"winner": 100, "loser": 100})

	book := betbook.New(l)
	gate := betbook.Gate{Phase: phase.Idle, WindowOpen: true, SeriesID: 1}
	if _, err := book.Place(ctx, gate, betbook.Bet{BettorID: "winner", TargetID: "t", Type: betbook.PassLine, Amount: 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := book.Place(ctx, gate, betbook.Bet{BettorID: "loser", TargetID: "t", Type: betbook.DontPass, Amount: 25}); err != nil {
		t.Fatal(err)
	}

	res := book.Resolve(1, 7, phase.Idle, 0)
	sum := l.Apply(ctx, 1, res)
	if sum.Err() != nil {
		t.Fatalf("unexpected settlement error: %v", sum.Err())
	}
	if sum.Winners != 1 || sum.Losers != 1 || sum.Credited != 20 || sum.Profit != 10 || sum.Lost != 25 {
		t.Errorf("summary = %+v", sum)
	}

	w, _ := l.Account(ctx, "winner")
	if w.Balance != 110 || w.TotalWon != 10 || w.TotalLost != 0 {
		t.Errorf("winner = %+v, want balance 110 won 10", w)
	}
	lo, _ := l.Account(ctx, "loser")
	if lo.Balance != 75 || lo.TotalLost != 25 || lo.TotalWon != 0 {
		t.Errorf("loser = %+v, want balance 75 lost 25", lo)
	}

	// reaplicar os mesmos resultados não paga de novo
	l.Apply(ctx, 1, res)
	w2, _ := l.Account(ctx, "winner")
	if w2 != w {
		t.Errorf("double settlement: %+v -> %+v", w, w2)
	}
}

func TestApplyPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("db down")
	store.FailCredit = func(bettorID string) error {
		if bettorID == "broken" {
			return boom
		}
		return nil
	}
	l := New(store, DefaultMultiplier, nil)
	fund(t, l, map[string]int64{"ok": 50, "broken": 50})

	results := []betbook.Result{
		{Bet: betbook.Bet{ID: "b1", BettorID: "broken", Amount: 10}, Won: true},
		{Bet: betbook.Bet{ID: "b2", BettorID: "ok", Amount: 10}, Won: true},
	}
	sum := l.Apply(ctx, 3, results)

	if len(sum.Errors) != 1 || sum.Errors[0].BetID != "b1" || !errors.Is(sum.Errors[0], boom) {
		t.Fatalf("errors = %+v", sum.Errors)
	}
	if !errors.Is(sum.Err(), ErrSettlementPartialFailure) {
		t.Errorf("Err() = %v", sum.Err())
	}
	a, _ := l.Account(ctx, "ok")
	if a.Balance != 70 {
		t.Errorf("healthy bettor not credited: %+v", a)
	}
}

// Conservação: saldo + apostas abertas + total perdido - lucro pago é constante
func TestConservationAcrossSeries(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), DefaultMultiplier, nil)
	bettors := map[string]int64{"a": 200, "b": 200, "c": 200}
	fund(t, l, bettors)

	book := betbook.New(l)
	gate := betbook.Gate{Phase: phase.Idle, WindowOpen: true, SeriesID: 1}
	bets := []betbook.Bet{
		{BettorID: "a", TargetID: "t", Type: betbook.PassLine, Amount: 40},
		{BettorID: "b", TargetID: "t", Type: betbook.DontPass, Amount: 30},
		{BettorID: "c", TargetID: "t", Type: betbook.Field, Amount: 20},
		{BettorID: "c", TargetID: "t", Type: betbook.Come, Amount: 15},
	}
	for _, b := range bets {
		if _, err := book.Place(ctx, gate, b); err != nil {
			t.Fatal(err)
		}
	}

	invariant := func() int64 {
		var total int64
		for id := range bettors {
			a, _ := l.Account(ctx, id)
			total += a.Balance + a.TotalLost - a.TotalWon
		}
		return total + book.Exposure()
	}
	start := invariant()

	series := phase.NewSeries(1, testNow)
	for seq, total := range []int{5, 9, 5} {
		before := series.State()
		tr := phase.Advance(before, total)
		res := book.Resolve(seq+1, total, before.Phase, before.Point)
		for _, r := range res {
			if r.Won {
				// ganho líquido do vencedor é exatamente amount*(multiplier-1)
				acc, _ := l.Account(ctx, r.Bet.BettorID)
				sum := l.Apply(ctx, seq+1, []betbook.Result{r})
				after, _ := l.Account(ctx, r.Bet.BettorID)
				if after.Balance-acc.Balance != r.Bet.Amount*l.Multiplier() || after.TotalWon-acc.TotalWon != r.Bet.Amount*(l.Multiplier()-1) {
					t.Errorf("payout mismatch for %+v: %+v -> %+v", r, acc, after)
				}
				if sum.Err() != nil {
					t.Fatal(sum.Err())
				}
				continue
			}
			l.Apply(ctx, seq+1, []betbook.Result{r})
		}
		r, _ := phase.NewRoll(1, seq+1, 1, total-1, "")
		if total-1 > 6 {
			r, _ = phase.NewRoll(1, seq+1, 6, total-6, "")
		}
		series.Apply(r, tr)

		if got := invariant(); got != start {
			t.Fatalf("after roll %d (total %d): invariant %d, want %d", seq+1, total, got, start)
		}
	}
	if !series.Ended() {
		t.Fatalf("series should end on point made")
	}
	refund := l.Refund(ctx, book.Close())
	if refund.Err() != nil {
		t.Fatal(refund.Err())
	}
	if got := invariant(); got != start {
		t.Errorf("after close: invariant %d, want %d", got, start)
	}
}

func TestRefundIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), DefaultMultiplier, nil)
	fund(t, l, map[string]int64{"u1": 10})
	if err := l.Reserve(ctx, "u1", 10, "bet:x"); err != nil {
		t.Fatal(err)
	}
	bets := []betbook.Bet{{ID: "x", BettorID: "u1", Amount: 10}}
	l.Refund(ctx, bets)
	l.Refund(ctx, bets)
	a, _ := l.Account(ctx, "u1")
	if a.Balance != 10 {
		t.Errorf("balance = %d, want 10", a.Balance)
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	l := New(NewMemoryStore(), DefaultMultiplier, nil)
	if _, err := l.Deposit(context.Background(), "u1", 0, ""); !errors.Is(err, betbook.ErrInvalidAmount) {
		t.Errorf("err = %v", err)
	}
}
