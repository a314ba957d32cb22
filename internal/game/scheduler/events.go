package scheduler

import (
	"time"

	"github.com/radieske/craps-oracle-table/internal/game/betbook"
	"github.com/radieske/craps-oracle-table/internal/game/table"
	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

func rollEvent(tableID string, rep table.RollReport, multiplier int64, now time.Time) events.TableEvent {
	ev := events.TableEvent{
		Kind:     events.KindRoll,
		TableID:  tableID,
		SeriesID: rep.SeriesID,
		Phase:    rep.After.Phase.String(),
		Point:    rep.After.Point,
		Roll: &events.Roll{
			Die1:        rep.Roll.Die1,
			Die2:        rep.Roll.Die2,
			Total:       rep.Roll.Total,
			Seq:         rep.Roll.Seq,
			SourceRef:   rep.Roll.SourceRef,
			Substituted: rep.Roll.Substituted,
		},
		Outcome:     rep.Outcome.String(),
		Outcomes:    make([]events.BetOutcome, 0, len(rep.Results)+len(rep.Refunded)),
		SeriesEnded: rep.Ended,
		RequestID:   rep.Roll.SourceRef,
		Ts:          now.UTC(),
	}
	if rep.Ended {
		ev.Kind = events.KindSeriesEnded
	}

	failed := make(map[string]bool, len(rep.Settled.Errors))
	for _, e := range rep.Settled.Errors {
		failed[e.BetID] = true
	}
	for _, r := range rep.Results {
		o := betOutcome(r.Bet)
		o.Won = r.Won
		if r.Won && !failed[r.Bet.ID] {
			o.Payout = r.Bet.Amount * multiplier
		}
		ev.Outcomes = append(ev.Outcomes, o)
	}
	ev.Outcomes = append(ev.Outcomes, refundOutcomes(rep.Refunded)...)
	return ev
}

func refundOutcomes(bets []betbook.Bet) []events.BetOutcome {
	out := make([]events.BetOutcome, 0, len(bets))
	for _, b := range bets {
		o := betOutcome(b)
		o.Refunded = true
		o.Payout = b.Amount
		out = append(out, o)
	}
	return out
}

func betOutcome(b betbook.Bet) events.BetOutcome {
	return events.BetOutcome{
		BetID:    b.ID,
		BettorID: b.BettorID,
		TargetID: b.TargetID,
		BetType:  string(b.Type),
		Amount:   b.Amount,
	}
}
