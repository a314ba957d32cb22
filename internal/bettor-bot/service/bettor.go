package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/bettor-bot/client"
	"github.com/radieske/craps-oracle-table/internal/table-service/dto"
	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

// Apostas que o bot sabe fazer antes da série começar
var lineBets = []string{"PASS_LINE", "DONT_PASS", "FIELD"}

// TargetShooter é o alvo das apostas de linha da mesa
const TargetShooter = "shooter"

type TablePlacer interface {
	Deposit(ctx context.Context, bettorID string, amount int64, ref string) error
	PlaceBet(ctx context.Context, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error)
}

// Bettor decide, a cada janela aberta, quais bots apostam e em quê
type Bettor struct {
	IDs            []string
	Amount         int64
	InitialDeposit int64
	SitOutRatio    float64

	table TablePlacer
	log   *zap.Logger

	mu   sync.Mutex
	rand *rand.Rand
	// seriesID -> bots que já apostaram
	placed map[int64]map[string]struct{}

	OnPlaced   func(betType string)
	OnSitOut   func()
	OnRejected func(reason string)
	OnSettled  func(won bool)
}

func NewBettor(ids []string, amount, deposit int64, sitOut float64, seed int64, t TablePlacer, log *zap.Logger) *Bettor {
	return &Bettor{
		IDs:            ids,
		Amount:         amount,
		InitialDeposit: deposit,
		SitOutRatio:    sitOut,
		table:          t,
		log:            log,
		rand:           rand.New(rand.NewSource(seed)),
		placed:         make(map[int64]map[string]struct{}),
	}
}

// Fund deposita o saldo inicial. A ref é fixa por bot, então reiniciar o bot não credita de novo.
func (b *Bettor) Fund(ctx context.Context) error {
	for _, id := range b.IDs {
		if err := b.table.Deposit(ctx, id, b.InitialDeposit, "bot-seed:"+id); err != nil {
			return err
		}
	}
	return nil
}

// HandleEvent reage ao stream da mesa
func (b *Bettor) HandleEvent(ctx context.Context, ev events.TableEvent) {
	switch ev.Kind {
	case events.KindWindowOpened:
		b.bet(ctx, ev.SeriesID)
	case events.KindRoll, events.KindSeriesEnded, events.KindSeriesVoided:
		b.settled(ev)
	}
}

func (b *Bettor) bet(ctx context.Context, seriesID int64) {
	for _, id := range b.IDs {
		betType, sitOut := b.pick(seriesID, id)
		if betType == "" {
			if sitOut && b.OnSitOut != nil {
				b.OnSitOut()
			}
			continue
		}

		res, err := b.table.PlaceBet(ctx, dto.PlaceBetRequest{
			BettorID: id,
			TargetID: TargetShooter,
			BetType:  betType,
			Amount:   b.Amount,
		})
		if err != nil {
			reason := "error"
			switch {
			case errors.Is(err, client.ErrRejected):
				reason = "rejected"
			case errors.Is(err, client.ErrNoFunds):
				reason = "no_funds"
			}
			b.log.Info("bet not placed", zap.String("bettor_id", id), zap.Int64("series_id", seriesID), zap.String("reason", reason), zap.Error(err))
			if b.OnRejected != nil {
				b.OnRejected(reason)
			}
			continue
		}
		b.log.Info("bet placed",
			zap.String("bettor_id", id),
			zap.String("bet_id", res.BetID),
			zap.Int64("series_id", res.SeriesID),
			zap.String("bet_type", betType),
			zap.Int64("amount", b.Amount),
		)
		if b.OnPlaced != nil {
			b.OnPlaced(betType)
		}
	}
}

// pick sorteia a aposta do bot para a série; "" quando já apostou ou ficou de fora
func (b *Bettor) pick(seriesID int64, id string) (betType string, sitOut bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	done, ok := b.placed[seriesID]
	if !ok {
		done = make(map[string]struct{})
		b.placed[seriesID] = done
		// só guarda a série corrente
		for s := range b.placed {
			if s < seriesID {
				delete(b.placed, s)
			}
		}
	}
	if _, already := done[id]; already {
		return "", false
	}
	done[id] = struct{}{}

	if b.rand.Float64() < b.SitOutRatio {
		return "", true
	}
	return lineBets[b.rand.Intn(len(lineBets))], false
}

func (b *Bettor) settled(ev events.TableEvent) {
	for _, o := range ev.Outcomes {
		if !b.owns(o.BettorID) || o.Refunded {
			continue
		}
		b.log.Info("bet settled",
			zap.String("bettor_id", o.BettorID),
			zap.String("bet_id", o.BetID),
			zap.Bool("won", o.Won),
			zap.Int64("payout", o.Payout),
		)
		if b.OnSettled != nil {
			b.OnSettled(o.Won)
		}
	}
}

func (b *Bettor) owns(id string) bool {
	for _, x := range b.IDs {
		if x == id {
			return true
		}
	}
	return false
}
