package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/game/betbook"
)

var (
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrNotFound                 = errors.New("account not found")
	ErrSettlementPartialFailure = errors.New("settlement partial failure")
)

// DefaultMultiplier é o pagamento de apostas even-money (aposta + lucro igual)
const DefaultMultiplier = 2

// Account é a posição de um apostador
type Account struct {
	BettorID  string `json:"bettorId"`
	Balance   int64  `json:"balance"`
	TotalWon  int64  `json:"totalWon"`
	TotalLost int64  `json:"totalLost"`
}

// Store persiste saldos e movimentos. Toda operação com ref é idempotente:
// repetir a mesma ref não altera o saldo de novo.
type Store interface {
	Account(ctx context.Context, bettorID string) (Account, error)
	Deposit(ctx context.Context, bettorID string, amount int64, ref string) (Account, error)
	Debit(ctx context.Context, bettorID string, amount int64, ref string) error
	Credit(ctx context.Context, bettorID string, payout, profit int64, ref string) error
	RecordLoss(ctx context.Context, bettorID string, amount int64, ref string) error
	Refund(ctx context.Context, bettorID string, amount int64, ref string) error
}

// SettlementError descreve a falha de um único resultado
type SettlementError struct {
	BetID    string
	BettorID string
	Err      error
}

func (e SettlementError) Error() string {
	return fmt.Sprintf("settle bet %s (%s): %v", e.BetID, e.BettorID, e.Err)
}

func (e SettlementError) Unwrap() error { return e.Err }

// Summary é o retorno de Apply
type Summary struct {
	Credited int64 // total pago (aposta + lucro)
	Profit   int64 // lucro dos vencedores
	Lost     int64 // valor perdido pelos perdedores
	Winners  int
	Losers   int
	Errors   []SettlementError
}

// Err retorna ErrSettlementPartialFailure junto com os erros individuais, ou nil
func (s Summary) Err() error {
	if len(s.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Errors)+1)
	errs = append(errs, ErrSettlementPartialFailure)
	for _, e := range s.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Ledger é o único que altera saldos
type Ledger struct {
	store      Store
	multiplier int64
	log        *zap.Logger
}

func New(store Store, multiplier int64, log *zap.Logger) *Ledger {
	if multiplier < 1 {
		multiplier = DefaultMultiplier
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, multiplier: multiplier, log: log}
}

func (l *Ledger) Multiplier() int64 { return l.multiplier }

// Reserve faz o débito pessimista no momento da aposta (implementa betbook.Funds)
func (l *Ledger) Reserve(ctx context.Context, bettorID string, amount int64, ref string) error {
	if err := l.store.Debit(ctx, bettorID, amount, ref); err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %v", betbook.ErrInsufficientBalance, err)
		}
		return fmt.Errorf("reserve %s: %w", bettorID, err)
	}
	return nil
}

// Release devolve uma reserva que não chegou a virar aposta (implementa betbook.Funds)
func (l *Ledger) Release(ctx context.Context, bettorID string, amount int64, ref string) error {
	if err := l.store.Refund(ctx, bettorID, amount, ref); err != nil {
		l.log.Error("release reserve failed", zap.String("bettor_id", bettorID), zap.String("ref", ref), zap.Error(err))
		return fmt.Errorf("release %s: %w", bettorID, err)
	}
	return nil
}

func (l *Ledger) Account(ctx context.Context, bettorID string) (Account, error) {
	return l.store.Account(ctx, bettorID)
}

func (l *Ledger) Deposit(ctx context.Context, bettorID string, amount int64, ref string) (Account, error) {
	if amount <= 0 {
		return Account{}, fmt.Errorf("%w: %d", betbook.ErrInvalidAmount, amount)
	}
	return l.store.Deposit(ctx, bettorID, amount, ref)
}

// Refund devolve o valor de apostas que não tiveram decisão (série anulada ou sobra no fechamento)
func (l *Ledger) Refund(ctx context.Context, bets []betbook.Bet) Summary {
	var sum Summary
	for _, b := range bets {
		if err := l.store.Refund(ctx, b.BettorID, b.Amount, "refund:"+b.ID); err != nil {
			l.log.Error("refund failed", zap.String("bet_id", b.ID), zap.String("bettor_id", b.BettorID), zap.Error(err))
			sum.Errors = append(sum.Errors, SettlementError{BetID: b.ID, BettorID: b.BettorID, Err: err})
			continue
		}
		sum.Credited += b.Amount
	}
	return sum
}

// Apply liquida os resultados de um lançamento. Cada resultado é independente:
// uma falha não impede os demais e não desfaz o que já foi creditado.
func (l *Ledger) Apply(ctx context.Context, seq int, results []betbook.Result) Summary {
	var sum Summary
	for _, r := range results {
		ref := settlementRef(r.Bet.ID, seq)
		if r.Won {
			payout := r.Bet.Amount * l.multiplier
			profit := r.Bet.Amount * (l.multiplier - 1)
			if err := l.store.Credit(ctx, r.Bet.BettorID, payout, profit, ref); err != nil {
				l.log.Error("credit failed", zap.String("bet_id", r.Bet.ID), zap.String("bettor_id", r.Bet.BettorID), zap.Error(err))
				sum.Errors = append(sum.Errors, SettlementError{BetID: r.Bet.ID, BettorID: r.Bet.BettorID, Err: err})
				continue
			}
			sum.Credited += payout
			sum.Profit += profit
			sum.Winners++
			continue
		}

		// saldo já foi debitado na colocação, só acumula o total perdido
		if err := l.store.RecordLoss(ctx, r.Bet.BettorID, r.Bet.Amount, ref); err != nil {
			l.log.Error("record loss failed", zap.String("bet_id", r.Bet.ID), zap.String("bettor_id", r.Bet.BettorID), zap.Error(err))
			sum.Errors = append(sum.Errors, SettlementError{BetID: r.Bet.ID, BettorID: r.Bet.BettorID, Err: err})
			continue
		}
		sum.Lost += r.Bet.Amount
		sum.Losers++
	}
	return sum
}

func settlementRef(betID string, seq int) string {
	return "settle:" + betID + ":" + strconv.Itoa(seq)
}
