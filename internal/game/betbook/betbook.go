package betbook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/radieske/craps-oracle-table/internal/game/phase"
)

var (
	ErrBettingWindowClosed = errors.New("betting window closed")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateBet        = errors.New("duplicate bet")
	ErrUnknownBetType      = errors.New("unknown bet type")
)

// Bet é uma aposta aberta na série corrente
type Bet struct {
	ID                string
	BettorID          string
	TargetID          string // entidade apoiada (ex: um bot)
	Type              BetType
	Amount            int64
	PlacedDuringPhase phase.Phase
	SeriesID          int64
	ComePoint         int // só Come/DontCome
	ComeSeq           int // lançamento que fixou o ComePoint
}

// Result é derivado a cada lançamento, nunca persistido
type Result struct {
	Bet Bet
	Won bool
}

// Gate é a visão da mesa no momento da aposta
type Gate struct {
	Phase      phase.Phase
	WindowOpen bool
	SeriesID   int64
}

// Funds faz o débito pessimista na colocação da aposta.
// Reserve deve retornar um erro que satisfaça errors.Is(err, ErrInsufficientBalance) quando faltar saldo.
// Release devolve uma reserva que não virou aposta.
type Funds interface {
	Reserve(ctx context.Context, bettorID string, amount int64, ref string) error
	Release(ctx context.Context, bettorID string, amount int64, ref string) error
}

type betKey struct {
	bettorID string
	targetID string
	typ      BetType
}

// Book guarda as apostas abertas da série e é o único que as resolve.
// O mutex nunca fica preso durante a chamada ao Funds.
type Book struct {
	mu    sync.Mutex
	funds Funds
	open  map[string]*Bet
	order []string

	// apostas com reserva em andamento; contam para duplicidade
	reserving map[betKey]struct{}
	sealed    bool
	epoch     int64
}

func New(funds Funds) *Book {
	return &Book{
		funds:     funds,
		open:      make(map[string]*Bet),
		reserving: make(map[betKey]struct{}),
	}
}

// Seal fecha o livro para novas apostas (série começou).
// Reservas em andamento são devolvidas em vez de entrar no livro.
func (b *Book) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	b.epoch++
}

// Reopen volta a aceitar apostas (nova janela)
func (b *Book) Reopen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = false
}

func (b *Book) duplicateLocked(k betKey) bool {
	if _, ok := b.reserving[k]; ok {
		return true
	}
	for _, id := range b.order {
		o := b.open[id]
		if o.BettorID == k.bettorID && o.TargetID == k.targetID && o.Type == k.typ {
			return true
		}
	}
	return false
}

// Place valida e registra a aposta, debitando o saldo imediatamente
func (b *Book) Place(ctx context.Context, gate Gate, bet Bet) (string, error) {
	if gate.Phase != phase.Idle || !gate.WindowOpen {
		return "", ErrBettingWindowClosed
	}
	if bet.Amount <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidAmount, bet.Amount)
	}
	bt, err := ParseBetType(string(bet.Type))
	if err != nil {
		return "", err
	}

	bet.Type = bt
	bet.ID = uuid.NewString()
	bet.SeriesID = gate.SeriesID
	bet.PlacedDuringPhase = gate.Phase
	bet.ComePoint, bet.ComeSeq = 0, 0
	key := betKey{bettorID: bet.BettorID, targetID: bet.TargetID, typ: bt}

	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		return "", ErrBettingWindowClosed
	}
	if b.duplicateLocked(key) {
		b.mu.Unlock()
		return "", fmt.Errorf("%w: %s on %s", ErrDuplicateBet, bt, bet.TargetID)
	}
	b.reserving[key] = struct{}{}
	epoch := b.epoch
	b.mu.Unlock()

	reserveErr := b.funds.Reserve(ctx, bet.BettorID, bet.Amount, "bet:"+bet.ID)

	b.mu.Lock()
	delete(b.reserving, key)
	if reserveErr != nil {
		b.mu.Unlock()
		return "", reserveErr
	}
	if b.sealed || b.epoch != epoch {
		b.mu.Unlock()
		// a série começou durante a reserva
		if err := b.funds.Release(ctx, bet.BettorID, bet.Amount, "refund:"+bet.ID); err != nil {
			return "", fmt.Errorf("%w: release reserve: %v", ErrBettingWindowClosed, err)
		}
		return "", ErrBettingWindowClosed
	}
	b.open[bet.ID] = &bet
	b.order = append(b.order, bet.ID)
	b.mu.Unlock()
	return bet.ID, nil
}

// Resolve decide as apostas abertas contra o lançamento seq, usando fase/point de antes dele.
// Apostas decididas são fechadas na hora; as não decididas continuam abertas e não geram Result.
// Repetir o mesmo seq não muda nada.
func (b *Book) Resolve(seq, total int, phaseBeforeRoll phase.Phase, pointBeforeRoll int) []Result {
	before := phase.State{Phase: phaseBeforeRoll, Point: pointBeforeRoll}
	if before.Phase != phase.Point {
		before.Point = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Result
	kept := b.order[:0]
	for _, id := range b.order {
		bet := b.open[id]
		if bet.ComePoint != 0 && seq <= bet.ComeSeq {
			// este lançamento já moveu a aposta para o seu point
			kept = append(kept, id)
			continue
		}
		d := decide(bet, total, before)
		if d.comePoint != 0 {
			bet.ComePoint, bet.ComeSeq = d.comePoint, seq
		}
		if !d.decided {
			kept = append(kept, id)
			continue
		}
		out = append(out, Result{Bet: *bet, Won: d.won})
		delete(b.open, id)
	}
	b.order = kept
	return out
}

// Close esvazia o livro ao fim da série e devolve as apostas que sobraram sem decisão
func (b *Book) Close() []Bet {
	b.mu.Lock()
	defer b.mu.Unlock()

	left := make([]Bet, 0, len(b.order))
	for _, id := range b.order {
		left = append(left, *b.open[id])
	}
	b.open = make(map[string]*Bet)
	b.order = nil
	return left
}

// Open retorna uma cópia das apostas abertas, ordenadas por bettor e id
func (b *Book) Open() []Bet {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Bet, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.open[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BettorID != out[j].BettorID {
			return out[i].BettorID < out[j].BettorID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Exposure soma o valor das apostas abertas
func (b *Book) Exposure() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sum int64
	for _, bet := range b.open {
		sum += bet.Amount
	}
	return sum
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}
