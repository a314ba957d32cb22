package table

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/radieske/craps-oracle-table/internal/game/betbook"
	"github.com/radieske/craps-oracle-table/internal/game/ledger"
	"github.com/radieske/craps-oracle-table/internal/game/oracle"
	"github.com/radieske/craps-oracle-table/internal/game/phase"
)

var (
	ErrSeriesInProgress = errors.New("series in progress")
	ErrNoActiveSeries   = errors.New("no active series")
)

// Table é a instância única do jogo. O mutex protege só a transição em memória
// (janela, série, livro); oráculo e ledger são chamados fora dele.
type Table struct {
	ID string

	mu         sync.Mutex
	book       *betbook.Book
	ledger     *ledger.Ledger
	series     *phase.Series // última série; ativa enquanto !Ended()
	lastID     int64
	windowOpen bool
	now        func() time.Time
}

func New(id string, l *ledger.Ledger) *Table {
	return &Table{
		ID:     id,
		book:   betbook.New(l),
		ledger: l,
		now:    time.Now,
	}
}

// WithClock troca o relógio (testes)
func (t *Table) WithClock(now func() time.Time) *Table {
	t.now = now
	return t
}

// Resume continua a numeração de séries a partir do último id persistido
func (t *Table) Resume(lastSeriesID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if lastSeriesID > t.lastID {
		t.lastID = lastSeriesID
	}
}

func (t *Table) Ledger() *ledger.Ledger { return t.ledger }

func (t *Table) activeLocked() bool {
	return t.series != nil && !t.series.Ended()
}

// OpenBettingWindow abre a janela de apostas para a próxima série
func (t *Table) OpenBettingWindow() (nextSeriesID int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeLocked() {
		return 0, ErrSeriesInProgress
	}
	t.windowOpen = true
	t.book.Reopen()
	return t.lastID + 1, nil
}

// NextSeriesID é o id que a próxima série vai receber
func (t *Table) NextSeriesID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastID + 1
}

// PlaceBet aceita apostas só com janela aberta e sem série rodando.
// A reserva no ledger roda sem o lock da mesa; se a série começar no meio
// dela o livro devolve o valor e a aposta é recusada.
func (t *Table) PlaceBet(ctx context.Context, bet betbook.Bet) (betbook.Bet, error) {
	t.mu.Lock()
	gate := betbook.Gate{Phase: phase.Idle, WindowOpen: t.windowOpen, SeriesID: t.lastID + 1}
	if t.activeLocked() {
		gate.Phase = t.series.Phase()
	}
	t.mu.Unlock()

	id, err := t.book.Place(ctx, gate, bet)
	if err != nil {
		return betbook.Bet{}, err
	}
	bt, _ := betbook.ParseBetType(string(bet.Type))
	bet.ID = id
	bet.Type = bt
	bet.SeriesID = gate.SeriesID
	bet.PlacedDuringPhase = gate.Phase
	return bet, nil
}

// StartSeries fecha a janela e cria a série (fase ComeOut)
func (t *Table) StartSeries() (*phase.Series, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeLocked() {
		return nil, ErrSeriesInProgress
	}
	t.windowOpen = false
	t.book.Seal()
	t.lastID++
	t.series = phase.NewSeries(t.lastID, t.now())
	return t.series, nil
}

// RollReport descreve tudo que um lançamento causou
type RollReport struct {
	SeriesID int64
	Roll     phase.Roll
	Before   phase.State
	After    phase.State
	Outcome  phase.Outcome
	Results  []betbook.Result
	Settled  ledger.Summary
	Refunded []betbook.Bet
	Ended    bool
}

// ApplyRoll é o passo do tick: PhaseMachine + BetBook.Resolve (com o estado anterior)
// sob o lock, depois SettlementLedger.Apply fora dele. Ao fim da série devolve as
// sobras do livro. As refs de liquidação tornam a repetição de um crédito inofensiva.
func (t *Table) ApplyRoll(ctx context.Context, d oracle.Dice, sourceRef string, substituted bool) (RollReport, error) {
	rep, err := t.advance(d, sourceRef, substituted)
	if err != nil {
		return RollReport{}, err
	}

	rep.Settled = t.ledger.Apply(ctx, rep.Roll.Seq, rep.Results)
	if len(rep.Refunded) > 0 {
		refund := t.ledger.Refund(ctx, rep.Refunded)
		rep.Settled.Errors = append(rep.Settled.Errors, refund.Errors...)
	}
	return rep, nil
}

// advance faz a transição em memória e monta o relatório, sem tocar no ledger
func (t *Table) advance(d oracle.Dice, sourceRef string, substituted bool) (RollReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.activeLocked() {
		return RollReport{}, ErrNoActiveSeries
	}
	s := t.series

	roll, err := phase.NewRoll(s.ID, s.NextSeq(), d.Die1, d.Die2, sourceRef)
	if err != nil {
		return RollReport{}, err
	}
	roll.Substituted = substituted

	before := s.State()
	tr := phase.Advance(before, roll.Total)
	results := t.book.Resolve(roll.Seq, roll.Total, before.Phase, before.Point)
	s.Apply(roll, tr)

	rep := RollReport{
		SeriesID: s.ID,
		Roll:     roll,
		Before:   before,
		After:    tr.Next,
		Outcome:  tr.Outcome,
		Results:  results,
	}
	if tr.Outcome.Terminal() {
		rep.Ended = true
		rep.Refunded = t.book.Close()
	}
	return rep, nil
}

// VoidSeries anula a série corrente e devolve todas as apostas abertas
func (t *Table) VoidSeries(ctx context.Context) (int64, []betbook.Bet, ledger.Summary, error) {
	t.mu.Lock()
	if !t.activeLocked() {
		t.mu.Unlock()
		return 0, nil, ledger.Summary{}, ErrNoActiveSeries
	}
	t.series.Void()
	id := t.series.ID
	left := t.book.Close()
	t.mu.Unlock()

	return id, left, t.ledger.Refund(ctx, left), nil
}

// Snapshot é a visão de leitura da mesa
type Snapshot struct {
	TableID    string        `json:"tableId"`
	SeriesID   int64         `json:"seriesId"`
	Active     bool          `json:"active"`
	Phase      string        `json:"phase"`
	Point      int           `json:"point,omitempty"`
	WindowOpen bool          `json:"windowOpen"`
	OpenBets   []betbook.Bet `json:"openBets"`
	Exposure   int64         `json:"exposure"`
	Rolls      []phase.Roll  `json:"rolls"`
}

func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		TableID:    t.ID,
		SeriesID:   t.lastID,
		Phase:      phase.Idle.String(),
		WindowOpen: t.windowOpen,
		OpenBets:   t.book.Open(),
		Exposure:   t.book.Exposure(),
	}
	if t.series != nil {
		snap.Active = !t.series.Ended()
		snap.Phase = t.series.Phase().String()
		snap.Point = t.series.Point()
		snap.Rolls = t.series.Rolls()
	}
	return snap
}
