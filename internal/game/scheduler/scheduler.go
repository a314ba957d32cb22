package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/game/oracle"
	"github.com/radieske/craps-oracle-table/internal/game/phase"
	"github.com/radieske/craps-oracle-table/internal/game/table"
	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

var (
	ErrSchedulerTick     = errors.New("scheduler tick failed")
	ErrTickInProgress    = errors.New("tick already in progress")
	ErrStopped           = errors.New("scheduler stopped")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrSeriesNotRecorded = errors.New("series could not be recorded")
	ErrStartInProgress   = errors.New("series start already in progress")
)

// State é o ciclo de vida do scheduler
type State int

const (
	Idle State = iota
	AwaitingBettingClose
	Rolling
	SeriesEnded
)

func (s State) String() string {
	switch s {
	case AwaitingBettingClose:
		return "AWAITING_BETTING_CLOSE"
	case Rolling:
		return "ROLLING"
	case SeriesEnded:
		return "SERIES_ENDED"
	default:
		return "IDLE"
	}
}

type Config struct {
	Interval        time.Duration // cadência do Run
	PollMaxAttempts int
	PollInterval    time.Duration
	BettingWindow   time.Duration // 0 = só fecha via StartSeries manual
	Cooldown        time.Duration
	AutoOpen        bool // abre a janela sozinho quando Idle
	Policy          oracle.PendingPolicy
	SubstituteSeed  string
}

// Publisher entrega eventos da mesa (Kafka, WS, ...)
type Publisher interface {
	PublishTableEvent(ctx context.Context, ev events.TableEvent) error
}

// Recorder persiste séries e lançamentos
type Recorder interface {
	RecordSeries(ctx context.Context, tableID string, seriesID int64, startedAt time.Time) error
	RecordRoll(ctx context.Context, tableID string, r phase.Roll, outcome phase.Outcome) error
	EndSeries(ctx context.Context, tableID string, seriesID int64, voided bool, endedAt time.Time) error
}

// Hooks de métricas, no mesmo espírito dos callbacks do consumer
type Hooks struct {
	OnRoll      func(outcome string, substituted bool)
	OnPending   func(policy string)
	OnSettled   func(credited, lost int64, failures int)
	OnTickError func(stage string)
	OnSkip      func()
}

type Scheduler struct {
	cfg    Config
	table  *table.Table
	source *oracle.Source
	pub    Publisher
	rec    Recorder
	log    *zap.Logger
	hooks  Hooks
	now    func() time.Time

	mu            sync.Mutex
	state         State
	starting      bool // StartSeries gravando a série fora do lock
	seriesID      int64
	pending       *oracle.Handle
	windowUntil   time.Time
	cooldownUntil time.Time

	ticking atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	stopOne sync.Once
}

func New(cfg Config, t *table.Table, src *oracle.Source, pub Publisher, rec Recorder, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Policy == "" {
		cfg.Policy = oracle.PolicyWait
	}
	if cfg.PollMaxAttempts < 1 {
		cfg.PollMaxAttempts = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	return &Scheduler{
		cfg:    cfg,
		table:  t,
		source: src,
		pub:    pub,
		rec:    rec,
		log:    log.With(zap.String("table_id", t.ID)),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// WithHooks registra callbacks de métricas
func (s *Scheduler) WithHooks(h Hooks) *Scheduler {
	s.hooks = h
	return s
}

// WithClock troca o relógio (testes)
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OpenBettingWindow abre a janela; só permitido em Idle
func (s *Scheduler) OpenBettingWindow(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, st)
	}
	next, err := s.table.OpenBettingWindow()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = AwaitingBettingClose
	s.seriesID = next
	var until *time.Time
	if s.cfg.BettingWindow > 0 {
		s.windowUntil = s.now().Add(s.cfg.BettingWindow)
		u := s.windowUntil
		until = &u
	}
	s.mu.Unlock()

	s.log.Info("betting window opened", zap.Int64("series_id", next))
	ev := s.baseEvent(events.KindWindowOpened, next, phase.Idle.String(), 0)
	ev.WindowUntil = until
	s.publish(ctx, ev)
	return nil
}

// StartSeries fecha a janela e começa a série. Se a série não puder ser
// registrada o estado continua AwaitingBettingClose e a chamada pode ser repetida.
func (s *Scheduler) StartSeries(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	s.mu.Lock()
	if s.state != AwaitingBettingClose {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, st)
	}
	if s.starting {
		s.mu.Unlock()
		return ErrStartInProgress
	}
	s.starting = true
	s.mu.Unlock()
	return s.start(ctx)
}

// start roda com starting=true; banco e Kafka ficam fora do lock
func (s *Scheduler) start(ctx context.Context) error {
	id := s.table.NextSeriesID()
	if s.rec != nil {
		if err := s.rec.RecordSeries(ctx, s.table.ID, id, s.now()); err != nil {
			s.mu.Lock()
			s.starting = false
			s.mu.Unlock()
			s.log.Error("record series failed", zap.Int64("series_id", id), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrSeriesNotRecorded, err)
		}
	}

	s.mu.Lock()
	series, err := s.table.StartSeries()
	s.starting = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = Rolling
	s.seriesID = series.ID
	s.mu.Unlock()

	s.log.Info("series started", zap.Int64("series_id", series.ID))
	s.publish(ctx, s.baseEvent(events.KindSeriesStarted, series.ID, series.Phase().String(), 0))
	return nil
}

// Tick executa um passo do ciclo. Ticks sobrepostos são descartados com ErrTickInProgress.
// Falhas internas (inclusive panic) viram ErrSchedulerTick e o scheduler segue no próximo tick.
func (s *Scheduler) Tick(ctx context.Context) (err error) {
	if s.stopped.Load() {
		return ErrStopped
	}
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Debug("tick skipped, previous tick still running")
		if s.hooks.OnSkip != nil {
			s.hooks.OnSkip()
		}
		return ErrTickInProgress
	}
	defer s.ticking.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panic", zap.Any("panic", r), zap.Stack("stack"))
			s.hook("panic")
			err = fmt.Errorf("%w: panic: %v", ErrSchedulerTick, r)
		}
	}()

	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	switch st {
	case Idle:
		if s.cfg.AutoOpen {
			return s.wrap("open", s.OpenBettingWindow(ctx))
		}
	case AwaitingBettingClose:
		s.mu.Lock()
		due := s.state == AwaitingBettingClose && !s.starting &&
			s.cfg.BettingWindow > 0 && !s.now().Before(s.windowUntil)
		if due {
			s.starting = true
		}
		s.mu.Unlock()
		if due {
			return s.wrap("start", s.start(ctx))
		}
	case Rolling:
		return s.roll(ctx)
	case SeriesEnded:
		s.mu.Lock()
		ready := !s.now().Before(s.cooldownUntil)
		if ready {
			s.state = Idle
		}
		s.mu.Unlock()
		if ready && s.cfg.AutoOpen {
			return s.wrap("open", s.OpenBettingWindow(ctx))
		}
	}
	return nil
}

func (s *Scheduler) wrap(stage string, err error) error {
	if err == nil || errors.Is(err, ErrStopped) {
		return err
	}
	s.hook(stage)
	return fmt.Errorf("%w: %s: %v", ErrSchedulerTick, stage, err)
}

// roll pede (ou reaproveita) a requisição ao oráculo e faz o polling sem segurar locks
func (s *Scheduler) roll(ctx context.Context) error {
	s.mu.Lock()
	h := s.pending
	seriesID := s.seriesID
	s.mu.Unlock()

	if h == nil {
		hh, err := s.source.RequestRoll(ctx, s.slot(seriesID))
		if err != nil {
			s.log.Warn("roll request failed", zap.Int64("series_id", seriesID), zap.Error(err))
			s.hook("request")
			return fmt.Errorf("%w: %v", ErrSchedulerTick, err)
		}
		h = &hh
		s.mu.Lock()
		s.pending = h
		s.mu.Unlock()
	}

	out, err := s.source.PollResult(ctx, *h, s.cfg.PollMaxAttempts, s.cfg.PollInterval)
	if err != nil {
		// contexto cancelado: a requisição continua pendente para o próximo tick
		return err
	}
	if s.stopped.Load() {
		s.log.Info("discarding result after stop", zap.String("request_id", string(h.ID)))
		return ErrStopped
	}

	dice := out.Dice
	substituted := false
	if out.Status == oracle.Pending {
		if s.hooks.OnPending != nil {
			s.hooks.OnPending(string(s.cfg.Policy))
		}
		switch s.cfg.Policy {
		case oracle.PolicyFail:
			s.log.Warn("roll pending, voiding series",
				zap.Int64("series_id", seriesID), zap.String("request_id", string(h.ID)), zap.Int("attempts", out.Attempts))
			return s.void(ctx, *h)
		case oracle.PolicySubstitute:
			s.log.Warn("roll pending, using substitute value",
				zap.Int64("series_id", seriesID), zap.String("request_id", string(h.ID)), zap.Int("attempts", out.Attempts))
			dice = oracle.FairDice(s.cfg.SubstituteSeed, string(h.ID))
			substituted = true
		default:
			s.log.Warn("roll pending",
				zap.Int64("series_id", seriesID), zap.String("request_id", string(h.ID)),
				zap.Int("attempts", out.Attempts), zap.NamedError("last_error", out.LastErr))
			ph := s.table.Snapshot()
			ev := s.baseEvent(events.KindRollPending, seriesID, ph.Phase, ph.Point)
			ev.RequestID = string(h.ID)
			s.publish(ctx, ev)
			return nil
		}
	}

	return s.apply(ctx, *h, dice, substituted)
}

func (s *Scheduler) apply(ctx context.Context, h oracle.Handle, d oracle.Dice, substituted bool) error {
	rep, err := s.table.ApplyRoll(ctx, d, string(h.ID), substituted)

	s.source.Release(h)
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	if err != nil {
		s.log.Error("apply roll failed", zap.String("request_id", string(h.ID)), zap.Error(err))
		s.hook("apply")
		return fmt.Errorf("%w: %v", ErrSchedulerTick, err)
	}

	logFields := []zap.Field{
		zap.Int64("series_id", rep.SeriesID),
		zap.Int("seq", rep.Roll.Seq),
		zap.Int("total", rep.Roll.Total),
		zap.String("outcome", rep.Outcome.String()),
		zap.Int("winners", rep.Settled.Winners),
		zap.Int("losers", rep.Settled.Losers),
	}
	if err := rep.Settled.Err(); err != nil {
		s.log.Error("settlement partial failure", append(logFields, zap.Error(err))...)
		s.hook("settle")
	} else {
		s.log.Info("roll applied", logFields...)
	}
	if s.hooks.OnRoll != nil {
		s.hooks.OnRoll(rep.Outcome.String(), substituted)
	}
	if s.hooks.OnSettled != nil {
		s.hooks.OnSettled(rep.Settled.Credited, rep.Settled.Lost, len(rep.Settled.Errors))
	}

	if s.rec != nil {
		if err := s.rec.RecordRoll(ctx, s.table.ID, rep.Roll, rep.Outcome); err != nil {
			s.log.Error("record roll failed", zap.Int64("series_id", rep.SeriesID), zap.Int("seq", rep.Roll.Seq), zap.Error(err))
			s.hook("record")
		}
	}

	if rep.Ended {
		s.endSeries(ctx, rep.SeriesID, false)
	}
	s.publish(ctx, rollEvent(s.table.ID, rep, s.table.Ledger().Multiplier(), s.now()))
	return nil
}

func (s *Scheduler) void(ctx context.Context, h oracle.Handle) error {
	s.source.Release(h)
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	id, refunded, sum, err := s.table.VoidSeries(ctx)
	if err != nil {
		s.hook("void")
		return fmt.Errorf("%w: %v", ErrSchedulerTick, err)
	}
	if err := sum.Err(); err != nil {
		s.log.Error("refund partial failure", zap.Int64("series_id", id), zap.Error(err))
		s.hook("refund")
	}
	s.endSeries(ctx, id, true)

	ev := s.baseEvent(events.KindSeriesVoided, id, phase.Idle.String(), 0)
	ev.SeriesEnded = true
	ev.RequestID = string(h.ID)
	ev.Outcomes = refundOutcomes(refunded)
	s.publish(ctx, ev)
	return nil
}

func (s *Scheduler) endSeries(ctx context.Context, id int64, voided bool) {
	s.mu.Lock()
	s.state = SeriesEnded
	s.cooldownUntil = s.now().Add(s.cfg.Cooldown)
	s.mu.Unlock()

	if s.rec != nil {
		if err := s.rec.EndSeries(ctx, s.table.ID, id, voided, s.now()); err != nil {
			s.log.Error("end series failed", zap.Int64("series_id", id), zap.Error(err))
			s.hook("record")
		}
	}
	s.log.Info("series ended", zap.Int64("series_id", id), zap.Bool("voided", voided))
}

// Run dispara Tick a cada Interval até o contexto acabar ou Stop ser chamado
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	s.log.Info("scheduler running", zap.Duration("interval", s.cfg.Interval), zap.String("pending_policy", string(s.cfg.Policy)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			// o tick roda em goroutine própria, assim um oráculo lento não atrasa o ticker
			// e os ticks sobrepostos são descartados pela flag
			go func() {
				if err := s.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) &&
					!errors.Is(err, ErrStopped) && !errors.Is(err, context.Canceled) {
					s.log.Warn("tick failed", zap.Error(err))
				}
			}()
		}
	}
}

// Stop para o scheduler. Resultados que chegarem depois são descartados.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.stopOne.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) slot(seriesID int64) string {
	return s.table.ID + ":" + strconv.FormatInt(seriesID, 10)
}

func (s *Scheduler) hook(stage string) {
	if s.hooks.OnTickError != nil {
		s.hooks.OnTickError(stage)
	}
}

func (s *Scheduler) publish(ctx context.Context, ev events.TableEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishTableEvent(ctx, ev); err != nil {
		s.log.Warn("publish table event failed", zap.String("kind", ev.Kind), zap.Error(err))
		s.hook("publish")
	}
}

func (s *Scheduler) baseEvent(kind string, seriesID int64, ph string, point int) events.TableEvent {
	return events.TableEvent{
		Kind:     kind,
		TableID:  s.table.ID,
		SeriesID: seriesID,
		Phase:    ph,
		Point:    point,
		Outcomes: []events.BetOutcome{},
		Ts:       s.now().UTC(),
	}
}
