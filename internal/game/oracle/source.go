package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrSlotBusy          = errors.New("roll request already in flight")
	ErrUnknownPolicy     = errors.New("unknown pending policy")
)

// RequestID é o identificador monotônico devolvido pelo oráculo
type RequestID string

// Dice é o par de dados cumprido pelo oráculo
type Dice struct {
	Die1 int `json:"die1"`
	Die2 int `json:"die2"`
}

// Oracle é a fronteira com o oráculo externo (transporte fora do core)
type Oracle interface {
	SubmitRollRequest(ctx context.Context) (RequestID, error)
	// ReadRollResult retorna fulfilled=false enquanto o oráculo não cumpriu a requisição
	ReadRollResult(ctx context.Context, id RequestID) (d Dice, fulfilled bool, err error)
}

// Handle identifica uma requisição em andamento e o slot que ela ocupa
type Handle struct {
	ID          RequestID
	Slot        string
	RequestedAt time.Time
}

// Status do polling
type Status int

const (
	Pending Status = iota
	Fulfilled
)

func (s Status) String() string {
	if s == Fulfilled {
		return "FULFILLED"
	}
	return "PENDING"
}

// Outcome é o resultado de PollResult: Fulfilled com dados ou Pending
type Outcome struct {
	Status   Status
	Dice     Dice
	Attempts int
	LastErr  error // último erro de leitura engolido durante o polling
}

// Source envolve o Oracle com controle de slot e polling com tentativas limitadas
type Source struct {
	oracle Oracle
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	inFlight map[string]RequestID
}

func NewSource(o Oracle, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		oracle:   o,
		log:      log,
		now:      time.Now,
		inFlight: make(map[string]RequestID),
	}
}

// RequestRoll submete uma requisição ocupando o slot informado.
// Um segundo pedido para o mesmo slot falha com ErrSlotBusy até Release.
func (s *Source) RequestRoll(ctx context.Context, slot string) (Handle, error) {
	s.mu.Lock()
	if id, busy := s.inFlight[slot]; busy {
		s.mu.Unlock()
		return Handle{}, fmt.Errorf("%w: slot %s has %s", ErrSlotBusy, slot, id)
	}
	s.inFlight[slot] = "" // reserva antes do I/O
	s.mu.Unlock()

	id, err := s.oracle.SubmitRollRequest(ctx)
	if err != nil {
		s.mu.Lock()
		delete(s.inFlight, slot)
		s.mu.Unlock()
		return Handle{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	s.mu.Lock()
	s.inFlight[slot] = id
	s.mu.Unlock()

	s.log.Debug("roll requested", zap.String("request_id", string(id)), zap.String("slot", slot))
	return Handle{ID: id, Slot: slot, RequestedAt: s.now()}, nil
}

// Release libera o slot ocupado pelo handle
func (s *Source) Release(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.inFlight[h.Slot]; ok && id == h.ID {
		delete(s.inFlight, h.Slot)
	}
}

// InFlight informa quantos slots estão ocupados
func (s *Source) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// PollResult faz no máximo maxAttempts leituras espaçadas por interval.
// Erros de leitura contam como tentativa e não encerram o polling.
// Só retorna erro se o contexto for cancelado.
func (s *Source) PollResult(ctx context.Context, h Handle, maxAttempts int, interval time.Duration) (Outcome, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var out Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt

		d, ok, err := s.oracle.ReadRollResult(ctx, h.ID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			out.LastErr = err
			s.log.Debug("oracle read failed", zap.String("request_id", string(h.ID)), zap.Int("attempt", attempt), zap.Error(err))
		case ok:
			out.Status = Fulfilled
			out.Dice = d
			return out, nil
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(interval):
		}
	}

	out.Status = Pending
	return out, nil
}
