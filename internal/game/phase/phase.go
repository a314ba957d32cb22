package phase

import (
	"errors"
	"fmt"
	"time"
)

// Phase representa a fase corrente de uma série na mesa
type Phase int

const (
	Idle Phase = iota
	ComeOut
	Point
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case ComeOut:
		return "COME_OUT"
	case Point:
		return "POINT"
	}
	return fmt.Sprintf("PHASE(%d)", int(p))
}

// Outcome classifica o resultado de um lançamento para a série
type Outcome int

const (
	NoChange Outcome = iota
	NaturalWin
	Craps
	PointEstablished
	PointMade
	SevenOut
)

func (o Outcome) String() string {
	switch o {
	case NoChange:
		return "NO_CHANGE"
	case NaturalWin:
		return "NATURAL_WIN"
	case Craps:
		return "CRAPS"
	case PointEstablished:
		return "POINT_ESTABLISHED"
	case PointMade:
		return "POINT_MADE"
	case SevenOut:
		return "SEVEN_OUT"
	}
	return fmt.Sprintf("OUTCOME(%d)", int(o))
}

// Terminal indica se o resultado encerra a série (fase volta para Idle)
func (o Outcome) Terminal() bool { return o == PointMade || o == SevenOut }

// State é o par fase/point. Point == 0 significa "sem point".
type State struct {
	Phase Phase
	Point int
}

// Transition é o retorno de Advance: próximo estado e classificação do lançamento
type Transition struct {
	Next    State
	Outcome Outcome
}

// IsPointNumber retorna true para os totais que estabelecem point (4,5,6,8,9,10)
func IsPointNumber(total int) bool {
	switch total {
	case 4, 5, 6, 8, 9, 10:
		return true
	}
	return false
}

// Advance calcula a próxima fase a partir do estado atual e do total dos dados.
// Função pura: quem chama aplica o Next na Series.
func Advance(cur State, total int) Transition {
	if cur.Phase == Point {
		switch {
		case total == cur.Point:
			return Transition{Next: State{Phase: Idle}, Outcome: PointMade}
		case total == 7:
			return Transition{Next: State{Phase: Idle}, Outcome: SevenOut}
		default:
			return Transition{Next: cur, Outcome: NoChange}
		}
	}

	// Idle e ComeOut se comportam igual: é um come-out roll
	switch {
	case total == 7 || total == 11:
		return Transition{Next: State{Phase: ComeOut}, Outcome: NaturalWin}
	case total == 2 || total == 3 || total == 12:
		return Transition{Next: State{Phase: ComeOut}, Outcome: Craps}
	default:
		return Transition{Next: State{Phase: Point, Point: total}, Outcome: PointEstablished}
	}
}

var ErrInvalidDice = errors.New("invalid dice")

// Roll é imutável depois de registrado
type Roll struct {
	Die1        int
	Die2        int
	Total       int
	SeriesID    int64
	Seq         int
	SourceRef   string // id da requisição no oráculo
	Substituted bool   // true quando o valor não veio do oráculo (política substitute)
}

// NewRoll valida os dados e calcula o total
func NewRoll(seriesID int64, seq int, die1, die2 int, sourceRef string) (Roll, error) {
	if die1 < 1 || die1 > 6 || die2 < 1 || die2 > 6 {
		return Roll{}, fmt.Errorf("%w: %d,%d", ErrInvalidDice, die1, die2)
	}
	return Roll{
		Die1:      die1,
		Die2:      die2,
		Total:     die1 + die2,
		SeriesID:  seriesID,
		Seq:       seq,
		SourceRef: sourceRef,
	}, nil
}

// Series é uma partida completa: do come-out até PointMade/SevenOut.
// É a única dona de fase/point.
type Series struct {
	ID        int64
	CreatedAt time.Time

	state  State
	rolls  []Roll
	voided bool
}

func NewSeries(id int64, now time.Time) *Series {
	return &Series{ID: id, CreatedAt: now, state: State{Phase: ComeOut}}
}

func (s *Series) State() State { return s.state }
func (s *Series) Phase() Phase { return s.state.Phase }
func (s *Series) Point() int { return s.state.Point }
func (s *Series) Rolls() []Roll { return append([]Roll(nil), s.rolls...) }
func (s *Series) NextSeq() int { return len(s.rolls) + 1 }
func (s *Series) Voided() bool { return s.voided }
func (s *Series) Ended() bool {
	return s.voided || (len(s.rolls) > 0 && s.state.Phase == Idle)
}
func (s *Series) LastRoll() *Roll { return lastRoll(s.rolls) }

// Apply registra o lançamento e aplica a transição calculada por Advance
func (s *Series) Apply(r Roll, t Transition) {
	s.rolls = append(s.rolls, r)
	s.state = t.Next
}

// Void encerra a série sem decisão (oráculo não respondeu e a política é fail)
func (s *Series) Void() {
	s.voided = true
	s.state = State{Phase: Idle}
}

func lastRoll(rs []Roll) *Roll {
	if len(rs) == 0 {
		return nil
	}
	r := rs[len(rs)-1]
	return &r
}
