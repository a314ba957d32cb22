package betbook

import (
	"fmt"
	"strings"

	"github.com/radieske/craps-oracle-table/internal/game/phase"
)

// BetType determina a regra de vitória de uma aposta
type BetType string

const (
	PassLine BetType = "PASS_LINE"
	DontPass BetType = "DONT_PASS"
	Field    BetType = "FIELD"
	Come     BetType = "COME"
	DontCome BetType = "DONT_COME"
)

// ParseBetType aceita "pass_line", "PASS_LINE", "pass-line"...
func ParseBetType(s string) (BetType, error) {
	bt := BetType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	switch bt {
	case PassLine, DontPass, Field, Come, DontCome:
		return bt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBetType, s)
}

// decision é o resultado da regra para um lançamento: decidida ou não, ganhou ou não.
// comePoint != 0 indica que uma Come/DontCome acabou de fixar o seu point.
type decision struct {
	decided   bool
	won       bool
	comePoint int
}

func win() decision { return decision{decided: true, won: true} }
func lose() decision { return decision{decided: true} }
func undecided() decision { return decision{} }

func isNatural(total int) bool { return total == 7 || total == 11 }
func isCrapsRoll(total int) bool { return total == 2 || total == 3 || total == 12 }

func isFieldWin(total int) bool {
	switch total {
	case 2, 3, 4, 9, 10, 11, 12:
		return true
	}
	return false
}

// decide aplica a tabela de regras usando a fase/point ANTERIORES ao lançamento
func decide(b *Bet, total int, before phase.State) decision {
	switch b.Type {
	case Field:
		if isFieldWin(total) {
			return win()
		}
		return lose()

	case PassLine:
		return passLine(total, before)

	case DontPass:
		return dontPass(total, before)

	case Come:
		if b.ComePoint == 0 {
			d := passLine(total, phase.State{Phase: phase.ComeOut})
			if !d.decided {
				d.comePoint = total
			}
			return d
		}
		return passLine(total, phase.State{Phase: phase.Point, Point: b.ComePoint})

	case DontCome:
		if b.ComePoint == 0 {
			d := dontPass(total, phase.State{Phase: phase.ComeOut})
			if !d.decided {
				d.comePoint = total
			}
			return d
		}
		return dontPass(total, phase.State{Phase: phase.Point, Point: b.ComePoint})
	}
	return undecided()
}

func passLine(total int, before phase.State) decision {
	if before.Phase == phase.Point {
		switch total {
		case before.Point:
			return win()
		case 7:
			return lose()
		}
		return undecided()
	}
	switch {
	case isNatural(total):
		return win()
	case isCrapsRoll(total):
		return lose()
	}
	return undecided()
}

func dontPass(total int, before phase.State) decision {
	if before.Phase == phase.Point {
		switch total {
		case 7:
			return win()
		case before.Point:
			return lose()
		}
		return undecided()
	}
	switch {
	case isCrapsRoll(total):
		return win()
	case isNatural(total):
		return lose()
	}
	return undecided()
}
