package oracle

import (
	"context"
	"strconv"
	"sync"
)

// LocalOracle é um oráculo em processo: cumpre cada requisição depois de
// FulfillAfter leituras, com dados derivados por FairDice. Serve para ENV=local e testes.
type LocalOracle struct {
	Seed         string
	FulfillAfter int

	mu      sync.Mutex
	seq     int64
	reads   map[RequestID]int
	results map[RequestID]Dice
	fixed   []Dice
}

func NewLocalOracle(seed string, fulfillAfter int) *LocalOracle {
	return &LocalOracle{
		Seed:         seed,
		FulfillAfter: fulfillAfter,
		reads:        make(map[RequestID]int),
		results:      make(map[RequestID]Dice),
	}
}

// Script força os próximos resultados (em ordem), útil em testes
func (o *LocalOracle) Script(d ...Dice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fixed = append(o.fixed, d...)
}

func (o *LocalOracle) SubmitRollRequest(context.Context) (RequestID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	id := RequestID("local-" + strconv.FormatInt(o.seq, 10))
	o.reads[id] = 0
	return id, nil
}

func (o *LocalOracle) ReadRollResult(_ context.Context, id RequestID) (Dice, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if d, done := o.results[id]; done {
		return d, true, nil
	}
	n, ok := o.reads[id]
	if !ok {
		return Dice{}, false, nil
	}
	n++
	o.reads[id] = n
	if n <= o.FulfillAfter {
		return Dice{}, false, nil
	}

	d := FairDice(o.Seed, string(id))
	if len(o.fixed) > 0 {
		d = o.fixed[0]
		o.fixed = o.fixed[1:]
	}
	delete(o.reads, id)
	o.results[id] = d
	return d, true, nil
}
