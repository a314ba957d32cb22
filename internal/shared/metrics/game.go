package metrics

import "github.com/prometheus/client_golang/prometheus"

// Game agrupa os coletores da mesa. Registrado uma vez por processo.
type Game struct {
	Rolls          *prometheus.CounterVec
	Pending        *prometheus.CounterVec
	Credited       prometheus.Counter
	Lost           prometheus.Counter
	SettleFailures prometheus.Counter
	TickErrors     *prometheus.CounterVec
	TickSkips      prometheus.Counter
	BetsPlaced     *prometheus.CounterVec
	BetsRejected   *prometheus.CounterVec
	WSClients      prometheus.Gauge
}

func NewGame(reg prometheus.Registerer) *Game {
	g := &Game{
		Rolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_rolls_total", Help: "lançamentos aplicados por resultado",
		}, []string{"outcome", "substituted"}),
		Pending: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_roll_pending_total", Help: "polling esgotado sem resposta do oráculo",
		}, []string{"policy"}),
		Credited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craps_settlement_credited_total", Help: "valor creditado (aposta + lucro)",
		}),
		Lost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craps_settlement_lost_total", Help: "valor perdido pelos apostadores",
		}),
		SettleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craps_settlement_failures_total", Help: "resultados que falharam na liquidação",
		}),
		TickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_scheduler_errors_total", Help: "erros do scheduler por estágio",
		}, []string{"stage"}),
		TickSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craps_scheduler_ticks_skipped_total", Help: "ticks descartados por sobreposição",
		}),
		BetsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_bets_placed_total", Help: "apostas aceitas por tipo",
		}, []string{"bet_type"}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_bets_rejected_total", Help: "apostas recusadas por motivo",
		}, []string{"reason"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "craps_ws_clients", Help: "conexões websocket ativas",
		}),
	}
	reg.MustRegister(g.Rolls, g.Pending, g.Credited, g.Lost, g.SettleFailures,
		g.TickErrors, g.TickSkips, g.BetsPlaced, g.BetsRejected, g.WSClients)
	return g
}

// ObserveRoll, ObservePending, ObserveSettled e ObserveTickError têm a assinatura
// dos hooks do scheduler
func (g *Game) ObserveRoll(outcome string, substituted bool) {
	sub := "false"
	if substituted {
		sub = "true"
	}
	g.Rolls.WithLabelValues(outcome, sub).Inc()
}

func (g *Game) ObservePending(policy string) { g.Pending.WithLabelValues(policy).Inc() }

func (g *Game) ObserveSettled(credited, lost int64, failures int) {
	g.Credited.Add(float64(credited))
	g.Lost.Add(float64(lost))
	g.SettleFailures.Add(float64(failures))
}

func (g *Game) ObserveTickError(stage string) { g.TickErrors.WithLabelValues(stage).Inc() }

func (g *Game) ObserveSkip() { g.TickSkips.Inc() }
