package events

import "time"

// Tipos de evento emitidos pela mesa
const (
	KindWindowOpened  = "window_opened"
	KindSeriesStarted = "series_started"
	KindRoll          = "roll"
	KindRollPending   = "roll_pending"
	KindSeriesEnded   = "series_ended"
	KindSeriesVoided  = "series_voided"
)

// TableEvent é emitido a cada tick com estado relevante.
// Consumido pelo renderer (via WS), pelo round-archiver e pelos bots.
type TableEvent struct {
	Kind        string       `json:"kind"`
	TableID     string       `json:"tableId"`
	SeriesID    int64        `json:"seriesId"`
	Phase       string       `json:"phase"`           // IDLE | COME_OUT | POINT
	Point       int          `json:"point,omitempty"` // 0 = sem point
	Roll        *Roll        `json:"roll,omitempty"`
	Outcome     string       `json:"outcome,omitempty"`
	Outcomes    []BetOutcome `json:"outcomes"`
	SeriesEnded bool         `json:"seriesEnded"`
	RequestID   string       `json:"requestId,omitempty"` // requisição no oráculo
	WindowUntil *time.Time   `json:"windowUntil,omitempty"`
	Ts          time.Time    `json:"ts"`
}

type Roll struct {
	Die1        int    `json:"die1"`
	Die2        int    `json:"die2"`
	Total       int    `json:"total"`
	Seq         int    `json:"seq"`
	SourceRef   string `json:"sourceRef"`
	Substituted bool   `json:"substituted,omitempty"`
}

// BetOutcome é a versão serializável de um resultado de aposta
type BetOutcome struct {
	BetID    string `json:"betId"`
	BettorID string `json:"bettorId"`
	TargetID string `json:"targetId"`
	BetType  string `json:"betType"`
	Amount   int64  `json:"amount"`
	Won      bool   `json:"won"`
	Payout   int64  `json:"payout"`
	Refunded bool   `json:"refunded,omitempty"`
}
