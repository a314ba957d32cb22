package dto

import "time"

type PlaceBetResponse struct {
	BetID    string `json:"betId"`
	SeriesID int64  `json:"seriesId"`
	Status   string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BetView struct {
	BetID    string `json:"betId"`
	BettorID string `json:"bettorId"`
	TargetID string `json:"targetId"`
	BetType  string `json:"betType"`
	Amount   int64  `json:"amount"`
}

type RollView struct {
	SeriesID    int64     `json:"seriesId"`
	Seq         int       `json:"seq"`
	Die1        int       `json:"die1"`
	Die2        int       `json:"die2"`
	Total       int       `json:"total"`
	Outcome     string    `json:"outcome,omitempty"`
	SourceRef   string    `json:"sourceRef"`
	Substituted bool      `json:"substituted,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

type TableView struct {
	TableID    string     `json:"tableId"`
	State      string     `json:"state"` // estado do scheduler
	SeriesID   int64      `json:"seriesId"`
	Active     bool       `json:"active"`
	Phase      string     `json:"phase"`
	Point      int        `json:"point,omitempty"`
	WindowOpen bool       `json:"windowOpen"`
	OpenBets   []BetView  `json:"openBets"`
	Exposure   int64      `json:"exposure"`
	Rolls      []RollView `json:"rolls"`
}
