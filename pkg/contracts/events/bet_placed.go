package events

type BetPlaced struct {
	BetID    string `json:"bet_id"`
	TableID  string `json:"table_id"`
	SeriesID int64  `json:"series_id"`
	BettorID string `json:"bettor_id"`
	TargetID string `json:"target_id"`
	BetType  string `json:"bet_type"`
	Amount   int64  `json:"amount"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
