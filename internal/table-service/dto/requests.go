package dto

type PlaceBetRequest struct {
	BettorID string `json:"bettorId"`
	TargetID string `json:"targetId"`
	BetType  string `json:"betType"` // PASS_LINE | DONT_PASS | FIELD | COME | DONT_COME
	Amount   int64  `json:"amount"`
}

type DepositRequest struct {
	Amount int64  `json:"amount"`
	Ref    string `json:"ref"` // idempotência; vazio gera uma ref nova
}
