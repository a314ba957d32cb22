package dto

// RollRequestResponse é a resposta de POST /oracle/rolls
type RollRequestResponse struct {
	RequestID string `json:"requestId"`
	Seq       int64  `json:"seq"`
}

// RollResultResponse é a resposta de GET /oracle/rolls/{id}
type RollResultResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"` // PENDING | FULFILLED
	Die1      int    `json:"die1,omitempty"`
	Die2      int    `json:"die2,omitempty"`
	Proof     string `json:"proof,omitempty"` // hmac hex para verificação
}

const (
	StatusPending   = "PENDING"
	StatusFulfilled = "FULFILLED"
)
