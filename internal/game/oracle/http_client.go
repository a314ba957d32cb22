package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	oracledto "github.com/radieske/craps-oracle-table/internal/game/oracle/dto"
)

// HTTPClient fala com o oracle-simulator (ou qualquer serviço com o mesmo contrato)
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(base string) *HTTPClient {
	return &HTTPClient{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *HTTPClient) SubmitRollRequest(ctx context.Context) (RequestID, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/oracle/rolls", nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("oracle request http %d", res.StatusCode)
	}
	var out oracledto.RollRequestResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", fmt.Errorf("oracle request: empty request id")
	}
	return RequestID(out.RequestID), nil
}

func (c *HTTPClient) ReadRollResult(ctx context.Context, id RequestID) (Dice, bool, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/oracle/rolls/"+url.PathEscape(string(id)), nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return Dice{}, false, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return Dice{}, false, fmt.Errorf("oracle result http %d", res.StatusCode)
	}
	var out oracledto.RollResultResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Dice{}, false, err
	}
	if out.Status != oracledto.StatusFulfilled {
		return Dice{}, false, nil
	}
	return Dice{Die1: out.Die1, Die2: out.Die2}, true, nil
}
