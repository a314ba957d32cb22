package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/radieske/craps-oracle-table/internal/table-service/dto"
)

var (
	ErrRejected = errors.New("bet rejected") // 409: janela fechada ou aposta repetida
	ErrNoFunds  = errors.New("insufficient balance")
)

// Client fala com a API HTTP do table-service
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Deposit(ctx context.Context, bettorID string, amount int64, ref string) error {
	path := "/v1/bettors/" + url.PathEscape(bettorID) + "/deposit"
	return c.post(ctx, path, dto.DepositRequest{Amount: amount, Ref: ref}, nil)
}

func (c *Client) PlaceBet(ctx context.Context, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error) {
	var out dto.PlaceBetResponse
	err := c.post(ctx, "/v1/bets", req, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		switch res.StatusCode {
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrRejected, e.Error)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %s", ErrNoFunds, e.Error)
		}
		return fmt.Errorf("table %s http %d: %s", path, res.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
