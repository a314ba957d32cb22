package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radieske/craps-oracle-table/internal/table-service/dto"
)

func TestPlaceBetAndErrors(t *testing.T) {
	var deposits []dto.DepositRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bettors/bot-1/deposit":
			var req dto.DepositRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			deposits = append(deposits, req)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		case "/v1/bets":
			var req dto.PlaceBetRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			switch req.BettorID {
			case "late":
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "betting window closed"})
			case "broke":
				w.WriteHeader(http.StatusPaymentRequired)
				_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "insufficient balance"})
			case "boom":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(dto.PlaceBetResponse{BetID: "b-1", SeriesID: 2, Status: "ACCEPTED"})
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	if err := c.Deposit(ctx, "bot-1", 500, "seed:bot-1"); err != nil {
		t.Fatal(err)
	}
	if len(deposits) != 1 || deposits[0].Amount != 500 || deposits[0].Ref != "seed:bot-1" {
		t.Errorf("deposits = %+v", deposits)
	}

	res, err := c.PlaceBet(ctx, dto.PlaceBetRequest{BettorID: "bot-1", TargetID: "shooter", BetType: "FIELD", Amount: 10})
	if err != nil || res.BetID != "b-1" || res.SeriesID != 2 {
		t.Fatalf("place = %+v, %v", res, err)
	}

	cases := []struct {
		bettor string
		want   error
	}{
		{"late", ErrRejected},
		{"broke", ErrNoFunds},
	}
	for _, tc := range cases {
		_, err := c.PlaceBet(ctx, dto.PlaceBetRequest{BettorID: tc.bettor, Amount: 1})
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.bettor, err, tc.want)
		}
	}
	if _, err := c.PlaceBet(ctx, dto.PlaceBetRequest{BettorID: "boom", Amount: 1}); err == nil {
		t.Error("expected error on 500")
	}
}
