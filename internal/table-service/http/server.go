package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/game/betbook"
	"github.com/radieske/craps-oracle-table/internal/game/ledger"
	"github.com/radieske/craps-oracle-table/internal/game/scheduler"
	"github.com/radieske/craps-oracle-table/internal/game/table"
	"github.com/radieske/craps-oracle-table/internal/table-service/dto"
	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
)

// Controller é a parte do scheduler exposta pela API
type Controller interface {
	OpenBettingWindow(ctx context.Context) error
	StartSeries(ctx context.Context) error
	State() scheduler.State
}

// RollReader lê o histórico de lançamentos
type RollReader interface {
	RollsBySeries(ctx context.Context, tableID string, seriesID int64) ([]dto.RollView, error)
}

type BetPublisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

type Server struct {
	log   *zap.Logger
	table *table.Table
	ctrl  Controller
	rolls RollReader
	publ  BetPublisher
	ws    http.HandlerFunc

	OnBetPlaced   func(betType string)
	OnBetRejected func(reason string)
}

func NewServer(log *zap.Logger, t *table.Table, c Controller, r RollReader, p BetPublisher, ws http.HandlerFunc) *Server {
	return &Server{log: log, table: t, ctrl: c, rolls: r, publ: p, ws: ws}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)

	r.Post("/v1/bets", s.placeBet)
	r.Get("/v1/table", s.getTable)
	r.Post("/v1/table/window", s.openWindow)
	r.Post("/v1/table/start", s.startSeries)
	r.Get("/v1/bettors/{id}", s.getBettor)
	r.Post("/v1/bettors/{id}/deposit", s.deposit)
	r.Get("/v1/series/{id}/rolls", s.listRolls)
	if s.ws != nil {
		r.Get("/ws", s.ws)
	}
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.BettorID == "" || req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "bettorId and targetId required")
		return
	}
	bt, err := betbook.ParseBetType(req.BetType)
	if err != nil {
		s.rejected("unknown_type")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bet, err := s.table.PlaceBet(r.Context(), betbook.Bet{
		BettorID: req.BettorID,
		TargetID: req.TargetID,
		Type:     bt,
		Amount:   req.Amount,
	})
	if err != nil {
		status, reason := betErrorStatus(err)
		s.rejected(reason)
		if status == http.StatusInternalServerError {
			s.log.Error("place bet failed", zap.String("bettor_id", req.BettorID), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	if s.OnBetPlaced != nil {
		s.OnBetPlaced(string(bet.Type))
	}

	// evento é informativo; a aposta já está no livro e debitada
	if s.publ != nil {
		if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
			BetID:    bet.ID,
			TableID:  s.table.ID,
			SeriesID: bet.SeriesID,
			BettorID: bet.BettorID,
			TargetID: bet.TargetID,
			BetType:  string(bet.Type),
			Amount:   bet.Amount,
		}); err != nil {
			s.log.Warn("publish bet placed failed", zap.String("bet_id", bet.ID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{BetID: bet.ID, SeriesID: bet.SeriesID, Status: "ACCEPTED"})
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	snap := s.table.Snapshot()
	view := dto.TableView{
		TableID:    snap.TableID,
		State:      s.ctrl.State().String(),
		SeriesID:   snap.SeriesID,
		Active:     snap.Active,
		Phase:      snap.Phase,
		Point:      snap.Point,
		WindowOpen: snap.WindowOpen,
		OpenBets:   make([]dto.BetView, 0, len(snap.OpenBets)),
		Exposure:   snap.Exposure,
		Rolls:      make([]dto.RollView, 0, len(snap.Rolls)),
	}
	for _, b := range snap.OpenBets {
		view.OpenBets = append(view.OpenBets, dto.BetView{
			BetID: b.ID, BettorID: b.BettorID, TargetID: b.TargetID, BetType: string(b.Type), Amount: b.Amount,
		})
	}
	for _, rl := range snap.Rolls {
		view.Rolls = append(view.Rolls, dto.RollView{
			SeriesID: rl.SeriesID, Seq: rl.Seq, Die1: rl.Die1, Die2: rl.Die2, Total: rl.Total,
			SourceRef: rl.SourceRef, Substituted: rl.Substituted,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) openWindow(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.OpenBettingWindow(r.Context()); err != nil {
		writeError(w, controlErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": s.ctrl.State().String()})
}

func (s *Server) startSeries(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StartSeries(r.Context()); err != nil {
		writeError(w, controlErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": s.ctrl.State().String()})
}

func (s *Server) getBettor(w http.ResponseWriter, r *http.Request) {
	acc, err := s.table.Ledger().Account(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Ref == "" {
		req.Ref = uuid.NewString()
	}
	acc, err := s.table.Ledger().Deposit(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Ref)
	if err != nil {
		if errors.Is(err, betbook.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) listRolls(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid series id")
		return
	}
	rolls, err := s.rolls.RollsBySeries(r.Context(), s.table.ID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rolls)
}

func (s *Server) rejected(reason string) {
	if s.OnBetRejected != nil {
		s.OnBetRejected(reason)
	}
}

func betErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, betbook.ErrBettingWindowClosed):
		return http.StatusConflict, "window_closed"
	case errors.Is(err, betbook.ErrDuplicateBet):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, betbook.ErrInvalidAmount), errors.Is(err, betbook.ErrUnknownBetType):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, betbook.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	}
	return http.StatusInternalServerError, "internal"
}

func controlErrorStatus(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrInvalidState), errors.Is(err, scheduler.ErrStartInProgress),
		errors.Is(err, table.ErrSeriesInProgress):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrSeriesNotRecorded), errors.Is(err, scheduler.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// withCORS libera o renderer web e responde o preflight
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
