package oraclesim

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/game/oracle"
	oracledto "github.com/radieske/craps-oracle-table/internal/game/oracle/dto"
)

// request é uma requisição de lançamento aceita pelo simulador
type request struct {
	seq       int64
	fulfilAt  time.Time
	never     bool // nunca cumpre (simula oráculo travado)
	fulfilled bool
	dice      oracle.Dice
}

// Simulator imita um oráculo com cumprimento atrasado: cada requisição só
// tem resultado depois de Delay, e uma fração NeverRatio nunca é cumprida.
type Simulator struct {
	Delay      time.Duration
	NeverRatio float64
	Seed       string

	log  *zap.Logger
	now  func() time.Time
	rand *rand.Rand

	mu   sync.Mutex
	seq  int64
	reqs map[string]*request

	OnRequest func()
	OnFulfil  func()
	OnPending func()
}

func New(seed string, delay time.Duration, neverRatio float64, log *zap.Logger) *Simulator {
	return &Simulator{
		Delay:      delay,
		NeverRatio: neverRatio,
		Seed:       seed,
		log:        log,
		now:        time.Now,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		reqs:       make(map[string]*request),
	}
}

// WithClock troca o relógio (testes)
func (s *Simulator) WithClock(now func() time.Time) *Simulator {
	s.now = now
	return s
}

// SeedHash é o compromisso público com a seed do servidor
func (s *Simulator) SeedHash() string {
	sum := sha256.Sum256([]byte(s.Seed))
	return hex.EncodeToString(sum[:])
}

func (s *Simulator) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/oracle/rolls", s.submit)
	r.Get("/oracle/rolls/{id}", s.read)
	r.Get("/oracle/commitment", s.commitment)
	return r
}

func (s *Simulator) submit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.seq++
	id := uuid.NewString()
	req := &request{
		seq:      s.seq,
		fulfilAt: s.now().Add(s.Delay),
		never:    s.NeverRatio > 0 && s.rand.Float64() < s.NeverRatio,
	}
	s.reqs[id] = req
	s.mu.Unlock()

	if s.OnRequest != nil {
		s.OnRequest()
	}
	s.log.Debug("roll requested", zap.String("request_id", id), zap.Int64("seq", req.seq), zap.Bool("never", req.never))
	writeJSON(w, http.StatusAccepted, oracledto.RollRequestResponse{RequestID: id, Seq: req.seq})
}

func (s *Simulator) read(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	req, ok := s.reqs[id]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	justFulfilled := false
	if !req.fulfilled && !req.never && !s.now().Before(req.fulfilAt) {
		req.fulfilled = true
		req.dice = oracle.FairDice(s.Seed, id)
		justFulfilled = true
	}
	resp := oracledto.RollResultResponse{RequestID: id, Status: oracledto.StatusPending}
	if req.fulfilled {
		resp.Status = oracledto.StatusFulfilled
		resp.Die1, resp.Die2 = req.dice.Die1, req.dice.Die2
		resp.Proof = oracle.FairProof(s.Seed, id)
	}
	s.mu.Unlock()

	switch {
	case justFulfilled && s.OnFulfil != nil:
		s.OnFulfil()
	case resp.Status == oracledto.StatusPending && s.OnPending != nil:
		s.OnPending()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Simulator) commitment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"seedHash": s.SeedHash(), "algorithm": "HMAC-SHA256(seed, requestId:round)"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
