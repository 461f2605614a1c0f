package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dripswap/core/types"
	"dripswap/native/dca"
)

// Server is the read-only REST surface in front of the settlement engine,
// intended for dashboards and integrations that cannot speak JSON-RPC.
type Server struct {
	engine *dca.Engine
	log    *slog.Logger
}

// NewServer wires a read-only gateway around the engine.
func NewServer(engine *dca.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, log: logger}
}

// Router builds the REST routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/period", s.handleCurrentPeriod)
		v1.Get("/params", s.handleParams)
		v1.Get("/accounts/{address}/orders", s.handleListOrders)
		v1.Get("/accounts/{address}/orders/{index}", s.handleGetOrder)
		v1.Get("/accounts/{address}/orders/{index}/withdrawable", s.handleWithdrawable)
		v1.Get("/accounts/{address}/balances/{symbol}", s.handleBalance)
		v1.Get("/pairs/{sell}/{buy}", s.handlePair)
		v1.Get("/pairs/{sell}/{buy}/periods/{period}", s.handlePeriod)
	})

	return r
}

// Start serves the gateway until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting REST gateway", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dca.ErrOrderNotFound), errors.Is(err, dca.ErrUnknownPair):
		status = http.StatusNotFound
	case errors.Is(err, dca.ErrInvalidAmount),
		errors.Is(err, dca.ErrInvalidPeriod),
		errors.Is(err, dca.ErrSameAsset):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

type orderBody struct {
	Owner               string `json:"owner"`
	Index               uint64 `json:"index"`
	SellAsset           string `json:"sellAsset"`
	BuyAsset            string `json:"buyAsset"`
	AmountPerPeriod     string `json:"amountPerPeriod"`
	NumberOfPeriods     uint64 `json:"numberOfPeriods"`
	StartingPeriod      uint64 `json:"startingPeriod"`
	FinalPeriod         uint64 `json:"finalPeriod"`
	LastWithdrawnPeriod uint64 `json:"lastWithdrawnPeriod"`
	Withdrawable        string `json:"withdrawable,omitempty"`
}

func (s *Server) orderBody(owner [20]byte, index uint64, order *dca.UserOrder, includeEntitlement bool) orderBody {
	body := orderBody{
		Owner:               types.FormatAddress(owner),
		Index:               index,
		SellAsset:           order.SellAsset,
		BuyAsset:            order.BuyAsset,
		AmountPerPeriod:     order.AmountPerPeriod.String(),
		NumberOfPeriods:     order.NumberOfPeriods,
		StartingPeriod:      order.StartingPeriod,
		FinalPeriod:         order.FinalPeriod(),
		LastWithdrawnPeriod: order.LastWithdrawnPeriod,
	}
	if includeEntitlement {
		if amount, err := s.engine.Withdrawable(owner, index); err == nil {
			body.Withdrawable = amount.String()
		}
	}
	return body
}

func parseAddressParam(r *http.Request) ([20]byte, error) {
	return types.ParseAddress(chi.URLParam(r, "address"))
}

func (s *Server) handleCurrentPeriod(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"period": s.engine.CurrentPeriod()})
}

func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	params, err := s.engine.Params()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	aliases := make(map[string]string, len(params.PriceAliases))
	for _, alias := range params.PriceAliases {
		aliases[alias.Asset] = alias.Alias
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feeNumerator": params.FeeNumerator,
		"beneficiary":  types.FormatAddress(params.Beneficiary),
		"priceAliases": aliases,
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddressParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	orders, err := s.engine.Orders(owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	bodies := make([]orderBody, len(orders))
	for i, order := range orders {
		bodies[i] = s.orderBody(owner, uint64(i), order, false)
	}
	writeJSON(w, http.StatusOK, bodies)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddressParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order index"})
		return
	}
	order, err := s.engine.Order(owner, index)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orderBody(owner, index, order, true))
}

func (s *Server) handleWithdrawable(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddressParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order index"})
		return
	}
	amount, err := s.engine.Withdrawable(owner, index)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawable": amount.String()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	symbol, err := dca.NormalizeAsset(chi.URLParam(r, "symbol"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	balance, err := s.engine.Balance(addr, symbol)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": types.FormatAddress(addr),
		"symbol":  symbol,
		"balance": balance.String(),
	})
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.engine.Pair(chi.URLParam(r, "sell"), chi.URLParam(r, "buy"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sellAsset":         ledger.SellAsset,
		"buyAsset":          ledger.BuyAsset,
		"amountToSwap":      ledger.AmountToSwap.String(),
		"lastSettledPeriod": ledger.LastSettledPeriod,
	})
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	period, err := strconv.ParseUint(chi.URLParam(r, "period"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid period"})
		return
	}
	record, ok, err := s.engine.Period(chi.URLParam(r, "sell"), chi.URLParam(r, "buy"), period)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "period record not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":         period,
		"amountToReduce": record.AmountToReduce.String(),
		"exchangeRate":   record.ExchangeRate.String(),
		"feeNumerator":   record.FeeNumerator,
		"settled":        record.Settled,
	})
}
