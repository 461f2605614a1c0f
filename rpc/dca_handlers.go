package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"dripswap/core/types"
	"dripswap/native/dca"
	"dripswap/observability/metrics"
)

type createOrderParams struct {
	Owner           string `json:"owner"`
	SellAsset       string `json:"sellAsset"`
	BuyAsset        string `json:"buyAsset"`
	AmountPerPeriod string `json:"amountPerPeriod"`
	NumberOfPeriods uint64 `json:"numberOfPeriods"`
}

type executeOrderParams struct {
	SellAsset string `json:"sellAsset"`
	BuyAsset  string `json:"buyAsset"`
	Period    uint64 `json:"period"`
	Executor  string `json:"executor"`
	// Params is opaque hex forwarded verbatim to the execution venue.
	Params string `json:"params,omitempty"`
}

type orderRefParams struct {
	Owner string `json:"owner"`
	Index uint64 `json:"index"`
}

type pairRefParams struct {
	SellAsset string `json:"sellAsset"`
	BuyAsset  string `json:"buyAsset"`
	Period    uint64 `json:"period,omitempty"`
}

type setFeeParams struct {
	Caller    string `json:"caller"`
	Numerator uint64 `json:"numerator"`
}

type setAddressParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type setAliasParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Alias  string `json:"alias"`
}

type balanceParams struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// OrderResult is the wire form of a user order.
type OrderResult struct {
	Owner               string `json:"owner"`
	Index               uint64 `json:"index"`
	SellAsset           string `json:"sellAsset"`
	BuyAsset            string `json:"buyAsset"`
	AmountPerPeriod     string `json:"amountPerPeriod"`
	NumberOfPeriods     uint64 `json:"numberOfPeriods"`
	StartingPeriod      uint64 `json:"startingPeriod"`
	FinalPeriod         uint64 `json:"finalPeriod"`
	LastWithdrawnPeriod uint64 `json:"lastWithdrawnPeriod"`
}

// PairResult is the wire form of a pair ledger.
type PairResult struct {
	SellAsset         string `json:"sellAsset"`
	BuyAsset          string `json:"buyAsset"`
	AmountToSwap      string `json:"amountToSwap"`
	LastSettledPeriod uint64 `json:"lastSettledPeriod"`
}

// PeriodResult is the wire form of a period record.
type PeriodResult struct {
	Period         uint64 `json:"period"`
	AmountToReduce string `json:"amountToReduce"`
	ExchangeRate   string `json:"exchangeRate"`
	FeeNumerator   uint64 `json:"feeNumerator"`
	Settled        bool   `json:"settled"`
}

// ParamsResult is the wire form of the engine parameters.
type ParamsResult struct {
	FeeNumerator uint64            `json:"feeNumerator"`
	Beneficiary  string            `json:"beneficiary"`
	Authority    string            `json:"authority"`
	PriceAliases map[string]string `json:"priceAliases,omitempty"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("params object required")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func orderResult(owner [20]byte, index uint64, order *dca.UserOrder) OrderResult {
	return OrderResult{
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
}

func pairLabel(sellAsset, buyAsset string) string {
	return sellAsset + "/" + buyAsset
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.AmountPerPeriod)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	index, err := s.engine.CreateOrder(owner, params.SellAsset, params.BuyAsset, amount, params.NumberOfPeriods)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.DCA().ObserveOrderCreated(pairLabel(params.SellAsset, params.BuyAsset))
	s.log.Info("order created",
		"owner", types.FormatAddress(owner),
		"index", index,
		"pair", pairLabel(params.SellAsset, params.BuyAsset))
	writeResult(w, req.ID, map[string]interface{}{"index": index})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params executeOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	executor, err := types.ParseAddress(params.Executor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var execParams []byte
	if trimmed := strings.TrimPrefix(strings.TrimSpace(params.Params), "0x"); trimmed != "" {
		if execParams, err = hex.DecodeString(trimmed); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params hex", err.Error())
			return
		}
	}
	if err := s.engine.ExecuteOrder(r.Context(), params.SellAsset, params.BuyAsset, params.Period, executor, execParams); err != nil {
		metrics.DCA().ObserveSettlementError(settlementErrorReason(err))
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.DCA().ObservePeriodSettled(pairLabel(params.SellAsset, params.BuyAsset), params.Period)
	s.log.Info("period settled",
		"pair", pairLabel(params.SellAsset, params.BuyAsset),
		"period", params.Period,
		"executor", types.FormatAddress(executor))
	writeResult(w, req.ID, map[string]interface{}{"settledPeriod": params.Period})
}

func settlementErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	default:
		// The sentinel text doubles as the metric label.
		parts := strings.SplitN(err.Error(), ":", 2)
		return strings.TrimSpace(strings.TrimPrefix(parts[0], "dca"))
	}
}

func (s *Server) handleWithdrawSwapped(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.engine.WithdrawSwapped(owner, params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.DCA().ObserveWithdrawal("swapped")
	writeResult(w, req.ID, map[string]interface{}{"withdrawn": amount.String()})
}

func (s *Server) handleWithdrawAll(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	withdrawn, refund, err := s.engine.WithdrawAll(owner, params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.DCA().ObserveWithdrawal("all")
	writeResult(w, req.ID, map[string]interface{}{
		"withdrawn": withdrawn.String(),
		"refund":    refund.String(),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	order, err := s.engine.Order(owner, params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderResult(owner, params.Index, order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	orders, err := s.engine.Orders(owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	results := make([]OrderResult, len(orders))
	for i, order := range orders {
		results[i] = orderResult(owner, uint64(i), order)
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleGetPair(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pairRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ledger, err := s.engine.Pair(params.SellAsset, params.BuyAsset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, PairResult{
		SellAsset:         ledger.SellAsset,
		BuyAsset:          ledger.BuyAsset,
		AmountToSwap:      ledger.AmountToSwap.String(),
		LastSettledPeriod: ledger.LastSettledPeriod,
	})
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pairRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, ok, err := s.engine.Period(params.SellAsset, params.BuyAsset, params.Period)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "period record not found", nil)
		return
	}
	writeResult(w, req.ID, PeriodResult{
		Period:         params.Period,
		AmountToReduce: record.AmountToReduce.String(),
		ExchangeRate:   record.ExchangeRate.String(),
		FeeNumerator:   record.FeeNumerator,
		Settled:        record.Settled,
	})
}

func (s *Server) handleWithdrawable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.engine.Withdrawable(owner, params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"withdrawable": amount.String()})
}

func (s *Server) handleWithdrawn(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.engine.Withdrawn(owner, params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"withdrawn": amount.String()})
}

func (s *Server) handleCurrentPeriod(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]interface{}{"period": s.engine.CurrentPeriod()})
}

func (s *Server) handleGetParams(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, err := s.engine.Params()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := ParamsResult{
		FeeNumerator: params.FeeNumerator,
		Beneficiary:  types.FormatAddress(params.Beneficiary),
		Authority:    types.FormatAddress(params.Authority),
	}
	if len(params.PriceAliases) > 0 {
		result.PriceAliases = make(map[string]string, len(params.PriceAliases))
		for _, alias := range params.PriceAliases {
			result.PriceAliases[alias.Asset] = alias.Alias
		}
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleSetFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setFeeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetFee(caller, params.Numerator); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"ok": true})
}

func (s *Server) handleSetBeneficiary(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	beneficiary, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetBeneficiary(caller, beneficiary); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"ok": true})
}

func (s *Server) handleSetAuthority(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	authority, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetAuthority(caller, authority); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"ok": true})
}

func (s *Server) handleSetPriceAlias(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setAliasParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetPriceAlias(caller, params.Asset, params.Alias); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"ok": true})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	symbol, err := dca.NormalizeAsset(params.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.engine.Balance(addr, symbol)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"address": types.FormatAddress(addr),
		"symbol":  symbol,
		"balance": balance.String(),
	})
}
