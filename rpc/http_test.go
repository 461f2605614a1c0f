package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"dripswap/core/state"
	"dripswap/native/dca"
	"dripswap/storage"
)

const testToken = "secret-token"

func newTestServer(t *testing.T) (*Server, *state.Manager, *dca.Engine) {
	t.Helper()
	t.Setenv(AuthTokenEnv, testToken)
	manager := state.NewManager(storage.NewMemDB())
	engine := dca.NewEngine()
	engine.SetState(manager)
	engine.SetOracle(dca.NewFixedRateOracle())
	engine.SetCounter(func() uint64 { return 10 })
	return NewServer(engine, nil), manager, engine
}

func doRequest(t *testing.T, server *Server, token string, payload string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(payload))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return recorder, resp
}

func TestHandleRejectsMalformedRequests(t *testing.T) {
	server, _, _ := newTestServer(t)

	recorder, resp := doRequest(t, server, "", "")
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("empty body: %d %+v", recorder.Code, resp.Error)
	}

	recorder, resp = doRequest(t, server, "", "{not json")
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("bad json: %d %+v", recorder.Code, resp.Error)
	}

	recorder, resp = doRequest(t, server, "", `{"jsonrpc":"1.0","method":"dca_currentPeriod","id":1}`)
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("bad version: %d %+v", recorder.Code, resp.Error)
	}

	recorder, resp = doRequest(t, server, "", `{"jsonrpc":"2.0","method":"dca_bogus","id":1}`)
	if recorder.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown method: %d %+v", recorder.Code, resp.Error)
	}
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	server, _, _ := newTestServer(t)
	payload := `{"jsonrpc":"2.0","method":"dca_createOrder","params":[{}],"id":1}`

	recorder, resp := doRequest(t, server, "", payload)
	if recorder.Code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("missing token: %d %+v", recorder.Code, resp.Error)
	}

	recorder, resp = doRequest(t, server, "wrong-token", payload)
	if recorder.Code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("wrong token: %d %+v", recorder.Code, resp.Error)
	}
}

func TestCreateOrderAndQueries(t *testing.T) {
	server, manager, _ := newTestServer(t)
	owner := "0x0000000000000000000000000000000000000001"
	var ownerAddr [20]byte
	ownerAddr[19] = 1
	if err := manager.Credit(ownerAddr, "X", big.NewInt(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	payload := `{"jsonrpc":"2.0","method":"dca_createOrder","params":[{
		"owner":"` + owner + `","sellAsset":"X","buyAsset":"Y","amountPerPeriod":"100","numberOfPeriods":10
	}],"id":1}`
	recorder, resp := doRequest(t, server, testToken, payload)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("create order: %d %+v", recorder.Code, resp.Error)
	}

	recorder, resp = doRequest(t, server, "", `{"jsonrpc":"2.0","method":"dca_getOrder","params":[{"owner":"`+owner+`","index":0}],"id":2}`)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("get order: %d %+v", recorder.Code, resp.Error)
	}
	var order OrderResult
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.SellAsset != "X" || order.AmountPerPeriod != "100" || order.StartingPeriod != 10 {
		t.Fatalf("order mismatch: %+v", order)
	}

	recorder, resp = doRequest(t, server, "", `{"jsonrpc":"2.0","method":"dca_getPair","params":[{"sellAsset":"X","buyAsset":"Y"}],"id":3}`)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("get pair: %d %+v", recorder.Code, resp.Error)
	}
	var pair PairResult
	raw, _ = json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	if pair.AmountToSwap != "100" || pair.LastSettledPeriod != 9 {
		t.Fatalf("pair mismatch: %+v", pair)
	}

	recorder, resp = doRequest(t, server, "", `{"jsonrpc":"2.0","method":"bank_getBalance","params":[{"address":"`+owner+`","symbol":"x"}],"id":4}`)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("get balance: %d %+v", recorder.Code, resp.Error)
	}
	balance := resp.Result.(map[string]interface{})
	if balance["balance"] != "0" || balance["symbol"] != "X" {
		t.Fatalf("balance mismatch: %+v", balance)
	}
}

func TestGetPairUnknownIsNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)
	recorder, resp := doRequest(t, server, "", `{"jsonrpc":"2.0","method":"dca_getPair","params":[{"sellAsset":"A","buyAsset":"B"}],"id":1}`)
	if recorder.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeNotFound {
		t.Fatalf("unknown pair: %d %+v", recorder.Code, resp.Error)
	}
}

func TestCurrentPeriod(t *testing.T) {
	server, _, _ := newTestServer(t)
	recorder, resp := doRequest(t, server, "", `{"jsonrpc":"2.0","method":"dca_currentPeriod","id":1}`)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("current period: %d %+v", recorder.Code, resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	if result["period"] != float64(10) {
		t.Fatalf("period mismatch: %+v", result)
	}
}
