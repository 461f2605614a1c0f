package gateway

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"dripswap/core/state"
	"dripswap/native/dca"
	"dripswap/storage"
)

func newTestGateway(t *testing.T) (*Server, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := dca.NewEngine()
	engine.SetState(manager)
	engine.SetOracle(dca.NewFixedRateOracle())
	engine.SetCounter(func() uint64 { return 7 })
	return NewServer(engine, nil), manager
}

func get(t *testing.T, server *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if len(recorder.Body.Bytes()) > 0 && recorder.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %q: %v", recorder.Body.String(), err)
		}
	}
	return recorder, body
}

func TestHealthz(t *testing.T) {
	server, _ := newTestGateway(t)
	recorder, _ := get(t, server, "/healthz")
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz: %d", recorder.Code)
	}
}

func TestCurrentPeriodRoute(t *testing.T) {
	server, _ := newTestGateway(t)
	recorder, body := get(t, server, "/v1/period")
	if recorder.Code != http.StatusOK {
		t.Fatalf("period: %d", recorder.Code)
	}
	if body["period"] != float64(7) {
		t.Fatalf("period mismatch: %+v", body)
	}
}

func TestOrderAndPairRoutes(t *testing.T) {
	server, manager := newTestGateway(t)
	var owner [20]byte
	owner[19] = 1
	if err := manager.Credit(owner, "X", big.NewInt(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := server.engine.CreateOrder(owner, "X", "Y", big.NewInt(100), 10); err != nil {
		t.Fatalf("create order: %v", err)
	}

	recorder, body := get(t, server, "/v1/accounts/0x0000000000000000000000000000000000000001/orders/0")
	if recorder.Code != http.StatusOK {
		t.Fatalf("get order: %d %s", recorder.Code, recorder.Body.String())
	}
	if body["sellAsset"] != "X" || body["amountPerPeriod"] != "100" {
		t.Fatalf("order mismatch: %+v", body)
	}
	if body["withdrawable"] != "0" {
		t.Fatalf("withdrawable mismatch: %+v", body)
	}

	recorder, body = get(t, server, "/v1/pairs/X/Y")
	if recorder.Code != http.StatusOK {
		t.Fatalf("get pair: %d", recorder.Code)
	}
	if body["amountToSwap"] != "100" || body["lastSettledPeriod"] != float64(6) {
		t.Fatalf("pair mismatch: %+v", body)
	}

	recorder, body = get(t, server, "/v1/accounts/0x0000000000000000000000000000000000000001/balances/x")
	if recorder.Code != http.StatusOK {
		t.Fatalf("get balance: %d", recorder.Code)
	}
	if body["balance"] != "0" {
		t.Fatalf("balance mismatch: %+v", body)
	}

	recorder, _ = get(t, server, "/v1/pairs/A/B")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown pair: %d", recorder.Code)
	}
	recorder, _ = get(t, server, "/v1/pairs/X/Y/periods/16")
	if recorder.Code != http.StatusOK {
		t.Fatalf("final period record: %d %s", recorder.Code, recorder.Body.String())
	}
	recorder, _ = get(t, server, "/v1/pairs/X/Y/periods/3")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing period: %d", recorder.Code)
	}
}
