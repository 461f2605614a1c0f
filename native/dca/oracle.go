package dca

import (
	"context"
	"fmt"
	"math/big"
	"sync"
)

// Oracle quotes how much of assetOut the supplied amount of assetIn should
// buy. Quotes may be stale; a zero or nil result is treated as a hard failure
// by the settlement protocol.
type Oracle interface {
	Consult(ctx context.Context, assetIn string, amountIn *big.Int, assetOut string) (*big.Int, error)
}

// Swapper is the untrusted execution venue. The engine transfers inAmount of
// the sell asset to the executor before calling Swap and afterwards trusts
// nothing but the observed balance delta on the vault.
type Swapper interface {
	Swap(ctx context.Context, sellAsset, buyAsset string, inAmount, outAmount *big.Int, params []byte) error
}

// FixedRateOracle quotes from a static rate table. It backs local runs and
// deterministic tests; production deployments wire a remote oracle client.
type FixedRateOracle struct {
	mu    sync.RWMutex
	rates map[string]*big.Rat
}

// NewFixedRateOracle constructs an empty rate table.
func NewFixedRateOracle() *FixedRateOracle {
	return &FixedRateOracle{rates: make(map[string]*big.Rat)}
}

func rateKey(assetIn, assetOut string) string {
	return assetIn + "/" + assetOut
}

// SetRate installs the out-per-in rate for a directed pair.
func (o *FixedRateOracle) SetRate(assetIn, assetOut string, rate *big.Rat) {
	if o == nil || rate == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rates[rateKey(assetIn, assetOut)] = new(big.Rat).Set(rate)
}

// Consult implements the Oracle interface.
func (o *FixedRateOracle) Consult(_ context.Context, assetIn string, amountIn *big.Int, assetOut string) (*big.Int, error) {
	if o == nil {
		return nil, fmt.Errorf("dca: fixed rate oracle not initialised")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	o.mu.RLock()
	rate, ok := o.rates[rateKey(assetIn, assetOut)]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dca: no rate for %s/%s", assetIn, assetOut)
	}
	out := new(big.Rat).Mul(rate, new(big.Rat).SetInt(amountIn))
	return new(big.Int).Quo(out.Num(), out.Denom()), nil
}
