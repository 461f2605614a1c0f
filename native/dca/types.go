package dca

import (
	"fmt"
	"math/big"
	"strings"
)

// PairLedger is the aggregate state for one (sellAsset, buyAsset) direction.
// AmountToSwap is the per-period sell amount contributed by every order whose
// interval contains the next unsettled period. LastSettledPeriod advances by
// exactly one per successful settlement.
type PairLedger struct {
	SellAsset         string
	BuyAsset          string
	AmountToSwap      *big.Int
	LastSettledPeriod uint64
}

// Clone returns a deep copy to avoid callers mutating shared pointers.
func (p *PairLedger) Clone() *PairLedger {
	if p == nil {
		return nil
	}
	clone := *p
	clone.AmountToSwap = cloneBigInt(p.AmountToSwap)
	return &clone
}

// PeriodRecord is the per (pair, period) historical record. AmountToReduce
// accumulates before the period settles; ExchangeRate and FeeNumerator are
// written exactly once, at settlement time, and are immutable thereafter.
type PeriodRecord struct {
	// AmountToReduce is subtracted from the aggregate when this period
	// settles, retiring orders whose final period this is.
	AmountToReduce *big.Int
	// ExchangeRate is the realised buy-per-sell rate scaled by RateScale.
	ExchangeRate *big.Int
	// FeeNumerator snapshots the fee in force at settlement so later fee
	// changes cannot retroactively alter the period.
	FeeNumerator uint64
	// Settled marks the record as written by a completed settlement.
	Settled bool
}

// Clone returns a deep copy to avoid callers mutating shared pointers.
func (r *PeriodRecord) Clone() *PeriodRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.AmountToReduce = cloneBigInt(r.AmountToReduce)
	clone.ExchangeRate = cloneBigInt(r.ExchangeRate)
	return &clone
}

// UserOrder is one user's dollar-cost-averaging schedule. Orders are
// append-only: fully withdrawing soft-closes an order but never deletes it.
type UserOrder struct {
	Owner               [20]byte
	SellAsset           string
	BuyAsset            string
	AmountPerPeriod     *big.Int
	NumberOfPeriods     uint64
	StartingPeriod      uint64
	LastWithdrawnPeriod uint64
	// WithdrawnAmount accumulates every buy-asset payout made to the owner.
	// Kept on the order because a replay over period records would
	// misattribute periods settled after an early cancellation.
	WithdrawnAmount *big.Int
}

// FinalPeriod is the last period the order contributes to the aggregate.
func (o *UserOrder) FinalPeriod() uint64 {
	if o == nil {
		return 0
	}
	return o.StartingPeriod + o.NumberOfPeriods - 1
}

// Clone returns a deep copy to avoid callers mutating shared pointers.
func (o *UserOrder) Clone() *UserOrder {
	if o == nil {
		return nil
	}
	clone := *o
	clone.AmountPerPeriod = cloneBigInt(o.AmountPerPeriod)
	clone.WithdrawnAmount = cloneBigInt(o.WithdrawnAmount)
	return &clone
}

// --- stored representations (RLP cannot encode big.Int pointers as-is, so
// amounts travel as decimal strings, matching the voucher ledger convention) ---

type storedPairLedger struct {
	SellAsset         string
	BuyAsset          string
	AmountToSwap      string
	LastSettledPeriod uint64
}

type storedPeriodRecord struct {
	AmountToReduce string
	ExchangeRate   string
	FeeNumerator   uint64
	Settled        bool
}

type storedUserOrder struct {
	Owner               [20]byte
	SellAsset           string
	BuyAsset            string
	AmountPerPeriod     string
	NumberOfPeriods     uint64
	StartingPeriod      uint64
	LastWithdrawnPeriod uint64
	WithdrawnAmount     string
}

func toStoredPair(p *PairLedger) storedPairLedger {
	if p == nil {
		return storedPairLedger{AmountToSwap: "0"}
	}
	return storedPairLedger{
		SellAsset:         p.SellAsset,
		BuyAsset:          p.BuyAsset,
		AmountToSwap:      bigIntToString(p.AmountToSwap),
		LastSettledPeriod: p.LastSettledPeriod,
	}
}

func fromStoredPair(stored *storedPairLedger) (*PairLedger, error) {
	if stored == nil {
		return nil, fmt.Errorf("dca: nil stored pair ledger")
	}
	amount, err := bigIntFromString(stored.AmountToSwap)
	if err != nil {
		return nil, fmt.Errorf("dca: pair ledger amount: %w", err)
	}
	return &PairLedger{
		SellAsset:         stored.SellAsset,
		BuyAsset:          stored.BuyAsset,
		AmountToSwap:      amount,
		LastSettledPeriod: stored.LastSettledPeriod,
	}, nil
}

func toStoredPeriod(r *PeriodRecord) storedPeriodRecord {
	if r == nil {
		return storedPeriodRecord{AmountToReduce: "0", ExchangeRate: "0"}
	}
	return storedPeriodRecord{
		AmountToReduce: bigIntToString(r.AmountToReduce),
		ExchangeRate:   bigIntToString(r.ExchangeRate),
		FeeNumerator:   r.FeeNumerator,
		Settled:        r.Settled,
	}
}

func fromStoredPeriod(stored *storedPeriodRecord) (*PeriodRecord, error) {
	if stored == nil {
		return nil, fmt.Errorf("dca: nil stored period record")
	}
	reduce, err := bigIntFromString(stored.AmountToReduce)
	if err != nil {
		return nil, fmt.Errorf("dca: period reduce amount: %w", err)
	}
	rate, err := bigIntFromString(stored.ExchangeRate)
	if err != nil {
		return nil, fmt.Errorf("dca: period exchange rate: %w", err)
	}
	return &PeriodRecord{
		AmountToReduce: reduce,
		ExchangeRate:   rate,
		FeeNumerator:   stored.FeeNumerator,
		Settled:        stored.Settled,
	}, nil
}

func toStoredOrder(o *UserOrder) storedUserOrder {
	if o == nil {
		return storedUserOrder{AmountPerPeriod: "0", WithdrawnAmount: "0"}
	}
	return storedUserOrder{
		Owner:               o.Owner,
		SellAsset:           o.SellAsset,
		BuyAsset:            o.BuyAsset,
		AmountPerPeriod:     bigIntToString(o.AmountPerPeriod),
		NumberOfPeriods:     o.NumberOfPeriods,
		StartingPeriod:      o.StartingPeriod,
		LastWithdrawnPeriod: o.LastWithdrawnPeriod,
		WithdrawnAmount:     bigIntToString(o.WithdrawnAmount),
	}
}

func fromStoredOrder(stored *storedUserOrder) (*UserOrder, error) {
	if stored == nil {
		return nil, fmt.Errorf("dca: nil stored order")
	}
	amount, err := bigIntFromString(stored.AmountPerPeriod)
	if err != nil {
		return nil, fmt.Errorf("dca: order amount: %w", err)
	}
	withdrawn, err := bigIntFromString(stored.WithdrawnAmount)
	if err != nil {
		return nil, fmt.Errorf("dca: order withdrawn amount: %w", err)
	}
	return &UserOrder{
		Owner:               stored.Owner,
		SellAsset:           stored.SellAsset,
		BuyAsset:            stored.BuyAsset,
		AmountPerPeriod:     amount,
		NumberOfPeriods:     stored.NumberOfPeriods,
		StartingPeriod:      stored.StartingPeriod,
		LastWithdrawnPeriod: stored.LastWithdrawnPeriod,
		WithdrawnAmount:     withdrawn,
	}, nil
}

// NormalizeAsset canonicalises an asset symbol: trimmed, upper case, non-empty.
func NormalizeAsset(symbol string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return "", fmt.Errorf("dca: asset symbol required")
	}
	return normalized, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func bigIntToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigIntFromString(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}
