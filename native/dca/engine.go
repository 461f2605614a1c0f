package dca

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"dripswap/core/events"
	coretypes "dripswap/core/types"
)

// EngineState is the slice of state manager functionality the engine relies
// on. Snapshot/RevertToSnapshot/Commit give each externally-triggered
// operation all-or-nothing semantics: a failed operation leaves no effects.
type EngineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Balance(addr [20]byte, symbol string) (*big.Int, error)
	Transfer(from, to [20]byte, symbol string, amount *big.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
	Commit() error
}

// VaultAddress is the module account holding order principal and bought
// assets until withdrawal. Derived, not key-controlled.
var VaultAddress = deriveModuleAddress("dripswap/module/vault")

func deriveModuleAddress(label string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte(label))
	copy(addr[:], digest[12:])
	return addr
}

// Engine orchestrates order creation, per-period aggregate settlement and
// lazy withdrawal over the pair ledgers. All operations are serialised: one
// mutex admits one operation at a time, so period ordering is enforced purely
// by the lastSettledPeriod precondition.
type Engine struct {
	mu      sync.Mutex
	state   EngineState
	oracle  Oracle
	swapper Swapper
	emitter events.Emitter

	counter       func() uint64
	periodQuantum uint64
}

// NewEngine creates an engine with a no-op emitter and a wall-clock counter.
// Callers wire state, oracle and swapper before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		counter:       func() uint64 { return uint64(time.Now().Unix()) },
		periodQuantum: 1,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetOracle configures the price source consulted at settlement time.
func (e *Engine) SetOracle(oracle Oracle) { e.oracle = oracle }

// SetSwapper configures the execution venue invoked at settlement time.
func (e *Engine) SetSwapper(swapper Swapper) { e.swapper = swapper }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetCounter overrides the monotonic counter feeding the period clock.
// Primarily intended for deterministic testing.
func (e *Engine) SetCounter(counter func() uint64) {
	if e == nil || counter == nil {
		return
	}
	e.counter = counter
}

// SetPeriodQuantum configures how many counter ticks make up one period.
func (e *Engine) SetPeriodQuantum(quantum uint64) {
	if e == nil || quantum == 0 {
		return
	}
	e.periodQuantum = quantum
}

// CurrentPeriod derives the period from the monotonic counter.
func (e *Engine) CurrentPeriod() uint64 {
	if e == nil || e.counter == nil {
		return 0
	}
	return e.counter() / e.periodQuantum
}

func (e *Engine) emit(event *coretypes.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(dcaEvent{evt: event})
}

// run serialises an operation and wraps it in a state snapshot so every
// effect is discarded when any step fails.
func (e *Engine) run(fn func() error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	return e.state.Commit()
}

// --- state helpers ---

func (e *Engine) loadPair(sellAsset, buyAsset string) (*PairLedger, bool, error) {
	var stored storedPairLedger
	ok, err := e.state.KVGet(pairKey(sellAsset, buyAsset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	ledger, err := fromStoredPair(&stored)
	if err != nil {
		return nil, false, err
	}
	return ledger, true, nil
}

func (e *Engine) putPair(ledger *PairLedger) error {
	return e.state.KVPut(pairKey(ledger.SellAsset, ledger.BuyAsset), toStoredPair(ledger))
}

func (e *Engine) loadPeriod(sellAsset, buyAsset string, period uint64) (*PeriodRecord, bool, error) {
	var stored storedPeriodRecord
	ok, err := e.state.KVGet(periodKey(sellAsset, buyAsset, period), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &PeriodRecord{AmountToReduce: big.NewInt(0), ExchangeRate: big.NewInt(0)}, false, nil
	}
	record, err := fromStoredPeriod(&stored)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (e *Engine) putPeriod(sellAsset, buyAsset string, period uint64, record *PeriodRecord) error {
	return e.state.KVPut(periodKey(sellAsset, buyAsset, period), toStoredPeriod(record))
}

func (e *Engine) loadOrder(owner [20]byte, index uint64) (*UserOrder, error) {
	var stored storedUserOrder
	ok, err := e.state.KVGet(orderKey(owner, index), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotFound
	}
	return fromStoredOrder(&stored)
}

func (e *Engine) putOrder(index uint64, order *UserOrder) error {
	return e.state.KVPut(orderKey(order.Owner, index), toStoredOrder(order))
}

func (e *Engine) orderCount(owner [20]byte) (uint64, error) {
	var count uint64
	_, err := e.state.KVGet(orderCountKey(owner), &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Engine) loadParams() (*Params, error) {
	var params Params
	ok, err := e.state.KVGet(paramsKey, &params)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Params{}, nil
	}
	return &params, nil
}

func (e *Engine) putParams(params *Params) error {
	return e.state.KVPut(paramsKey, params)
}

// --- order creation ---

// CreateOrder locks in a dollar-cost-averaging schedule: the order principal
// moves into the vault up front and amountPerPeriod joins the pair aggregate
// starting at the next unsettled period. Returns the order index within the
// owner's order list.
func (e *Engine) CreateOrder(owner [20]byte, sellAsset, buyAsset string, amountPerPeriod *big.Int, numberOfPeriods uint64) (uint64, error) {
	var index uint64
	err := e.run(func() error {
		sell, err := NormalizeAsset(sellAsset)
		if err != nil {
			return err
		}
		buy, err := NormalizeAsset(buyAsset)
		if err != nil {
			return err
		}
		if sell == buy {
			return ErrSameAsset
		}
		if amountPerPeriod == nil || amountPerPeriod.Sign() <= 0 {
			return ErrInvalidAmount
		}
		if numberOfPeriods == 0 {
			return ErrInvalidPeriodCount
		}
		current := e.CurrentPeriod()
		if current == 0 {
			return ErrCounterNotStarted
		}

		amount := cloneBigInt(amountPerPeriod)
		principal := new(big.Int).Mul(amount, new(big.Int).SetUint64(numberOfPeriods))
		balance, err := e.state.Balance(owner, sell)
		if err != nil {
			return err
		}
		if balance.Cmp(principal) < 0 {
			return ErrInsufficientFunds
		}
		if err := e.state.Transfer(owner, VaultAddress, sell, principal); err != nil {
			return err
		}

		ledger, ok, err := e.loadPair(sell, buy)
		if err != nil {
			return err
		}
		if !ok {
			ledger = &PairLedger{
				SellAsset:         sell,
				BuyAsset:          buy,
				AmountToSwap:      big.NewInt(0),
				LastSettledPeriod: current - 1,
			}
		} else if ledger.AmountToSwap.Sign() == 0 && ledger.LastSettledPeriod < current-1 {
			// Dormant pair: nothing contributed to the skipped periods, so
			// re-anchor instead of forcing settlement of empty history.
			ledger.LastSettledPeriod = current - 1
		}
		startingPeriod := ledger.LastSettledPeriod + 1

		count, err := e.orderCount(owner)
		if err != nil {
			return err
		}
		order := &UserOrder{
			Owner:               owner,
			SellAsset:           sell,
			BuyAsset:            buy,
			AmountPerPeriod:     amount,
			NumberOfPeriods:     numberOfPeriods,
			StartingPeriod:      startingPeriod,
			LastWithdrawnPeriod: startingPeriod - 1,
			WithdrawnAmount:     big.NewInt(0),
		}
		if err := e.putOrder(count, order); err != nil {
			return err
		}
		if err := e.state.KVPut(orderCountKey(owner), count+1); err != nil {
			return err
		}

		ledger.AmountToSwap.Add(ledger.AmountToSwap, amount)
		if err := e.putPair(ledger); err != nil {
			return err
		}

		finalPeriod := order.FinalPeriod()
		record, _, err := e.loadPeriod(sell, buy, finalPeriod)
		if err != nil {
			return err
		}
		record.AmountToReduce.Add(record.AmountToReduce, amount)
		if err := e.putPeriod(sell, buy, finalPeriod, record); err != nil {
			return err
		}

		index = count
		e.emit(NewOrderCreatedEvent(index, order))
		return nil
	})
	return index, err
}

// --- settlement ---

// ExecuteOrder settles the next period of a pair's aggregate swap. Anyone may
// call it: the caller nominates an executor account that receives the sell
// amount and must return at least the oracle-quoted buy amount to the vault.
// All ledger state is updated before the untrusted venue is invoked, and the
// venue's delivery is verified from the vault balance delta alone.
func (e *Engine) ExecuteOrder(ctx context.Context, sellAsset, buyAsset string, period uint64, executor [20]byte, execParams []byte) error {
	if e == nil {
		return ErrNilState
	}
	if e.oracle == nil {
		return ErrNilOracle
	}
	if e.swapper == nil {
		return ErrNilSwapper
	}
	return e.run(func() error {
		sell, err := NormalizeAsset(sellAsset)
		if err != nil {
			return err
		}
		buy, err := NormalizeAsset(buyAsset)
		if err != nil {
			return err
		}
		ledger, ok, err := e.loadPair(sell, buy)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownPair
		}
		if period != ledger.LastSettledPeriod+1 {
			return ErrInvalidPeriod
		}
		if period > e.CurrentPeriod() {
			return ErrPeriodNotElapsed
		}
		if ledger.AmountToSwap.Sign() == 0 {
			return ErrNothingToSettle
		}

		params, err := e.loadParams()
		if err != nil {
			return err
		}
		fee := new(big.Int).Mul(ledger.AmountToSwap, new(big.Int).SetUint64(params.FeeNumerator))
		fee.Quo(fee, big.NewInt(FeeDenominator))
		swapAmount := new(big.Int).Sub(ledger.AmountToSwap, fee)
		if swapAmount.Sign() <= 0 {
			return ErrNothingToSettle
		}

		requiredAmount, err := e.oracle.Consult(ctx, params.ResolveAlias(sell), swapAmount, params.ResolveAlias(buy))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOracleFailure, err)
		}
		if requiredAmount == nil || requiredAmount.Sign() == 0 {
			return ErrOracleFailure
		}

		record, _, err := e.loadPeriod(sell, buy, period)
		if err != nil {
			return err
		}
		if record.Settled {
			return ErrInvalidPeriod
		}

		// Ledger updates land before the external call so a re-entrant
		// settlement attempt observes the advanced period and fails the
		// ordering precondition.
		ledger.LastSettledPeriod = period
		ledger.AmountToSwap.Sub(ledger.AmountToSwap, record.AmountToReduce)
		if ledger.AmountToSwap.Sign() < 0 {
			return fmt.Errorf("dca: aggregate underflow settling period %d", period)
		}
		if err := e.putPair(ledger); err != nil {
			return err
		}
		record.ExchangeRate = new(big.Int).Mul(requiredAmount, RateScale)
		record.ExchangeRate.Quo(record.ExchangeRate, swapAmount)
		record.FeeNumerator = params.FeeNumerator
		record.Settled = true
		if err := e.putPeriod(sell, buy, period, record); err != nil {
			return err
		}

		if fee.Sign() > 0 {
			if err := e.state.Transfer(VaultAddress, params.Beneficiary, sell, fee); err != nil {
				return err
			}
		}
		balanceBefore, err := e.state.Balance(VaultAddress, buy)
		if err != nil {
			return err
		}
		if err := e.state.Transfer(VaultAddress, executor, sell, swapAmount); err != nil {
			return err
		}
		if err := e.swapper.Swap(ctx, sell, buy, swapAmount, requiredAmount, execParams); err != nil {
			return fmt.Errorf("dca: executor swap: %w", err)
		}
		balanceAfter, err := e.state.Balance(VaultAddress, buy)
		if err != nil {
			return err
		}
		delta := new(big.Int).Sub(balanceAfter, balanceBefore)
		if delta.Cmp(requiredAmount) < 0 {
			return ErrInsufficientReturn
		}

		e.emit(NewPeriodSettledEvent(sell, buy, period, swapAmount, requiredAmount))
		return nil
	})
}

// --- withdrawal ---

func (e *Engine) withdrawSwapped(order *UserOrder, index uint64, ledger *PairLedger) (*big.Int, error) {
	amount, through, err := entitlement(order, ledger.LastSettledPeriod, func(period uint64) (*PeriodRecord, bool, error) {
		return e.loadPeriod(order.SellAsset, order.BuyAsset, period)
	})
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if err := e.state.Transfer(VaultAddress, order.Owner, order.BuyAsset, amount); err != nil {
			return nil, err
		}
		order.WithdrawnAmount = new(big.Int).Add(cloneBigInt(order.WithdrawnAmount), amount)
	}
	if through > order.LastWithdrawnPeriod {
		order.LastWithdrawnPeriod = through
		if err := e.putOrder(index, order); err != nil {
			return nil, err
		}
	}
	if amount.Sign() > 0 {
		e.emit(NewOrderWithdrawnEvent(order, index, amount, through))
	}
	return amount, nil
}

// WithdrawSwapped transfers the caller's entitlement for every settled period
// since the last withdrawal. Calling again without an intervening settlement
// is an idempotent no-op.
func (e *Engine) WithdrawSwapped(owner [20]byte, index uint64) (*big.Int, error) {
	amount := big.NewInt(0)
	err := e.run(func() error {
		order, err := e.loadOrder(owner, index)
		if err != nil {
			return err
		}
		ledger, ok, err := e.loadPair(order.SellAsset, order.BuyAsset)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownPair
		}
		withdrawn, err := e.withdrawSwapped(order, index, ledger)
		if err != nil {
			return err
		}
		amount.Set(withdrawn)
		return nil
	})
	return amount, err
}

// WithdrawAll performs WithdrawSwapped and, when the order still has unswapped
// periods, removes its future contribution from the aggregate and refunds the
// remaining principal. Safe to call at any point in the order's life.
func (e *Engine) WithdrawAll(owner [20]byte, index uint64) (*big.Int, *big.Int, error) {
	withdrawn := big.NewInt(0)
	refund := big.NewInt(0)
	err := e.run(func() error {
		order, err := e.loadOrder(owner, index)
		if err != nil {
			return err
		}
		ledger, ok, err := e.loadPair(order.SellAsset, order.BuyAsset)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownPair
		}
		amount, err := e.withdrawSwapped(order, index, ledger)
		if err != nil {
			return err
		}
		withdrawn.Set(amount)

		finalPeriod := order.FinalPeriod()
		if finalPeriod <= ledger.LastSettledPeriod || order.LastWithdrawnPeriod >= finalPeriod {
			return nil
		}
		remaining := finalPeriod - ledger.LastSettledPeriod
		ledger.AmountToSwap.Sub(ledger.AmountToSwap, order.AmountPerPeriod)
		if ledger.AmountToSwap.Sign() < 0 {
			return fmt.Errorf("dca: aggregate underflow cancelling order %d", index)
		}
		if err := e.putPair(ledger); err != nil {
			return err
		}
		record, _, err := e.loadPeriod(order.SellAsset, order.BuyAsset, finalPeriod)
		if err != nil {
			return err
		}
		record.AmountToReduce.Sub(record.AmountToReduce, order.AmountPerPeriod)
		if record.AmountToReduce.Sign() < 0 {
			return fmt.Errorf("dca: reduction underflow cancelling order %d", index)
		}
		if err := e.putPeriod(order.SellAsset, order.BuyAsset, finalPeriod, record); err != nil {
			return err
		}
		refund.Mul(order.AmountPerPeriod, new(big.Int).SetUint64(remaining))
		if err := e.state.Transfer(VaultAddress, order.Owner, order.SellAsset, refund); err != nil {
			return err
		}
		order.LastWithdrawnPeriod = finalPeriod
		if err := e.putOrder(index, order); err != nil {
			return err
		}
		e.emit(NewOrderCancelledEvent(order, index, refund))
		return nil
	})
	return withdrawn, refund, err
}

// --- administration ---

func (e *Engine) updateParams(caller [20]byte, mutate func(*Params) error) error {
	return e.run(func() error {
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		if params.Authority == ([20]byte{}) || caller != params.Authority {
			return ErrUnauthorized
		}
		if err := mutate(params); err != nil {
			return err
		}
		if err := params.Validate(); err != nil {
			return err
		}
		if err := e.putParams(params); err != nil {
			return err
		}
		e.emit(NewParamsUpdatedEvent(params))
		return nil
	})
}

// EnsureParams seeds the administrative parameters when none exist yet. Used
// once at bootstrap; subsequent changes go through the gated setters.
func (e *Engine) EnsureParams(params *Params) error {
	if params == nil {
		return fmt.Errorf("dca: params must not be nil")
	}
	if err := params.Validate(); err != nil {
		return err
	}
	return e.run(func() error {
		var existing Params
		ok, err := e.state.KVGet(paramsKey, &existing)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return e.putParams(params.Clone())
	})
}

// SetFee updates the protocol fee numerator, bounded by MaxFeeNumerator.
// Already-settled periods keep their snapshotted fee.
func (e *Engine) SetFee(caller [20]byte, numerator uint64) error {
	return e.updateParams(caller, func(params *Params) error {
		params.FeeNumerator = numerator
		return nil
	})
}

// SetBeneficiary updates the fee collector address.
func (e *Engine) SetBeneficiary(caller, beneficiary [20]byte) error {
	return e.updateParams(caller, func(params *Params) error {
		params.Beneficiary = beneficiary
		return nil
	})
}

// SetAuthority hands administrative control to a new principal.
func (e *Engine) SetAuthority(caller, authority [20]byte) error {
	return e.updateParams(caller, func(params *Params) error {
		if authority == ([20]byte{}) {
			return fmt.Errorf("dca: authority must not be zero")
		}
		params.Authority = authority
		return nil
	})
}

// SetPriceAlias maps an asset to the identity quoted against the oracle. An
// empty alias removes the mapping.
func (e *Engine) SetPriceAlias(caller [20]byte, asset, alias string) error {
	return e.updateParams(caller, func(params *Params) error {
		normalized, err := NormalizeAsset(asset)
		if err != nil {
			return err
		}
		trimmed := ""
		if alias != "" {
			if trimmed, err = NormalizeAsset(alias); err != nil {
				return err
			}
		}
		params.setAlias(normalized, trimmed)
		return nil
	})
}

// --- queries (read-only) ---

// Order returns a copy of a single order.
func (e *Engine) Order(owner [20]byte, index uint64) (*UserOrder, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadOrder(owner, index)
}

// Orders returns every order the owner has created, in creation order.
func (e *Engine) Orders(owner [20]byte) ([]*UserOrder, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	count, err := e.orderCount(owner)
	if err != nil {
		return nil, err
	}
	orders := make([]*UserOrder, 0, count)
	for index := uint64(0); index < count; index++ {
		order, err := e.loadOrder(owner, index)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Pair returns the aggregate ledger for a pair.
func (e *Engine) Pair(sellAsset, buyAsset string) (*PairLedger, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sell, err := NormalizeAsset(sellAsset)
	if err != nil {
		return nil, err
	}
	buy, err := NormalizeAsset(buyAsset)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, ok, err := e.loadPair(sell, buy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPair
	}
	return ledger, nil
}

// Period returns the settlement record for one period of a pair. The boolean
// reports whether any record has been written yet.
func (e *Engine) Period(sellAsset, buyAsset string, period uint64) (*PeriodRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	sell, err := NormalizeAsset(sellAsset)
	if err != nil {
		return nil, false, err
	}
	buy, err := NormalizeAsset(buyAsset)
	if err != nil {
		return nil, false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadPeriod(sell, buy, period)
}

// Params returns a copy of the current administrative parameters.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return params.Clone(), nil
}

// Withdrawable computes the amount an order could withdraw right now without
// mutating any state.
func (e *Engine) Withdrawable(owner [20]byte, index uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	order, err := e.loadOrder(owner, index)
	if err != nil {
		return nil, err
	}
	ledger, ok, err := e.loadPair(order.SellAsset, order.BuyAsset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPair
	}
	amount, _, err := entitlement(order, ledger.LastSettledPeriod, func(period uint64) (*PeriodRecord, bool, error) {
		return e.loadPeriod(order.SellAsset, order.BuyAsset, period)
	})
	return amount, err
}

// Withdrawn reports the total buy-asset amount the order has paid out so far.
// The total is persisted on the order itself: a replay over period records
// would credit a cancelled order with periods it no longer participated in.
func (e *Engine) Withdrawn(owner [20]byte, index uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	order, err := e.loadOrder(owner, index)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(order.WithdrawnAmount), nil
}

// Balance reports the ledger balance an address holds for a symbol. The read
// takes the engine lock so it is serialised with mutating operations and can
// never observe the middle of a settlement.
func (e *Engine) Balance(addr [20]byte, symbol string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	normalized, err := NormalizeAsset(symbol)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Balance(addr, normalized)
}
