package dca

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"dripswap/core/types"
)

const (
	EventTypeOrderCreated   = "dca.order.created"
	EventTypePeriodSettled  = "dca.period.settled"
	EventTypeOrderWithdrawn = "dca.order.withdrawn"
	EventTypeOrderCancelled = "dca.order.cancelled"
	EventTypeParamsUpdated  = "dca.params.updated"
)

type dcaEvent struct {
	evt *types.Event
}

func (e dcaEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dcaEvent) Attributes() map[string]string {
	if e.evt == nil {
		return nil
	}
	return e.evt.Attributes
}

// NewOrderCreatedEvent carries every order field so off-engine indexers can
// reconstruct the order book without querying state.
func NewOrderCreatedEvent(index uint64, order *UserOrder) *types.Event {
	attrs := make(map[string]string)
	if order != nil {
		attrs["owner"] = hex.EncodeToString(order.Owner[:])
		attrs["index"] = strconv.FormatUint(index, 10)
		attrs["sellAsset"] = order.SellAsset
		attrs["buyAsset"] = order.BuyAsset
		attrs["amountPerPeriod"] = bigIntToString(order.AmountPerPeriod)
		attrs["numberOfPeriods"] = strconv.FormatUint(order.NumberOfPeriods, 10)
		attrs["startingPeriod"] = strconv.FormatUint(order.StartingPeriod, 10)
	}
	return &types.Event{Type: EventTypeOrderCreated, Attributes: attrs}
}

// NewPeriodSettledEvent is emitted once per pair per period after the
// aggregate swap has been executed and verified.
func NewPeriodSettledEvent(sellAsset, buyAsset string, period uint64, swapAmount, requiredAmount *big.Int) *types.Event {
	attrs := map[string]string{
		"sellAsset":      sellAsset,
		"buyAsset":       buyAsset,
		"period":         strconv.FormatUint(period, 10),
		"swapAmount":     bigIntToString(swapAmount),
		"requiredAmount": bigIntToString(requiredAmount),
	}
	return &types.Event{Type: EventTypePeriodSettled, Attributes: attrs}
}

// NewOrderWithdrawnEvent reports a realised withdrawal of bought assets.
func NewOrderWithdrawnEvent(order *UserOrder, index uint64, amount *big.Int, throughPeriod uint64) *types.Event {
	attrs := make(map[string]string)
	if order != nil {
		attrs["owner"] = hex.EncodeToString(order.Owner[:])
		attrs["index"] = strconv.FormatUint(index, 10)
		attrs["buyAsset"] = order.BuyAsset
		attrs["amount"] = bigIntToString(amount)
		attrs["throughPeriod"] = strconv.FormatUint(throughPeriod, 10)
	}
	return &types.Event{Type: EventTypeOrderWithdrawn, Attributes: attrs}
}

// NewOrderCancelledEvent reports the removal of an order's future
// participation together with the refunded principal.
func NewOrderCancelledEvent(order *UserOrder, index uint64, refund *big.Int) *types.Event {
	attrs := make(map[string]string)
	if order != nil {
		attrs["owner"] = hex.EncodeToString(order.Owner[:])
		attrs["index"] = strconv.FormatUint(index, 10)
		attrs["sellAsset"] = order.SellAsset
		attrs["refund"] = bigIntToString(refund)
	}
	return &types.Event{Type: EventTypeOrderCancelled, Attributes: attrs}
}

// NewParamsUpdatedEvent reports an administrative parameter change.
func NewParamsUpdatedEvent(params *Params) *types.Event {
	attrs := make(map[string]string)
	if params != nil {
		attrs["feeNumerator"] = strconv.FormatUint(params.FeeNumerator, 10)
		attrs["beneficiary"] = hex.EncodeToString(params.Beneficiary[:])
	}
	return &types.Event{Type: EventTypeParamsUpdated, Attributes: attrs}
}
