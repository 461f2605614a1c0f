package dca

import (
	"fmt"
	"math/big"
)

// PeriodPayout computes what amountPerPeriod earned in a single settled
// period: the gross amount at the realised rate minus the fee snapshotted
// into the record. Unsettled records yield zero.
func PeriodPayout(record *PeriodRecord, amountPerPeriod *big.Int) *big.Int {
	if record == nil || !record.Settled || record.ExchangeRate == nil {
		return big.NewInt(0)
	}
	if amountPerPeriod == nil || amountPerPeriod.Sign() <= 0 {
		return big.NewInt(0)
	}
	gross := new(big.Int).Mul(record.ExchangeRate, amountPerPeriod)
	gross.Quo(gross, RateScale)
	fee := new(big.Int).Mul(gross, new(big.Int).SetUint64(record.FeeNumerator))
	fee.Quo(fee, big.NewInt(FeeDenominator))
	return gross.Sub(gross, fee)
}

// entitlement folds the settled period records between the order's
// last-withdrawn marker and min(final period, last settled period), returning
// the amount owed and the new marker. The lookup closure is bounded by the
// pair's last settled period, so an unsettled record can never contribute.
func entitlement(order *UserOrder, lastSettledPeriod uint64, lookup func(period uint64) (*PeriodRecord, bool, error)) (*big.Int, uint64, error) {
	amount := big.NewInt(0)
	if order == nil {
		return amount, 0, fmt.Errorf("dca: nil order")
	}
	through := order.FinalPeriod()
	if lastSettledPeriod < through {
		through = lastSettledPeriod
	}
	if through <= order.LastWithdrawnPeriod {
		return amount, order.LastWithdrawnPeriod, nil
	}
	for period := order.LastWithdrawnPeriod + 1; period <= through; period++ {
		record, ok, err := lookup(period)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, fmt.Errorf("dca: missing record for settled period %d", period)
		}
		amount.Add(amount, PeriodPayout(record, order.AmountPerPeriod))
	}
	return amount, through, nil
}
