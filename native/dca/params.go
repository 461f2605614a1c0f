package dca

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// FeeDenominator is the fixed denominator for the protocol fee ratio.
	FeeDenominator = 1_000_000
	// MaxFeeNumerator caps the fee at 1% of the aggregate swap amount.
	MaxFeeNumerator = 10_000
)

// RateScale is the fixed-point scale for realised exchange rates.
var RateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PriceAlias substitutes an asset identity before the oracle is consulted,
// letting wrapped or bridged assets quote against their canonical market.
type PriceAlias struct {
	Asset string
	Alias string
}

// Params holds the administrative configuration of the engine. FeeNumerator
// is a ratio over FeeDenominator; Beneficiary collects the fee extracted at
// each settlement; Authority is the sole principal allowed to change params.
type Params struct {
	FeeNumerator uint64
	Beneficiary  [20]byte
	Authority    [20]byte
	PriceAliases []PriceAlias
}

// Clone returns a deep copy to avoid callers mutating shared pointers.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.PriceAliases = append([]PriceAlias(nil), p.PriceAliases...)
	return &clone
}

// Validate checks the parameter bounds.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("dca: params must not be nil")
	}
	if p.FeeNumerator > MaxFeeNumerator {
		return ErrFeeTooHigh
	}
	for _, alias := range p.PriceAliases {
		if strings.TrimSpace(alias.Asset) == "" || strings.TrimSpace(alias.Alias) == "" {
			return fmt.Errorf("dca: price alias entries must not be empty")
		}
	}
	return nil
}

// ResolveAlias maps the supplied asset through the alias table, returning the
// asset unchanged when no alias is configured.
func (p *Params) ResolveAlias(asset string) string {
	if p == nil {
		return asset
	}
	for _, alias := range p.PriceAliases {
		if alias.Asset == asset {
			return alias.Alias
		}
	}
	return asset
}

func (p *Params) setAlias(asset, alias string) {
	for i := range p.PriceAliases {
		if p.PriceAliases[i].Asset == asset {
			if alias == "" {
				p.PriceAliases = append(p.PriceAliases[:i], p.PriceAliases[i+1:]...)
				return
			}
			p.PriceAliases[i].Alias = alias
			return
		}
	}
	if alias != "" {
		p.PriceAliases = append(p.PriceAliases, PriceAlias{Asset: asset, Alias: alias})
	}
}
