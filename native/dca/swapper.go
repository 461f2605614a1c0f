package dca

import (
	"context"
	"fmt"
	"math/big"
)

// LedgerSwapper is an execution venue settling against balances held on the
// internal ledger: a pre-funded venue account delivers the buy asset straight
// into the vault. It keeps single-node deployments self-contained; external
// venues implement Swapper against their own rails.
type LedgerSwapper struct {
	state EngineState
	venue [20]byte
}

// NewLedgerSwapper binds the venue inventory account.
func NewLedgerSwapper(state EngineState, venue [20]byte) *LedgerSwapper {
	return &LedgerSwapper{state: state, venue: venue}
}

// Swap implements the Swapper interface.
func (s *LedgerSwapper) Swap(_ context.Context, _, buyAsset string, _, outAmount *big.Int, _ []byte) error {
	if s == nil || s.state == nil {
		return fmt.Errorf("dca: ledger swapper not initialised")
	}
	if outAmount == nil || outAmount.Sign() <= 0 {
		return nil
	}
	return s.state.Transfer(s.venue, VaultAddress, buyAsset, outAmount)
}
