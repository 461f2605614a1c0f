package types

import "math/big"

// Account tracks per-asset balances for a single address. Symbols are upper
// case asset identifiers; missing entries are treated as zero balances.
type Account struct {
	Nonce    uint64              `json:"nonce"`
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// BalanceOf returns the balance held for the supplied symbol, defaulting to
// zero. The returned value is a copy and safe to mutate.
func (a *Account) BalanceOf(symbol string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	balance, ok := a.Balances[symbol]
	if !ok || balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// SetBalance stores the supplied balance for the symbol, initialising the
// balance map when required.
func (a *Account) SetBalance(symbol string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[symbol] = new(big.Int).Set(amount)
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (a *Account) Copy() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := NewAccount()
	clone.Nonce = a.Nonce
	for symbol, balance := range a.Balances {
		if balance != nil {
			clone.Balances[symbol] = new(big.Int).Set(balance)
		}
	}
	return clone
}
