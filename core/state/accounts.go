package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"dripswap/core/types"
)

// ErrInsufficientFunds is returned when a transfer or debit would push a
// balance below zero. The caller must treat this as a whole-operation abort.
var ErrInsufficientFunds = errors.New("state: insufficient funds")

var accountPrefix = []byte("acct/")

type storedBalance struct {
	Symbol string
	Amount string
}

type storedAccount struct {
	Nonce    uint64
	Balances []storedBalance
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

func toStoredAccount(account *types.Account) storedAccount {
	stored := storedAccount{}
	if account == nil {
		return stored
	}
	stored.Nonce = account.Nonce
	symbols := make([]string, 0, len(account.Balances))
	for symbol, balance := range account.Balances {
		if balance == nil || balance.Sign() == 0 {
			continue
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		stored.Balances = append(stored.Balances, storedBalance{
			Symbol: symbol,
			Amount: account.Balances[symbol].String(),
		})
	}
	return stored
}

func fromStoredAccount(stored *storedAccount) (*types.Account, error) {
	account := types.NewAccount()
	if stored == nil {
		return account, nil
	}
	account.Nonce = stored.Nonce
	for _, entry := range stored.Balances {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(entry.Amount), 10)
		if !ok {
			return nil, fmt.Errorf("state: invalid balance %q for %s", entry.Amount, entry.Symbol)
		}
		account.Balances[entry.Symbol] = amount
	}
	return account, nil
}

// GetAccount loads the account stored for the supplied address. Unknown
// addresses yield an empty account rather than an error.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	if m == nil {
		return nil, fmt.Errorf("state: manager not initialised")
	}
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	return fromStoredAccount(&stored)
}

// PutAccount persists the supplied account under the address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if m == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	return m.KVPut(accountKey(addr), toStoredAccount(account))
}

// Balance returns the balance the address holds for the supplied symbol.
func (m *Manager) Balance(addr [20]byte, symbol string) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.BalanceOf(symbol), nil
}

// Credit increases the balance held by the address for the supplied symbol.
func (m *Manager) Credit(addr [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit amount must not be negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.SetBalance(symbol, new(big.Int).Add(account.BalanceOf(symbol), amount))
	return m.PutAccount(addr, account)
}

// Debit decreases the balance held by the address for the supplied symbol,
// failing with ErrInsufficientFunds when the balance does not cover the
// amount.
func (m *Manager) Debit(addr [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: debit amount must not be negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	balance := account.BalanceOf(symbol)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	account.SetBalance(symbol, balance.Sub(balance, amount))
	return m.PutAccount(addr, account)
}

// Transfer atomically moves the amount of the supplied symbol between two
// addresses. A failed debit leaves both accounts untouched.
func (m *Manager) Transfer(from, to [20]byte, symbol string, amount *big.Int) error {
	if err := m.Debit(from, symbol, amount); err != nil {
		return err
	}
	return m.Credit(to, symbol, amount)
}
