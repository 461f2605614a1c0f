package state

import (
	"errors"
	"math/big"
	"testing"

	"dripswap/storage"
)

type kvPayload struct {
	Label string
	Count uint64
}

func TestKVRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	in := kvPayload{Label: "hello", Count: 7}
	if err := manager.KVPut([]byte("test/key"), in); err != nil {
		t.Fatalf("put: %v", err)
	}

	var out kvPayload
	ok, err := manager.KVGet([]byte("test/key"), &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to exist")
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	ok, err = manager.KVGet([]byte("test/missing"), &out)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatalf("missing key reported as present")
	}

	// Uncommitted writes stay out of the database.
	if db.Len() != 0 {
		t.Fatalf("write leaked to database before commit: %d keys", db.Len())
	}
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if db.Len() != 1 {
		t.Fatalf("expected one committed key, got %d", db.Len())
	}

	// A fresh manager over the same database sees the committed value.
	var reloaded kvPayload
	ok, err = NewManager(db).KVGet([]byte("test/key"), &reloaded)
	if err != nil || !ok {
		t.Fatalf("reload: %v %v", ok, err)
	}
	if reloaded != in {
		t.Fatalf("reload mismatch: %+v", reloaded)
	}
}

func TestSnapshotRevert(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	if err := manager.KVPut([]byte("a"), uint64(1)); err != nil {
		t.Fatalf("put: %v", err)
	}

	snapshot := manager.Snapshot()
	if err := manager.KVPut([]byte("a"), uint64(2)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := manager.KVPut([]byte("b"), uint64(3)); err != nil {
		t.Fatalf("put b: %v", err)
	}
	manager.RevertToSnapshot(snapshot)

	var value uint64
	ok, err := manager.KVGet([]byte("a"), &value)
	if err != nil || !ok {
		t.Fatalf("get a: %v %v", ok, err)
	}
	if value != 1 {
		t.Fatalf("overwrite survived revert: %d", value)
	}
	ok, err = manager.KVGet([]byte("b"), &value)
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if ok {
		t.Fatalf("new key survived revert")
	}

	// The pre-snapshot write still commits.
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	ok, err = manager.KVGet([]byte("a"), &value)
	if err != nil || !ok || value != 1 {
		t.Fatalf("post-commit read: %v %v %d", ok, err, value)
	}
}

func TestNestedSnapshots(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	outer := manager.Snapshot()
	if err := manager.KVPut([]byte("x"), uint64(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	inner := manager.Snapshot()
	if err := manager.KVPut([]byte("x"), uint64(2)); err != nil {
		t.Fatalf("put: %v", err)
	}
	manager.RevertToSnapshot(inner)

	var value uint64
	if ok, err := manager.KVGet([]byte("x"), &value); err != nil || !ok || value != 1 {
		t.Fatalf("inner revert: %v %v %d", ok, err, value)
	}
	manager.RevertToSnapshot(outer)
	if ok, err := manager.KVGet([]byte("x"), &value); err != nil || ok {
		t.Fatalf("outer revert left key behind: %v %v", ok, err)
	}
}

func TestAccountsCreditDebitTransfer(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	var alice, bob [20]byte
	alice[19] = 1
	bob[19] = 2

	if err := manager.Credit(alice, "X", big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	balance, err := manager.Balance(alice, "X")
	if err != nil || balance.Int64() != 100 {
		t.Fatalf("balance: %v %v", balance, err)
	}

	if err := manager.Debit(alice, "X", big.NewInt(150)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := manager.Transfer(alice, bob, "X", big.NewInt(150)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	balance, _ = manager.Balance(alice, "X")
	if balance.Int64() != 100 {
		t.Fatalf("failed transfer changed balance: %v", balance)
	}

	if err := manager.Transfer(alice, bob, "X", big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBalance, _ := manager.Balance(alice, "X")
	bobBalance, _ := manager.Balance(bob, "X")
	if aliceBalance.Int64() != 40 || bobBalance.Int64() != 60 {
		t.Fatalf("transfer balances: %v %v", aliceBalance, bobBalance)
	}

	// Balance returns a copy the caller cannot use to mutate state.
	bobBalance.SetInt64(9999)
	fresh, _ := manager.Balance(bob, "X")
	if fresh.Int64() != 60 {
		t.Fatalf("balance aliasing: %v", fresh)
	}
}

func TestAccountPersistence(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	var addr [20]byte
	addr[0] = 0xab

	if err := manager.Credit(addr, "Y", big.NewInt(5)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := manager.Credit(addr, "X", big.NewInt(3)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded := NewManager(db)
	account, err := reloaded.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.BalanceOf("X").Int64() != 3 || account.BalanceOf("Y").Int64() != 5 {
		t.Fatalf("reloaded balances: %+v", account.Balances)
	}
}
