package state

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"dripswap/storage"
)

var kvPrefix = []byte("kv/")

// Manager mediates all reads and writes between the engine modules and the
// underlying key-value store. Values are RLP encoded and keys are hashed with
// keccak256 so arbitrary-length logical keys map onto fixed-size storage keys.
//
// Writes land in an in-memory cache first and are journalled so an operation
// can be reverted wholesale. Commit flushes the dirty cache to the backing
// database; RevertToSnapshot undoes everything recorded after the matching
// Snapshot call. This gives every externally-triggered operation all-or-nothing
// semantics without holding a database transaction open across external calls.
type Manager struct {
	db storage.Database

	mu      sync.RWMutex
	cache   map[string][]byte
	dirty   map[string]struct{}
	journal []journalEntry
}

type journalEntry struct {
	key      string
	prev     []byte
	existed  bool
	wasDirty bool
}

// NewManager constructs a state manager bound to the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:    db,
		cache: make(map[string][]byte),
		dirty: make(map[string]struct{}),
	}
}

func kvKey(key []byte) []byte {
	buf := make([]byte, 0, len(kvPrefix)+len(key))
	buf = append(buf, kvPrefix...)
	buf = append(buf, key...)
	return crypto.Keccak256(buf)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	hashed := string(kvKey(key))
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, existed := m.cache[hashed]
	_, wasDirty := m.dirty[hashed]
	m.journal = append(m.journal, journalEntry{key: hashed, prev: prev, existed: existed, wasDirty: wasDirty})
	m.cache[hashed] = encoded
	m.dirty[hashed] = struct{}{}
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("state: manager not initialised")
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	m.mu.RLock()
	data, ok := m.cache[string(hashed)]
	m.mu.RUnlock()
	if !ok {
		stored, err := m.db.Get(hashed)
		if err != nil {
			return false, err
		}
		data = stored
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Snapshot marks the current journal position. A later RevertToSnapshot with
// the returned identifier undoes every write recorded in between.
func (m *Manager) Snapshot() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.journal)
}

// RevertToSnapshot unwinds all writes recorded after the supplied snapshot
// identifier, restoring the cache to its earlier contents.
func (m *Manager) RevertToSnapshot(id int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.cache[entry.key] = entry.prev
		} else {
			delete(m.cache, entry.key)
		}
		if !entry.wasDirty {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:id]
}

// Commit flushes every dirty cache entry to the backing database and resets
// the journal. Once committed, writes can no longer be reverted.
func (m *Manager) Commit() error {
	if m == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.dirty {
		if err := m.db.Put([]byte(key), m.cache[key]); err != nil {
			return err
		}
	}
	m.dirty = make(map[string]struct{})
	m.journal = m.journal[:0]
	return nil
}
