package accounts

import (
	"bytes"
	"errors"
	"slices"
	"sync"

	"github.com/fortiblox/x1-token/pkg/types"
)

// MemoryDB is an in-memory implementation of AccountsDB.
type MemoryDB struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*types.Account
}

// NewMemoryDB creates a new in-memory account database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts: make(map[types.Pubkey]*types.Account),
	}
}

// GetAccount retrieves a copy of the account stored under pubkey.
func (db *MemoryDB) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[pubkey]
	if !exists {
		return nil, nil
	}
	return account.Clone(), nil
}

// SetAccount stores a copy of account.
func (db *MemoryDB) SetAccount(pubkey types.Pubkey, account *types.Account) error {
	if account == nil {
		return errNilAccount
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	db.accounts[pubkey] = account.Clone()
	return nil
}

// DeleteAccount removes an account.
func (db *MemoryDB) DeleteAccount(pubkey types.Pubkey) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.accounts, pubkey)
	return nil
}

// HasAccount returns true if the account exists.
func (db *MemoryDB) HasAccount(pubkey types.Pubkey) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, exists := db.accounts[pubkey]
	return exists
}

// GetAccountsCount returns the total number of accounts.
func (db *MemoryDB) GetAccountsCount() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return uint64(len(db.accounts))
}

// Commit applies updates under a single write lock.
func (db *MemoryDB) Commit(updates []types.AccountRef) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, ref := range updates {
		if ref.Account == nil {
			delete(db.accounts, ref.Pubkey)
			continue
		}
		db.accounts[ref.Pubkey] = ref.Account.Clone()
	}
	return nil
}

// Iterate walks a point-in-time copy of the key set in pubkey order.
func (db *MemoryDB) Iterate(fn func(pubkey types.Pubkey, account *types.Account) error) error {
	db.mu.RLock()
	keys := make([]types.Pubkey, 0, len(db.accounts))
	for pk := range db.accounts {
		keys = append(keys, pk)
	}
	db.mu.RUnlock()

	slices.SortFunc(keys, func(a, b types.Pubkey) int {
		return bytes.Compare(a[:], b[:])
	})
	for _, pk := range keys {
		account, err := db.GetAccount(pk)
		if err != nil {
			return err
		}
		if account == nil {
			continue
		}
		if err := fn(pk, account); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Close drops every account.
func (db *MemoryDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.accounts = make(map[types.Pubkey]*types.Account)
	return nil
}

var _ AccountsDB = (*MemoryDB)(nil)
