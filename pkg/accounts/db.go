// Package accounts stores the account buffers the token ledger runs
// against: an in-memory map for tests and tools, and a Badger-backed store
// for persistent ledgers.
package accounts

import (
	"errors"

	"github.com/fortiblox/x1-token/pkg/types"
)

// ErrStopIteration may be returned by an Iterate callback to end the walk
// early without error.
var ErrStopIteration = errors.New("stop iteration")

// AccountsDB defines the interface for account storage.
type AccountsDB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// GetAccountsCount returns the total number of accounts.
	GetAccountsCount() uint64

	// Commit applies every update or none of them. A ref with a nil
	// Account deletes that pubkey.
	Commit(updates []types.AccountRef) error

	// Iterate calls fn for every stored account in ascending pubkey order.
	Iterate(fn func(pubkey types.Pubkey, account *types.Account) error) error

	// Close closes the database.
	Close() error
}
