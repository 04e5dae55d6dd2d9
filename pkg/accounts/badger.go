package accounts

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/fortiblox/x1-token/pkg/types"
)

// accountKeyPrefix namespaces account records inside the Badger keyspace.
// Keys are the prefix followed by the raw pubkey, so prefix iteration
// yields pubkey order.
const accountKeyPrefix = "acct/"

// BadgerDB is a persistent implementation of AccountsDB using BadgerDB.
type BadgerDB struct {
	db    *badger.DB
	count atomic.Uint64
}

// BadgerOptions configures OpenBadgerDB.
type BadgerOptions struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in memory; nothing touches disk.
	InMemory bool
	// Logger receives Badger's internal log lines. Nil discards them.
	Logger *zap.Logger
}

// OpenBadgerDB opens (or creates) a Badger-backed account store.
func OpenBadgerDB(opts BadgerOptions) (*BadgerDB, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	if opts.Logger != nil {
		bopts.Logger = badgerLogger{opts.Logger.Named("badger").Sugar()}
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bdb := &BadgerDB{db: db}
	count, err := bdb.countAccounts()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	bdb.count.Store(count)
	return bdb, nil
}

// NewBadgerDB opens a Badger-backed account store in path.
func NewBadgerDB(path string) (*BadgerDB, error) {
	return OpenBadgerDB(BadgerOptions{Dir: path})
}

func makeAccountKey(pubkey types.Pubkey) []byte {
	key := make([]byte, len(accountKeyPrefix)+len(pubkey))
	copy(key, accountKeyPrefix)
	copy(key[len(accountKeyPrefix):], pubkey[:])
	return key
}

// GetAccount retrieves an account by pubkey.
// Returns nil, nil if account does not exist.
func (db *BadgerDB) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	var account *types.Account
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeAccountKey(pubkey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			account, err = DeserializeAccount(val)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", pubkey, err)
	}
	return account, nil
}

// SetAccount stores an account.
func (db *BadgerDB) SetAccount(pubkey types.Pubkey, account *types.Account) error {
	return db.Commit([]types.AccountRef{{Pubkey: pubkey, Account: account}})
}

// DeleteAccount removes an account. Deleting a missing account is a no-op.
func (db *BadgerDB) DeleteAccount(pubkey types.Pubkey) error {
	return db.Commit([]types.AccountRef{{Pubkey: pubkey}})
}

// Commit writes every update in one Badger transaction. The account count
// is adjusted only after the transaction commits.
func (db *BadgerDB) Commit(updates []types.AccountRef) error {
	var added, removed uint64
	err := db.db.Update(func(txn *badger.Txn) error {
		// later refs to the same key win, as in MemoryDB
		present := make(map[types.Pubkey]bool, len(updates))
		for _, ref := range updates {
			key := makeAccountKey(ref.Pubkey)
			existed, seen := present[ref.Pubkey]
			if !seen {
				_, err := txn.Get(key)
				switch {
				case err == nil:
					existed = true
				case errors.Is(err, badger.ErrKeyNotFound):
				default:
					return err
				}
			}

			if ref.Account == nil {
				if err := txn.Delete(key); err != nil {
					return err
				}
				present[ref.Pubkey] = false
				if existed {
					removed++
				}
				continue
			}

			value, err := SerializeAccount(ref.Account)
			if err != nil {
				return err
			}
			if err := txn.Set(key, value); err != nil {
				return err
			}
			present[ref.Pubkey] = true
			if !existed {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit %d accounts: %w", len(updates), err)
	}
	db.count.Add(added - removed)
	return nil
}

// HasAccount returns true if the account exists.
func (db *BadgerDB) HasAccount(pubkey types.Pubkey) bool {
	var exists bool
	_ = db.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeAccountKey(pubkey))
		exists = err == nil
		return nil
	})
	return exists
}

// GetAccountsCount returns the total number of accounts.
func (db *BadgerDB) GetAccountsCount() uint64 {
	return db.count.Load()
}

// Iterate walks one read transaction in key order.
func (db *BadgerDB) Iterate(fn func(pubkey types.Pubkey, account *types.Account) error) error {
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(accountKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var pk types.Pubkey
			copy(pk[:], item.Key()[len(accountKeyPrefix):])

			var account *types.Account
			if err := item.Value(func(val []byte) error {
				var err error
				account, err = DeserializeAccount(val)
				return err
			}); err != nil {
				return fmt.Errorf("account %s: %w", pk, err)
			}
			if err := fn(pk, account); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrStopIteration) {
		return nil
	}
	return err
}

// Close closes the database.
func (db *BadgerDB) Close() error {
	return db.db.Close()
}

func (db *BadgerDB) countAccounts() (uint64, error) {
	var count uint64
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(accountKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// badgerLogger routes Badger's log lines through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

var _ AccountsDB = (*BadgerDB)(nil)
