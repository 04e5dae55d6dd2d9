package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Account represents a ledger account: a lamport balance plus an opaque data
// buffer owned by a program.
type Account struct {
	Lamports   Lamports // Balance in lamports
	Data       []byte   // Account data
	Owner      Pubkey   // Program that owns this account
	Executable bool     // Is this a program account?
}

// NewAccount creates a new account.
func NewAccount(lamports Lamports, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     nil,
		Owner:    owner,
	}
}

// NewAccountWithData creates a new account with data.
func NewAccountWithData(lamports Lamports, data []byte, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     data,
		Owner:    owner,
	}
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// Equal reports whether two accounts hold identical state.
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

// DataLen returns the length of account data.
func (a *Account) DataLen() uint64 {
	if a.Data == nil {
		return 0
	}
	return uint64(len(a.Data))
}

// IsEmpty returns true if the account has zero lamports and no data.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Hash computes the account hash for Merkle tree inclusion.
// Format: SHA256(lamports || data || executable || owner || pubkey)
func (a *Account) Hash(pubkey Pubkey) Hash {
	h := sha256.New()

	var lamportsBuf [8]byte
	binary.LittleEndian.PutUint64(lamportsBuf[:], uint64(a.Lamports))
	h.Write(lamportsBuf[:])

	h.Write(a.Data)

	if a.Executable {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	h.Write(a.Owner[:])
	h.Write(pubkey[:])

	var result Hash
	copy(result[:], h.Sum(nil))
	return result
}

// AccountMeta describes an account in an instruction.
type AccountMeta struct {
	Pubkey     Pubkey `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// NewAccountMeta returns a writable account meta.
func NewAccountMeta(pubkey Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta returns a read-only account meta.
func NewReadonlyAccountMeta(pubkey Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: false}
}

// AccountRef is a reference to an account with its pubkey.
type AccountRef struct {
	Pubkey  Pubkey
	Account *Account
}

// AccountDelta represents a change to an account.
type AccountDelta struct {
	Pubkey     Pubkey
	OldAccount *Account // nil if new account
	NewAccount *Account // nil if deleted
}

// IsCreation returns true if this is a new account.
func (d *AccountDelta) IsCreation() bool {
	return d.OldAccount == nil && d.NewAccount != nil
}

// IsDeletion returns true if this account was deleted.
func (d *AccountDelta) IsDeletion() bool {
	return d.OldAccount != nil && d.NewAccount == nil
}

// IsModification returns true if this account was modified.
func (d *AccountDelta) IsModification() bool {
	return d.OldAccount != nil && d.NewAccount != nil
}
