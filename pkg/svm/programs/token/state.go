package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// Account state sizes
const (
	// MintSize is the size of a serialized Mint account (82 bytes)
	MintSize = 82

	// TokenAccountSize is the size of a serialized TokenAccount (165 bytes)
	TokenAccountSize = 165

	// MultisigSize is the size of a serialized Multisig account (355 bytes)
	MultisigSize = 355

	// MaxSigners is the maximum number of multisig signers.
	MaxSigners = 11
)

// AccountState is the lifecycle state of a token account.
type AccountState uint8

// Account state enum values
const (
	AccountStateUninitialized AccountState = 0
	AccountStateInitialized   AccountState = 1
	AccountStateFrozen        AccountState = 2
)

func (s AccountState) String() string {
	switch s {
	case AccountStateUninitialized:
		return "uninitialized"
	case AccountStateInitialized:
		return "initialized"
	case AccountStateFrozen:
		return "frozen"
	default:
		return fmt.Sprintf("AccountState(%d)", uint8(s))
	}
}

// COption represents an optional value (like Rust's COption)
// For Pubkey: 4 bytes tag + 32 bytes value = 36 bytes
type COption struct {
	IsSome bool
	Value  types.Pubkey
}

// Some returns a present COption holding pk.
func Some(pk types.Pubkey) COption {
	return COption{IsSome: true, Value: pk}
}

// None is an absent COption.
var None = COption{}

func (o COption) String() string {
	if !o.IsSome {
		return "none"
	}
	return o.Value.String()
}

// COptionU64 represents an optional u64 value
// For u64: 4 bytes tag + 8 bytes value = 12 bytes
type COptionU64 struct {
	IsSome bool
	Value  uint64
}

// Mint represents an SPL Token mint account.
// Layout (82 bytes total):
//   - mint_authority: COption<Pubkey> (36 bytes) - 4 byte tag + 32 byte pubkey
//   - supply: u64 (8 bytes)
//   - decimals: u8 (1 byte)
//   - is_initialized: bool (1 byte)
//   - freeze_authority: COption<Pubkey> (36 bytes)
type Mint struct {
	MintAuthority   COption // Authority to mint new tokens
	Supply          uint64  // Total supply of tokens
	Decimals        uint8   // Number of decimal places
	IsInitialized   bool    // Whether the mint is initialized
	FreezeAuthority COption // Authority to freeze token accounts
}

// TokenAccount represents an SPL Token account.
// Layout (165 bytes total):
//   - mint: Pubkey (32 bytes)
//   - owner: Pubkey (32 bytes)
//   - amount: u64 (8 bytes)
//   - delegate: COption<Pubkey> (36 bytes)
//   - state: AccountState (1 byte)
//   - is_native: COption<u64> (12 bytes) - 4 byte tag + 8 byte value
//   - delegated_amount: u64 (8 bytes)
//   - close_authority: COption<Pubkey> (36 bytes)
type TokenAccount struct {
	Mint            types.Pubkey // The mint this account is associated with
	Owner           types.Pubkey // Owner of this account
	Amount          uint64       // Amount of tokens held
	Delegate        COption      // Optional delegate
	State           AccountState // Account state (Uninitialized, Initialized, Frozen)
	IsNative        COptionU64   // If Some, holds the rent-exempt reserve of a wrapped native account
	DelegatedAmount uint64       // Amount delegated to the delegate
	CloseAuthority  COption      // Authority allowed to close this account
}

// Multisig represents an M-of-N authority.
// Layout (355 bytes total):
//   - m: u8 (1 byte)
//   - n: u8 (1 byte)
//   - is_initialized: bool (1 byte)
//   - signers: [11]Pubkey (352 bytes)
type Multisig struct {
	M             uint8
	N             uint8
	IsInitialized bool
	Signers       [MaxSigners]types.Pubkey
}

// DeserializeMint decodes a Mint without requiring it to be initialized.
func DeserializeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint data must be %d bytes, got %d",
			ErrInvalidAccountData, MintSize, len(data))
	}

	mint := &Mint{}
	offset := 0
	var err error

	// mint_authority: COption<Pubkey> (36 bytes)
	if mint.MintAuthority, offset, err = deserializeCOption(data, offset); err != nil {
		return nil, err
	}

	// supply: u64 (8 bytes)
	mint.Supply = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	// decimals: u8 (1 byte)
	mint.Decimals = data[offset]
	offset++

	// is_initialized: bool (1 byte)
	if mint.IsInitialized, err = deserializeBool(data[offset]); err != nil {
		return nil, err
	}
	offset++

	// freeze_authority: COption<Pubkey> (36 bytes)
	if mint.FreezeAuthority, _, err = deserializeCOption(data, offset); err != nil {
		return nil, err
	}

	return mint, nil
}

// UnpackMint decodes an initialized Mint.
func UnpackMint(data []byte) (*Mint, error) {
	mint, err := DeserializeMint(data)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, ErrUninitializedAccount
	}
	return mint, nil
}

// Serialize serializes the Mint to bytes.
func (m *Mint) Serialize() []byte {
	data := make([]byte, MintSize)
	m.pack(data)
	return data
}

// SerializeInto writes the whole record into dst, which must be exactly MintSize.
func (m *Mint) SerializeInto(dst []byte) error {
	if len(dst) != MintSize {
		return fmt.Errorf("%w: mint buffer must be %d bytes, got %d", ErrInvalidAccountData, MintSize, len(dst))
	}
	m.pack(dst)
	return nil
}

func (m *Mint) pack(data []byte) {
	offset := serializeCOption(data, 0, m.MintAuthority)

	binary.LittleEndian.PutUint64(data[offset:offset+8], m.Supply)
	offset += 8

	data[offset] = m.Decimals
	offset++

	data[offset] = serializeBool(m.IsInitialized)
	offset++

	serializeCOption(data, offset, m.FreezeAuthority)
}

// DeserializeTokenAccount decodes a TokenAccount without requiring it to be initialized.
func DeserializeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("%w: token account data must be %d bytes, got %d",
			ErrInvalidAccountData, TokenAccountSize, len(data))
	}

	account := &TokenAccount{}
	offset := 0
	var err error

	// mint: Pubkey (32 bytes)
	copy(account.Mint[:], data[offset:offset+32])
	offset += 32

	// owner: Pubkey (32 bytes)
	copy(account.Owner[:], data[offset:offset+32])
	offset += 32

	// amount: u64 (8 bytes)
	account.Amount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	// delegate: COption<Pubkey> (36 bytes)
	if account.Delegate, offset, err = deserializeCOption(data, offset); err != nil {
		return nil, err
	}

	// state: AccountState (1 byte)
	state := AccountState(data[offset])
	if state > AccountStateFrozen {
		return nil, fmt.Errorf("%w: invalid account state %d", ErrInvalidAccountData, state)
	}
	account.State = state
	offset++

	// is_native: COption<u64> (12 bytes)
	if account.IsNative, offset, err = deserializeCOptionU64(data, offset); err != nil {
		return nil, err
	}

	// delegated_amount: u64 (8 bytes)
	account.DelegatedAmount = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	// close_authority: COption<Pubkey> (36 bytes)
	if account.CloseAuthority, _, err = deserializeCOption(data, offset); err != nil {
		return nil, err
	}

	return account, nil
}

// UnpackTokenAccount decodes an initialized (or frozen) TokenAccount.
func UnpackTokenAccount(data []byte) (*TokenAccount, error) {
	account, err := DeserializeTokenAccount(data)
	if err != nil {
		return nil, err
	}
	if account.State == AccountStateUninitialized {
		return nil, ErrUninitializedAccount
	}
	return account, nil
}

// Serialize serializes the TokenAccount to bytes.
func (a *TokenAccount) Serialize() []byte {
	data := make([]byte, TokenAccountSize)
	a.pack(data)
	return data
}

// SerializeInto writes the whole record into dst, which must be exactly TokenAccountSize.
func (a *TokenAccount) SerializeInto(dst []byte) error {
	if len(dst) != TokenAccountSize {
		return fmt.Errorf("%w: token account buffer must be %d bytes, got %d",
			ErrInvalidAccountData, TokenAccountSize, len(dst))
	}
	a.pack(dst)
	return nil
}

func (a *TokenAccount) pack(data []byte) {
	offset := 0

	copy(data[offset:offset+32], a.Mint[:])
	offset += 32

	copy(data[offset:offset+32], a.Owner[:])
	offset += 32

	binary.LittleEndian.PutUint64(data[offset:offset+8], a.Amount)
	offset += 8

	offset = serializeCOption(data, offset, a.Delegate)

	data[offset] = uint8(a.State)
	offset++

	offset = serializeCOptionU64(data, offset, a.IsNative)

	binary.LittleEndian.PutUint64(data[offset:offset+8], a.DelegatedAmount)
	offset += 8

	serializeCOption(data, offset, a.CloseAuthority)
}

// IsFrozen returns true if the account is frozen.
func (a *TokenAccount) IsFrozen() bool {
	return a.State == AccountStateFrozen
}

// IsNativeAccount returns true if this is a wrapped native account.
func (a *TokenAccount) IsNativeAccount() bool {
	return a.IsNative.IsSome
}

// DeserializeMultisig decodes a Multisig without requiring it to be initialized.
// N never exceeds MaxSigners, and an initialized record has 1 <= M <= N.
func DeserializeMultisig(data []byte) (*Multisig, error) {
	if len(data) != MultisigSize {
		return nil, fmt.Errorf("%w: multisig data must be %d bytes, got %d",
			ErrInvalidAccountData, MultisigSize, len(data))
	}

	ms := &Multisig{M: data[0], N: data[1]}
	var err error
	if ms.IsInitialized, err = deserializeBool(data[2]); err != nil {
		return nil, err
	}
	if ms.N > MaxSigners || (ms.IsInitialized && (ms.M == 0 || ms.M > ms.N)) {
		return nil, fmt.Errorf("%w: multisig m=%d n=%d", ErrInvalidAccountData, ms.M, ms.N)
	}
	offset := 3
	for i := range ms.Signers {
		copy(ms.Signers[i][:], data[offset:offset+32])
		offset += 32
	}
	return ms, nil
}

// UnpackMultisig decodes an initialized Multisig.
func UnpackMultisig(data []byte) (*Multisig, error) {
	ms, err := DeserializeMultisig(data)
	if err != nil {
		return nil, err
	}
	if !ms.IsInitialized {
		return nil, ErrUninitializedAccount
	}
	return ms, nil
}

// Serialize serializes the Multisig to bytes.
func (ms *Multisig) Serialize() []byte {
	data := make([]byte, MultisigSize)
	ms.pack(data)
	return data
}

// SerializeInto writes the whole record into dst, which must be exactly MultisigSize.
func (ms *Multisig) SerializeInto(dst []byte) error {
	if len(dst) != MultisigSize {
		return fmt.Errorf("%w: multisig buffer must be %d bytes, got %d",
			ErrInvalidAccountData, MultisigSize, len(dst))
	}
	ms.pack(dst)
	return nil
}

func (ms *Multisig) pack(data []byte) {
	data[0] = ms.M
	data[1] = ms.N
	data[2] = serializeBool(ms.IsInitialized)
	offset := 3
	for i := range ms.Signers {
		copy(data[offset:offset+32], ms.Signers[i][:])
		offset += 32
	}
}

// RegisteredSigners returns the first N signer keys.
func (ms *Multisig) RegisteredSigners() []types.Pubkey {
	return ms.Signers[:ms.N]
}

func deserializeBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte %d", ErrInvalidAccountData, b)
	}
}

func serializeBool(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// deserializeCOption deserializes a COption<Pubkey> from data at the given offset.
// Returns the COption and the new offset.
func deserializeCOption(data []byte, offset int) (COption, int, error) {
	opt := COption{}
	// COption tag is 4 bytes: 0 = None, 1 = Some
	tag := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	switch tag {
	case 0:
	case 1:
		opt.IsSome = true
		copy(opt.Value[:], data[offset:offset+32])
	default:
		return opt, offset, fmt.Errorf("%w: invalid option tag %d", ErrInvalidAccountData, tag)
	}
	offset += 32

	return opt, offset, nil
}

// serializeCOption serializes a COption<Pubkey> to data at the given offset.
// Returns the new offset.
func serializeCOption(data []byte, offset int, opt COption) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 1)
		offset += 4
		copy(data[offset:offset+32], opt.Value[:])
	} else {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 0)
		offset += 4
		clear(data[offset : offset+32])
	}
	offset += 32

	return offset
}

// deserializeCOptionU64 deserializes a COption<u64> from data at the given offset.
// Returns the COptionU64 and the new offset.
func deserializeCOptionU64(data []byte, offset int) (COptionU64, int, error) {
	opt := COptionU64{}
	tag := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	switch tag {
	case 0:
	case 1:
		opt.IsSome = true
		opt.Value = binary.LittleEndian.Uint64(data[offset : offset+8])
	default:
		return opt, offset, fmt.Errorf("%w: invalid option tag %d", ErrInvalidAccountData, tag)
	}
	offset += 8

	return opt, offset, nil
}

// serializeCOptionU64 serializes a COption<u64> to data at the given offset.
// Returns the new offset.
func serializeCOptionU64(data []byte, offset int, opt COptionU64) int {
	if opt.IsSome {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 1)
		offset += 4
		binary.LittleEndian.PutUint64(data[offset:offset+8], opt.Value)
	} else {
		binary.LittleEndian.PutUint32(data[offset:offset+4], 0)
		offset += 4
		clear(data[offset : offset+8])
	}
	offset += 8

	return offset
}

// loadMint decodes an initialized mint held by a program-owned account.
func loadMint(ctx *runtime.ExecutionContext, acc *runtime.AccountInfo) (*Mint, error) {
	if !ctx.IsProgramOwned(acc) {
		return nil, fmt.Errorf("%w: mint %s", ErrIncorrectProgramID, acc.Pubkey)
	}
	return UnpackMint(acc.Data)
}

// loadTokenAccount decodes an initialized token account held by a program-owned account.
func loadTokenAccount(ctx *runtime.ExecutionContext, acc *runtime.AccountInfo) (*TokenAccount, error) {
	if !ctx.IsProgramOwned(acc) {
		return nil, fmt.Errorf("%w: token account %s", ErrIncorrectProgramID, acc.Pubkey)
	}
	return UnpackTokenAccount(acc.Data)
}
