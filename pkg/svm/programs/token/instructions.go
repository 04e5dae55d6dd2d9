package token

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/fortiblox/x1-token/pkg/types"
)

// Token Program instruction discriminators (first byte of instruction data)
const (
	InstructionInitializeMint           uint8 = 0
	InstructionInitializeAccount        uint8 = 1
	InstructionInitializeMultisig       uint8 = 2
	InstructionTransfer                 uint8 = 3
	InstructionApprove                  uint8 = 4
	InstructionRevoke                   uint8 = 5
	InstructionSetAuthority             uint8 = 6
	InstructionMintTo                   uint8 = 7
	InstructionBurn                     uint8 = 8
	InstructionCloseAccount             uint8 = 9
	InstructionFreezeAccount            uint8 = 10
	InstructionThawAccount              uint8 = 11
	InstructionTransferChecked          uint8 = 12
	InstructionApproveChecked           uint8 = 13
	InstructionMintToChecked            uint8 = 14
	InstructionBurnChecked              uint8 = 15
	InstructionInitializeAccount2       uint8 = 16
	InstructionSyncNative               uint8 = 17
	InstructionInitializeAccount3       uint8 = 18
	InstructionInitializeMultisig2      uint8 = 19
	InstructionInitializeMint2          uint8 = 20
	InstructionGetAccountDataSize       uint8 = 21
	InstructionInitializeImmutableOwner uint8 = 22
	InstructionAmountToUiAmount         uint8 = 23
	InstructionUiAmountToAmount         uint8 = 24
)

var instructionNames = [...]string{
	"InitializeMint",
	"InitializeAccount",
	"InitializeMultisig",
	"Transfer",
	"Approve",
	"Revoke",
	"SetAuthority",
	"MintTo",
	"Burn",
	"CloseAccount",
	"FreezeAccount",
	"ThawAccount",
	"TransferChecked",
	"ApproveChecked",
	"MintToChecked",
	"BurnChecked",
	"InitializeAccount2",
	"SyncNative",
	"InitializeAccount3",
	"InitializeMultisig2",
	"InitializeMint2",
	"GetAccountDataSize",
	"InitializeImmutableOwner",
	"AmountToUiAmount",
	"UiAmountToAmount",
}

// InstructionName returns the name of an opcode, or "Unknown".
func InstructionName(op uint8) string {
	if int(op) < len(instructionNames) {
		return instructionNames[op]
	}
	return "Unknown"
}

// AuthorityType selects the authority replaced by SetAuthority.
type AuthorityType uint8

// Authority types for SetAuthority instruction
const (
	AuthorityTypeMintTokens    AuthorityType = 0
	AuthorityTypeFreezeAccount AuthorityType = 1
	AuthorityTypeAccountOwner  AuthorityType = 2
	AuthorityTypeCloseAccount  AuthorityType = 3
)

func (t AuthorityType) String() string {
	switch t {
	case AuthorityTypeMintTokens:
		return "MintTokens"
	case AuthorityTypeFreezeAccount:
		return "FreezeAccount"
	case AuthorityTypeAccountOwner:
		return "AccountOwner"
	case AuthorityTypeCloseAccount:
		return "CloseAccount"
	default:
		return fmt.Sprintf("AuthorityType(%d)", uint8(t))
	}
}

// InitializeMintInstruction carries the arguments of InitializeMint and
// InitializeMint2.
// Accounts:
//
//	[0] mint (writable) - The mint to initialize
//	[1] rent sysvar (InitializeMint only)
type InitializeMintInstruction struct {
	Decimals        uint8
	MintAuthority   types.Pubkey
	FreezeAuthority COption
}

// Decode decodes InitializeMint arguments.
// Layout: decimals (1) + mint_authority (32) + freeze tag (1) [+ freeze_authority (32)]
func (inst *InitializeMintInstruction) Decode(data []byte) error {
	switch {
	case len(data) == 34 && data[33] == 0:
	case len(data) == 66 && data[33] == 0:
		// "none" padded to the full record width
	case len(data) == 66 && data[33] == 1:
		inst.FreezeAuthority = Some(types.Pubkey(data[34:66]))
	default:
		return fmt.Errorf("%w: InitializeMint takes 34 or 66 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.Decimals = data[0]
	copy(inst.MintAuthority[:], data[1:33])
	return nil
}

// Encode encodes the instruction under the given opcode.
func (inst *InitializeMintInstruction) Encode(op uint8) []byte {
	if inst.FreezeAuthority.IsSome {
		data := make([]byte, 1+66)
		data[0] = op
		data[1] = inst.Decimals
		copy(data[2:34], inst.MintAuthority[:])
		data[34] = 1
		copy(data[35:67], inst.FreezeAuthority.Value[:])
		return data
	}
	data := make([]byte, 1+34)
	data[0] = op
	data[1] = inst.Decimals
	copy(data[2:34], inst.MintAuthority[:])
	return data
}

// InitializeMultisigInstruction carries the threshold of InitializeMultisig
// and InitializeMultisig2.
// Accounts:
//
//	[0] multisig (writable)
//	[1] rent sysvar (InitializeMultisig only)
//	[..] signer accounts
type InitializeMultisigInstruction struct {
	M uint8 // Number of signers required (threshold)
}

// Decode reads the threshold from the first argument byte.
func (inst *InitializeMultisigInstruction) Decode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: InitializeMultisig requires 1 byte, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.M = data[0]
	return nil
}

// Encode encodes the instruction under the given opcode.
func (inst *InitializeMultisigInstruction) Encode(op uint8) []byte {
	return []byte{op, inst.M}
}

// AmountInstruction carries the single u64 argument of Transfer, Approve,
// MintTo, Burn and AmountToUiAmount.
type AmountInstruction struct {
	Amount uint64
}

// Decode decodes an exactly 8-byte little-endian amount.
func (inst *AmountInstruction) Decode(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("%w: amount requires 8 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.Amount = binary.LittleEndian.Uint64(data)
	return nil
}

// Encode encodes the instruction under the given opcode.
func (inst *AmountInstruction) Encode(op uint8) []byte {
	data := make([]byte, 9)
	data[0] = op
	binary.LittleEndian.PutUint64(data[1:9], inst.Amount)
	return data
}

// CheckedAmountInstruction carries the amount and expected decimals of the
// checked instruction variants.
type CheckedAmountInstruction struct {
	Amount   uint64
	Decimals uint8
}

// Decode decodes an exactly 9-byte amount + decimals record.
func (inst *CheckedAmountInstruction) Decode(data []byte) error {
	if len(data) != 9 {
		return fmt.Errorf("%w: checked amount requires 9 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.Amount = binary.LittleEndian.Uint64(data[0:8])
	inst.Decimals = data[8]
	return nil
}

// Encode encodes the instruction under the given opcode.
func (inst *CheckedAmountInstruction) Encode(op uint8) []byte {
	data := make([]byte, 10)
	data[0] = op
	binary.LittleEndian.PutUint64(data[1:9], inst.Amount)
	data[9] = inst.Decimals
	return data
}

// OwnerInstruction carries the owner argument of InitializeAccount2/3.
type OwnerInstruction struct {
	Owner types.Pubkey
}

// Decode decodes an exactly 32-byte owner.
func (inst *OwnerInstruction) Decode(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("%w: owner requires 32 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	copy(inst.Owner[:], data)
	return nil
}

// Encode encodes the instruction under the given opcode.
func (inst *OwnerInstruction) Encode(op uint8) []byte {
	data := make([]byte, 33)
	data[0] = op
	copy(data[1:], inst.Owner[:])
	return data
}

// SetAuthorityInstruction represents a SetAuthority instruction. Clearing
// and setting are distinct encodings: a clear is exactly [type, 0] and a set
// is exactly [type, 1, pubkey].
// Accounts:
//
//	[0] account or mint (writable)
//	[1] current authority
//	[..] multisig signers
type SetAuthorityInstruction struct {
	AuthorityType AuthorityType
	NewAuthority  COption
}

// Decode decodes a SetAuthority instruction from bytes.
func (inst *SetAuthorityInstruction) Decode(data []byte) error {
	switch {
	case len(data) == 2 && data[1] == 0:
		inst.NewAuthority = None
	case len(data) == 34 && data[1] == 1:
		inst.NewAuthority = Some(types.Pubkey(data[2:34]))
	default:
		return fmt.Errorf("%w: SetAuthority takes [type, 0] or [type, 1, pubkey], got %d bytes",
			ErrInvalidInstructionData, len(data))
	}
	if data[0] > uint8(AuthorityTypeCloseAccount) {
		return fmt.Errorf("%w: unknown authority type %d", ErrInvalidInstruction, data[0])
	}
	inst.AuthorityType = AuthorityType(data[0])
	return nil
}

// Encode encodes a SetAuthority instruction to bytes.
func (inst *SetAuthorityInstruction) Encode() []byte {
	if inst.NewAuthority.IsSome {
		data := make([]byte, 35)
		data[0] = InstructionSetAuthority
		data[1] = uint8(inst.AuthorityType)
		data[2] = 1
		copy(data[3:], inst.NewAuthority.Value[:])
		return data
	}
	return []byte{InstructionSetAuthority, uint8(inst.AuthorityType), 0}
}

// UiAmountInstruction carries the decimal string of UiAmountToAmount.
type UiAmountInstruction struct {
	UiAmount string
}

// Decode requires valid UTF-8.
func (inst *UiAmountInstruction) Decode(data []byte) error {
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: ui amount is not valid UTF-8", ErrInvalidInstructionData)
	}
	inst.UiAmount = string(data)
	return nil
}

// Encode encodes a UiAmountToAmount instruction to bytes.
func (inst *UiAmountInstruction) Encode() []byte {
	return append([]byte{InstructionUiAmountToAmount}, inst.UiAmount...)
}

// ParseInstructionDiscriminator returns the opcode byte of instruction data.
func ParseInstructionDiscriminator(data []byte) (uint8, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: empty instruction data", ErrInvalidInstructionData)
	}
	return data[0], nil
}
