package token

import (
	"github.com/fortiblox/x1-token/pkg/types"
)

// Instruction builders. Each returns an instruction addressed to the token
// program with its accounts in the order the handler expects. Where an
// authority may be a multisig, pass the multisig signers as trailing keys;
// the authority itself is then marked non-signing.

func authorityMetas(authority types.Pubkey, multisigSigners []types.Pubkey) []types.AccountMeta {
	metas := []types.AccountMeta{types.NewReadonlyAccountMeta(authority, len(multisigSigners) == 0)}
	for _, s := range multisigSigners {
		metas = append(metas, types.NewReadonlyAccountMeta(s, true))
	}
	return metas
}

func newInstruction(data []byte, accounts ...types.AccountMeta) types.Instruction {
	return types.Instruction{
		ProgramID: types.TokenProgramID,
		Accounts:  accounts,
		Data:      data,
	}
}

// InitializeMint2 builds an InitializeMint2 instruction. A nil freeze
// authority leaves the mint unfreezable.
func InitializeMint2(mint types.Pubkey, decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey) types.Instruction {
	inst := InitializeMintInstruction{Decimals: decimals, MintAuthority: mintAuthority}
	if freezeAuthority != nil {
		inst.FreezeAuthority = Some(*freezeAuthority)
	}
	return newInstruction(inst.Encode(InstructionInitializeMint2), types.NewAccountMeta(mint, false))
}

// InitializeMint builds the legacy InitializeMint instruction.
func InitializeMint(mint types.Pubkey, decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey) types.Instruction {
	ix := InitializeMint2(mint, decimals, mintAuthority, freezeAuthority)
	ix.Data[0] = InstructionInitializeMint
	ix.Accounts = append(ix.Accounts, types.NewReadonlyAccountMeta(types.SysvarRentID, false))
	return ix
}

// InitializeAccount builds the legacy InitializeAccount instruction.
func InitializeAccount(account, mint, owner types.Pubkey) types.Instruction {
	return newInstruction([]byte{InstructionInitializeAccount},
		types.NewAccountMeta(account, false),
		types.NewReadonlyAccountMeta(mint, false),
		types.NewReadonlyAccountMeta(owner, false),
		types.NewReadonlyAccountMeta(types.SysvarRentID, false),
	)
}

// InitializeAccount2 builds an InitializeAccount2 instruction.
func InitializeAccount2(account, mint, owner types.Pubkey) types.Instruction {
	inst := OwnerInstruction{Owner: owner}
	return newInstruction(inst.Encode(InstructionInitializeAccount2),
		types.NewAccountMeta(account, false),
		types.NewReadonlyAccountMeta(mint, false),
		types.NewReadonlyAccountMeta(types.SysvarRentID, false),
	)
}

// InitializeAccount3 builds an InitializeAccount3 instruction.
func InitializeAccount3(account, mint, owner types.Pubkey) types.Instruction {
	inst := OwnerInstruction{Owner: owner}
	return newInstruction(inst.Encode(InstructionInitializeAccount3),
		types.NewAccountMeta(account, false),
		types.NewReadonlyAccountMeta(mint, false),
	)
}

// InitializeMultisig builds the legacy InitializeMultisig instruction.
func InitializeMultisig(multisig types.Pubkey, m uint8, signers ...types.Pubkey) types.Instruction {
	inst := InitializeMultisigInstruction{M: m}
	metas := []types.AccountMeta{
		types.NewAccountMeta(multisig, false),
		types.NewReadonlyAccountMeta(types.SysvarRentID, false),
	}
	for _, s := range signers {
		metas = append(metas, types.NewReadonlyAccountMeta(s, false))
	}
	return newInstruction(inst.Encode(InstructionInitializeMultisig), metas...)
}

// InitializeMultisig2 builds an InitializeMultisig2 instruction.
func InitializeMultisig2(multisig types.Pubkey, m uint8, signers ...types.Pubkey) types.Instruction {
	inst := InitializeMultisigInstruction{M: m}
	metas := []types.AccountMeta{types.NewAccountMeta(multisig, false)}
	for _, s := range signers {
		metas = append(metas, types.NewReadonlyAccountMeta(s, false))
	}
	return newInstruction(inst.Encode(InstructionInitializeMultisig2), metas...)
}

// Transfer builds a Transfer instruction.
func Transfer(source, destination, authority types.Pubkey, amount uint64, multisigSigners ...types.Pubkey) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(source, false),
		types.NewAccountMeta(destination, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionTransfer), metas...)
}

// TransferChecked builds a TransferChecked instruction.
func TransferChecked(source, mint, destination, authority types.Pubkey, amount uint64, decimals uint8, multisigSigners ...types.Pubkey) types.Instruction {
	inst := CheckedAmountInstruction{Amount: amount, Decimals: decimals}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(source, false),
		types.NewReadonlyAccountMeta(mint, false),
		types.NewAccountMeta(destination, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionTransferChecked), metas...)
}

// Approve builds an Approve instruction.
func Approve(source, delegate, owner types.Pubkey, amount uint64, multisigSigners ...types.Pubkey) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(source, false),
		types.NewReadonlyAccountMeta(delegate, false),
	}, authorityMetas(owner, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionApprove), metas...)
}

// ApproveChecked builds an ApproveChecked instruction.
func ApproveChecked(source, mint, delegate, owner types.Pubkey, amount uint64, decimals uint8, multisigSigners ...types.Pubkey) types.Instruction {
	inst := CheckedAmountInstruction{Amount: amount, Decimals: decimals}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(source, false),
		types.NewReadonlyAccountMeta(mint, false),
		types.NewReadonlyAccountMeta(delegate, false),
	}, authorityMetas(owner, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionApproveChecked), metas...)
}

// Revoke builds a Revoke instruction.
func Revoke(source, owner types.Pubkey, multisigSigners ...types.Pubkey) types.Instruction {
	metas := append([]types.AccountMeta{types.NewAccountMeta(source, false)}, authorityMetas(owner, multisigSigners)...)
	return newInstruction([]byte{InstructionRevoke}, metas...)
}

// SetAuthority builds a SetAuthority instruction. A nil newAuthority clears
// the authority.
func SetAuthority(target, currentAuthority types.Pubkey, authorityType AuthorityType, newAuthority *types.Pubkey, multisigSigners ...types.Pubkey) types.Instruction {
	inst := SetAuthorityInstruction{AuthorityType: authorityType}
	if newAuthority != nil {
		inst.NewAuthority = Some(*newAuthority)
	}
	metas := append([]types.AccountMeta{types.NewAccountMeta(target, false)}, authorityMetas(currentAuthority, multisigSigners)...)
	return newInstruction(inst.Encode(), metas...)
}

// MintTo builds a MintTo instruction.
func MintTo(mint, destination, authority types.Pubkey, amount uint64, multisigSigners ...types.Pubkey) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(mint, false),
		types.NewAccountMeta(destination, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionMintTo), metas...)
}

// MintToChecked builds a MintToChecked instruction.
func MintToChecked(mint, destination, authority types.Pubkey, amount uint64, decimals uint8, multisigSigners ...types.Pubkey) types.Instruction {
	inst := CheckedAmountInstruction{Amount: amount, Decimals: decimals}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(mint, false),
		types.NewAccountMeta(destination, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionMintToChecked), metas...)
}

// Burn builds a Burn instruction.
func Burn(source, mint, authority types.Pubkey, amount uint64, multisigSigners ...types.Pubkey) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(source, false),
		types.NewAccountMeta(mint, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionBurn), metas...)
}

// BurnChecked builds a BurnChecked instruction.
func BurnChecked(source, mint, authority types.Pubkey, amount uint64, decimals uint8, multisigSigners ...types.Pubkey) types.Instruction {
	inst := CheckedAmountInstruction{Amount: amount, Decimals: decimals}
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(source, false),
		types.NewAccountMeta(mint, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction(inst.Encode(InstructionBurnChecked), metas...)
}

// CloseAccount builds a CloseAccount instruction.
func CloseAccount(account, destination, authority types.Pubkey, multisigSigners ...types.Pubkey) types.Instruction {
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(account, false),
		types.NewAccountMeta(destination, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction([]byte{InstructionCloseAccount}, metas...)
}

// FreezeAccount builds a FreezeAccount instruction.
func FreezeAccount(account, mint, authority types.Pubkey, multisigSigners ...types.Pubkey) types.Instruction {
	metas := append([]types.AccountMeta{
		types.NewAccountMeta(account, false),
		types.NewReadonlyAccountMeta(mint, false),
	}, authorityMetas(authority, multisigSigners)...)
	return newInstruction([]byte{InstructionFreezeAccount}, metas...)
}

// ThawAccount builds a ThawAccount instruction.
func ThawAccount(account, mint, authority types.Pubkey, multisigSigners ...types.Pubkey) types.Instruction {
	ix := FreezeAccount(account, mint, authority, multisigSigners...)
	ix.Data[0] = InstructionThawAccount
	return ix
}

// SyncNative builds a SyncNative instruction.
func SyncNative(account types.Pubkey) types.Instruction {
	return newInstruction([]byte{InstructionSyncNative}, types.NewAccountMeta(account, false))
}

// GetAccountDataSize builds a GetAccountDataSize instruction.
func GetAccountDataSize(mint types.Pubkey) types.Instruction {
	return newInstruction([]byte{InstructionGetAccountDataSize}, types.NewReadonlyAccountMeta(mint, false))
}

// InitializeImmutableOwner builds an InitializeImmutableOwner instruction.
func InitializeImmutableOwner(account types.Pubkey) types.Instruction {
	return newInstruction([]byte{InstructionInitializeImmutableOwner}, types.NewAccountMeta(account, false))
}

// AmountToUiAmountIx builds an AmountToUiAmount instruction.
func AmountToUiAmountIx(mint types.Pubkey, amount uint64) types.Instruction {
	inst := AmountInstruction{Amount: amount}
	return newInstruction(inst.Encode(InstructionAmountToUiAmount), types.NewReadonlyAccountMeta(mint, false))
}

// UiAmountToAmountIx builds a UiAmountToAmount instruction.
func UiAmountToAmountIx(mint types.Pubkey, uiAmount string) types.Instruction {
	inst := UiAmountInstruction{UiAmount: uiAmount}
	return newInstruction(inst.Encode(), types.NewReadonlyAccountMeta(mint, false))
}
