// Package token implements the SPL Token program as a native handler set over
// account buffers.
//
// The Token Program handles fungible tokens:
//   - Creating mints and M-of-N multisig authorities
//   - Initializing token accounts, including wrapped native accounts
//   - Transferring, minting and burning tokens
//   - Delegating and revoking spending allowances
//   - Freezing and thawing token accounts
//   - Converting between raw amounts and decimal UI strings
//
// Program ID: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
package token

import (
	"fmt"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// ComputeUnitsPerInstruction is charged against the compute meter before a
// token instruction runs.
const ComputeUnitsPerInstruction = 4_500

// TokenProgram implements the SPL Token Program.
type TokenProgram struct {
	// ProgramID is the Token Program's public key
	ProgramID types.Pubkey
}

// New creates a new TokenProgram instance.
func New() *TokenProgram {
	return &TokenProgram{
		ProgramID: types.TokenProgramID,
	}
}

// Execute executes a Token Program instruction.
// The instruction format is:
//   - First byte: instruction discriminator
//   - Remaining bytes: instruction-specific data
func (p *TokenProgram) Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error {
	discriminator, err := ParseInstructionDiscriminator(instruction.Data)
	if err != nil {
		return err
	}
	data := instruction.Data[1:]

	if err := ctx.ConsumeComputeUnits(ComputeUnitsPerInstruction); err != nil {
		return err
	}
	if int(discriminator) < len(instructionNames) {
		ctx.Logf("Instruction: %s", InstructionName(discriminator))
	}

	switch discriminator {
	case InstructionInitializeMint, InstructionInitializeMint2:
		var inst InitializeMintInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleInitializeMint(ctx, &inst, discriminator == InstructionInitializeMint)

	case InstructionInitializeAccount:
		return handleInitializeAccount(ctx, nil, true)

	case InstructionInitializeAccount2, InstructionInitializeAccount3:
		var inst OwnerInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleInitializeAccount(ctx, &inst.Owner, discriminator == InstructionInitializeAccount2)

	case InstructionInitializeMultisig, InstructionInitializeMultisig2:
		var inst InitializeMultisigInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleInitializeMultisig(ctx, inst.M, discriminator == InstructionInitializeMultisig)

	case InstructionTransfer, InstructionApprove, InstructionMintTo, InstructionBurn:
		var inst AmountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return p.executeAmount(ctx, discriminator, inst.Amount, nil)

	case InstructionTransferChecked, InstructionApproveChecked, InstructionMintToChecked, InstructionBurnChecked:
		var inst CheckedAmountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return p.executeAmount(ctx, discriminator, inst.Amount, &inst.Decimals)

	case InstructionRevoke:
		return handleRevoke(ctx)

	case InstructionSetAuthority:
		var inst SetAuthorityInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleSetAuthority(ctx, &inst)

	case InstructionCloseAccount:
		return handleCloseAccount(ctx)

	case InstructionFreezeAccount:
		return handleToggleFreeze(ctx, true)

	case InstructionThawAccount:
		return handleToggleFreeze(ctx, false)

	case InstructionSyncNative:
		return handleSyncNative(ctx)

	case InstructionGetAccountDataSize:
		return handleGetAccountDataSize(ctx)

	case InstructionInitializeImmutableOwner:
		return handleInitializeImmutableOwner(ctx)

	case InstructionAmountToUiAmount:
		var inst AmountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAmountToUiAmount(ctx, inst.Amount)

	case InstructionUiAmountToAmount:
		var inst UiAmountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleUiAmountToAmount(ctx, inst.UiAmount)

	default:
		return fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, discriminator)
	}
}

// executeAmount routes the amount-carrying instruction pairs. Checked and
// unchecked variants share a handler; expectedDecimals is nil for unchecked.
func (p *TokenProgram) executeAmount(ctx *runtime.ExecutionContext, op uint8, amount uint64, expectedDecimals *uint8) error {
	switch op {
	case InstructionTransfer, InstructionTransferChecked:
		return handleTransfer(ctx, amount, expectedDecimals)
	case InstructionApprove, InstructionApproveChecked:
		return handleApprove(ctx, amount, expectedDecimals)
	case InstructionMintTo, InstructionMintToChecked:
		return handleMintTo(ctx, amount, expectedDecimals)
	default:
		return handleBurn(ctx, amount, expectedDecimals)
	}
}
