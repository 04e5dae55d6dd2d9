// Package system implements the lamport and ownership primitives of the
// System Program used to fund and allocate token buffers:
//   - Creating new accounts
//   - Allocating account data
//   - Assigning program ownership
//   - Transferring lamports
//
// All accounts are initially owned by the System Program until assigned
// to another program.
package system

import (
	"fmt"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// ComputeUnitsPerInstruction is charged for every system instruction.
const ComputeUnitsPerInstruction = 150

// SystemProgram implements the System Program.
type SystemProgram struct {
	// ProgramID is the System Program's public key
	ProgramID types.Pubkey
}

// New creates a new SystemProgram instance.
func New() *SystemProgram {
	return &SystemProgram{
		ProgramID: types.SystemProgramID,
	}
}

// Execute executes a System Program instruction.
// The instruction format is:
//   - First 4 bytes: instruction discriminator (little-endian uint32)
//   - Remaining bytes: instruction-specific data
func (p *SystemProgram) Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error {
	discriminator, err := ParseInstructionDiscriminator(instruction.Data)
	if err != nil {
		return err
	}
	data := instruction.Data[4:]

	if err := ctx.ConsumeComputeUnits(ComputeUnitsPerInstruction); err != nil {
		return err
	}

	switch discriminator {
	case InstructionCreateAccount:
		var inst CreateAccountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleCreateAccount(ctx, &inst)

	case InstructionAssign:
		var inst AssignInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAssign(ctx, &inst)

	case InstructionTransfer:
		var inst TransferInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleTransfer(ctx, &inst)

	case InstructionAllocate:
		var inst AllocateInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAllocate(ctx, &inst)

	default:
		return fmt.Errorf("%w: unsupported instruction %d", ErrInvalidInstructionData, discriminator)
	}
}
