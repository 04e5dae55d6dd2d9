// Package compute_budget implements the compute budget program.
//
// Budget instructions are read once before a transaction runs, by Parse,
// and shape the limits it executes under. When the bank later reaches them
// in instruction order they only charge their fixed cost.
package compute_budget

import (
	"fmt"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// ComputeUnitsPerInstruction is charged for every budget instruction.
const ComputeUnitsPerInstruction = 150

// Limits are the per-transaction parameters set by budget instructions.
type Limits struct {
	// ComputeUnitLimit is zero when the transaction did not request one.
	ComputeUnitLimit            uint64
	ComputeUnitPrice            uint64
	HeapFrameSize               uint32
	LoadedAccountsDataSizeLimit uint32
}

// Parse collects the budget instructions among instructions. A malformed
// or repeated budget instruction fails the whole transaction.
func Parse(instructions []types.Instruction) (*Limits, error) {
	limits := &Limits{
		HeapFrameSize:               MinHeapFrameSize,
		LoadedAccountsDataSizeLimit: DefaultLoadedAccountsDataSizeLimit,
	}
	seen := make(map[uint8]bool)
	for i := range instructions {
		if instructions[i].ProgramID != types.ComputeBudgetProgramID {
			continue
		}
		inst, err := DecodeInstruction(instructions[i].Data)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		if seen[inst.Kind] {
			return nil, fmt.Errorf("instruction %d: %w", i, ErrDuplicateInstruction)
		}
		seen[inst.Kind] = true

		switch inst.Kind {
		case InstructionRequestHeapFrame:
			size := uint32(inst.Value)
			if size < MinHeapFrameSize || size > MaxHeapFrameSize || size%HeapFrameAlignment != 0 {
				return nil, fmt.Errorf("instruction %d: %w: %d", i, ErrInvalidHeapFrameSize, size)
			}
			limits.HeapFrameSize = size
		case InstructionSetComputeUnitLimit:
			if inst.Value > uint64(MaxComputeUnits) {
				return nil, fmt.Errorf("instruction %d: %w: %d", i, ErrComputeUnitLimitTooHigh, inst.Value)
			}
			limits.ComputeUnitLimit = inst.Value
		case InstructionSetComputeUnitPrice:
			limits.ComputeUnitPrice = inst.Value
		case InstructionSetLoadedAccountsDataSizeLimit:
			limits.LoadedAccountsDataSizeLimit = uint32(inst.Value)
		}
	}
	return limits, nil
}

// Program executes budget instructions.
type Program struct{}

// New returns the compute budget program.
func New() *Program {
	return &Program{}
}

// Execute charges the fixed cost. The instruction was validated by Parse;
// it is decoded again so a direct caller still gets data errors.
func (p *Program) Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error {
	if err := ctx.ConsumeComputeUnits(ComputeUnitsPerInstruction); err != nil {
		return err
	}
	if _, err := DecodeInstruction(instruction.Data); err != nil {
		return err
	}
	return nil
}
