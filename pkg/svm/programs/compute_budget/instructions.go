package compute_budget

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-token/pkg/types"
)

// Instruction discriminators (first byte of instruction data).
const (
	InstructionRequestHeapFrame               uint8 = 1
	InstructionSetComputeUnitLimit            uint8 = 2
	InstructionSetComputeUnitPrice            uint8 = 3
	InstructionSetLoadedAccountsDataSizeLimit uint8 = 4
)

// Budget bounds.
const (
	// MaxComputeUnits is the highest limit a transaction may request.
	MaxComputeUnits uint32 = 1_400_000

	MinHeapFrameSize   uint32 = 32 * 1024
	MaxHeapFrameSize   uint32 = 256 * 1024
	HeapFrameAlignment uint32 = 1024

	// DefaultLoadedAccountsDataSizeLimit applies when a transaction sets none.
	DefaultLoadedAccountsDataSizeLimit uint32 = 64 * 1024 * 1024
)

// Instruction is a decoded compute budget instruction. Value holds the
// instruction's single argument widened to 64 bits.
type Instruction struct {
	Kind  uint8
	Value uint64
}

// DecodeInstruction parses compute budget instruction data.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, fmt.Errorf("%w: empty", ErrInvalidInstructionData)
	}
	inst := Instruction{Kind: data[0]}
	args := data[1:]
	switch inst.Kind {
	case InstructionRequestHeapFrame, InstructionSetComputeUnitLimit, InstructionSetLoadedAccountsDataSizeLimit:
		if len(args) != 4 {
			return Instruction{}, fmt.Errorf("%w: kind %d wants 4 argument bytes, got %d", ErrInvalidInstructionData, inst.Kind, len(args))
		}
		inst.Value = uint64(binary.LittleEndian.Uint32(args))
	case InstructionSetComputeUnitPrice:
		if len(args) != 8 {
			return Instruction{}, fmt.Errorf("%w: kind %d wants 8 argument bytes, got %d", ErrInvalidInstructionData, inst.Kind, len(args))
		}
		inst.Value = binary.LittleEndian.Uint64(args)
	default:
		return Instruction{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidInstructionData, inst.Kind)
	}
	return inst, nil
}

func encode32(kind uint8, v uint32) types.Instruction {
	data := make([]byte, 5)
	data[0] = kind
	binary.LittleEndian.PutUint32(data[1:], v)
	return types.Instruction{ProgramID: types.ComputeBudgetProgramID, Data: data}
}

// RequestHeapFrame builds a RequestHeapFrame instruction.
func RequestHeapFrame(bytes uint32) types.Instruction {
	return encode32(InstructionRequestHeapFrame, bytes)
}

// SetComputeUnitLimit builds a SetComputeUnitLimit instruction.
func SetComputeUnitLimit(units uint32) types.Instruction {
	return encode32(InstructionSetComputeUnitLimit, units)
}

// SetComputeUnitPrice builds a SetComputeUnitPrice instruction.
func SetComputeUnitPrice(microLamports uint64) types.Instruction {
	data := make([]byte, 9)
	data[0] = InstructionSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return types.Instruction{ProgramID: types.ComputeBudgetProgramID, Data: data}
}

// SetLoadedAccountsDataSizeLimit builds a SetLoadedAccountsDataSizeLimit instruction.
func SetLoadedAccountsDataSizeLimit(bytes uint32) types.Instruction {
	return encode32(InstructionSetLoadedAccountsDataSizeLimit, bytes)
}
