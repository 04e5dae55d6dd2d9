package compute_budget

import "errors"

// Compute budget errors
var (
	// ErrInvalidInstructionData indicates the instruction data is malformed.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrInvalidHeapFrameSize indicates a heap frame size outside
	// [32KiB, 256KiB] or not a multiple of 1024.
	ErrInvalidHeapFrameSize = errors.New("invalid heap frame size")

	// ErrComputeUnitLimitTooHigh indicates a requested limit above MaxComputeUnits.
	ErrComputeUnitLimitTooHigh = errors.New("compute unit limit too high")

	// ErrDuplicateInstruction indicates a budget instruction kind appears
	// more than once in a transaction.
	ErrDuplicateInstruction = errors.New("duplicate compute budget instruction")

	// ErrLoadedAccountsDataSizeExceeded indicates the accounts referenced by
	// a transaction carry more data than its limit allows.
	ErrLoadedAccountsDataSizeExceeded = errors.New("loaded accounts data size exceeded")
)
