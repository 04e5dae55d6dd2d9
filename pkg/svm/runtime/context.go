// Package runtime holds the per-instruction view of accounts handed to a
// native program: account buffers with their signer and writable flags, the
// instruction data, a compute meter, program logs and return data.
//
// A context is used by exactly one instruction at a time and performs no
// locking.
package runtime

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-token/pkg/types"
)

// Context errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotWritable  = errors.New("account is not writable")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrComputeExhausted    = errors.New("compute units exhausted")
	ErrMaxLogsExceeded     = errors.New("maximum log entries exceeded")
	ErrLogTooLong          = errors.New("log message too long")
	ErrInvalidAccountIndex = errors.New("invalid account index")
	ErrReturnDataTooLarge  = errors.New("return data too large")
	ErrAccountDataTooLarge = errors.New("account data too large")
)

// Limits for execution
const (
	MaxLogMessages      = 64
	MaxLogMessageLength = 10000
	MaxReturnDataLength = 1024
	MaxAccountDataSize  = 10 * 1024 * 1024 // 10MB

	DefaultComputeUnits = 200_000
)

// AccountInfo represents account information available to a program.
type AccountInfo struct {
	Pubkey     types.Pubkey
	Lamports   uint64
	Data       []byte
	Owner      types.Pubkey
	Executable bool
	IsSigner   bool
	IsWritable bool
}

// NewAccountInfo builds an AccountInfo over a deep copy of acc. A nil acc
// yields an empty system-owned account.
func NewAccountInfo(pubkey types.Pubkey, acc *types.Account, isSigner, isWritable bool) *AccountInfo {
	info := &AccountInfo{
		Pubkey:     pubkey,
		Owner:      types.SystemProgramID,
		IsSigner:   isSigner,
		IsWritable: isWritable,
	}
	if acc != nil {
		c := acc.Clone()
		info.Lamports = uint64(c.Lamports)
		info.Data = c.Data
		info.Owner = c.Owner
		info.Executable = c.Executable
	}
	return info
}

// Account converts the info back to a stored account.
func (a *AccountInfo) Account() *types.Account {
	acc := &types.Account{
		Lamports:   types.Lamports(a.Lamports),
		Owner:      a.Owner,
		Executable: a.Executable,
	}
	if len(a.Data) > 0 {
		acc.Data = make([]byte, len(a.Data))
		copy(acc.Data, a.Data)
	}
	return acc
}

// Clone creates a deep copy of AccountInfo.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return &clone
}

// ExecutionContext holds the execution state of one instruction.
type ExecutionContext struct {
	// Program being executed
	ProgramID types.Pubkey

	// Accounts available to the instruction, in instruction order
	Accounts []*AccountInfo

	// Instruction data
	InstructionData []byte

	// Rent parameters used for rent-exemption checks
	Rent types.Rent

	computeUnits    uint64
	maxComputeUnits uint64

	logs []string

	// Return data from the program
	ReturnData        []byte
	ReturnDataProgram types.Pubkey
}

// NewExecutionContext creates a new execution context.
func NewExecutionContext(programID types.Pubkey, accounts []*AccountInfo, instructionData []byte, computeUnits uint64) *ExecutionContext {
	return &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: instructionData,
		Rent:            types.DefaultRent(),
		computeUnits:    computeUnits,
		maxComputeUnits: computeUnits,
		logs:            make([]string, 0, 8),
	}
}

// ConsumeComputeUnits deducts compute units.
func (ctx *ExecutionContext) ConsumeComputeUnits(units uint64) error {
	if units > ctx.computeUnits {
		ctx.computeUnits = 0
		return ErrComputeExhausted
	}
	ctx.computeUnits -= units
	return nil
}

// GetComputeUnitsRemaining returns remaining compute units.
func (ctx *ExecutionContext) GetComputeUnitsRemaining() uint64 {
	return ctx.computeUnits
}

// GetComputeUnitsConsumed returns consumed compute units.
func (ctx *ExecutionContext) GetComputeUnitsConsumed() uint64 {
	return ctx.maxComputeUnits - ctx.computeUnits
}

// AddLog adds a log message.
func (ctx *ExecutionContext) AddLog(message string) error {
	if len(ctx.logs) >= MaxLogMessages {
		return ErrMaxLogsExceeded
	}
	if len(message) > MaxLogMessageLength {
		return ErrLogTooLong
	}
	ctx.logs = append(ctx.logs, message)
	return nil
}

// Logf formats and adds a log message, dropping it once limits are hit.
func (ctx *ExecutionContext) Logf(format string, args ...interface{}) {
	_ = ctx.AddLog(fmt.Sprintf(format, args...))
}

// GetLogs returns all log messages.
func (ctx *ExecutionContext) GetLogs() []string {
	logs := make([]string, len(ctx.logs))
	copy(logs, ctx.logs)
	return logs
}

// GetAccount returns an account by pubkey.
func (ctx *ExecutionContext) GetAccount(pubkey types.Pubkey) (*AccountInfo, error) {
	for _, acc := range ctx.Accounts {
		if acc.Pubkey == pubkey {
			return acc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey.String())
}

// GetAccountByIndex returns an account by index.
func (ctx *ExecutionContext) GetAccountByIndex(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ctx.Accounts) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountIndex, index)
	}
	return ctx.Accounts[index], nil
}

// AccountCount returns the number of accounts.
func (ctx *ExecutionContext) AccountCount() int {
	return len(ctx.Accounts)
}

// SetReturnData sets the return data for the instruction.
func (ctx *ExecutionContext) SetReturnData(programID types.Pubkey, data []byte) error {
	if len(data) > MaxReturnDataLength {
		return fmt.Errorf("%w: %d bytes", ErrReturnDataTooLarge, len(data))
	}
	ctx.ReturnDataProgram = programID
	ctx.ReturnData = make([]byte, len(data))
	copy(ctx.ReturnData, data)
	return nil
}

// GetReturnData returns the current return data.
func (ctx *ExecutionContext) GetReturnData() (types.Pubkey, []byte) {
	data := make([]byte, len(ctx.ReturnData))
	copy(data, ctx.ReturnData)
	return ctx.ReturnDataProgram, data
}

// TransferLamports moves lamports between two writable accounts.
func (ctx *ExecutionContext) TransferLamports(from, to *AccountInfo, amount uint64) error {
	if !from.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, from.Pubkey.String())
	}
	if !to.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, to.Pubkey.String())
	}
	if from.Lamports < amount {
		return ErrInsufficientFunds
	}
	if to.Lamports+amount < to.Lamports {
		return fmt.Errorf("lamport overflow crediting %s", to.Pubkey.String())
	}
	from.Lamports -= amount
	to.Lamports += amount
	return nil
}

// ResizeAccountData resizes an account's data buffer, zero-filling growth.
func (ctx *ExecutionContext) ResizeAccountData(acc *AccountInfo, newSize int) error {
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, acc.Pubkey.String())
	}
	if newSize > MaxAccountDataSize {
		return fmt.Errorf("%w: %d exceeds maximum %d", ErrAccountDataTooLarge, newSize, MaxAccountDataSize)
	}
	oldData := acc.Data
	acc.Data = make([]byte, newSize)
	copy(acc.Data, oldData)
	return nil
}

// IsProgramOwned reports whether acc is owned by the executing program.
func (ctx *ExecutionContext) IsProgramOwned(acc *AccountInfo) bool {
	return acc.Owner == ctx.ProgramID
}

// ClearReturnData clears the return data.
func (ctx *ExecutionContext) ClearReturnData() {
	ctx.ReturnData = nil
	ctx.ReturnDataProgram = types.ZeroPubkey
}
