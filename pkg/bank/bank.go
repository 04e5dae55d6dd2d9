// Package bank executes transactions against an account store.
//
// Each transaction runs on private copies of the accounts it references.
// Changes reach the store in one atomic commit only when every instruction
// succeeds; a failed transaction leaves the store untouched.
package bank

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/crypto"
	"github.com/fortiblox/x1-token/pkg/metrics"
	"github.com/fortiblox/x1-token/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// Execution errors
var (
	// ErrNoInstructions indicates a transaction without instructions.
	ErrNoInstructions = errors.New("transaction has no instructions")

	// ErrProgramNotFound indicates the program is not registered.
	ErrProgramNotFound = errors.New("program not found")

	// ErrInvalidAccountIndex indicates a compiled instruction references a
	// key outside the message.
	ErrInvalidAccountIndex = errors.New("account index out of bounds")

	// ErrSignatureVerification indicates a missing or invalid signature.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrReadonlyModified indicates a program changed an account the
	// instruction did not mark writable.
	ErrReadonlyModified = errors.New("instruction modified a read-only account")

	// ErrExternalDataModified indicates a program changed the data of an
	// account it does not own.
	ErrExternalDataModified = errors.New("instruction modified data of an account not owned by the program")

	// ErrExternalLamportSpend indicates a program debited an account it does
	// not own.
	ErrExternalLamportSpend = errors.New("instruction spent lamports of an account not owned by the program")

	// ErrModifiedProgramID indicates a program reassigned an account it does
	// not own.
	ErrModifiedProgramID = errors.New("instruction changed the owner of an account not owned by the program")

	// ErrUnbalancedInstruction indicates the sum of lamports changed.
	ErrUnbalancedInstruction = errors.New("sum of account balances before and after instruction do not match")
)

// InstructionError reports which instruction of a transaction failed.
type InstructionError struct {
	Index     int
	ProgramID types.Pubkey
	Err       error
}

// Error implements the error interface.
func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (program %s) failed: %v", e.Index, e.ProgramID, e.Err)
}

// Unwrap returns the underlying error.
func (e *InstructionError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one transaction.
type Result struct {
	// Signature is the first transaction signature, zero for instruction
	// batches.
	Signature types.Signature

	// Err is the failure that aborted the transaction, nil on success.
	Err error

	// Logs are the program log lines in execution order.
	Logs []string

	// ReturnData is the last return data set by any instruction.
	ReturnData        []byte
	ReturnDataProgram types.Pubkey

	// ComputeUnits is the total consumed by all instructions.
	ComputeUnits uint64

	// Deltas lists every committed account change in pubkey order of first
	// reference. A deleted account has a nil NewAccount.
	Deltas []types.AccountDelta

	// DeltaHash is the accounts delta hash over the committed changes.
	DeltaHash types.Hash
}

// Success reports whether the transaction committed.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Option configures a Bank.
type Option func(*Bank)

// WithLogger sets the bank's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bank) {
		b.log = l
	}
}

// WithMetrics records execution metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bank) {
		b.metrics = m
	}
}

// WithRent sets the rent parameters handed to programs.
func WithRent(rent types.Rent) Option {
	return func(b *Bank) {
		b.rent = rent
	}
}

// WithComputeUnits sets the compute budget of transactions that do not
// request their own limit.
func WithComputeUnits(units uint64) Option {
	return func(b *Bank) {
		b.computeUnits = units
	}
}

// Bank runs transactions one at a time against an AccountsDB.
type Bank struct {
	mu sync.Mutex

	db           accounts.AccountsDB
	registry     *ProgramRegistry
	rent         types.Rent
	computeUnits uint64
	log          *zap.Logger
	metrics      *metrics.Metrics
}

// New creates a bank over db that dispatches to the programs in registry.
func New(db accounts.AccountsDB, registry *ProgramRegistry, opts ...Option) *Bank {
	b := &Bank{
		db:           db,
		registry:     registry,
		rent:         types.DefaultRent(),
		computeUnits: runtime.DefaultComputeUnits,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Rent returns the rent parameters in effect.
func (b *Bank) Rent() types.Rent {
	return b.rent
}

// GetAccount returns the stored account, or nil if it does not exist.
func (b *Bank) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	return b.db.GetAccount(pubkey)
}

// ProcessTransaction verifies every signature of tx and executes its
// instructions. Signers are exactly the keys whose signatures verified.
//
// The returned error reports storage failures only; transaction failures are
// reported in Result.Err.
func (b *Bank) ProcessTransaction(tx *types.Transaction) (*Result, error) {
	if err := crypto.VerifyTransaction(tx); err != nil {
		res := &Result{Err: fmt.Errorf("%w: %v", ErrSignatureVerification, err)}
		if tx != nil {
			res.Signature = tx.ID()
		}
		b.log.Debug("transaction rejected", zap.Error(res.Err))
		if b.metrics != nil {
			b.metrics.RecordTransaction(false, 0, 0)
		}
		return res, nil
	}
	if b.metrics != nil {
		b.metrics.RecordSignatures(len(tx.Signatures))
	}

	instructions, err := decompile(&tx.Message)
	if err != nil {
		return &Result{Signature: tx.ID(), Err: err}, nil
	}
	return b.execute(tx.ID(), instructions)
}

// ProcessInstructions executes instructions as one transaction, trusting the
// signer flags of their account metas. It is meant for tools and tests that
// hold no keypairs.
func (b *Bank) ProcessInstructions(instructions ...types.Instruction) (*Result, error) {
	return b.execute(types.ZeroSignature, instructions)
}

// decompile expands compiled instructions using the message header to
// derive signer and writable flags.
func decompile(msg *types.Message) ([]types.Instruction, error) {
	out := make([]types.Instruction, 0, len(msg.Instructions))
	for i, compiled := range msg.Instructions {
		if int(compiled.ProgramIDIndex) >= len(msg.AccountKeys) {
			return nil, fmt.Errorf("%w: instruction %d program index %d", ErrInvalidAccountIndex, i, compiled.ProgramIDIndex)
		}
		ix := types.Instruction{
			ProgramID: msg.AccountKeys[compiled.ProgramIDIndex],
			Accounts:  make([]types.AccountMeta, len(compiled.AccountIndices)),
			Data:      compiled.Data,
		}
		for j, idx := range compiled.AccountIndices {
			if int(idx) >= len(msg.AccountKeys) {
				return nil, fmt.Errorf("%w: instruction %d account index %d", ErrInvalidAccountIndex, i, idx)
			}
			ix.Accounts[j] = types.AccountMeta{
				Pubkey:     msg.AccountKeys[idx],
				IsSigner:   msg.IsSigner(int(idx)),
				IsWritable: msg.IsWritable(int(idx)),
			}
		}
		out = append(out, ix)
	}
	return out, nil
}

// workingSet holds the pre-transaction state of every referenced account
// and its current state during execution.
type workingSet struct {
	order    []types.Pubkey
	original map[types.Pubkey]*types.Account
	current  map[types.Pubkey]*runtime.AccountInfo
}

func (b *Bank) load(instructions []types.Instruction) (*workingSet, error) {
	ws := &workingSet{
		original: make(map[types.Pubkey]*types.Account),
		current:  make(map[types.Pubkey]*runtime.AccountInfo),
	}
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			if _, ok := ws.current[meta.Pubkey]; ok {
				continue
			}
			acc, err := b.db.GetAccount(meta.Pubkey)
			if err != nil {
				return nil, fmt.Errorf("load account %s: %w", meta.Pubkey, err)
			}
			ws.order = append(ws.order, meta.Pubkey)
			ws.original[meta.Pubkey] = acc
			ws.current[meta.Pubkey] = runtime.NewAccountInfo(meta.Pubkey, acc, false, false)
		}
	}
	return ws, nil
}

func (ws *workingSet) dataSize() uint64 {
	var n uint64
	for _, acc := range ws.original {
		if acc != nil {
			n += uint64(len(acc.Data))
		}
	}
	return n
}

func (b *Bank) execute(sig types.Signature, instructions []types.Instruction) (*Result, error) {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	res := &Result{Signature: sig}
	defer func() {
		if b.metrics != nil {
			b.metrics.RecordTransaction(res.Success(), res.ComputeUnits, time.Since(start))
		}
	}()

	if len(instructions) == 0 {
		res.Err = ErrNoInstructions
		return res, nil
	}

	limits, err := compute_budget.Parse(instructions)
	if err != nil {
		res.Err = err
		return res, nil
	}

	ws, err := b.load(instructions)
	if err != nil {
		return nil, err
	}
	if size := ws.dataSize(); size > uint64(limits.LoadedAccountsDataSizeLimit) {
		res.Err = fmt.Errorf("%w: %d > %d bytes", compute_budget.ErrLoadedAccountsDataSizeExceeded, size, limits.LoadedAccountsDataSizeLimit)
		return res, nil
	}

	remaining := b.computeUnits
	if limits.ComputeUnitLimit > 0 {
		remaining = limits.ComputeUnitLimit
	}
	for i := range instructions {
		ix := &instructions[i]
		err := b.executeInstruction(ws, ix, res, &remaining)
		if b.metrics != nil {
			name, ok := b.registry.GetProgramName(ix.ProgramID)
			if !ok {
				name = "unknown"
			}
			b.metrics.RecordInstruction(name, ix.Data, err)
		}
		if err != nil {
			res.Err = &InstructionError{Index: i, ProgramID: ix.ProgramID, Err: err}
			b.log.Debug("transaction failed",
				zap.Stringer("signature", sig),
				zap.Int("instruction", i),
				zap.Error(err),
			)
			return res, nil
		}
	}

	refs := make([]types.AccountRef, 0, len(ws.order))
	for _, pk := range ws.order {
		old := ws.original[pk]
		updated := ws.current[pk].Account()
		if updated.Lamports == 0 {
			updated = nil
		}
		if old.Equal(updated) {
			continue
		}
		refs = append(refs, types.AccountRef{Pubkey: pk, Account: updated})
		res.Deltas = append(res.Deltas, types.AccountDelta{Pubkey: pk, OldAccount: old, NewAccount: updated})
	}

	if err := b.db.Commit(refs); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	res.DeltaHash = accounts.ComputeAccountsDeltaHash(refs)

	if b.metrics != nil {
		b.metrics.SetAccountsCount(b.db.GetAccountsCount())
	}
	b.log.Debug("transaction committed",
		zap.Stringer("signature", sig),
		zap.Int("accounts", len(refs)),
		zap.Uint64("compute_units", res.ComputeUnits),
		zap.Stringer("delta_hash", res.DeltaHash),
	)
	return res, nil
}

// executeInstruction runs ix on copies of the working set and, if the
// program succeeds and obeyed the account rules, writes the copies back.
func (b *Bank) executeInstruction(ws *workingSet, ix *types.Instruction, res *Result, remaining *uint64) error {
	program, ok := b.registry.GetProgram(ix.ProgramID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, ix.ProgramID)
	}

	// Repeated keys share one AccountInfo carrying the union of their flags.
	infos := make([]*runtime.AccountInfo, len(ix.Accounts))
	shared := make(map[types.Pubkey]*runtime.AccountInfo, len(ix.Accounts))
	for j, meta := range ix.Accounts {
		info, ok := shared[meta.Pubkey]
		if !ok {
			info = ws.current[meta.Pubkey].Clone()
			info.IsSigner = false
			info.IsWritable = false
			shared[meta.Pubkey] = info
		}
		info.IsSigner = info.IsSigner || meta.IsSigner
		info.IsWritable = info.IsWritable || meta.IsWritable
		infos[j] = info
	}

	ctx := runtime.NewExecutionContext(ix.ProgramID, infos, ix.Data, *remaining)
	ctx.Rent = b.rent

	err := program.Execute(ctx, ix)

	consumed := ctx.GetComputeUnitsConsumed()
	*remaining -= consumed
	res.ComputeUnits += consumed
	res.Logs = append(res.Logs, ctx.GetLogs()...)
	if err != nil {
		return err
	}

	if err := verifyChanges(ix.ProgramID, ws, shared); err != nil {
		return err
	}

	for pk, info := range shared {
		ws.current[pk] = info
	}
	if pid, data := ctx.GetReturnData(); len(data) > 0 {
		res.ReturnDataProgram = pid
		res.ReturnData = data
	}
	return nil
}

// verifyChanges enforces the rules every program is held to: only writable
// accounts change, only owned accounts lose lamports or change data or
// owner, and lamports are conserved.
func verifyChanges(programID types.Pubkey, ws *workingSet, touched map[types.Pubkey]*runtime.AccountInfo) error {
	var before, after uint64
	for pk, info := range touched {
		prev := ws.current[pk]
		before += prev.Lamports
		after += info.Lamports

		dataChanged := string(prev.Data) != string(info.Data)
		ownerChanged := prev.Owner != info.Owner
		changed := dataChanged || ownerChanged ||
			prev.Lamports != info.Lamports ||
			prev.Executable != info.Executable

		if changed && !info.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadonlyModified, pk)
		}
		owned := prev.Owner == programID
		if ownerChanged && !owned {
			return fmt.Errorf("%w: %s", ErrModifiedProgramID, pk)
		}
		if dataChanged && !owned {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, pk)
		}
		if info.Lamports < prev.Lamports && !owned {
			return fmt.Errorf("%w: %s", ErrExternalLamportSpend, pk)
		}
	}
	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}
