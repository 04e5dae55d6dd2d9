package bank

import (
	"sort"
	"sync"

	"github.com/fortiblox/x1-token/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-token/pkg/svm/programs/system"
	"github.com/fortiblox/x1-token/pkg/svm/programs/token"
	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// Registered program names, also used as the metrics program label.
const (
	SystemProgramName        = "system"
	TokenProgramName         = "spl-token"
	ComputeBudgetProgramName = "compute-budget"
)

// ProgramExecutor is implemented by native programs.
type ProgramExecutor interface {
	// Execute runs one instruction against the accounts in ctx.
	Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error
}

// ProgramExecutorFunc is a function adapter for ProgramExecutor.
type ProgramExecutorFunc func(ctx *runtime.ExecutionContext, instruction *types.Instruction) error

// Execute implements ProgramExecutor.
func (f ProgramExecutorFunc) Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error {
	return f(ctx, instruction)
}

// ProgramRegistry maps program IDs to their executors.
type ProgramRegistry struct {
	mu       sync.RWMutex
	programs map[types.Pubkey]ProgramExecutor
	names    map[types.Pubkey]string
}

// NewProgramRegistry creates an empty program registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		programs: make(map[types.Pubkey]ProgramExecutor),
		names:    make(map[types.Pubkey]string),
	}
}

// NewDefaultRegistry returns a registry holding the system, token and
// compute budget programs under their canonical IDs.
func NewDefaultRegistry() *ProgramRegistry {
	r := NewProgramRegistry()
	r.RegisterProgramWithName(types.SystemProgramID, SystemProgramName, system.New())
	r.RegisterProgramWithName(types.TokenProgramID, TokenProgramName, token.New())
	r.RegisterProgramWithName(types.ComputeBudgetProgramID, ComputeBudgetProgramName, compute_budget.New())
	return r
}

// RegisterProgram registers an executor for the given program ID, replacing
// any previous registration.
func (r *ProgramRegistry) RegisterProgram(id types.Pubkey, executor ProgramExecutor) {
	r.RegisterProgramWithName(id, id.String(), executor)
}

// RegisterProgramWithName registers an executor under a display name.
func (r *ProgramRegistry) RegisterProgramWithName(id types.Pubkey, name string, executor ProgramExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = executor
	r.names[id] = name
}

// GetProgram returns the executor for the given program ID.
func (r *ProgramRegistry) GetProgram(id types.Pubkey) (ProgramExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.programs[id]
	return executor, ok
}

// GetProgramName returns the name for the given program ID.
func (r *ProgramRegistry) GetProgramName(id types.Pubkey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// HasProgram checks if a program is registered.
func (r *ProgramRegistry) HasProgram(id types.Pubkey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.programs[id]
	return ok
}

// ListPrograms returns all registered program IDs in byte order.
func (r *ProgramRegistry) ListPrograms() []types.Pubkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.Pubkey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return string(ids[i][:]) < string(ids[j][:])
	})
	return ids
}

// Count returns the number of registered programs.
func (r *ProgramRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.programs)
}
