package system

import (
	"fmt"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// handleCreateAccount handles the CreateAccount instruction.
// Account layout:
//
//	[0] funding account (signer, writable)
//	[1] new account (signer, writable)
func handleCreateAccount(ctx *runtime.ExecutionContext, inst *CreateAccountInstruction) error {
	if err := requireAccounts(ctx, 2); err != nil {
		return err
	}
	fundingAcc := ctx.Accounts[0]
	newAcc := ctx.Accounts[1]

	if err := requireSignerWritable(fundingAcc, "funding account"); err != nil {
		return err
	}
	if err := requireSignerWritable(newAcc, "new account"); err != nil {
		return err
	}

	if newAcc.Lamports > 0 {
		return fmt.Errorf("%w: %s holds %d lamports", ErrAccountAlreadyInUse, newAcc.Pubkey, newAcc.Lamports)
	}
	if err := checkAllocatable(newAcc, inst.Space); err != nil {
		return err
	}

	minimum := ctx.Rent.MinimumBalance(int(inst.Space))
	if inst.Lamports < minimum {
		return fmt.Errorf("%w: need %d lamports for %d bytes", ErrAccountNotRentExempt, minimum, inst.Space)
	}
	if fundingAcc.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, fundingAcc.Lamports)
	}

	if err := ctx.TransferLamports(fundingAcc, newAcc, inst.Lamports); err != nil {
		return err
	}
	newAcc.Data = make([]byte, inst.Space)
	newAcc.Owner = inst.Owner
	return nil
}

// handleAssign handles the Assign instruction.
// Account layout:
//
//	[0] account to assign (signer, writable)
func handleAssign(ctx *runtime.ExecutionContext, inst *AssignInstruction) error {
	if err := requireAccounts(ctx, 1); err != nil {
		return err
	}
	acc := ctx.Accounts[0]

	if acc.Owner == inst.Owner {
		return nil
	}
	if err := requireSignerWritable(acc, "account to assign"); err != nil {
		return err
	}
	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: %s is owned by %s", ErrInvalidAccountOwner, acc.Pubkey, acc.Owner)
	}

	acc.Owner = inst.Owner
	return nil
}

// handleTransfer handles the Transfer instruction.
// Account layout:
//
//	[0] source account (signer, writable)
//	[1] destination account (writable)
func handleTransfer(ctx *runtime.ExecutionContext, inst *TransferInstruction) error {
	if err := requireAccounts(ctx, 2); err != nil {
		return err
	}
	sourceAcc := ctx.Accounts[0]
	destAcc := ctx.Accounts[1]

	if err := requireSignerWritable(sourceAcc, "source account"); err != nil {
		return err
	}
	if !destAcc.IsWritable {
		return fmt.Errorf("%w: destination account", ErrAccountNotWritable)
	}
	if len(sourceAcc.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrSourceCarriesData, sourceAcc.Pubkey)
	}
	if sourceAcc.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, sourceAcc.Lamports)
	}

	return ctx.TransferLamports(sourceAcc, destAcc, inst.Lamports)
}

// handleAllocate handles the Allocate instruction.
// Account layout:
//
//	[0] account to allocate (signer, writable)
func handleAllocate(ctx *runtime.ExecutionContext, inst *AllocateInstruction) error {
	if err := requireAccounts(ctx, 1); err != nil {
		return err
	}
	acc := ctx.Accounts[0]

	if err := requireSignerWritable(acc, "account to allocate"); err != nil {
		return err
	}
	if err := checkAllocatable(acc, inst.Space); err != nil {
		return err
	}
	return ctx.ResizeAccountData(acc, int(inst.Space))
}

// checkAllocatable rejects accounts that already carry data or belong to
// another program, and sizes beyond the account data limit.
func checkAllocatable(acc *runtime.AccountInfo, space uint64) error {
	if len(acc.Data) > 0 || acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, acc.Pubkey)
	}
	if space > runtime.MaxAccountDataSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooLarge, space)
	}
	return nil
}

func requireSignerWritable(acc *runtime.AccountInfo, role string) error {
	if !acc.IsSigner {
		return fmt.Errorf("%w: %s", ErrAccountNotSigner, role)
	}
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, role)
	}
	return nil
}

func requireAccounts(ctx *runtime.ExecutionContext, n int) error {
	if ctx.AccountCount() < n {
		return fmt.Errorf("%w: need %d, got %d", ErrNotEnoughAccountKeys, n, ctx.AccountCount())
	}
	return nil
}
