package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// Every handler validates all inputs before touching any account, then
// writes each record in full. A failing handler leaves every buffer as it
// found it.

// handleInitializeMint handles InitializeMint and InitializeMint2.
// Account layout:
//
//	[0] mint (writable) - The mint to initialize
//	[1] rent sysvar (legacy variant only)
func handleInitializeMint(ctx *runtime.ExecutionContext, inst *InitializeMintInstruction, withRentSysvar bool) error {
	want := 1
	if withRentSysvar {
		want = 2
	}
	if err := requireAccounts(ctx, want); err != nil {
		return err
	}
	mintAcc := ctx.Accounts[0]
	if withRentSysvar {
		if err := checkRentSysvar(ctx.Accounts[1]); err != nil {
			return err
		}
	}

	existing, err := DeserializeMint(mintAcc.Data)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if existing.IsInitialized {
		return fmt.Errorf("mint %s: %w", mintAcc.Pubkey, ErrAccountAlreadyInitialized)
	}
	if !ctx.Rent.IsExempt(mintAcc.Lamports, len(mintAcc.Data)) {
		return fmt.Errorf("mint %s: %w", mintAcc.Pubkey, ErrNotRentExempt)
	}

	mint := &Mint{
		MintAuthority:   Some(inst.MintAuthority),
		Decimals:        inst.Decimals,
		IsInitialized:   true,
		FreezeAuthority: inst.FreezeAuthority,
	}
	return mint.SerializeInto(mintAcc.Data)
}

// handleInitializeAccount handles InitializeAccount, InitializeAccount2 and
// InitializeAccount3. A nil owner takes the owner from account [2].
// Account layout:
//
//	[0] account (writable) - The account to initialize
//	[1] mint - The mint for this account
//	[2] owner (InitializeAccount only)
//	[.] rent sysvar (InitializeAccount and InitializeAccount2)
func handleInitializeAccount(ctx *runtime.ExecutionContext, owner *types.Pubkey, withRentSysvar bool) error {
	want := 2
	if owner == nil {
		want++
	}
	if withRentSysvar {
		want++
	}
	if err := requireAccounts(ctx, want); err != nil {
		return err
	}

	newAcc := ctx.Accounts[0]
	mintAcc := ctx.Accounts[1]
	next := 2
	if owner == nil {
		owner = &ctx.Accounts[2].Pubkey
		next++
	}
	if withRentSysvar {
		if err := checkRentSysvar(ctx.Accounts[next]); err != nil {
			return err
		}
	}

	existing, err := DeserializeTokenAccount(newAcc.Data)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	if existing.State != AccountStateUninitialized {
		return fmt.Errorf("account %s: %w", newAcc.Pubkey, ErrAccountAlreadyInitialized)
	}

	reserve := ctx.Rent.MinimumBalance(len(newAcc.Data))
	if newAcc.Lamports < reserve {
		return fmt.Errorf("account %s: %w", newAcc.Pubkey, ErrNotRentExempt)
	}

	isNativeMint := mintAcc.Pubkey == types.NativeMintID
	if !isNativeMint {
		if !ctx.IsProgramOwned(mintAcc) {
			return fmt.Errorf("%w: mint %s", ErrIncorrectProgramID, mintAcc.Pubkey)
		}
		if _, err := UnpackMint(mintAcc.Data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidMint, mintAcc.Pubkey, err)
		}
	}

	account := &TokenAccount{
		Mint:  mintAcc.Pubkey,
		Owner: *owner,
		State: AccountStateInitialized,
	}
	if isNativeMint {
		account.IsNative = COptionU64{IsSome: true, Value: reserve}
		account.Amount = newAcc.Lamports - reserve
	}
	return account.SerializeInto(newAcc.Data)
}

// handleInitializeMultisig handles InitializeMultisig and InitializeMultisig2.
// Account layout:
//
//	[0] multisig (writable)
//	[1] rent sysvar (legacy variant only)
//	[..] signer accounts, 1 to 11
func handleInitializeMultisig(ctx *runtime.ExecutionContext, m uint8, withRentSysvar bool) error {
	first := 1
	if withRentSysvar {
		first = 2
	}
	if err := requireAccounts(ctx, first); err != nil {
		return err
	}
	msAcc := ctx.Accounts[0]
	if withRentSysvar {
		if err := checkRentSysvar(ctx.Accounts[1]); err != nil {
			return err
		}
	}

	existing, err := DeserializeMultisig(msAcc.Data)
	if err != nil {
		return fmt.Errorf("multisig: %w", err)
	}
	if existing.IsInitialized {
		return fmt.Errorf("multisig %s: %w", msAcc.Pubkey, ErrAccountAlreadyInitialized)
	}
	if !ctx.Rent.IsExempt(msAcc.Lamports, len(msAcc.Data)) {
		return fmt.Errorf("multisig %s: %w", msAcc.Pubkey, ErrNotRentExempt)
	}

	signerAccs := ctx.Accounts[first:]
	n := len(signerAccs)
	if n < 1 || n > MaxSigners {
		return fmt.Errorf("%w: %d", ErrInvalidNumberOfProvidedSigners, n)
	}
	if m < 1 || int(m) > n {
		return fmt.Errorf("%w: m=%d n=%d", ErrInvalidNumberOfRequiredSigners, m, n)
	}

	ms := &Multisig{M: m, N: uint8(n), IsInitialized: true}
	seen := make(map[types.Pubkey]struct{}, n)
	for i, s := range signerAccs {
		if _, dup := seen[s.Pubkey]; dup {
			return fmt.Errorf("%w: duplicate signer %s", ErrInvalidNumberOfProvidedSigners, s.Pubkey)
		}
		seen[s.Pubkey] = struct{}{}
		ms.Signers[i] = s.Pubkey
	}
	return ms.SerializeInto(msAcc.Data)
}

// handleTransfer handles Transfer and TransferChecked. A non-nil
// expectedDecimals selects the checked variant.
// Account layout:
//
//	[0] source (writable)
//	[1] mint (TransferChecked only)
//	[.] destination (writable)
//	[.] authority - owner or delegate
//	[..] multisig signers
func handleTransfer(ctx *runtime.ExecutionContext, amount uint64, expectedDecimals *uint8) error {
	want := 3
	if expectedDecimals != nil {
		want = 4
	}
	if err := requireAccounts(ctx, want); err != nil {
		return err
	}

	sourceAcc := ctx.Accounts[0]
	idx := 1
	var mintAcc *runtime.AccountInfo
	if expectedDecimals != nil {
		mintAcc = ctx.Accounts[idx]
		idx++
	}
	destAcc := ctx.Accounts[idx]
	authorityAcc := ctx.Accounts[idx+1]
	signers := ctx.Accounts[idx+2:]

	if sourceAcc.Pubkey == destAcc.Pubkey {
		return fmt.Errorf("%w: source and destination are the same account", ErrInvalidArgument)
	}

	source, err := loadTokenAccount(ctx, sourceAcc)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dest, err := loadTokenAccount(ctx, destAcc)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if source.IsFrozen() {
		return fmt.Errorf("source: %w", ErrAccountFrozen)
	}
	if dest.IsFrozen() {
		return fmt.Errorf("destination: %w", ErrAccountFrozen)
	}
	if source.Amount < amount {
		return fmt.Errorf("%w: balance %d, transfer %d", ErrInsufficientFunds, source.Amount, amount)
	}
	if source.Mint != dest.Mint {
		return ErrMintMismatch
	}

	if expectedDecimals != nil {
		if err := checkMintDecimals(ctx, mintAcc, source.Mint, *expectedDecimals); err != nil {
			return err
		}
	}

	if err := authorizeSpend(ctx, source, authorityAcc, signers, amount); err != nil {
		return err
	}

	destAmount, err := checkedAdd(dest.Amount, amount)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	var sourceLamports, destLamports uint64
	native := source.IsNativeAccount()
	if native {
		if sourceAcc.Lamports < amount {
			return fmt.Errorf("%w: source lamports %d", ErrInsufficientFunds, sourceAcc.Lamports)
		}
		sourceLamports = sourceAcc.Lamports - amount
		if destLamports, err = checkedAdd(destAcc.Lamports, amount); err != nil {
			return fmt.Errorf("destination lamports: %w", err)
		}
	}

	source.Amount -= amount
	dest.Amount = destAmount
	if native {
		sourceAcc.Lamports = sourceLamports
		destAcc.Lamports = destLamports
	}
	if err := source.SerializeInto(sourceAcc.Data); err != nil {
		return err
	}
	return dest.SerializeInto(destAcc.Data)
}

// handleApprove handles Approve and ApproveChecked.
// Account layout:
//
//	[0] source (writable)
//	[1] mint (ApproveChecked only)
//	[.] delegate
//	[.] owner
//	[..] multisig signers
func handleApprove(ctx *runtime.ExecutionContext, amount uint64, expectedDecimals *uint8) error {
	want := 3
	if expectedDecimals != nil {
		want = 4
	}
	if err := requireAccounts(ctx, want); err != nil {
		return err
	}

	sourceAcc := ctx.Accounts[0]
	idx := 1
	var mintAcc *runtime.AccountInfo
	if expectedDecimals != nil {
		mintAcc = ctx.Accounts[idx]
		idx++
	}
	delegateAcc := ctx.Accounts[idx]
	ownerAcc := ctx.Accounts[idx+1]
	signers := ctx.Accounts[idx+2:]

	source, err := loadTokenAccount(ctx, sourceAcc)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if source.IsFrozen() {
		return fmt.Errorf("source: %w", ErrAccountFrozen)
	}
	if expectedDecimals != nil {
		if err := checkMintDecimals(ctx, mintAcc, source.Mint, *expectedDecimals); err != nil {
			return err
		}
	}
	if err := validateOwner(ctx, source.Owner, ownerAcc, signers); err != nil {
		return err
	}

	source.Delegate = Some(delegateAcc.Pubkey)
	source.DelegatedAmount = amount
	return source.SerializeInto(sourceAcc.Data)
}

// handleRevoke handles the Revoke instruction.
// Account layout:
//
//	[0] source (writable)
//	[1] owner
//	[..] multisig signers
func handleRevoke(ctx *runtime.ExecutionContext) error {
	if err := requireAccounts(ctx, 2); err != nil {
		return err
	}
	sourceAcc := ctx.Accounts[0]
	ownerAcc := ctx.Accounts[1]

	source, err := loadTokenAccount(ctx, sourceAcc)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if source.IsFrozen() {
		return fmt.Errorf("source: %w", ErrAccountFrozen)
	}
	if err := validateOwner(ctx, source.Owner, ownerAcc, ctx.Accounts[2:]); err != nil {
		return err
	}

	source.Delegate = None
	source.DelegatedAmount = 0
	return source.SerializeInto(sourceAcc.Data)
}

// handleSetAuthority handles the SetAuthority instruction.
// Account layout:
//
//	[0] mint or token account (writable)
//	[1] current authority
//	[..] multisig signers
func handleSetAuthority(ctx *runtime.ExecutionContext, inst *SetAuthorityInstruction) error {
	if err := requireAccounts(ctx, 2); err != nil {
		return err
	}
	targetAcc := ctx.Accounts[0]
	authorityAcc := ctx.Accounts[1]
	signers := ctx.Accounts[2:]

	switch len(targetAcc.Data) {
	case TokenAccountSize:
		account, err := loadTokenAccount(ctx, targetAcc)
		if err != nil {
			return err
		}
		if account.IsFrozen() {
			return ErrAccountFrozen
		}

		switch inst.AuthorityType {
		case AuthorityTypeAccountOwner:
			if err := validateOwner(ctx, account.Owner, authorityAcc, signers); err != nil {
				return err
			}
			if !inst.NewAuthority.IsSome {
				return fmt.Errorf("%w: account owner cannot be cleared", ErrInvalidInstruction)
			}
			account.Owner = inst.NewAuthority.Value
			account.Delegate = None
			account.DelegatedAmount = 0
			if account.IsNativeAccount() {
				account.CloseAuthority = None
			}
		case AuthorityTypeCloseAccount:
			current := account.Owner
			if account.CloseAuthority.IsSome {
				current = account.CloseAuthority.Value
			}
			if err := validateOwner(ctx, current, authorityAcc, signers); err != nil {
				return err
			}
			account.CloseAuthority = inst.NewAuthority
		default:
			return fmt.Errorf("%w: %s on a token account", ErrAuthorityTypeNotSupported, inst.AuthorityType)
		}
		return account.SerializeInto(targetAcc.Data)

	case MintSize:
		mint, err := loadMint(ctx, targetAcc)
		if err != nil {
			return err
		}

		switch inst.AuthorityType {
		case AuthorityTypeMintTokens:
			if !mint.MintAuthority.IsSome {
				return ErrFixedSupply
			}
			if err := validateOwner(ctx, mint.MintAuthority.Value, authorityAcc, signers); err != nil {
				return err
			}
			mint.MintAuthority = inst.NewAuthority
		case AuthorityTypeFreezeAccount:
			if !mint.FreezeAuthority.IsSome {
				return ErrNoFreezeAuthority
			}
			if err := validateOwner(ctx, mint.FreezeAuthority.Value, authorityAcc, signers); err != nil {
				return err
			}
			mint.FreezeAuthority = inst.NewAuthority
		default:
			return fmt.Errorf("%w: %s on a mint", ErrAuthorityTypeNotSupported, inst.AuthorityType)
		}
		return mint.SerializeInto(targetAcc.Data)

	default:
		return fmt.Errorf("%w: account %s is neither a mint nor a token account", ErrInvalidArgument, targetAcc.Pubkey)
	}
}

// handleMintTo handles MintTo and MintToChecked.
// Account layout:
//
//	[0] mint (writable)
//	[1] destination (writable)
//	[2] mint authority
//	[..] multisig signers
func handleMintTo(ctx *runtime.ExecutionContext, amount uint64, expectedDecimals *uint8) error {
	if err := requireAccounts(ctx, 3); err != nil {
		return err
	}
	mintAcc := ctx.Accounts[0]
	destAcc := ctx.Accounts[1]
	authorityAcc := ctx.Accounts[2]

	dest, err := loadTokenAccount(ctx, destAcc)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if dest.IsFrozen() {
		return fmt.Errorf("destination: %w", ErrAccountFrozen)
	}
	if dest.IsNativeAccount() {
		return ErrNativeNotSupported
	}
	if dest.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}

	mint, err := loadMint(ctx, mintAcc)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if expectedDecimals != nil && *expectedDecimals != mint.Decimals {
		return fmt.Errorf("%w: expected %d, mint has %d", ErrDecimalMismatch, *expectedDecimals, mint.Decimals)
	}
	if !mint.MintAuthority.IsSome {
		return ErrFixedSupply
	}
	if err := validateOwner(ctx, mint.MintAuthority.Value, authorityAcc, ctx.Accounts[3:]); err != nil {
		return err
	}

	destAmount, err := checkedAdd(dest.Amount, amount)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	supply, err := checkedAdd(mint.Supply, amount)
	if err != nil {
		return fmt.Errorf("supply: %w", err)
	}

	dest.Amount = destAmount
	mint.Supply = supply
	if err := dest.SerializeInto(destAcc.Data); err != nil {
		return err
	}
	return mint.SerializeInto(mintAcc.Data)
}

// handleBurn handles Burn and BurnChecked.
// Account layout:
//
//	[0] source (writable)
//	[1] mint (writable)
//	[2] authority - owner or delegate
//	[..] multisig signers
func handleBurn(ctx *runtime.ExecutionContext, amount uint64, expectedDecimals *uint8) error {
	if err := requireAccounts(ctx, 3); err != nil {
		return err
	}
	sourceAcc := ctx.Accounts[0]
	mintAcc := ctx.Accounts[1]
	authorityAcc := ctx.Accounts[2]

	source, err := loadTokenAccount(ctx, sourceAcc)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if source.IsFrozen() {
		return fmt.Errorf("source: %w", ErrAccountFrozen)
	}
	if source.IsNativeAccount() {
		return ErrNativeNotSupported
	}
	if source.Amount < amount {
		return fmt.Errorf("%w: balance %d, burn %d", ErrInsufficientFunds, source.Amount, amount)
	}
	if source.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}

	mint, err := loadMint(ctx, mintAcc)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if expectedDecimals != nil && *expectedDecimals != mint.Decimals {
		return fmt.Errorf("%w: expected %d, mint has %d", ErrDecimalMismatch, *expectedDecimals, mint.Decimals)
	}

	if err := authorizeSpend(ctx, source, authorityAcc, ctx.Accounts[3:], amount); err != nil {
		return err
	}
	if mint.Supply < amount {
		return fmt.Errorf("%w: supply %d, burn %d", ErrUnderflow, mint.Supply, amount)
	}

	source.Amount -= amount
	mint.Supply -= amount
	if err := source.SerializeInto(sourceAcc.Data); err != nil {
		return err
	}
	return mint.SerializeInto(mintAcc.Data)
}

// handleCloseAccount handles the CloseAccount instruction.
// Account layout:
//
//	[0] account to close (writable)
//	[1] destination for the lamports (writable)
//	[2] owner or close authority
//	[..] multisig signers
func handleCloseAccount(ctx *runtime.ExecutionContext) error {
	if err := requireAccounts(ctx, 3); err != nil {
		return err
	}
	sourceAcc := ctx.Accounts[0]
	destAcc := ctx.Accounts[1]
	authorityAcc := ctx.Accounts[2]

	if sourceAcc.Pubkey == destAcc.Pubkey {
		return fmt.Errorf("%w: cannot close an account into itself", ErrInvalidAccountData)
	}

	source, err := loadTokenAccount(ctx, sourceAcc)
	if err != nil {
		return err
	}
	if !source.IsNativeAccount() && source.Amount != 0 {
		return fmt.Errorf("%w: balance %d", ErrNonZeroBalance, source.Amount)
	}

	closeAuthority := source.Owner
	if source.CloseAuthority.IsSome {
		closeAuthority = source.CloseAuthority.Value
	}
	if err := validateOwner(ctx, closeAuthority, authorityAcc, ctx.Accounts[3:]); err != nil {
		return err
	}

	destLamports, err := checkedAdd(destAcc.Lamports, sourceAcc.Lamports)
	if err != nil {
		return fmt.Errorf("destination lamports: %w", err)
	}

	destAcc.Lamports = destLamports
	sourceAcc.Lamports = 0
	clear(sourceAcc.Data)
	return nil
}

// handleToggleFreeze handles FreezeAccount (freeze=true) and ThawAccount.
// Account layout:
//
//	[0] account (writable)
//	[1] mint
//	[2] freeze authority
//	[..] multisig signers
func handleToggleFreeze(ctx *runtime.ExecutionContext, freeze bool) error {
	if err := requireAccounts(ctx, 3); err != nil {
		return err
	}
	targetAcc := ctx.Accounts[0]
	mintAcc := ctx.Accounts[1]
	authorityAcc := ctx.Accounts[2]

	account, err := loadTokenAccount(ctx, targetAcc)
	if err != nil {
		return err
	}
	if account.IsNativeAccount() {
		return ErrNativeNotSupported
	}
	if account.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}
	if freeze == account.IsFrozen() {
		return fmt.Errorf("%w: account is already %s", ErrInvalidState, account.State)
	}

	mint, err := loadMint(ctx, mintAcc)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if !mint.FreezeAuthority.IsSome {
		return ErrNoFreezeAuthority
	}
	if err := validateOwner(ctx, mint.FreezeAuthority.Value, authorityAcc, ctx.Accounts[3:]); err != nil {
		return err
	}

	if freeze {
		account.State = AccountStateFrozen
	} else {
		account.State = AccountStateInitialized
	}
	return account.SerializeInto(targetAcc.Data)
}

// handleSyncNative handles the SyncNative instruction.
// Account layout:
//
//	[0] native token account (writable)
func handleSyncNative(ctx *runtime.ExecutionContext) error {
	if err := requireAccounts(ctx, 1); err != nil {
		return err
	}
	nativeAcc := ctx.Accounts[0]

	account, err := loadTokenAccount(ctx, nativeAcc)
	if err != nil {
		return err
	}
	if !account.IsNativeAccount() {
		return fmt.Errorf("%w: %w", ErrInvalidAccountData, ErrNonNativeNotSupported)
	}
	if account.IsFrozen() {
		return ErrAccountFrozen
	}
	if nativeAcc.Lamports < account.IsNative.Value {
		return fmt.Errorf("%w: lamports %d below reserve %d", ErrOverflow, nativeAcc.Lamports, account.IsNative.Value)
	}
	amount := nativeAcc.Lamports - account.IsNative.Value
	if amount < account.Amount {
		return fmt.Errorf("%w: wrapped amount would decrease from %d to %d", ErrInvalidState, account.Amount, amount)
	}

	account.Amount = amount
	return account.SerializeInto(nativeAcc.Data)
}

// handleGetAccountDataSize publishes the token account size as return data.
// Account layout:
//
//	[0] mint
func handleGetAccountDataSize(ctx *runtime.ExecutionContext) error {
	if _, err := queryMint(ctx); err != nil {
		return err
	}
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], TokenAccountSize)
	return ctx.SetReturnData(ctx.ProgramID, out[:])
}

// handleInitializeImmutableOwner handles InitializeImmutableOwner. Owners
// here are always reassignable, so this only rejects initialized accounts.
// Account layout:
//
//	[0] uninitialized token account
func handleInitializeImmutableOwner(ctx *runtime.ExecutionContext) error {
	if err := requireAccounts(ctx, 1); err != nil {
		return err
	}
	account, err := DeserializeTokenAccount(ctx.Accounts[0].Data)
	if err != nil {
		return err
	}
	if account.State != AccountStateUninitialized {
		return ErrAccountAlreadyInitialized
	}
	ctx.Logf("Please upgrade to SPL Token 2022 for immutable owner support")
	return nil
}

// handleAmountToUiAmount publishes the UI form of amount as return data.
// Account layout:
//
//	[0] mint
func handleAmountToUiAmount(ctx *runtime.ExecutionContext, amount uint64) error {
	mint, err := queryMint(ctx)
	if err != nil {
		return err
	}
	return ctx.SetReturnData(ctx.ProgramID, []byte(AmountToUiAmount(amount, mint.Decimals)))
}

// handleUiAmountToAmount publishes the raw amount of a UI string as return data.
// Account layout:
//
//	[0] mint
func handleUiAmountToAmount(ctx *runtime.ExecutionContext, uiAmount string) error {
	mint, err := queryMint(ctx)
	if err != nil {
		return err
	}
	amount, err := UiAmountToAmount(uiAmount, mint.Decimals)
	if err != nil {
		return err
	}
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], amount)
	return ctx.SetReturnData(ctx.ProgramID, out[:])
}

// authorizeSpend checks that authorityAcc may move amount out of source,
// either as its delegate or as its owner. A delegated spend consumes the
// allowance and clears the delegate once it reaches zero.
func authorizeSpend(ctx *runtime.ExecutionContext, source *TokenAccount, authorityAcc *runtime.AccountInfo, signers []*runtime.AccountInfo, amount uint64) error {
	if source.Delegate.IsSome && source.Delegate.Value == authorityAcc.Pubkey {
		if err := validateOwner(ctx, source.Delegate.Value, authorityAcc, signers); err != nil {
			return err
		}
		if source.DelegatedAmount < amount {
			return fmt.Errorf("%w: delegated %d, requested %d", ErrInsufficientFunds, source.DelegatedAmount, amount)
		}
		source.DelegatedAmount -= amount
		if source.DelegatedAmount == 0 {
			source.Delegate = None
		}
		return nil
	}
	return validateOwner(ctx, source.Owner, authorityAcc, signers)
}

// checkMintDecimals verifies the mint account of a checked instruction.
func checkMintDecimals(ctx *runtime.ExecutionContext, mintAcc *runtime.AccountInfo, expectedMint types.Pubkey, decimals uint8) error {
	if mintAcc.Pubkey != expectedMint {
		return ErrMintMismatch
	}
	mint, err := loadMint(ctx, mintAcc)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if mint.Decimals != decimals {
		return fmt.Errorf("%w: expected %d, mint has %d", ErrDecimalMismatch, decimals, mint.Decimals)
	}
	return nil
}

// queryMint loads the mint of a query instruction, reporting any decoding
// failure as InvalidMint.
func queryMint(ctx *runtime.ExecutionContext) (*Mint, error) {
	if err := requireAccounts(ctx, 1); err != nil {
		return nil, err
	}
	mintAcc := ctx.Accounts[0]
	if !ctx.IsProgramOwned(mintAcc) {
		return nil, fmt.Errorf("%w: mint %s", ErrIncorrectProgramID, mintAcc.Pubkey)
	}
	mint, err := UnpackMint(mintAcc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	return mint, nil
}

func requireAccounts(ctx *runtime.ExecutionContext, n int) error {
	if ctx.AccountCount() < n {
		return fmt.Errorf("%w: need %d, got %d", ErrNotEnoughAccountKeys, n, ctx.AccountCount())
	}
	return nil
}

func checkRentSysvar(acc *runtime.AccountInfo) error {
	if acc.Pubkey != types.SysvarRentID {
		return fmt.Errorf("%w: expected rent sysvar, got %s", ErrInvalidArgument, acc.Pubkey)
	}
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}
