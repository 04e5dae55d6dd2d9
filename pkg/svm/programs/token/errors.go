package token

import (
	"errors"
	"fmt"
)

// Error is a token program error. Code is the custom error number a host
// reports as "custom program error: 0x..".
type Error struct {
	Code uint32
	Name string
	msg  string
}

func newError(code uint32, name, msg string) *Error {
	return &Error{Code: code, Name: name, msg: msg}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.msg
}

// Token program errors, numbered as the custom codes of the on-chain program.
var (
	ErrNotRentExempt                  = newError(0, "NotRentExempt", "lamport balance below rent-exempt threshold")
	ErrInsufficientFunds              = newError(1, "InsufficientFunds", "insufficient funds")
	ErrInvalidMint                    = newError(2, "InvalidMint", "invalid mint")
	ErrMintMismatch                   = newError(3, "MintMismatch", "account not associated with this mint")
	ErrNotSignerOrOwner               = newError(4, "OwnerMismatch", "owner does not match")
	ErrFixedSupply                    = newError(5, "FixedSupply", "fixed supply")
	ErrAccountAlreadyInitialized      = newError(6, "AlreadyInUse", "already in use")
	ErrInvalidNumberOfProvidedSigners = newError(7, "InvalidNumberOfProvidedSigners", "invalid number of provided signers")
	ErrInvalidNumberOfRequiredSigners = newError(8, "InvalidNumberOfRequiredSigners", "invalid number of required signers")
	ErrUninitializedAccount           = newError(9, "UninitializedState", "state is uninitialized")
	ErrNativeNotSupported             = newError(10, "NativeNotSupported", "instruction does not support native tokens")
	ErrNonZeroBalance                 = newError(11, "NonNativeHasBalance", "non-native account can only be closed if its balance is zero")
	ErrInvalidInstruction             = newError(12, "InvalidInstruction", "invalid instruction")
	ErrInvalidState                   = newError(13, "InvalidState", "state is invalid for requested operation")
	ErrOverflow                       = newError(14, "Overflow", "operation overflowed")
	ErrAuthorityTypeNotSupported      = newError(15, "AuthorityTypeNotSupported", "account does not support specified authority type")
	ErrNoFreezeAuthority              = newError(16, "MintCannotFreeze", "this token mint cannot freeze accounts")
	ErrAccountFrozen                  = newError(17, "AccountFrozen", "account is frozen")
	ErrDecimalMismatch                = newError(18, "MintDecimalsMismatch", "the provided decimals value different from the mint decimals")
	ErrNonNativeNotSupported          = newError(19, "NonNativeNotSupported", "instruction does not support non-native tokens")
)

// Program errors shared with the host runtime. These carry no custom code.
var (
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrInvalidAccountData     = errors.New("invalid account data")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNotEnoughAccountKeys   = errors.New("not enough account keys")
	ErrIncorrectProgramID     = errors.New("incorrect program id")
	ErrNotEnoughSigners       = errors.New("missing required signature")
	ErrUnderflow              = errors.New("arithmetic underflow")
)

var codeErrors = []*Error{
	ErrNotRentExempt,
	ErrInsufficientFunds,
	ErrInvalidMint,
	ErrMintMismatch,
	ErrNotSignerOrOwner,
	ErrFixedSupply,
	ErrAccountAlreadyInitialized,
	ErrInvalidNumberOfProvidedSigners,
	ErrInvalidNumberOfRequiredSigners,
	ErrUninitializedAccount,
	ErrNativeNotSupported,
	ErrNonZeroBalance,
	ErrInvalidInstruction,
	ErrInvalidState,
	ErrOverflow,
	ErrAuthorityTypeNotSupported,
	ErrNoFreezeAuthority,
	ErrAccountFrozen,
	ErrDecimalMismatch,
	ErrNonNativeNotSupported,
}

// ErrorCode returns the custom code of the first token error in err's chain.
func ErrorCode(err error) (uint32, bool) {
	var tokenErr *Error
	if errors.As(err, &tokenErr) {
		return tokenErr.Code, true
	}
	return 0, false
}

// ErrorFromCode returns the token error with the given custom code.
func ErrorFromCode(code uint32) (*Error, error) {
	if int(code) >= len(codeErrors) {
		return nil, fmt.Errorf("unknown token error code %d", code)
	}
	return codeErrors[code], nil
}
