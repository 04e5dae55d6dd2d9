package token

import (
	"fmt"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// authorityKind distinguishes a plain signing key from a multisig record.
type authorityKind uint8

const (
	authoritySingle authorityKind = iota
	authorityMultisig
)

// authority is a resolved authority account: either a single key that must
// sign, or a multisig record whose threshold must be met.
type authority struct {
	kind     authorityKind
	account  *runtime.AccountInfo
	multisig *Multisig
}

// resolveAuthority classifies the authority account. A program-owned account
// of multisig size is a multisig and must be initialized.
func resolveAuthority(ctx *runtime.ExecutionContext, acc *runtime.AccountInfo) (authority, error) {
	if !ctx.IsProgramOwned(acc) || len(acc.Data) != MultisigSize {
		return authority{kind: authoritySingle, account: acc}, nil
	}
	ms, err := DeserializeMultisig(acc.Data)
	if err != nil {
		return authority{}, err
	}
	if !ms.IsInitialized {
		return authority{}, fmt.Errorf("%w: multisig %s is not initialized", ErrInvalidArgument, acc.Pubkey)
	}
	return authority{kind: authorityMultisig, account: acc, multisig: ms}, nil
}

// require checks that the signer accounts satisfy the authority.
func (a authority) require(signers []*runtime.AccountInfo) error {
	switch a.kind {
	case authorityMultisig:
		matched := 0
		seen := make(map[types.Pubkey]struct{}, len(signers))
		registered := a.multisig.RegisteredSigners()
		for _, s := range signers {
			if !s.IsSigner {
				continue
			}
			if _, dup := seen[s.Pubkey]; dup {
				continue
			}
			seen[s.Pubkey] = struct{}{}
			for _, key := range registered {
				if key == s.Pubkey {
					matched++
					break
				}
			}
		}
		if matched < int(a.multisig.M) {
			return fmt.Errorf("%w: %d of %d multisig signers present", ErrNotEnoughSigners, matched, a.multisig.M)
		}
		return nil
	default:
		if !a.account.IsSigner {
			return fmt.Errorf("%w: %s did not sign", ErrNotSignerOrOwner, a.account.Pubkey)
		}
		return nil
	}
}

// validateOwner checks that authorityAcc is the expected authority and that
// the call carries its signature, or enough signatures from the trailing
// signer accounts when the authority is a multisig.
func validateOwner(ctx *runtime.ExecutionContext, expected types.Pubkey, authorityAcc *runtime.AccountInfo, signers []*runtime.AccountInfo) error {
	if authorityAcc.Pubkey != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrNotSignerOrOwner, expected, authorityAcc.Pubkey)
	}
	auth, err := resolveAuthority(ctx, authorityAcc)
	if err != nil {
		return err
	}
	return auth.require(signers)
}
