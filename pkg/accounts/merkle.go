package accounts

import (
	"bytes"
	"slices"

	"github.com/fortiblox/x1-token/pkg/types"
)

// merkleFanout is the number of children hashed into each parent node.
const merkleFanout = 16

// ComputeAccountsDeltaHash returns the root of a 16-ary Merkle tree over the
// hashes of the given accounts, taken in pubkey order. A ref with a nil or
// zero-lamport account is a deletion and contributes the zero hash.
func ComputeAccountsDeltaHash(refs []types.AccountRef) types.Hash {
	if len(refs) == 0 {
		return types.ZeroHash
	}
	sorted := slices.Clone(refs)
	slices.SortFunc(sorted, func(a, b types.AccountRef) int {
		return bytes.Compare(a.Pubkey[:], b.Pubkey[:])
	})

	level := make([]types.Hash, len(sorted))
	for i, ref := range sorted {
		level[i] = leafHash(ref)
	}
	return merkleRoot(level)
}

func leafHash(ref types.AccountRef) types.Hash {
	if ref.Account == nil || ref.Account.Lamports == 0 {
		return types.ZeroHash
	}
	return ref.Account.Hash(ref.Pubkey)
}

// merkleRoot folds level in place until one hash remains. A group holding a
// single child passes it up unchanged.
func merkleRoot(level []types.Hash) types.Hash {
	if len(level) == 0 {
		return types.ZeroHash
	}
	for len(level) > 1 {
		n := 0
		for start := 0; start < len(level); start += merkleFanout {
			end := min(start+merkleFanout, len(level))
			level[n] = hashGroup(level[start:end])
			n++
		}
		level = level[:n]
	}
	return level[0]
}

func hashGroup(children []types.Hash) types.Hash {
	if len(children) == 1 {
		return children[0]
	}
	parts := make([][]byte, len(children))
	for i := range children {
		parts[i] = children[i][:]
	}
	return types.SHA256Multi(parts...)
}

// AccountsHasher accumulates account hashes for a full accounts hash. Add
// must be called in ascending pubkey order, as Iterate yields them. Only
// the 32-byte leaf hashes are retained.
type AccountsHasher struct {
	leaves []types.Hash
}

// Add records one account.
func (h *AccountsHasher) Add(pubkey types.Pubkey, account *types.Account) {
	h.leaves = append(h.leaves, leafHash(types.AccountRef{Pubkey: pubkey, Account: account}))
}

// Sum returns the Merkle root of the accounts added so far. It equals
// ComputeAccountsDeltaHash over the same accounts.
func (h *AccountsHasher) Sum() types.Hash {
	return merkleRoot(slices.Clone(h.leaves))
}

// ComputeAccountsHash returns the accounts hash of every account in db.
func ComputeAccountsHash(db AccountsDB) (types.Hash, error) {
	var h AccountsHasher
	err := db.Iterate(func(pubkey types.Pubkey, account *types.Account) error {
		h.Add(pubkey, account)
		return nil
	})
	if err != nil {
		return types.ZeroHash, err
	}
	return h.Sum(), nil
}
