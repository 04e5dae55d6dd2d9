package token

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

// fixture is an in-memory account set the token program runs against.
type fixture struct {
	t        *testing.T
	program  *TokenProgram
	rent     types.Rent
	accounts map[types.Pubkey]*runtime.AccountInfo
	ctx      *runtime.ExecutionContext
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		t:        t,
		program:  New(),
		rent:     types.DefaultRent(),
		accounts: make(map[types.Pubkey]*runtime.AccountInfo),
	}
}

func key(name string) types.Pubkey {
	return types.Pubkey(types.SHA256([]byte(name)))
}

func (f *fixture) put(pk types.Pubkey, lamports uint64, data []byte, owner types.Pubkey) *runtime.AccountInfo {
	acc := &runtime.AccountInfo{Pubkey: pk, Lamports: lamports, Data: data, Owner: owner}
	f.accounts[pk] = acc
	return acc
}

// blank creates a zeroed, rent-exempt, program-owned buffer of size bytes.
func (f *fixture) blank(name string, size int) types.Pubkey {
	pk := key(name)
	f.put(pk, f.rent.MinimumBalance(size), make([]byte, size), types.TokenProgramID)
	return pk
}

func (f *fixture) mint(name string, decimals uint8, authority, freeze *types.Pubkey) types.Pubkey {
	m := &Mint{Decimals: decimals, IsInitialized: true}
	if authority != nil {
		m.MintAuthority = Some(*authority)
	}
	if freeze != nil {
		m.FreezeAuthority = Some(*freeze)
	}
	pk := key(name)
	f.put(pk, f.rent.MinimumBalance(MintSize), m.Serialize(), types.TokenProgramID)
	return pk
}

func (f *fixture) tokenAccount(name string, mint, owner types.Pubkey) types.Pubkey {
	a := &TokenAccount{Mint: mint, Owner: owner, State: AccountStateInitialized}
	pk := key(name)
	f.put(pk, f.rent.MinimumBalance(TokenAccountSize), a.Serialize(), types.TokenProgramID)
	return pk
}

func (f *fixture) multisig(name string, m uint8, signers ...types.Pubkey) types.Pubkey {
	ms := &Multisig{M: m, N: uint8(len(signers)), IsInitialized: true}
	copy(ms.Signers[:], signers)
	pk := key(name)
	f.put(pk, f.rent.MinimumBalance(MultisigSize), ms.Serialize(), types.TokenProgramID)
	return pk
}

// exec runs ix with the signer and writable flags of its metas. Keys that
// appear more than once share one AccountInfo. Unknown keys become empty
// system accounts.
func (f *fixture) exec(ix types.Instruction) error {
	f.touch(ix)
	infos := make([]*runtime.AccountInfo, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		acc := f.accounts[meta.Pubkey]
		acc.IsSigner = meta.IsSigner
		acc.IsWritable = meta.IsWritable
		infos = append(infos, acc)
	}
	f.ctx = runtime.NewExecutionContext(types.TokenProgramID, infos, ix.Data, runtime.DefaultComputeUnits)
	f.ctx.Rent = f.rent
	return f.program.Execute(f.ctx, &ix)
}

func (f *fixture) touch(ix types.Instruction) {
	for _, meta := range ix.Accounts {
		if _, ok := f.accounts[meta.Pubkey]; !ok {
			f.put(meta.Pubkey, 0, nil, types.SystemProgramID)
		}
	}
}

// mustExec runs ix and fails the test on error.
func (f *fixture) mustExec(ix types.Instruction) {
	f.t.Helper()
	require.NoError(f.t, f.exec(ix))
}

// execUnchanged runs ix, expects it to fail, and checks that no account
// buffer or balance changed.
func (f *fixture) execUnchanged(ix types.Instruction) error {
	f.t.Helper()
	f.touch(ix)
	before := f.snapshot()
	err := f.exec(ix)
	require.Error(f.t, err)
	after := f.snapshot()
	require.Equal(f.t, len(before), len(after))
	for pk, snap := range before {
		cur := after[pk]
		require.Equal(f.t, snap.Lamports, cur.Lamports, "lamports of %s changed", pk)
		require.True(f.t, bytes.Equal(snap.Data, cur.Data), "data of %s changed", pk)
	}
	return err
}

func (f *fixture) snapshot() map[types.Pubkey]runtime.AccountInfo {
	out := make(map[types.Pubkey]runtime.AccountInfo, len(f.accounts))
	for pk, acc := range f.accounts {
		out[pk] = *acc.Clone()
	}
	return out
}

func (f *fixture) getMint(pk types.Pubkey) *Mint {
	f.t.Helper()
	m, err := DeserializeMint(f.accounts[pk].Data)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) getAccount(pk types.Pubkey) *TokenAccount {
	f.t.Helper()
	a, err := DeserializeTokenAccount(f.accounts[pk].Data)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) getMultisig(pk types.Pubkey) *Multisig {
	f.t.Helper()
	ms, err := DeserializeMultisig(f.accounts[pk].Data)
	require.NoError(f.t, err)
	return ms
}

// supplyMatches checks that the sum of balances equals the mint supply.
func (f *fixture) supplyMatches(mint types.Pubkey) {
	f.t.Helper()
	var total uint64
	for _, acc := range f.accounts {
		if acc.Owner != types.TokenProgramID || len(acc.Data) != TokenAccountSize {
			continue
		}
		a, err := DeserializeTokenAccount(acc.Data)
		require.NoError(f.t, err)
		if a.State != AccountStateUninitialized && a.Mint == mint {
			total += a.Amount
		}
	}
	require.Equal(f.t, f.getMint(mint).Supply, total)
}

func ptr[T any](v T) *T {
	return &v
}
