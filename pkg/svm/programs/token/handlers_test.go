package token

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-token/pkg/types"
)

// ledger is a fixture with one funded mint: alice holds 1000 base units,
// bob holds none, and carol holds an account of an unrelated mint.
type ledger struct {
	*fixture
	mint, other               types.Pubkey
	alice, bob, carol         types.Pubkey
	mintAuthority, freezeAuth types.Pubkey
	aliceOwner, bobOwner      types.Pubkey
}

func newLedger(t *testing.T) *ledger {
	l := &ledger{
		fixture:       newFixture(t),
		mintAuthority: key("mint-authority"),
		freezeAuth:    key("freeze-authority"),
		aliceOwner:    key("alice-owner"),
		bobOwner:      key("bob-owner"),
	}
	l.mint = l.fixture.mint("mint", 2, &l.mintAuthority, &l.freezeAuth)
	l.other = l.fixture.mint("other", 2, &l.mintAuthority, nil)
	l.alice = l.tokenAccount("alice", l.mint, l.aliceOwner)
	l.bob = l.tokenAccount("bob", l.mint, l.bobOwner)
	l.carol = l.tokenAccount("carol", l.other, l.bobOwner)
	l.mustExec(MintTo(l.mint, l.alice, l.mintAuthority, 1000))
	return l
}

// wrapped creates an initialized native account holding extra lamports above
// the rent reserve.
func (f *fixture) wrapped(name string, owner types.Pubkey, extra uint64) types.Pubkey {
	pk := key(name)
	f.put(pk, f.rent.MinimumBalance(TokenAccountSize)+extra, make([]byte, TokenAccountSize), types.TokenProgramID)
	f.mustExec(InitializeAccount3(pk, types.NativeMintID, owner))
	return pk
}

func TestInitializeMint(t *testing.T) {
	f := newFixture(t)
	authority := key("authority")
	freeze := key("freeze")

	m := f.blank("mint", MintSize)
	f.mustExec(InitializeMint2(m, 6, authority, &freeze))
	mint := f.getMint(m)
	assert.Equal(t, Some(authority), mint.MintAuthority)
	assert.Equal(t, Some(freeze), mint.FreezeAuthority)
	assert.Equal(t, uint8(6), mint.Decimals)
	assert.Equal(t, uint64(0), mint.Supply)
	assert.True(t, mint.IsInitialized)
	assert.Contains(t, f.ctx.GetLogs(), "Instruction: InitializeMint2")

	err := f.execUnchanged(InitializeMint2(m, 9, authority, nil))
	assert.ErrorIs(t, err, ErrAccountAlreadyInitialized)

	legacy := f.blank("legacy", MintSize)
	f.mustExec(InitializeMint(legacy, 0, authority, nil))
	assert.Equal(t, None, f.getMint(legacy).FreezeAuthority)

	ix := InitializeMint(f.blank("no-sysvar", MintSize), 0, authority, nil)
	ix.Accounts[1].Pubkey = key("not-rent")
	assert.ErrorIs(t, f.execUnchanged(ix), ErrInvalidArgument)

	ix.Accounts = ix.Accounts[:1]
	assert.ErrorIs(t, f.execUnchanged(ix), ErrNotEnoughAccountKeys)

	poor := key("poor")
	f.put(poor, 1, make([]byte, MintSize), types.TokenProgramID)
	assert.ErrorIs(t, f.execUnchanged(InitializeMint2(poor, 0, authority, nil)), ErrNotRentExempt)

	small := f.blank("small", MintSize-1)
	assert.ErrorIs(t, f.execUnchanged(InitializeMint2(small, 0, authority, nil)), ErrInvalidAccountData)
}

func TestInitializeAccountVariants(t *testing.T) {
	builders := map[string]func(account, mint, owner types.Pubkey) types.Instruction{
		"InitializeAccount":  InitializeAccount,
		"InitializeAccount2": InitializeAccount2,
		"InitializeAccount3": InitializeAccount3,
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			authority := key("authority")
			owner := key("owner")
			mint := f.mint("mint", 6, &authority, nil)
			acc := f.blank("account", TokenAccountSize)

			f.mustExec(build(acc, mint, owner))
			a := f.getAccount(acc)
			assert.Equal(t, mint, a.Mint)
			assert.Equal(t, owner, a.Owner)
			assert.Equal(t, AccountStateInitialized, a.State)
			assert.Equal(t, uint64(0), a.Amount)
			assert.False(t, a.IsNativeAccount())
			assert.Equal(t, None, a.Delegate)

			assert.ErrorIs(t, f.execUnchanged(build(acc, mint, owner)), ErrAccountAlreadyInitialized)
		})
	}
}

func TestInitializeAccountRejectsBadMint(t *testing.T) {
	f := newFixture(t)
	owner := key("owner")

	uninitialized := f.blank("uninitialized", MintSize)
	err := f.execUnchanged(InitializeAccount3(f.blank("a", TokenAccountSize), uninitialized, owner))
	assert.ErrorIs(t, err, ErrInvalidMint)

	foreign := key("foreign")
	f.put(foreign, f.rent.MinimumBalance(MintSize), (&Mint{IsInitialized: true}).Serialize(), types.SystemProgramID)
	err = f.execUnchanged(InitializeAccount3(f.blank("b", TokenAccountSize), foreign, owner))
	assert.ErrorIs(t, err, ErrIncorrectProgramID)

	authority := key("authority")
	mint := f.mint("mint", 0, &authority, nil)
	poor := key("poor")
	f.put(poor, 10, make([]byte, TokenAccountSize), types.TokenProgramID)
	assert.ErrorIs(t, f.execUnchanged(InitializeAccount3(poor, mint, owner)), ErrNotRentExempt)
}

func TestInitializeNativeAccount(t *testing.T) {
	f := newFixture(t)
	reserve := f.rent.MinimumBalance(TokenAccountSize)
	acc := f.wrapped("wsol", key("owner"), 500)

	a := f.getAccount(acc)
	assert.Equal(t, types.NativeMintID, a.Mint)
	assert.Equal(t, COptionU64{IsSome: true, Value: reserve}, a.IsNative)
	assert.Equal(t, uint64(500), a.Amount)
}

func TestInitializeMultisig(t *testing.T) {
	f := newFixture(t)
	a, b, c := key("a"), key("b"), key("c")

	ms := f.blank("multisig", MultisigSize)
	f.mustExec(InitializeMultisig2(ms, 2, a, b, c))
	got := f.getMultisig(ms)
	assert.Equal(t, uint8(2), got.M)
	assert.Equal(t, uint8(3), got.N)
	assert.Equal(t, []types.Pubkey{a, b, c}, got.RegisteredSigners())
	assert.ErrorIs(t, f.execUnchanged(InitializeMultisig2(ms, 1, a)), ErrAccountAlreadyInitialized)

	legacy := f.blank("legacy", MultisigSize)
	f.mustExec(InitializeMultisig(legacy, 1, a))
	assert.Equal(t, uint8(1), f.getMultisig(legacy).N)

	many := make([]types.Pubkey, MaxSigners+1)
	for i := range many {
		many[i] = key(string(rune('A' + i)))
	}
	tests := []struct {
		name    string
		m       uint8
		signers []types.Pubkey
		wantErr error
	}{
		{"zero threshold", 0, []types.Pubkey{a}, ErrInvalidNumberOfRequiredSigners},
		{"threshold above n", 3, []types.Pubkey{a, b}, ErrInvalidNumberOfRequiredSigners},
		{"no signers", 1, nil, ErrInvalidNumberOfProvidedSigners},
		{"too many signers", 1, many, ErrInvalidNumberOfProvidedSigners},
		{"duplicate signer", 1, []types.Pubkey{a, a}, ErrInvalidNumberOfProvidedSigners},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ms := f.blank("multisig", MultisigSize)
			assert.ErrorIs(t, f.execUnchanged(InitializeMultisig2(ms, tt.m, tt.signers...)), tt.wantErr)
		})
	}
}

func TestTransfer(t *testing.T) {
	l := newLedger(t)

	l.mustExec(Transfer(l.alice, l.bob, l.aliceOwner, 300))
	assert.Equal(t, uint64(700), l.getAccount(l.alice).Amount)
	assert.Equal(t, uint64(300), l.getAccount(l.bob).Amount)
	assert.Contains(t, l.ctx.GetLogs(), "Instruction: Transfer")
	assert.Equal(t, uint64(ComputeUnitsPerInstruction), l.ctx.GetComputeUnitsConsumed())
	l.supplyMatches(l.mint)

	l.mustExec(Transfer(l.alice, l.bob, l.aliceOwner, 0))
	assert.Equal(t, uint64(700), l.getAccount(l.alice).Amount)

	l.mustExec(TransferChecked(l.bob, l.mint, l.alice, l.bobOwner, 300, 2))
	assert.Equal(t, uint64(1000), l.getAccount(l.alice).Amount)
	assert.Equal(t, uint64(0), l.getAccount(l.bob).Amount)
	l.supplyMatches(l.mint)
}

func TestTransferFailuresLeaveStateUnchanged(t *testing.T) {
	l := newLedger(t)
	rich := l.tokenAccount("rich", l.mint, l.bobOwner)
	l.accounts[rich].Data = (&TokenAccount{
		Mint:   l.mint,
		Owner:  l.bobOwner,
		Amount: math.MaxUint64,
		State:  AccountStateInitialized,
	}).Serialize()
	foreign := key("foreign")
	l.put(foreign, 0, (&TokenAccount{Mint: l.mint, Owner: l.bobOwner, State: AccountStateInitialized}).Serialize(), types.SystemProgramID)
	truncated := Transfer(l.alice, l.bob, l.aliceOwner, 1)
	truncated.Accounts = truncated.Accounts[:2]

	tests := []struct {
		name    string
		ix      types.Instruction
		wantErr error
	}{
		{"insufficient funds", Transfer(l.alice, l.bob, l.aliceOwner, 1001), ErrInsufficientFunds},
		{"self transfer", Transfer(l.alice, l.alice, l.aliceOwner, 1), ErrInvalidArgument},
		{"wrong owner", Transfer(l.alice, l.bob, l.bobOwner, 1), ErrNotSignerOrOwner},
		{"mint mismatch", Transfer(l.alice, l.carol, l.aliceOwner, 1), ErrMintMismatch},
		{"uninitialized destination", Transfer(l.alice, l.blank("empty", TokenAccountSize), l.aliceOwner, 1), ErrUninitializedAccount},
		{"foreign destination", Transfer(l.alice, foreign, l.aliceOwner, 1), ErrIncorrectProgramID},
		{"destination overflow", Transfer(l.alice, rich, l.aliceOwner, 1), ErrOverflow},
		{"decimal mismatch", TransferChecked(l.alice, l.mint, l.bob, l.aliceOwner, 1, 6), ErrDecimalMismatch},
		{"checked with wrong mint", TransferChecked(l.alice, l.other, l.bob, l.aliceOwner, 1, 2), ErrMintMismatch},
		{"missing accounts", truncated, ErrNotEnoughAccountKeys},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, l.execUnchanged(tt.ix), tt.wantErr)
		})
	}
}

func TestDelegatedTransfer(t *testing.T) {
	l := newLedger(t)
	delegate := key("delegate")

	l.mustExec(Approve(l.alice, delegate, l.aliceOwner, 100))
	a := l.getAccount(l.alice)
	assert.Equal(t, Some(delegate), a.Delegate)
	assert.Equal(t, uint64(100), a.DelegatedAmount)

	l.mustExec(Transfer(l.alice, l.bob, delegate, 60))
	a = l.getAccount(l.alice)
	assert.Equal(t, uint64(940), a.Amount)
	assert.Equal(t, uint64(40), a.DelegatedAmount)
	assert.Equal(t, Some(delegate), a.Delegate)

	assert.ErrorIs(t, l.execUnchanged(Transfer(l.alice, l.bob, delegate, 50)), ErrInsufficientFunds)

	l.mustExec(Transfer(l.alice, l.bob, delegate, 40))
	a = l.getAccount(l.alice)
	assert.Equal(t, None, a.Delegate)
	assert.Equal(t, uint64(0), a.DelegatedAmount)

	assert.ErrorIs(t, l.execUnchanged(Transfer(l.alice, l.bob, delegate, 1)), ErrNotSignerOrOwner)
	assert.Equal(t, uint64(100), l.getAccount(l.bob).Amount)
	l.supplyMatches(l.mint)
}

func TestApprove(t *testing.T) {
	l := newLedger(t)
	delegate := key("delegate")

	assert.ErrorIs(t, l.execUnchanged(Approve(l.alice, delegate, l.bobOwner, 10)), ErrNotSignerOrOwner)
	assert.ErrorIs(t, l.execUnchanged(ApproveChecked(l.alice, l.mint, delegate, l.aliceOwner, 10, 9)), ErrDecimalMismatch)

	l.mustExec(ApproveChecked(l.alice, l.mint, delegate, l.aliceOwner, 10, 2))
	assert.Equal(t, uint64(10), l.getAccount(l.alice).DelegatedAmount)

	// a second approval replaces the first
	other := key("other-delegate")
	l.mustExec(Approve(l.alice, other, l.aliceOwner, 5))
	a := l.getAccount(l.alice)
	assert.Equal(t, Some(other), a.Delegate)
	assert.Equal(t, uint64(5), a.DelegatedAmount)
}

func TestRevoke(t *testing.T) {
	l := newLedger(t)
	delegate := key("delegate")
	l.mustExec(Approve(l.alice, delegate, l.aliceOwner, 100))

	assert.ErrorIs(t, l.execUnchanged(Revoke(l.alice, delegate)), ErrNotSignerOrOwner)

	l.mustExec(Revoke(l.alice, l.aliceOwner))
	a := l.getAccount(l.alice)
	assert.Equal(t, None, a.Delegate)
	assert.Equal(t, uint64(0), a.DelegatedAmount)
}

func TestMintTo(t *testing.T) {
	l := newLedger(t)

	l.mustExec(MintToChecked(l.mint, l.bob, l.mintAuthority, 250, 2))
	assert.Equal(t, uint64(250), l.getAccount(l.bob).Amount)
	assert.Equal(t, uint64(1250), l.getMint(l.mint).Supply)
	l.supplyMatches(l.mint)

	wsol := l.wrapped("wsol", l.aliceOwner, 0)
	tests := []struct {
		name    string
		ix      types.Instruction
		wantErr error
	}{
		{"decimal mismatch", MintToChecked(l.mint, l.bob, l.mintAuthority, 1, 0), ErrDecimalMismatch},
		{"mint mismatch", MintTo(l.mint, l.carol, l.mintAuthority, 1), ErrMintMismatch},
		{"native destination", MintTo(l.mint, wsol, l.mintAuthority, 1), ErrNativeNotSupported},
		{"wrong authority", MintTo(l.mint, l.bob, l.aliceOwner, 1), ErrNotSignerOrOwner},
		{"balance overflow", MintTo(l.mint, l.alice, l.mintAuthority, math.MaxUint64), ErrOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, l.execUnchanged(tt.ix), tt.wantErr)
		})
	}
}

func TestBurn(t *testing.T) {
	l := newLedger(t)

	l.mustExec(Burn(l.alice, l.mint, l.aliceOwner, 400))
	assert.Equal(t, uint64(600), l.getAccount(l.alice).Amount)
	assert.Equal(t, uint64(600), l.getMint(l.mint).Supply)

	l.mustExec(BurnChecked(l.alice, l.mint, l.aliceOwner, 100, 2))
	assert.Equal(t, uint64(500), l.getMint(l.mint).Supply)
	l.supplyMatches(l.mint)

	delegate := key("delegate")
	l.mustExec(Approve(l.alice, delegate, l.aliceOwner, 50))
	l.mustExec(Burn(l.alice, l.mint, delegate, 50))
	a := l.getAccount(l.alice)
	assert.Equal(t, uint64(450), a.Amount)
	assert.Equal(t, None, a.Delegate)
	l.supplyMatches(l.mint)

	assert.ErrorIs(t, l.execUnchanged(BurnChecked(l.alice, l.mint, l.aliceOwner, 1, 3)), ErrDecimalMismatch)
	assert.ErrorIs(t, l.execUnchanged(Burn(l.alice, l.mint, l.aliceOwner, 451)), ErrInsufficientFunds)
	assert.ErrorIs(t, l.execUnchanged(Burn(l.alice, l.other, l.aliceOwner, 1)), ErrMintMismatch)
	assert.ErrorIs(t, l.execUnchanged(Burn(l.alice, l.mint, l.mintAuthority, 1)), ErrNotSignerOrOwner)

	wsol := l.wrapped("wsol", l.aliceOwner, 10)
	assert.ErrorIs(t, l.execUnchanged(Burn(wsol, types.NativeMintID, l.aliceOwner, 1)), ErrNativeNotSupported)
}

func TestBurnSupplyUnderflow(t *testing.T) {
	l := newLedger(t)
	m := l.getMint(l.mint)
	m.Supply = 0
	l.accounts[l.mint].Data = m.Serialize()

	assert.ErrorIs(t, l.execUnchanged(Burn(l.alice, l.mint, l.aliceOwner, 10)), ErrUnderflow)
}

func TestFreezeGating(t *testing.T) {
	l := newLedger(t)

	assert.ErrorIs(t, l.execUnchanged(FreezeAccount(l.alice, l.mint, l.aliceOwner)), ErrNotSignerOrOwner)
	l.mustExec(FreezeAccount(l.alice, l.mint, l.freezeAuth))
	assert.Equal(t, AccountStateFrozen, l.getAccount(l.alice).State)

	delegate := key("delegate")
	newOwner := key("new-owner")
	frozen := []struct {
		name string
		ix   types.Instruction
	}{
		{"transfer out", Transfer(l.alice, l.bob, l.aliceOwner, 1)},
		{"transfer in", Transfer(l.bob, l.alice, l.bobOwner, 0)},
		{"approve", Approve(l.alice, delegate, l.aliceOwner, 1)},
		{"revoke", Revoke(l.alice, l.aliceOwner)},
		{"mint to", MintTo(l.mint, l.alice, l.mintAuthority, 1)},
		{"burn", Burn(l.alice, l.mint, l.aliceOwner, 1)},
		{"set owner", SetAuthority(l.alice, l.aliceOwner, AuthorityTypeAccountOwner, &newOwner)},
	}
	for _, tt := range frozen {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, l.execUnchanged(tt.ix), ErrAccountFrozen)
		})
	}

	assert.ErrorIs(t, l.execUnchanged(FreezeAccount(l.alice, l.mint, l.freezeAuth)), ErrInvalidState)

	l.mustExec(ThawAccount(l.alice, l.mint, l.freezeAuth))
	assert.Equal(t, AccountStateInitialized, l.getAccount(l.alice).State)
	assert.ErrorIs(t, l.execUnchanged(ThawAccount(l.alice, l.mint, l.freezeAuth)), ErrInvalidState)
	l.mustExec(Transfer(l.alice, l.bob, l.aliceOwner, 1))

	assert.ErrorIs(t, l.execUnchanged(FreezeAccount(l.carol, l.other, l.freezeAuth)), ErrNoFreezeAuthority)
	assert.ErrorIs(t, l.execUnchanged(FreezeAccount(l.carol, l.mint, l.freezeAuth)), ErrMintMismatch)
}

func TestCloseFrozenEmptyAccount(t *testing.T) {
	l := newLedger(t)
	sink := key("sink")
	lamports := l.accounts[l.bob].Lamports

	l.mustExec(FreezeAccount(l.bob, l.mint, l.freezeAuth))
	l.mustExec(CloseAccount(l.bob, sink, l.bobOwner))
	assert.Equal(t, lamports, l.accounts[sink].Lamports)
	assert.Equal(t, uint64(0), l.accounts[l.bob].Lamports)
}

func TestCloseAccount(t *testing.T) {
	l := newLedger(t)
	sink := key("sink")

	assert.ErrorIs(t, l.execUnchanged(CloseAccount(l.alice, sink, l.aliceOwner)), ErrNonZeroBalance)
	assert.ErrorIs(t, l.execUnchanged(CloseAccount(l.bob, l.bob, l.bobOwner)), ErrInvalidAccountData)
	assert.ErrorIs(t, l.execUnchanged(CloseAccount(l.bob, sink, l.aliceOwner)), ErrNotSignerOrOwner)

	lamports := l.accounts[l.bob].Lamports
	l.mustExec(CloseAccount(l.bob, sink, l.bobOwner))
	assert.Equal(t, lamports, l.accounts[sink].Lamports)
	assert.Equal(t, uint64(0), l.accounts[l.bob].Lamports)
	assert.Equal(t, make([]byte, TokenAccountSize), l.accounts[l.bob].Data)

	// a closed buffer reads as uninitialized
	err := l.execUnchanged(Transfer(l.alice, l.bob, l.aliceOwner, 1))
	assert.ErrorIs(t, err, ErrUninitializedAccount)
}

func TestCloseAuthority(t *testing.T) {
	l := newLedger(t)
	sink := key("sink")
	closer := key("closer")
	dave := l.tokenAccount("dave", l.mint, l.bobOwner)

	l.mustExec(SetAuthority(dave, l.bobOwner, AuthorityTypeCloseAccount, &closer))
	assert.Equal(t, Some(closer), l.getAccount(dave).CloseAuthority)

	assert.ErrorIs(t, l.execUnchanged(CloseAccount(dave, sink, l.bobOwner)), ErrNotSignerOrOwner)
	l.mustExec(CloseAccount(dave, sink, closer))
	assert.Equal(t, uint64(0), l.accounts[dave].Lamports)
}

func TestCloseNativeAccountWithBalance(t *testing.T) {
	f := newFixture(t)
	owner := key("owner")
	sink := key("sink")
	wsol := f.wrapped("wsol", owner, 500)
	total := f.accounts[wsol].Lamports

	f.mustExec(CloseAccount(wsol, sink, owner))
	assert.Equal(t, total, f.accounts[sink].Lamports)
	assert.Equal(t, uint64(0), f.accounts[wsol].Lamports)
}

func TestSetAuthorityOnMint(t *testing.T) {
	l := newLedger(t)
	newAuthority := key("new-authority")

	l.mustExec(SetAuthority(l.mint, l.mintAuthority, AuthorityTypeMintTokens, &newAuthority))
	assert.Equal(t, Some(newAuthority), l.getMint(l.mint).MintAuthority)
	assert.ErrorIs(t, l.execUnchanged(MintTo(l.mint, l.bob, l.mintAuthority, 1)), ErrNotSignerOrOwner)
	l.mustExec(MintTo(l.mint, l.bob, newAuthority, 1))

	l.mustExec(SetAuthority(l.mint, newAuthority, AuthorityTypeMintTokens, nil))
	assert.Equal(t, None, l.getMint(l.mint).MintAuthority)
	assert.ErrorIs(t, l.execUnchanged(MintTo(l.mint, l.bob, newAuthority, 1)), ErrFixedSupply)
	assert.ErrorIs(t, l.execUnchanged(SetAuthority(l.mint, newAuthority, AuthorityTypeMintTokens, &newAuthority)), ErrFixedSupply)

	l.mustExec(SetAuthority(l.mint, l.freezeAuth, AuthorityTypeFreezeAccount, nil))
	assert.ErrorIs(t, l.execUnchanged(FreezeAccount(l.alice, l.mint, l.freezeAuth)), ErrNoFreezeAuthority)
	assert.ErrorIs(t, l.execUnchanged(SetAuthority(l.mint, l.freezeAuth, AuthorityTypeFreezeAccount, &newAuthority)), ErrNoFreezeAuthority)

	err := l.execUnchanged(SetAuthority(l.mint, l.mintAuthority, AuthorityTypeAccountOwner, &newAuthority))
	assert.ErrorIs(t, err, ErrAuthorityTypeNotSupported)
}

func TestSetAuthorityOnAccount(t *testing.T) {
	l := newLedger(t)
	newOwner := key("new-owner")
	delegate := key("delegate")
	l.mustExec(Approve(l.alice, delegate, l.aliceOwner, 10))

	assert.ErrorIs(t, l.execUnchanged(SetAuthority(l.alice, l.aliceOwner, AuthorityTypeAccountOwner, nil)), ErrInvalidInstruction)
	assert.ErrorIs(t, l.execUnchanged(SetAuthority(l.alice, l.aliceOwner, AuthorityTypeMintTokens, &newOwner)), ErrAuthorityTypeNotSupported)

	l.mustExec(SetAuthority(l.alice, l.aliceOwner, AuthorityTypeAccountOwner, &newOwner))
	a := l.getAccount(l.alice)
	assert.Equal(t, newOwner, a.Owner)
	assert.Equal(t, None, a.Delegate)
	assert.Equal(t, uint64(0), a.DelegatedAmount)

	assert.ErrorIs(t, l.execUnchanged(Transfer(l.alice, l.bob, l.aliceOwner, 1)), ErrNotSignerOrOwner)
	l.mustExec(Transfer(l.alice, l.bob, newOwner, 1))

	odd := l.blank("odd", 10)
	assert.ErrorIs(t, l.execUnchanged(SetAuthority(odd, l.aliceOwner, AuthorityTypeAccountOwner, &newOwner)), ErrInvalidArgument)
}

func TestNativeTransferMovesLamports(t *testing.T) {
	f := newFixture(t)
	owner := key("owner")
	reserve := f.rent.MinimumBalance(TokenAccountSize)
	from := f.wrapped("from", owner, 500)
	to := f.wrapped("to", key("recipient"), 0)

	f.mustExec(Transfer(from, to, owner, 200))
	assert.Equal(t, uint64(300), f.getAccount(from).Amount)
	assert.Equal(t, uint64(200), f.getAccount(to).Amount)
	assert.Equal(t, reserve+300, f.accounts[from].Lamports)
	assert.Equal(t, reserve+200, f.accounts[to].Lamports)
}

func TestSyncNative(t *testing.T) {
	l := newLedger(t)
	wsol := l.wrapped("wsol", l.aliceOwner, 500)

	l.accounts[wsol].Lamports += 200
	l.mustExec(SyncNative(wsol))
	assert.Equal(t, uint64(700), l.getAccount(wsol).Amount)

	l.accounts[wsol].Lamports -= 300
	assert.ErrorIs(t, l.execUnchanged(SyncNative(wsol)), ErrInvalidState)
	l.accounts[wsol].Lamports += 300

	err := l.execUnchanged(SyncNative(l.alice))
	assert.ErrorIs(t, err, ErrInvalidAccountData)
	assert.ErrorIs(t, err, ErrNonNativeNotSupported)

	a := l.getAccount(wsol)
	a.State = AccountStateFrozen
	l.accounts[wsol].Data = a.Serialize()
	assert.ErrorIs(t, l.execUnchanged(SyncNative(wsol)), ErrAccountFrozen)
}

func TestQueries(t *testing.T) {
	l := newLedger(t)

	l.mustExec(GetAccountDataSize(l.mint))
	program, data := l.ctx.GetReturnData()
	assert.Equal(t, types.TokenProgramID, program)
	require.Len(t, data, 8)
	assert.Equal(t, uint64(TokenAccountSize), binary.LittleEndian.Uint64(data))

	l.mustExec(AmountToUiAmountIx(l.mint, 12345))
	_, data = l.ctx.GetReturnData()
	assert.Equal(t, "123.45", string(data))

	l.mustExec(UiAmountToAmountIx(l.mint, "1.5"))
	_, data = l.ctx.GetReturnData()
	assert.Equal(t, uint64(150), binary.LittleEndian.Uint64(data))

	assert.ErrorIs(t, l.execUnchanged(UiAmountToAmountIx(l.mint, "1.234")), ErrInvalidArgument)

	empty := l.blank("empty-mint", MintSize)
	assert.ErrorIs(t, l.execUnchanged(GetAccountDataSize(empty)), ErrInvalidMint)
	assert.ErrorIs(t, l.execUnchanged(AmountToUiAmountIx(empty, 1)), ErrInvalidMint)
}

func TestInitializeImmutableOwner(t *testing.T) {
	l := newLedger(t)

	fresh := l.blank("fresh", TokenAccountSize)
	l.mustExec(InitializeImmutableOwner(fresh))
	assert.Contains(t, l.ctx.GetLogs(), "Please upgrade to SPL Token 2022 for immutable owner support")

	assert.ErrorIs(t, l.execUnchanged(InitializeImmutableOwner(l.alice)), ErrAccountAlreadyInitialized)
}
