package bank

import (
	"encoding/binary"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/crypto"
	"github.com/fortiblox/x1-token/pkg/metrics"
	"github.com/fortiblox/x1-token/pkg/svm/programs/compute_budget"
	"github.com/fortiblox/x1-token/pkg/svm/programs/system"
	"github.com/fortiblox/x1-token/pkg/svm/programs/token"
	"github.com/fortiblox/x1-token/pkg/svm/runtime"
	"github.com/fortiblox/x1-token/pkg/types"
)

const payerBalance = 10_000_000_000

func testKey(name string) types.Pubkey {
	return types.Pubkey(types.SHA256([]byte(name)))
}

func testKeypair(t *testing.T, name string) crypto.Keypair {
	t.Helper()
	seed := types.SHA256([]byte(name))
	kp, err := crypto.KeypairFromSeed(seed[:])
	require.NoError(t, err)
	return kp
}

type testBank struct {
	*Bank
	t     *testing.T
	db    *accounts.MemoryDB
	payer crypto.Keypair
	rent  types.Rent
}

func newTestBank(t *testing.T, opts ...Option) *testBank {
	db := accounts.NewMemoryDB()
	tb := &testBank{
		Bank:  New(db, NewDefaultRegistry(), opts...),
		t:     t,
		db:    db,
		payer: testKeypair(t, "payer"),
		rent:  types.DefaultRent(),
	}
	require.NoError(t, db.SetAccount(tb.payer.Pubkey(), types.NewAccount(payerBalance, types.SystemProgramID)))
	return tb
}

func (tb *testBank) mustProcess(ixs ...types.Instruction) *Result {
	tb.t.Helper()
	res, err := tb.ProcessInstructions(ixs...)
	require.NoError(tb.t, err)
	require.NoError(tb.t, res.Err)
	return res
}

func (tb *testBank) createMint(mint, authority types.Pubkey, decimals uint8) {
	tb.t.Helper()
	tb.mustProcess(
		system.CreateAccount(tb.payer.Pubkey(), mint, tb.rent.MinimumBalance(token.MintSize), token.MintSize, types.TokenProgramID),
		token.InitializeMint2(mint, decimals, authority, nil),
	)
}

func (tb *testBank) createTokenAccount(account, mint, owner types.Pubkey) {
	tb.t.Helper()
	tb.mustProcess(
		system.CreateAccount(tb.payer.Pubkey(), account, tb.rent.MinimumBalance(token.TokenAccountSize), token.TokenAccountSize, types.TokenProgramID),
		token.InitializeAccount3(account, mint, owner),
	)
}

func (tb *testBank) tokenAccount(pk types.Pubkey) *token.TokenAccount {
	tb.t.Helper()
	acc, err := tb.db.GetAccount(pk)
	require.NoError(tb.t, err)
	require.NotNil(tb.t, acc)
	a, err := token.UnpackTokenAccount(acc.Data)
	require.NoError(tb.t, err)
	return a
}

func (tb *testBank) lamports(pk types.Pubkey) uint64 {
	tb.t.Helper()
	acc, err := tb.db.GetAccount(pk)
	require.NoError(tb.t, err)
	if acc == nil {
		return 0
	}
	return uint64(acc.Lamports)
}

func TestProcessSignedTransaction(t *testing.T) {
	tb := newTestBank(t)
	mintKp := testKeypair(t, "mint")
	accountKp := testKeypair(t, "account")
	authority := testKeypair(t, "authority")
	owner := testKey("owner")

	tx := types.NewTransaction(tb.payer.Pubkey(), types.ZeroHash,
		system.CreateAccount(tb.payer.Pubkey(), mintKp.Pubkey(), tb.rent.MinimumBalance(token.MintSize), token.MintSize, types.TokenProgramID),
		token.InitializeMint2(mintKp.Pubkey(), 2, authority.Pubkey(), nil),
		system.CreateAccount(tb.payer.Pubkey(), accountKp.Pubkey(), tb.rent.MinimumBalance(token.TokenAccountSize), token.TokenAccountSize, types.TokenProgramID),
		token.InitializeAccount3(accountKp.Pubkey(), mintKp.Pubkey(), owner),
		token.MintTo(mintKp.Pubkey(), accountKp.Pubkey(), authority.Pubkey(), 500),
	)
	require.NoError(t, crypto.SignTransaction(tx, tb.payer, mintKp, accountKp, authority))

	res, err := tb.ProcessTransaction(tx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, res.Success())
	assert.Equal(t, tx.Signatures[0], res.Signature)

	assert.Equal(t, uint64(500), tb.tokenAccount(accountKp.Pubkey()).Amount)
	mintAcc, err := tb.db.GetAccount(mintKp.Pubkey())
	require.NoError(t, err)
	mint, err := token.UnpackMint(mintAcc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), mint.Supply)

	spent := tb.rent.MinimumBalance(token.MintSize) + tb.rent.MinimumBalance(token.TokenAccountSize)
	assert.Equal(t, payerBalance-spent, tb.lamports(tb.payer.Pubkey()))

	// payer, mint and account changed; the authority did not
	require.Len(t, res.Deltas, 3)
	refs := make([]types.AccountRef, len(res.Deltas))
	for i, d := range res.Deltas {
		refs[i] = types.AccountRef{Pubkey: d.Pubkey, Account: d.NewAccount}
	}
	assert.Equal(t, accounts.ComputeAccountsDeltaHash(refs), res.DeltaHash)
	assert.True(t, res.Deltas[1].IsCreation())
	assert.Equal(t, 2*system.ComputeUnitsPerInstruction+3*token.ComputeUnitsPerInstruction, int(res.ComputeUnits))
	assert.Contains(t, res.Logs, "Instruction: MintTo")
}

func TestRejectsBadSignature(t *testing.T) {
	tb := newTestBank(t)
	bob := testKey("bob")

	tx := types.NewTransaction(tb.payer.Pubkey(), types.ZeroHash, system.Transfer(tb.payer.Pubkey(), bob, 1000))
	require.NoError(t, crypto.SignTransaction(tx, tb.payer))
	tx.Signatures[0][0] ^= 0xff

	res, err := tb.ProcessTransaction(tx)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrSignatureVerification)
	assert.Equal(t, uint64(payerBalance), tb.lamports(tb.payer.Pubkey()))
	assert.Zero(t, tb.lamports(bob))

	unsigned := types.NewTransaction(tb.payer.Pubkey(), types.ZeroHash, system.Transfer(tb.payer.Pubkey(), bob, 1000))
	res, err = tb.ProcessTransaction(unsigned)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrSignatureVerification)
}

func TestFailedTransactionCommitsNothing(t *testing.T) {
	tb := newTestBank(t)
	mint := testKey("mint")
	account := testKey("account")
	authority := testKey("authority")
	bob := testKey("bob")
	tb.createMint(mint, authority, 0)
	tb.createTokenAccount(account, mint, testKey("owner"))
	before := tb.lamports(tb.payer.Pubkey())
	count := tb.db.GetAccountsCount()

	res, err := tb.ProcessInstructions(
		system.Transfer(tb.payer.Pubkey(), bob, 1000),
		token.MintTo(mint, account, testKey("impostor"), 10),
	)
	require.NoError(t, err)
	require.Error(t, res.Err)

	var ixErr *InstructionError
	require.ErrorAs(t, res.Err, &ixErr)
	assert.Equal(t, 1, ixErr.Index)
	assert.Equal(t, types.TokenProgramID, ixErr.ProgramID)
	assert.ErrorIs(t, res.Err, token.ErrNotSignerOrOwner)
	code, ok := token.ErrorCode(res.Err)
	assert.True(t, ok)
	assert.Equal(t, uint32(4), code)

	assert.Empty(t, res.Deltas)
	assert.Equal(t, types.ZeroHash, res.DeltaHash)
	assert.Equal(t, before, tb.lamports(tb.payer.Pubkey()))
	assert.Zero(t, tb.lamports(bob))
	assert.Equal(t, count, tb.db.GetAccountsCount())
	assert.Zero(t, tb.tokenAccount(account).Amount)
}

func TestProgramNotFound(t *testing.T) {
	tb := newTestBank(t)
	res, err := tb.ProcessInstructions(types.Instruction{ProgramID: testKey("nowhere"), Data: []byte{1}})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrProgramNotFound)
}

func TestNoInstructions(t *testing.T) {
	tb := newTestBank(t)
	res, err := tb.ProcessInstructions()
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrNoInstructions)
}

func TestAccountRules(t *testing.T) {
	programID := testKey("custom-program")
	owned := testKey("owned")
	foreign := testKey("foreign")

	tests := []struct {
		name     string
		writable bool
		mutate   func(owned, foreign *runtime.AccountInfo)
		wantErr  error
	}{
		{
			name:     "read-only data change",
			writable: false,
			mutate:   func(o, f *runtime.AccountInfo) { o.Data[0] = 9 },
			wantErr:  ErrReadonlyModified,
		},
		{
			name:     "foreign data change",
			writable: true,
			mutate:   func(o, f *runtime.AccountInfo) { f.Data[0] = 9 },
			wantErr:  ErrExternalDataModified,
		},
		{
			name:     "foreign lamport debit",
			writable: true,
			mutate:   func(o, f *runtime.AccountInfo) { f.Lamports -= 10; o.Lamports += 10 },
			wantErr:  ErrExternalLamportSpend,
		},
		{
			name:     "foreign owner change",
			writable: true,
			mutate:   func(o, f *runtime.AccountInfo) { f.Owner = programID },
			wantErr:  ErrModifiedProgramID,
		},
		{
			name:     "lamports created",
			writable: true,
			mutate:   func(o, f *runtime.AccountInfo) { o.Lamports++ },
			wantErr:  ErrUnbalancedInstruction,
		},
		{
			name:     "owned debit to foreign credit",
			writable: true,
			mutate:   func(o, f *runtime.AccountInfo) { o.Lamports -= 10; f.Lamports += 10; o.Data[0] = 7 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := accounts.NewMemoryDB()
			require.NoError(t, db.SetAccount(owned, types.NewAccountWithData(1000, []byte{1, 2, 3, 4}, programID)))
			require.NoError(t, db.SetAccount(foreign, types.NewAccountWithData(1000, []byte{1, 2, 3, 4}, types.SystemProgramID)))

			registry := NewDefaultRegistry()
			registry.RegisterProgram(programID, ProgramExecutorFunc(func(ctx *runtime.ExecutionContext, _ *types.Instruction) error {
				tt.mutate(ctx.Accounts[0], ctx.Accounts[1])
				return nil
			}))
			b := New(db, registry)

			ix := types.Instruction{ProgramID: programID, Accounts: []types.AccountMeta{
				{Pubkey: owned, IsWritable: tt.writable},
				{Pubkey: foreign, IsWritable: tt.writable},
			}}
			res, err := b.ProcessInstructions(ix)
			require.NoError(t, err)

			ownedAcc, err := db.GetAccount(owned)
			require.NoError(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
				assert.Equal(t, []byte{1, 2, 3, 4}, ownedAcc.Data)
				assert.Equal(t, types.Lamports(1000), ownedAcc.Lamports)
				return
			}
			require.NoError(t, res.Err)
			assert.Equal(t, []byte{7, 2, 3, 4}, ownedAcc.Data)
			assert.Equal(t, types.Lamports(990), ownedAcc.Lamports)
			assert.Len(t, res.Deltas, 2)
		})
	}
}

func TestRepeatedKeysShareState(t *testing.T) {
	programID := testKey("custom-program")
	acc := testKey("acc")
	db := accounts.NewMemoryDB()
	require.NoError(t, db.SetAccount(acc, types.NewAccountWithData(1000, []byte{0}, programID)))

	registry := NewProgramRegistry()
	registry.RegisterProgram(programID, ProgramExecutorFunc(func(ctx *runtime.ExecutionContext, _ *types.Instruction) error {
		assert.Same(t, ctx.Accounts[0], ctx.Accounts[1])
		assert.True(t, ctx.Accounts[0].IsSigner)
		assert.True(t, ctx.Accounts[0].IsWritable)
		ctx.Accounts[1].Data[0]++
		return nil
	}))

	res, err := New(db, registry).ProcessInstructions(types.Instruction{ProgramID: programID, Accounts: []types.AccountMeta{
		types.NewReadonlyAccountMeta(acc, true),
		types.NewAccountMeta(acc, false),
	}})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	stored, err := db.GetAccount(acc)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, stored.Data)
}

func TestReturnData(t *testing.T) {
	tb := newTestBank(t)
	mint := testKey("mint")
	tb.createMint(mint, testKey("authority"), 6)

	res := tb.mustProcess(token.GetAccountDataSize(mint), token.AmountToUiAmountIx(mint, 1_500_000))
	assert.Equal(t, types.TokenProgramID, res.ReturnDataProgram)
	assert.Equal(t, "1.5", string(res.ReturnData))
	assert.Empty(t, res.Deltas)
	assert.Contains(t, res.Logs, "Instruction: GetAccountDataSize")

	res = tb.mustProcess(token.GetAccountDataSize(mint))
	assert.Equal(t, uint64(token.TokenAccountSize), binary.LittleEndian.Uint64(res.ReturnData))
}

func TestCloseAccountDeletesBuffer(t *testing.T) {
	tb := newTestBank(t)
	mint := testKey("mint")
	account := testKey("account")
	ownerKp := testKeypair(t, "owner")
	tb.createMint(mint, testKey("authority"), 0)
	tb.createTokenAccount(account, mint, ownerKp.Pubkey())
	count := tb.db.GetAccountsCount()
	rent := tb.rent.MinimumBalance(token.TokenAccountSize)
	payerBefore := tb.lamports(tb.payer.Pubkey())

	res := tb.mustProcess(token.CloseAccount(account, tb.payer.Pubkey(), ownerKp.Pubkey()))

	assert.False(t, tb.db.HasAccount(account))
	assert.Equal(t, count-1, tb.db.GetAccountsCount())
	assert.Equal(t, payerBefore+rent, tb.lamports(tb.payer.Pubkey()))
	require.Len(t, res.Deltas, 2)
	assert.True(t, res.Deltas[0].IsDeletion())
}

func TestComputeBudget(t *testing.T) {
	const budget = token.ComputeUnitsPerInstruction + system.ComputeUnitsPerInstruction
	tb := newTestBank(t, WithComputeUnits(budget))
	mint := testKey("mint")
	tb.createMint(mint, testKey("authority"), 0)

	res, err := tb.ProcessInstructions(token.GetAccountDataSize(mint), token.GetAccountDataSize(mint))
	require.NoError(t, err)
	var ixErr *InstructionError
	require.ErrorAs(t, res.Err, &ixErr)
	assert.Equal(t, 1, ixErr.Index)
	assert.ErrorIs(t, res.Err, runtime.ErrComputeExhausted)
	assert.Equal(t, uint64(budget), res.ComputeUnits)
}

func TestRequestedComputeUnitLimit(t *testing.T) {
	tb := newTestBank(t, WithComputeUnits(100))
	mint := testKey("mint")

	// the default budget of 100 cannot even pay for CreateAccount
	res, err := tb.ProcessInstructions(
		system.CreateAccount(tb.payer.Pubkey(), mint, tb.rent.MinimumBalance(token.MintSize), token.MintSize, types.TokenProgramID),
	)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, runtime.ErrComputeExhausted)

	res = tb.mustProcess(
		compute_budget.SetComputeUnitLimit(10_000),
		compute_budget.SetComputeUnitPrice(5),
		system.CreateAccount(tb.payer.Pubkey(), mint, tb.rent.MinimumBalance(token.MintSize), token.MintSize, types.TokenProgramID),
		token.InitializeMint2(mint, 0, testKey("authority"), nil),
	)
	assert.Equal(t, uint64(2*compute_budget.ComputeUnitsPerInstruction+system.ComputeUnitsPerInstruction+token.ComputeUnitsPerInstruction), res.ComputeUnits)

	// a limit below the work done exhausts at the token instruction
	res, err = tb.ProcessInstructions(
		compute_budget.SetComputeUnitLimit(1000),
		token.GetAccountDataSize(mint),
	)
	require.NoError(t, err)
	var ixErr *InstructionError
	require.ErrorAs(t, res.Err, &ixErr)
	assert.Equal(t, 1, ixErr.Index)
	assert.ErrorIs(t, res.Err, runtime.ErrComputeExhausted)
}

func TestInvalidComputeBudget(t *testing.T) {
	tb := newTestBank(t)
	mint := testKey("mint")
	tb.createMint(mint, testKey("authority"), 0)

	tests := []struct {
		name string
		ixs  []types.Instruction
		want error
	}{
		{"limit too high", []types.Instruction{compute_budget.SetComputeUnitLimit(compute_budget.MaxComputeUnits + 1)}, compute_budget.ErrComputeUnitLimitTooHigh},
		{"duplicate", []types.Instruction{compute_budget.SetComputeUnitPrice(1), compute_budget.SetComputeUnitPrice(2)}, compute_budget.ErrDuplicateInstruction},
		{"unaligned heap", []types.Instruction{compute_budget.RequestHeapFrame(33 * 1000)}, compute_budget.ErrInvalidHeapFrameSize},
		{"bad data", []types.Instruction{{ProgramID: types.ComputeBudgetProgramID, Data: []byte{9}}}, compute_budget.ErrInvalidInstructionData},
		{"data size", []types.Instruction{compute_budget.SetLoadedAccountsDataSizeLimit(token.MintSize - 1), token.GetAccountDataSize(mint)}, compute_budget.ErrLoadedAccountsDataSizeExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := accounts.ComputeAccountsHash(tb.db)
			require.NoError(t, err)
			res, err := tb.ProcessInstructions(tt.ixs...)
			require.NoError(t, err)
			assert.ErrorIs(t, res.Err, tt.want)
			assert.Zero(t, res.ComputeUnits)
			after, err := accounts.ComputeAccountsHash(tb.db)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.NewMetrics()
	tb := newTestBank(t, WithMetrics(m))
	mint := testKey("mint")
	tb.createMint(mint, testKey("authority"), 0)

	_, err := tb.ProcessInstructions(token.GetAccountDataSize(testKey("missing")))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues(metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues(metrics.ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Instructions.WithLabelValues(TokenProgramName, "20", metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Instructions.WithLabelValues(SystemProgramName, "0", metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Instructions.WithLabelValues(TokenProgramName, "21", metrics.ResultFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AccountsCount))
}

func TestDecompileRejectsBadIndex(t *testing.T) {
	msg := &types.Message{
		Header:      types.MessageHeader{NumRequiredSignatures: 1},
		AccountKeys: []types.Pubkey{testKey("payer")},
		Instructions: []types.CompiledInstruction{
			{ProgramIDIndex: 0, AccountIndices: []uint8{3}},
		},
	}
	_, err := decompile(msg)
	assert.ErrorIs(t, err, ErrInvalidAccountIndex)

	msg.Instructions[0] = types.CompiledInstruction{ProgramIDIndex: 4}
	_, err = decompile(msg)
	assert.ErrorIs(t, err, ErrInvalidAccountIndex)
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, 3, r.Count())
	assert.True(t, r.HasProgram(types.TokenProgramID))
	name, ok := r.GetProgramName(types.SystemProgramID)
	assert.True(t, ok)
	assert.Equal(t, SystemProgramName, name)
	assert.ElementsMatch(t, []types.Pubkey{types.SystemProgramID, types.TokenProgramID, types.ComputeBudgetProgramID}, r.ListPrograms())

	r.RegisterProgram(testKey("x"), ProgramExecutorFunc(func(*runtime.ExecutionContext, *types.Instruction) error { return nil }))
	name, _ = r.GetProgramName(testKey("x"))
	assert.Equal(t, testKey("x").String(), name)
}
