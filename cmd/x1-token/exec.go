package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortiblox/x1-token/pkg/accounts"
	"github.com/fortiblox/x1-token/pkg/bank"
	"github.com/fortiblox/x1-token/pkg/svm/programs/token"
	"github.com/fortiblox/x1-token/pkg/types"
)

var errTransactionFailed = errors.New("transaction failed")

// batch is the exec input. Airdrops credit lamports to accounts before the
// instructions run, so a fresh store can fund account creation.
type batch struct {
	Airdrops     []airdrop          `json:"airdrops"`
	Instructions []batchInstruction `json:"instructions"`
}

type airdrop struct {
	Pubkey   types.Pubkey `json:"pubkey"`
	Lamports uint64       `json:"lamports"`
}

// batchInstruction is an instruction with base58 data.
type batchInstruction struct {
	ProgramID types.Pubkey        `json:"program_id"`
	Accounts  []types.AccountMeta `json:"accounts"`
	Data      string              `json:"data"`
}

func (b batchInstruction) instruction() (types.Instruction, error) {
	data, err := base58.Decode(b.Data)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("invalid instruction data: %w", err)
	}
	return types.Instruction{ProgramID: b.ProgramID, Accounts: b.Accounts, Data: data}, nil
}

// execOutput is printed after every exec.
type execOutput struct {
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	ErrorCode    *uint32         `json:"error_code,omitempty"`
	ComputeUnits uint64          `json:"compute_units"`
	Logs         []string        `json:"logs"`
	ReturnData   string          `json:"return_data,omitempty"`
	Changed      []accountChange `json:"changed,omitempty"`
	DeltaHash    types.Hash      `json:"delta_hash"`
}

type accountChange struct {
	Pubkey   types.Pubkey `json:"pubkey"`
	Lamports uint64       `json:"lamports"`
	Deleted  bool         `json:"deleted,omitempty"`
}

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <batch.json>",
		Short: "Execute an instruction batch atomically against the account store",
		Long: `Execute an instruction batch atomically against the account store.

The batch is a JSON object with "airdrops" ([{pubkey, lamports}]) and
"instructions" ([{program_id, accounts: [{pubkey, is_signer, is_writable}],
data}]). Pubkeys and data are base58. Use "-" to read the batch from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBatch(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			out, err := a.exec(b)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Success {
				return errTransactionFailed
			}
			return nil
		},
	}
}

func readBatch(stdin io.Reader, path string) (*batch, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}
	b := &batch{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	return b, nil
}

func (a *app) exec(b *batch) (*execOutput, error) {
	instructions := make([]types.Instruction, len(b.Instructions))
	for i, bi := range b.Instructions {
		ix, err := bi.instruction()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		instructions[i] = ix
	}

	db, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := applyAirdrops(db, b.Airdrops); err != nil {
		return nil, err
	}

	bk := bank.New(db, bank.NewDefaultRegistry(),
		bank.WithLogger(a.log),
		bank.WithRent(a.cfg.Rent()),
		bank.WithComputeUnits(a.cfg.Runtime.ComputeUnits),
	)
	res, err := bk.ProcessInstructions(instructions...)
	if err != nil {
		return nil, err
	}

	out := &execOutput{
		Success:      res.Success(),
		ComputeUnits: res.ComputeUnits,
		Logs:         res.Logs,
		DeltaHash:    res.DeltaHash,
	}
	if out.Logs == nil {
		out.Logs = []string{}
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
		if code, ok := token.ErrorCode(res.Err); ok {
			out.ErrorCode = &code
		}
		a.log.Warn("batch failed", zap.Error(res.Err))
	}
	if len(res.ReturnData) > 0 {
		out.ReturnData = base58.Encode(res.ReturnData)
	}
	for _, d := range res.Deltas {
		change := accountChange{Pubkey: d.Pubkey, Deleted: d.NewAccount == nil}
		if d.NewAccount != nil {
			change.Lamports = uint64(d.NewAccount.Lamports)
		}
		out.Changed = append(out.Changed, change)
	}
	return out, nil
}

// applyAirdrops credits lamports to system-owned or missing accounts.
func applyAirdrops(db accounts.AccountsDB, airdrops []airdrop) error {
	if len(airdrops) == 0 {
		return nil
	}
	credited := make(map[types.Pubkey]*types.Account)
	refs := make([]types.AccountRef, 0, len(airdrops))
	for _, drop := range airdrops {
		acc, ok := credited[drop.Pubkey]
		if !ok {
			stored, err := db.GetAccount(drop.Pubkey)
			if err != nil {
				return err
			}
			if stored == nil {
				stored = types.NewAccount(0, types.SystemProgramID)
			}
			acc = stored
			credited[drop.Pubkey] = acc
			refs = append(refs, types.AccountRef{Pubkey: drop.Pubkey, Account: acc})
		}
		if acc.Owner != types.SystemProgramID {
			return fmt.Errorf("airdrop to %s: account is owned by %s", drop.Pubkey, acc.Owner)
		}
		if uint64(acc.Lamports)+drop.Lamports < uint64(acc.Lamports) {
			return fmt.Errorf("airdrop to %s: lamports overflow", drop.Pubkey)
		}
		acc.Lamports += types.Lamports(drop.Lamports)
	}
	return db.Commit(refs)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
