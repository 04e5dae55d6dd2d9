package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-token/pkg/svm/programs/token"
	"github.com/fortiblox/x1-token/pkg/types"
)

// accountView is the decoded form printed by the account command. Exactly
// one of Mint, Token and Multisig is set for token program accounts.
type accountView struct {
	Pubkey     types.Pubkey  `json:"pubkey"`
	Lamports   uint64        `json:"lamports"`
	Owner      types.Pubkey  `json:"owner"`
	Executable bool          `json:"executable"`
	DataLen    int           `json:"data_len"`
	Kind       string        `json:"kind"`
	Mint       *mintView     `json:"mint,omitempty"`
	Token      *tokenView    `json:"token,omitempty"`
	Multisig   *multisigView `json:"multisig,omitempty"`
}

type mintView struct {
	MintAuthority   string `json:"mint_authority"`
	Supply          uint64 `json:"supply"`
	UiSupply        string `json:"ui_supply"`
	Decimals        uint8  `json:"decimals"`
	IsInitialized   bool   `json:"is_initialized"`
	FreezeAuthority string `json:"freeze_authority"`
}

type tokenView struct {
	Mint              types.Pubkey `json:"mint"`
	Owner             types.Pubkey `json:"owner"`
	Amount            uint64       `json:"amount"`
	Delegate          string       `json:"delegate"`
	DelegatedAmount   uint64       `json:"delegated_amount"`
	State             string       `json:"state"`
	IsNative          bool         `json:"is_native"`
	RentExemptReserve *uint64      `json:"rent_exempt_reserve,omitempty"`
	CloseAuthority    string       `json:"close_authority"`
}

type multisigView struct {
	M             uint8          `json:"m"`
	N             uint8          `json:"n"`
	IsInitialized bool           `json:"is_initialized"`
	Signers       []types.Pubkey `json:"signers"`
}

func newAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "account <pubkey>",
		Short: "Show an account, decoding mint, token account and multisig state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pubkey, err := types.PubkeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid pubkey: %w", err)
			}
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			acc, err := db.GetAccount(pubkey)
			if err != nil {
				return err
			}
			if acc == nil {
				return fmt.Errorf("account %s not found", pubkey)
			}
			view, err := decodeAccount(pubkey, acc)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
}

// decodeAccount identifies token program state by data length, as the
// program itself does.
func decodeAccount(pubkey types.Pubkey, acc *types.Account) (*accountView, error) {
	view := &accountView{
		Pubkey:     pubkey,
		Lamports:   uint64(acc.Lamports),
		Owner:      acc.Owner,
		Executable: acc.Executable,
		DataLen:    len(acc.Data),
		Kind:       "other",
	}
	if acc.Owner != types.TokenProgramID {
		if acc.Owner == types.SystemProgramID && len(acc.Data) == 0 {
			view.Kind = "system"
		}
		return view, nil
	}

	switch len(acc.Data) {
	case token.MintSize:
		m, err := token.DeserializeMint(acc.Data)
		if err != nil {
			return nil, err
		}
		view.Kind = "mint"
		view.Mint = &mintView{
			MintAuthority:   m.MintAuthority.String(),
			Supply:          m.Supply,
			UiSupply:        token.AmountToUiAmount(m.Supply, m.Decimals),
			Decimals:        m.Decimals,
			IsInitialized:   m.IsInitialized,
			FreezeAuthority: m.FreezeAuthority.String(),
		}
	case token.TokenAccountSize:
		t, err := token.DeserializeTokenAccount(acc.Data)
		if err != nil {
			return nil, err
		}
		view.Kind = "token_account"
		view.Token = &tokenView{
			Mint:            t.Mint,
			Owner:           t.Owner,
			Amount:          t.Amount,
			Delegate:        t.Delegate.String(),
			DelegatedAmount: t.DelegatedAmount,
			State:           t.State.String(),
			IsNative:        t.IsNativeAccount(),
			CloseAuthority:  t.CloseAuthority.String(),
		}
		if t.IsNative.IsSome {
			reserve := t.IsNative.Value
			view.Token.RentExemptReserve = &reserve
		}
	case token.MultisigSize:
		ms, err := token.DeserializeMultisig(acc.Data)
		if err != nil {
			return nil, err
		}
		view.Kind = "multisig"
		view.Multisig = &multisigView{
			M:             ms.M,
			N:             ms.N,
			IsInitialized: ms.IsInitialized,
			Signers:       ms.RegisteredSigners(),
		}
	}
	return view, nil
}
