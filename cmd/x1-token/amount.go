package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-token/pkg/svm/programs/token"
)

func parseDecimals(s string) (uint8, error) {
	d, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid decimals %q: %w", s, err)
	}
	return uint8(d), nil
}

func newUiAmountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui-amount <amount> <decimals>",
		Short: "Format a raw token amount as a decimal string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			decimals, err := parseDecimals(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AmountToUiAmount(amount, decimals))
			return nil
		},
	}
}

func newAmountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "amount <ui-amount> <decimals>",
		Short: "Parse a decimal string into a raw token amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decimals, err := parseDecimals(args[1])
			if err != nil {
				return err
			}
			amount, err := token.UiAmountToAmount(args[0], decimals)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), amount)
			return nil
		},
	}
}
