package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/money"
)

func accountCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create and inspect accounts",
	}
	cmd.AddCommand(accountCreateCmd(e))
	cmd.AddCommand(accountBalanceCmd(e))
	return cmd
}

func accountCreateCmd(e *env) *cobra.Command {
	var owner, currency, kind, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account for an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return err
			}
			acc, err := e.components().Accounts.Create(cmd.Context(), account.CreateInput{
				OwnerID:  ownerID,
				Kind:     account.Kind(kind),
				Currency: currency,
				Name:     name,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, acc)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity (uuid)")
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "three-letter currency code")
	cmd.Flags().StringVarP(&kind, "kind", "k", string(account.KindWallet), "wallet, savings or escrow")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name (defaults to the kind)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("currency")
	return cmd
}

func accountBalanceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account-id]",
		Short: "Print the ledger-derived balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			balance, err := e.components().Accounts.Balance(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"account_id": balance.AccountID.String(),
				"currency":   balance.Currency,
				"balance":    money.Format(balance.Amount),
			})
		},
	}
}
