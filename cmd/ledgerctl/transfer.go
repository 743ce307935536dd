package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/congo-pay/merchant_ledger/internal/money"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

func transferCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Create, post and inspect transfers",
	}
	cmd.AddCommand(transferCreateCmd(e))
	cmd.AddCommand(transferPostCmd(e))
	cmd.AddCommand(transferGetCmd(e))
	return cmd
}

func transferCreateCmd(e *env) *cobra.Command {
	var from, to, amount, currency, description, ref string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a pending transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromID, err := uuid.Parse(from)
			if err != nil {
				return err
			}
			toID, err := uuid.Parse(to)
			if err != nil {
				return err
			}
			t, err := e.components().Transfers.Create(cmd.Context(), transfer.CreateInput{
				FromAccountID: fromID,
				ToAccountID:   toID,
				Amount:        money.ParseUnchecked(amount),
				Currency:      currency,
				Description:   description,
				ExternalRef:   ref,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, transfer.ToResponse(t))
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source account id")
	cmd.Flags().StringVar(&to, "to", "", "destination account id")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount, at most two decimals")
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "three-letter currency code")
	cmd.Flags().StringVarP(&description, "description", "d", "", "free-form description")
	cmd.Flags().StringVar(&ref, "ref", "", "external reference")
	for _, name := range []string{"from", "to", "amount", "currency"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func transferPostCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "post [transfer-id]",
		Short: "Post a pending transfer to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			t, err := e.components().Engine.Post(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, transfer.ToResponse(t))
		},
	}
}

func transferGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get [transfer-id]",
		Short: "Show a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			t, err := e.components().Transfers.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, transfer.ToResponse(t))
		},
	}
}
