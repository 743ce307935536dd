package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/congo-pay/merchant_ledger/internal/infra"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/middleware"
	"github.com/congo-pay/merchant_ledger/internal/money"
)

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := infra.Migrate(cmd.Context(), e.pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}

func treasuryCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treasury",
		Short: "Manage treasury accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure [currency...]",
		Short: "Provision treasury accounts (defaults to TREASURY_CURRENCIES)",
		RunE: func(cmd *cobra.Command, args []string) error {
			currencies := args
			if len(currencies) == 0 {
				currencies = e.cfg.TreasuryCurrencies
			}
			accounts := e.components().Accounts
			for _, currency := range currencies {
				acc, err := accounts.EnsureTreasury(cmd.Context(), currency)
				if err != nil {
					return fmt.Errorf("treasury %s: %w", currency, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", acc.Currency, acc.ID)
			}
			return nil
		},
	})
	return cmd
}

func verifyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every currency's entries sum to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			totals, err := e.components().Ledger.Totals(cmd.Context())
			if err != nil {
				return err
			}
			currencies := make([]string, 0, len(totals))
			for currency := range totals {
				currencies = append(currencies, currency)
			}
			sort.Strings(currencies)
			for _, currency := range currencies {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", currency, money.Format(totals[currency]))
			}
			if bad := ledger.Imbalanced(totals); len(bad) > 0 {
				sort.Strings(bad)
				return fmt.Errorf("ledger imbalanced for %v", bad)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger balanced")
			return nil
		},
	}
}

func tokenCmd(e *env) *cobra.Command {
	var user string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:         "token",
		Short:       "Mint a development access token",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"db": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.cfg.IsDev() {
				return fmt.Errorf("token minting is only available when APP_ENV is a development environment")
			}
			userID, err := uuid.Parse(user)
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken([]byte(e.cfg.JWTSecret), userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject user id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
