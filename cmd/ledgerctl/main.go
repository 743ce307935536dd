// Command ledgerctl is the operator CLI for the merchant ledger. It talks to
// Postgres directly and bypasses HTTP authorization.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/congo-pay/merchant_ledger/internal/config"
	"github.com/congo-pay/merchant_ledger/internal/infra"
	"github.com/congo-pay/merchant_ledger/internal/logging"
	"github.com/congo-pay/merchant_ledger/internal/routes"
)

var Version = "dev"

// env is populated by the root command before any subcommand runs.
type env struct {
	cfg  config.Config
	pool *pgxpool.Pool
}

func (e *env) components() routes.Components {
	return routes.Build(routes.Deps{Cfg: e.cfg, DB: e.pool, Logger: logging.NewWithWriter(os.Stderr, e.cfg.LogLevel, "ledgerctl")})
}

func main() {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "ledgerctl - operate the merchant ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			if cmd.Annotations["db"] == "skip" {
				return nil
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			e.pool, err = infra.NewPostgresPool(cmd.Context(), cfg.DatabaseURL)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.pool != nil {
				e.pool.Close()
			}
		},
	}

	rootCmd.AddCommand(migrateCmd(e))
	rootCmd.AddCommand(accountCmd(e))
	rootCmd.AddCommand(transferCmd(e))
	rootCmd.AddCommand(treasuryCmd(e))
	rootCmd.AddCommand(verifyCmd(e))
	rootCmd.AddCommand(tokenCmd(e))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
