package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/veilscope/veilscope/internal/credits"
	"github.com/veilscope/veilscope/internal/logger"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and provision workspace credit balances",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance <workspace-id>",
	Short: "Show the current credit balance for a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(cfg.Logger)
		if err != nil {
			return err
		}
		ledger, closeLedger := buildLedger(log)
		defer closeLedger()

		balance, err := ledger.Balance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("workspace %s: %d credits\n", args[0], balance)
		return nil
	},
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant <workspace-id> <amount>",
	Short: "Add credits to a workspace balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}

		log, err := logger.New(cfg.Logger)
		if err != nil {
			return err
		}
		ledger, closeLedger := buildLedger(log)
		defer closeLedger()

		granter, ok := ledger.(credits.Granter)
		if !ok {
			return fmt.Errorf("configured ledger backend does not support grants")
		}

		balance, err := granter.Grant(cmd.Context(), args[0], amount)
		if err != nil {
			return err
		}
		color.Green("workspace %s: %d credits", args[0], balance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(creditsBalanceCmd)
	creditsCmd.AddCommand(creditsGrantCmd)
}
