package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/austindbirch/ship_notify/internal/config"
	"github.com/austindbirch/ship_notify/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the processed-order ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every recorded order ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		applyOverrides(&cfg)

		ids, err := ledgerIDs(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		fmt.Printf("%d orders recorded\n", len(ids))
		return nil
	},
	SilenceUsage: true,
}

var ledgerCheckCmd = &cobra.Command{
	Use:   "check <order-id>",
	Short: "Check whether an order was already notified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		applyOverrides(&cfg)

		led, err := openLedger(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer led.Close()

		ok, err := led.Contains(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("order %s: recorded\n", args[0])
		} else {
			fmt.Printf("order %s: not recorded\n", args[0])
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerCheckCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func openLedger(ctx context.Context, cfg config.Config) (ledger.Ledger, error) {
	if cfg.Ledger.DSN != "" {
		return ledger.OpenPostgres(ctx, cfg.Ledger.DSN)
	}
	return ledger.OpenFile(cfg.Ledger.Path)
}

func ledgerIDs(ctx context.Context, cfg config.Config) ([]string, error) {
	if cfg.Ledger.DSN != "" {
		pg, err := ledger.OpenPostgres(ctx, cfg.Ledger.DSN)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		return pg.AllIDs(ctx)
	}

	fl, err := ledger.OpenFile(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	defer fl.Close()
	ids := fl.All()
	sort.Strings(ids)
	return ids, nil
}
