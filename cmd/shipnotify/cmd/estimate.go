package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/austindbirch/ship_notify/internal/estimate"
)

// estimateCmd answers "when would we promise delivery for an order placed
// at this time" without touching any external service.
var estimateCmd = &cobra.Command{
	Use:   "estimate <unix-timestamp|now>",
	Short: "Print the delivery estimate for an order timestamp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ts int64
		if args[0] == "now" {
			ts = time.Now().Unix()
		} else {
			var err error
			ts, err = strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("not a unix timestamp: %q", args[0])
			}
		}

		fmt.Printf("order placed %s -> estimated delivery %s\n",
			time.Unix(ts, 0).Format("2006-01-02 15:04 Mon"),
			estimate.Delivery(ts),
		)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
}
