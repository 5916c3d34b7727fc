package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	spikePrices      []string
	spikeThresholdBP uint64
)

var spikeCmd = &cobra.Command{
	Use:   "spike",
	Short: "Evaluate a price series against the rolling-average spike rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(spikePrices) == 0 {
			return fmt.Errorf("--prices must be provided (oldest first)")
		}

		return getApp().SpikeCheck(cmd.Context(), spikePrices, spikeThresholdBP)
	},
}

func init() {
	spikeCmd.Flags().StringSliceVar(&spikePrices, "prices", nil, "Comma-separated integer prices, oldest first")
	spikeCmd.Flags().Uint64Var(&spikeThresholdBP, "threshold-bp", 0, "Spike threshold in basis points (defaults to config)")
}
