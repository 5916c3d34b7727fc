package app

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"feedwatcher/internal/trap"
)

// SpikeCheck evaluates an oldest-first price series against the rolling
// average spike rule and prints the verdict. The threshold falls back to
// detection.spike_threshold_bp when no override is given.
func (a *App) SpikeCheck(ctx context.Context, rawPrices []string, thresholdBP uint64) error {
	if thresholdBP == 0 {
		thresholdBP = a.Config.Detection.SpikeThresholdBP
	}

	detector, err := trap.NewSpikeDetector(thresholdBP)
	if err != nil {
		return err
	}

	prices := make([]*big.Int, 0, len(rawPrices))
	for _, raw := range rawPrices {
		price, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return fmt.Errorf("invalid price %q: expected a base-10 integer", raw)
		}
		if price.Sign() < 0 {
			return fmt.Errorf("invalid price %q: must not be negative", raw)
		}
		prices = append(prices, price)
	}

	fired := detector.Evaluate(prices)

	a.Logger.Info().
		Int("prices", len(prices)).
		Uint64("threshold_bp", thresholdBP).
		Bool("fired", fired).
		Msg("spike check evaluated")

	if fired {
		fmt.Fprintln(os.Stdout, "spike detected")
	} else {
		fmt.Fprintln(os.Stdout, "no spike")
	}
	return nil
}
