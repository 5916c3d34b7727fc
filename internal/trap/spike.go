package trap

import (
	"errors"
	"math/big"
)

// minSpikeSamples is the baseline of two points plus the latest point a
// spike comparison needs.
const minSpikeSamples = 3

// ErrZeroSpikeThreshold rejects a spike detector with no threshold.
var ErrZeroSpikeThreshold = errors.New("trap: spike threshold must be greater than zero")

// SpikeDetector flags a latest price that deviates from the rolling average
// of the preceding prices by at least a fixed number of basis points.
type SpikeDetector struct {
	thresholdBP uint64
}

// NewSpikeDetector constructs a spike detector. Unlike the divergence
// variant this one has a hard precondition: a zero threshold is a
// construction error, not a runtime behaviour.
func NewSpikeDetector(thresholdBP uint64) (*SpikeDetector, error) {
	if thresholdBP == 0 {
		return nil, ErrZeroSpikeThreshold
	}
	return &SpikeDetector{thresholdBP: thresholdBP}, nil
}

// Evaluate inspects an oldest-first price series and reports whether the
// latest point spikes away from the average of everything before it.
// Fewer than three prices, a zero average, or a zero latest price all
// evaluate to false; none of these are errors.
func (d *SpikeDetector) Evaluate(prices []*big.Int) bool {
	if len(prices) < minSpikeSamples {
		return false
	}

	sum := new(big.Int)
	for _, p := range prices[:len(prices)-1] {
		if p != nil {
			sum.Add(sum, p)
		}
	}

	avg := sum.Quo(sum, big.NewInt(int64(len(prices)-1)))
	latest := prices[len(prices)-1]
	if avg.Sign() == 0 || latest == nil || latest.Sign() == 0 {
		return false
	}

	diff := new(big.Int).Sub(avg, latest)
	diff.Abs(diff)

	diffBP := diff.Mul(diff, bpScale)
	diffBP.Quo(diffBP, avg)

	return diffBP.Cmp(new(big.Int).SetUint64(d.thresholdBP)) >= 0
}
