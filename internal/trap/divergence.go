package trap

import "math/big"

var bpScale = big.NewInt(10_000)

// DivergenceConfig fixes the divergence trigger parameters at construction.
type DivergenceConfig struct {
	// ThresholdBP is the minimum divergence, in basis points, for a sample
	// to count as a match.
	ThresholdBP uint64
	// VolumeThreshold gates matches on the sample's volume metric. Zero
	// disables the gate (every volume passes).
	VolumeThreshold *big.Int
	// RequiredMatchCount is how many samples in the window must match for
	// the decision to fire. Zero is legal and fires on any non-empty window.
	RequiredMatchCount int
}

// Decision is the divergence evaluation outcome. On fire it reports the
// newest sample's raw values alongside the window-wide match count; the
// count spans the whole window even though the prices do not. On no-fire
// every field is the zero value.
type Decision struct {
	Fired         bool
	PrimaryPrice  *big.Int
	FallbackPrice *big.Int
	Volume        *big.Int
	MatchCount    int
}

// DivergenceDetector evaluates a sample window against fixed thresholds.
// It holds no mutable state; Evaluate is a pure function of its inputs.
type DivergenceDetector struct {
	cfg DivergenceConfig
}

// NewDivergenceDetector builds a detector. A nil VolumeThreshold is
// normalised to zero. No further validation happens here: degenerate
// configurations like RequiredMatchCount == 0 are accepted and behave as
// configured.
func NewDivergenceDetector(cfg DivergenceConfig) *DivergenceDetector {
	if cfg.VolumeThreshold == nil {
		cfg.VolumeThreshold = big.NewInt(0)
	}
	return &DivergenceDetector{cfg: cfg}
}

// Config returns the detector's immutable configuration.
func (d *DivergenceDetector) Config() DivergenceConfig {
	return d.cfg
}

// Evaluate runs the divergence predicate over a most-recent-first window.
// Samples with a zero price on either side are skipped, never counted and
// never an error. An empty window never fires.
func (d *DivergenceDetector) Evaluate(window []Sample) Decision {
	if len(window) == 0 {
		return Decision{}
	}

	threshold := new(big.Int).SetUint64(d.cfg.ThresholdBP)

	matches := 0
	for _, s := range window {
		bp, ok := DivergenceBP(s.PrimaryPrice, s.FallbackPrice)
		if !ok {
			continue
		}
		if bp.Cmp(threshold) < 0 {
			continue
		}
		if volumeOf(s).Cmp(d.cfg.VolumeThreshold) < 0 {
			continue
		}
		matches++
	}

	if matches < d.cfg.RequiredMatchCount {
		return Decision{}
	}

	newest := window[0]
	return Decision{
		Fired:         true,
		PrimaryPrice:  priceOf(newest.PrimaryPrice),
		FallbackPrice: priceOf(newest.FallbackPrice),
		Volume:        volumeOf(newest),
		MatchCount:    matches,
	}
}

// DivergenceBP computes floor(|primary-fallback| * 10000 / min) in basis
// points. ok is false when either price is zero or missing; the zero check
// is what makes the division safe.
func DivergenceBP(primary, fallback *big.Int) (*big.Int, bool) {
	if primary == nil || fallback == nil || primary.Sign() == 0 || fallback.Sign() == 0 {
		return nil, false
	}

	diff := new(big.Int).Sub(primary, fallback)
	diff.Abs(diff)

	minPrice := primary
	if fallback.Cmp(primary) < 0 {
		minPrice = fallback
	}

	bp := new(big.Int).Mul(diff, bpScale)
	return bp.Quo(bp, minPrice), true
}

func priceOf(p *big.Int) *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p)
}

func volumeOf(s Sample) *big.Int {
	if s.Volume == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.Volume)
}
