package trap

import "math/big"

// NormalizePrice converts a raw signed feed answer into an unsigned price.
// Negative (and nil) readings are clamped to zero rather than rejected; a
// zero price is stored as-is and treated as no-data at evaluation time.
// No scaling happens here: all configured feeds are expected to share one
// fixed-point base (1e18 in this deployment).
func NormalizePrice(raw *big.Int) *big.Int {
	if raw == nil || raw.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(raw)
}
