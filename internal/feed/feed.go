package feed

import (
	"context"
	"math/big"
	"time"
)

// Reading is a single raw observation from a price feed. Answer is the
// signed on-chain value before any clamping; UpdatedAt is when the feed
// last refreshed, carried for staleness inspection but not enforced.
type Reading struct {
	Answer    *big.Int
	UpdatedAt time.Time
}

// Source reads the latest value from one price feed.
type Source interface {
	ReadLatest(ctx context.Context) (Reading, error)
}

// VolumeSource supplies the traded-volume metric for a pair. The default
// binding returns a constant zero; a real metric requires an external
// augmentation pipeline (see HTTPVolume).
type VolumeSource interface {
	ReadVolume(ctx context.Context, pair string) (*big.Int, error)
}
