package trap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"feedwatcher/internal/feed"
)

// Collector assembles one Sample per tick from the configured sources. It
// performs no retries of its own; feed faults propagate to the caller,
// whose tick loop decides what to do with them.
type Collector struct {
	primary  feed.Source
	fallback feed.Source
	volume   feed.VolumeSource
	pair     string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCollector wires a collector. A nil volume source falls back to the
// constant-zero placeholder.
func NewCollector(primary, fallback feed.Source, volume feed.VolumeSource, pair string, logger zerolog.Logger) *Collector {
	if volume == nil {
		volume = feed.ZeroVolume{}
	}
	return &Collector{
		primary:  primary,
		fallback: fallback,
		volume:   volume,
		pair:     pair,
		logger:   logger.With().Str("component", "collector").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Collect reads both feeds and the volume metric and packages one Sample.
// Negative readings are clamped, never rejected: a clamped-to-zero sample
// still enters the history and is excluded at evaluation instead.
func (c *Collector) Collect(ctx context.Context) (Sample, error) {
	primary, err := c.primary.ReadLatest(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("read primary feed: %w", err)
	}

	fallback, err := c.fallback.ReadLatest(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("read fallback feed: %w", err)
	}

	volume, err := c.volume.ReadVolume(ctx, c.pair)
	if err != nil {
		return Sample{}, fmt.Errorf("read volume: %w", err)
	}

	sample := Sample{
		PrimaryPrice:  NormalizePrice(primary.Answer),
		FallbackPrice: NormalizePrice(fallback.Answer),
		Volume:        NormalizePrice(volume),
		CapturedAt:    c.now(),
	}

	c.logger.Debug().
		Str("primary", sample.PrimaryPrice.String()).
		Str("fallback", sample.FallbackPrice.String()).
		Str("volume", sample.Volume.String()).
		Time("primary_updated_at", primary.UpdatedAt).
		Time("fallback_updated_at", fallback.UpdatedAt).
		Msg("sample collected")

	return sample, nil
}
