package trap

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"feedwatcher/internal/feed"
)

type fakeFeed struct {
	answer *big.Int
	err    error
}

func (f *fakeFeed) ReadLatest(ctx context.Context) (feed.Reading, error) {
	if f.err != nil {
		return feed.Reading{}, f.err
	}
	return feed.Reading{Answer: f.answer, UpdatedAt: time.Now().UTC()}, nil
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestCollectorClampsNegativeReadings(t *testing.T) {
	c := NewCollector(&fakeFeed{answer: big.NewInt(-5)}, &fakeFeed{answer: e16(100)}, nil, "ETH-USD", noopLogger())

	sample, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if sample.PrimaryPrice.Sign() != 0 {
		t.Fatalf("negative primary reading must clamp to zero, got %s", sample.PrimaryPrice)
	}
	if sample.FallbackPrice.Cmp(e16(100)) != 0 {
		t.Fatalf("fallback price mismatch: %s", sample.FallbackPrice)
	}
}

func TestCollectorDefaultsToZeroVolume(t *testing.T) {
	c := NewCollector(&fakeFeed{answer: e16(100)}, &fakeFeed{answer: e16(100)}, nil, "ETH-USD", noopLogger())

	sample, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if sample.Volume.Sign() != 0 {
		t.Fatalf("default volume source must yield zero, got %s", sample.Volume)
	}
	if sample.CapturedAt.IsZero() {
		t.Fatal("sample must carry a capture timestamp")
	}
}

func TestCollectorPropagatesFeedErrors(t *testing.T) {
	boom := errors.New("rpc unavailable")

	c := NewCollector(&fakeFeed{err: boom}, &fakeFeed{answer: e16(100)}, nil, "ETH-USD", noopLogger())
	if _, err := c.Collect(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("primary feed error must propagate, got %v", err)
	}

	c = NewCollector(&fakeFeed{answer: e16(100)}, &fakeFeed{err: boom}, nil, "ETH-USD", noopLogger())
	if _, err := c.Collect(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("fallback feed error must propagate, got %v", err)
	}
}
