package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"feedwatcher/internal/alerting"
	"feedwatcher/internal/config"
	"feedwatcher/internal/feed"
	"feedwatcher/internal/trap"
)

type scriptedFeed struct {
	answers []*big.Int
	idx     int
}

func (f *scriptedFeed) ReadLatest(ctx context.Context) (feed.Reading, error) {
	answer := f.answers[f.idx]
	if f.idx < len(f.answers)-1 {
		f.idx++
	}
	return feed.Reading{Answer: answer, UpdatedAt: time.Now().UTC()}, nil
}

type captureNotifier struct {
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	c.notes = append(c.notes, note)
	return nil
}

func testConfig(requiredMatches int) *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{Interval: time.Minute},
		Detection: config.DetectionConfig{
			DivergenceThresholdBP: 400,
			VolumeThreshold:       0,
			RequiredMatchCount:    requiredMatches,
			WindowSize:            5,
			SpikeThresholdBP:      2000,
		},
		Alerting: config.AlertingConfig{Enabled: true, Channels: []string{"telegram"}},
	}
}

func e16(n int64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

func newTestService(cfg *config.Config, primary, fallback feed.Source, notifier alerting.Notifier) *Service {
	collector := trap.NewCollector(primary, fallback, nil, "ETH-USD", zerolog.Nop())
	detector := trap.NewDivergenceDetector(trap.DivergenceConfig{
		ThresholdBP:        cfg.Detection.DivergenceThresholdBP,
		VolumeThreshold:    new(big.Int).SetUint64(cfg.Detection.VolumeThreshold),
		RequiredMatchCount: cfg.Detection.RequiredMatchCount,
	})
	return New(cfg, nil, collector, detector, nil, nil, notifier, zerolog.Nop())
}

func TestServiceAccumulatesMatchesAcrossTicks(t *testing.T) {
	cfg := testConfig(2)
	notifier := &captureNotifier{}

	// Divergence sits at 500 bp on every tick; the second tick is the
	// first one with enough matches in the window.
	primary := &scriptedFeed{answers: []*big.Int{e16(105)}}
	fallback := &scriptedFeed{answers: []*big.Int{e16(100)}}
	svc := newTestService(cfg, primary, fallback, notifier)

	bucket := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := svc.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("one match of two required must not alert")
	}

	if err := svc.ProcessBucket(context.Background(), bucket.Add(time.Minute)); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("expected exactly one alert after two matches, got %d", len(notifier.notes))
	}

	note := notifier.notes[0]
	if note.MatchCount != 2 || note.RequiredCount != 2 {
		t.Fatalf("alert payload mismatch: %+v", note)
	}
	if note.DivergenceBP != 500 {
		t.Fatalf("expected 500 bp in payload, got %d", note.DivergenceBP)
	}
	if note.Direction != "premium" {
		t.Fatalf("primary above fallback should classify premium, got %s", note.Direction)
	}
}

func TestServiceNoAlertBelowThreshold(t *testing.T) {
	cfg := testConfig(1)
	notifier := &captureNotifier{}

	// 100 bp divergence, 400 bp threshold.
	svc := newTestService(cfg, &scriptedFeed{answers: []*big.Int{e16(101)}}, &scriptedFeed{answers: []*big.Int{e16(100)}}, notifier)

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("below-threshold divergence must not alert")
	}
}

func TestServiceClampedSampleStillEntersWindow(t *testing.T) {
	cfg := testConfig(1)
	notifier := &captureNotifier{}

	// First tick delivers a negative primary reading; it is clamped and
	// skipped at evaluation, not dropped from history.
	primary := &scriptedFeed{answers: []*big.Int{big.NewInt(-1), e16(105)}}
	fallback := &scriptedFeed{answers: []*big.Int{e16(100), e16(100)}}
	svc := newTestService(cfg, primary, fallback, notifier)

	bucket := time.Now().UTC().Truncate(time.Minute)
	if err := svc.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("clamped-to-zero sample must not trigger")
	}

	if err := svc.ProcessBucket(context.Background(), bucket.Add(time.Minute)); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("second tick should trigger despite the clamped sample in the window, got %d alerts", len(notifier.notes))
	}
	if notifier.notes[0].MatchCount != 1 {
		t.Fatalf("clamped sample must not be counted: %+v", notifier.notes[0])
	}
}
