package app

import (
	"context"
	"errors"
	"math/big"

	"feedwatcher/internal/storage"
	"feedwatcher/internal/trap"
)

// Replay 按当前（或覆盖的）阈值重新评估历史样本窗口，不触发任何告警。
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	if !opts.From.Before(opts.To) {
		return errors.New("回放范围为空，请检查 --from/--to")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法回放")
	}
	if closeStore != nil {
		defer closeStore()
	}

	samples, err := store.ListSamplesBetween(ctx, opts.From.UTC(), opts.To.UTC())
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("回放窗口内没有样本")
		return nil
	}

	cfg := trap.DivergenceConfig{
		ThresholdBP:        a.Config.Detection.DivergenceThresholdBP,
		VolumeThreshold:    new(big.Int).SetUint64(a.Config.Detection.VolumeThreshold),
		RequiredMatchCount: a.Config.Detection.RequiredMatchCount,
	}
	if opts.ThresholdBP > 0 {
		cfg.ThresholdBP = opts.ThresholdBP
	}
	if opts.MatchCount > 0 {
		cfg.RequiredMatchCount = opts.MatchCount
	}
	detector := trap.NewDivergenceDetector(cfg)

	window := trap.NewWindow(a.Config.Detection.WindowSize)
	fired := 0
	skipped := 0
	for _, row := range samples {
		sample, ok := replaySample(row)
		if !ok {
			skipped++
			continue
		}

		window.Push(sample)
		decision := detector.Evaluate(window.Snapshot())
		if decision.Fired {
			fired++
			a.Logger.Info().Time("bucket", row.Bucket).
				Int("matches", decision.MatchCount).
				Str("primary", row.PrimaryPrice.String()).
				Str("fallback", row.FallbackPrice.String()).
				Msg("回放触发")
		}
	}

	a.Logger.Info().
		Int("samples", len(samples)).
		Int("skipped", skipped).
		Int("fired", fired).
		Uint64("threshold_bp", cfg.ThresholdBP).
		Int("required_matches", cfg.RequiredMatchCount).
		Msg("回放完成")
	return nil
}

// replaySample rebuilds the evaluation-time sample from the persisted raw
// blob when present, falling back to the column values otherwise.
func replaySample(row storage.FeedSample) (trap.Sample, bool) {
	if row.Status != "complete" {
		return trap.Sample{}, false
	}

	if len(row.Raw) > 0 {
		if sample, err := trap.DecodeSample(row.Raw); err == nil {
			return sample, true
		}
	}

	return trap.Sample{
		PrimaryPrice:  trap.NormalizePrice(row.PrimaryPrice.Shift(18).BigInt()),
		FallbackPrice: trap.NormalizePrice(row.FallbackPrice.Shift(18).BigInt()),
		Volume:        trap.NormalizePrice(row.Volume.BigInt()),
		CapturedAt:    row.Bucket,
	}, true
}
