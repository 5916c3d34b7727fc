package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"feedwatcher/internal/alerting"
	"feedwatcher/internal/config"
	"feedwatcher/internal/scheduler"
	"feedwatcher/internal/storage"
	"feedwatcher/internal/trap"
)

// Service orchestrates sampling, window evaluation, persistence, and alerting.
// It owns the history window; one tick cycle completes before the next
// mutates it, serialized by the scheduler.
type Service struct {
	scheduler  *scheduler.Scheduler
	collector  *trap.Collector
	detector   *trap.DivergenceDetector
	window     *trap.Window
	store      storage.FeedSampleStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	channels []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, collector *trap.Collector, detector *trap.DivergenceDetector, store storage.FeedSampleStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		collector:  collector,
		detector:   detector,
		window:     trap.NewWindow(cfg.Detection.WindowSize),
		store:      store,
		alertStore: alertStore,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的采样与评估逻辑。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	sample, err := s.collector.Collect(ctx)
	if err != nil {
		if s.store != nil {
			if markErr := s.store.MarkSampleErrored(ctx, bucket, err.Error()); markErr != nil {
				s.logger.Error().Err(markErr).Time("bucket", bucket).Msg("failed to record errored bucket")
			}
		}
		return fmt.Errorf("collect sample: %w", err)
	}

	s.window.Push(sample)
	decision := s.detector.Evaluate(s.window.Snapshot())

	raw, err := trap.EncodeSample(sample)
	if err != nil {
		return err
	}

	record := storage.FeedSample{
		Bucket:        bucket,
		PrimaryPrice:  decimal.NewFromBigInt(sample.PrimaryPrice, -18),
		FallbackPrice: decimal.NewFromBigInt(sample.FallbackPrice, -18),
		Volume:        decimal.NewFromBigInt(sample.Volume, 0),
		Triggered:     decision.Fired,
		MatchCount:    decision.MatchCount,
		Raw:           raw,
		Status:        "complete",
		CreatedAt:     time.Now().UTC(),
	}
	if bp, ok := trap.DivergenceBP(sample.PrimaryPrice, sample.FallbackPrice); ok && bp.IsInt64() {
		value := bp.Int64()
		record.DivergenceBP = &value
	}

	if s.store != nil {
		if err := s.store.UpsertFeedSample(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to upsert sample")
		}
	}

	s.logger.Info().Time("bucket", bucket).
		Str("primary", record.PrimaryPrice.String()).
		Str("fallback", record.FallbackPrice.String()).
		Bool("fired", decision.Fired).
		Int("matches", decision.MatchCount).
		Int("window", s.window.Len()).
		Msg("sample recorded")

	if decision.Fired {
		s.dispatchAlert(ctx, bucket, decision, record)
	}

	return nil
}

func (s *Service) dispatchAlert(ctx context.Context, bucket time.Time, decision trap.Decision, record storage.FeedSample) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	cfg := s.detector.Config()
	direction := classifyDivergence(decision.PrimaryPrice, decision.FallbackPrice)

	var divergenceBP int64
	if record.DivergenceBP != nil {
		divergenceBP = *record.DivergenceBP
	}

	if s.alertStore != nil {
		alertRecord := storage.AlertRecord{
			SampleTS:     bucket,
			DivergenceBP: divergenceBP,
			ThresholdBP:  int64(cfg.ThresholdBP),
			MatchCount:   decision.MatchCount,
			Direction:    direction,
			Channels:     s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, alertRecord); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist alert record")
		}
	}

	note := alerting.Notification{
		Bucket:        bucket,
		PrimaryPrice:  decimal.NewFromBigInt(decision.PrimaryPrice, -18),
		FallbackPrice: decimal.NewFromBigInt(decision.FallbackPrice, -18),
		Volume:        decimal.NewFromBigInt(decision.Volume, 0),
		DivergenceBP:  divergenceBP,
		ThresholdBP:   int64(cfg.ThresholdBP),
		MatchCount:    decision.MatchCount,
		RequiredCount: cfg.RequiredMatchCount,
		Direction:     direction,
		Channels:      s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
}

// classifyDivergence 按主源相对备源的方向归类。
func classifyDivergence(primary, fallback *big.Int) string {
	if primary == nil || fallback == nil {
		return "flat"
	}
	switch primary.Cmp(fallback) {
	case 1:
		return "premium"
	case -1:
		return "discount"
	default:
		return "flat"
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
