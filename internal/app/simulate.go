package app

import (
	"context"
	"errors"
	"math/big"
	"time"

	"feedwatcher/internal/feed"
	"feedwatcher/internal/service"
	"feedwatcher/internal/trap"
)

// SimulateAlert 通过给定的主/备价格与成交量模拟一次完整采样评估流程。
func (a *App) SimulateAlert(ctx context.Context, primary, fallback, volume *big.Int) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	collector := trap.NewCollector(
		&staticFeed{answer: primary},
		&staticFeed{answer: fallback},
		&staticVolume{volume: volume},
		a.Config.Volume.Pair,
		a.Logger,
	)
	detector := a.newDetector()

	svc := service.New(a.Config, nil, collector, detector, nil, nil, notifier, a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	return svc.ProcessBucket(ctx, bucket)
}

type staticFeed struct {
	answer *big.Int
}

func (s *staticFeed) ReadLatest(ctx context.Context) (feed.Reading, error) {
	return feed.Reading{Answer: s.answer, UpdatedAt: time.Now().UTC()}, nil
}

type staticVolume struct {
	volume *big.Int
}

func (s *staticVolume) ReadVolume(ctx context.Context, pair string) (*big.Int, error) {
	if s.volume == nil {
		return big.NewInt(0), nil
	}
	return s.volume, nil
}

var _ feed.Source = (*staticFeed)(nil)
var _ feed.VolumeSource = (*staticVolume)(nil)
