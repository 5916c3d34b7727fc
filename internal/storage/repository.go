package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertFeedSampleSQL = `INSERT INTO feed_samples (
        bucket_ts,
        primary_price,
        fallback_price,
        volume,
        divergence_bp,
        triggered,
        match_count,
        raw_sample,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET
        primary_price  = EXCLUDED.primary_price,
        fallback_price = EXCLUDED.fallback_price,
        volume         = EXCLUDED.volume,
        divergence_bp  = EXCLUDED.divergence_bp,
        triggered      = EXCLUDED.triggered,
        match_count    = EXCLUDED.match_count,
        raw_sample     = EXCLUDED.raw_sample,
        status         = EXCLUDED.status,
        error          = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        bucket_ts,
        primary_price,
        fallback_price,
        volume,
        divergence_bp,
        triggered,
        match_count,
        raw_sample,
        status,
        error,
        created_at
    FROM feed_samples
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        bucket_ts,
        primary_price,
        fallback_price,
        volume,
        divergence_bp,
        triggered,
        match_count,
        raw_sample,
        status,
        error,
        created_at
    FROM feed_samples
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	markSampleErroredSQL = `UPDATE feed_samples
    SET status = 'errored', error = $2
    WHERE bucket_ts = $1;`

	insertErroredSampleSQL = `INSERT INTO feed_samples (
        bucket_ts, primary_price, fallback_price, volume, triggered, match_count, status, error
    ) VALUES ($1, 0, 0, 0, false, 0, 'errored', $2)
    ON CONFLICT (bucket_ts) DO UPDATE
    SET status = 'errored', error = EXCLUDED.error;`

	countSamplesSQL = `SELECT COUNT(*) FROM feed_samples;`

	insertAlertSQL = `INSERT INTO divergence_alerts (
        sample_ts,
        divergence_bp,
        threshold_bp,
        match_count,
        direction,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (sample_ts) DO UPDATE
    SET divergence_bp = EXCLUDED.divergence_bp,
        threshold_bp  = EXCLUDED.threshold_bp,
        match_count   = EXCLUDED.match_count,
        direction     = EXCLUDED.direction,
        channels      = EXCLUDED.channels
    RETURNING id, sample_ts, divergence_bp, threshold_bp, match_count, direction, channels, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        sample_ts,
        divergence_bp,
        threshold_bp,
        match_count,
        direction,
        channels,
        created_at
    FROM divergence_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM divergence_alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// FeedSampleStore defines operations for sample persistence.
type FeedSampleStore interface {
	UpsertFeedSample(ctx context.Context, sample FeedSample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]FeedSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]FeedSample, error)
	MarkSampleErrored(ctx context.Context, bucket time.Time, errMsg string) error
	CountSamples(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to feed samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertFeedSample persists or updates a feed sample.
func (s *Store) UpsertFeedSample(ctx context.Context, sample FeedSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	primary := sample.PrimaryPrice.String()
	fallback := sample.FallbackPrice.String()
	volume := sample.Volume.String()

	var divergence interface{}
	if sample.DivergenceBP != nil {
		divergence = *sample.DivergenceBP
	}

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertFeedSampleSQL,
		sample.Bucket,
		primary,
		fallback,
		volume,
		divergence,
		sample.Triggered,
		sample.MatchCount,
		[]byte(sample.Raw),
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert feed sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window, oldest first.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]FeedSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]FeedSample, 0)
	for rows.Next() {
		sample, scanErr := scanFeedSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending bucket.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]FeedSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]FeedSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanFeedSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// MarkSampleErrored records a failed bucket, inserting a stub row when the
// bucket never produced a complete sample.
func (s *Store) MarkSampleErrored(ctx context.Context, bucket time.Time, errMsg string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markSampleErroredSQL, bucket, errMsg)
	if execErr != nil {
		return fmt.Errorf("mark sample errored: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		if _, insErr := pool.Exec(ctx, insertErroredSampleSQL, bucket, errMsg); insErr != nil {
			return fmt.Errorf("insert errored sample: %w", insErr)
		}
	}
	return nil
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SampleTS,
		alert.DivergenceBP,
		alert.ThresholdBP,
		alert.MatchCount,
		alert.Direction,
		alert.Channels,
	)

	var rec AlertRecord
	if scanErr := row.Scan(
		&rec.ID,
		&rec.SampleTS,
		&rec.DivergenceBP,
		&rec.ThresholdBP,
		&rec.MatchCount,
		&rec.Direction,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}

	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.SampleTS,
			&rec.DivergenceBP,
			&rec.ThresholdBP,
			&rec.MatchCount,
			&rec.Direction,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanFeedSample(rows pgx.Rows) (FeedSample, error) {
	var (
		bucket      time.Time
		primaryStr  string
		fallbackStr string
		volumeStr   string
		divergence  sql.NullInt64
		triggered   bool
		matchCount  int
		raw         json.RawMessage
		status      string
		errMsg      sql.NullString
		createdAt   time.Time
	)

	if err := rows.Scan(
		&bucket,
		&primaryStr,
		&fallbackStr,
		&volumeStr,
		&divergence,
		&triggered,
		&matchCount,
		&raw,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return FeedSample{}, err
	}

	primary, err := decimal.NewFromString(primaryStr)
	if err != nil {
		return FeedSample{}, fmt.Errorf("parse primary price: %w", err)
	}
	fallback, err := decimal.NewFromString(fallbackStr)
	if err != nil {
		return FeedSample{}, fmt.Errorf("parse fallback price: %w", err)
	}
	volume, err := decimal.NewFromString(volumeStr)
	if err != nil {
		return FeedSample{}, fmt.Errorf("parse volume: %w", err)
	}

	sample := FeedSample{
		Bucket:        bucket,
		PrimaryPrice:  primary,
		FallbackPrice: fallback,
		Volume:        volume,
		Triggered:     triggered,
		MatchCount:    matchCount,
		Raw:           raw,
		Status:        status,
		CreatedAt:     createdAt,
	}

	if divergence.Valid {
		value := divergence.Int64
		sample.DivergenceBP = &value
	}
	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}

	return sample, nil
}
