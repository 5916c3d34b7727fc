package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// FeedSample is a persisted per-bucket observation. Prices are stored as
// human-scale decimals (raw 1e18 value shifted by -18); Raw keeps the
// encoded sample exactly as it crossed the collect/evaluate boundary so
// historical windows can be replayed bit-for-bit.
type FeedSample struct {
	Bucket        time.Time
	PrimaryPrice  decimal.Decimal
	FallbackPrice decimal.Decimal
	Volume        decimal.Decimal
	DivergenceBP  *int64
	Triggered     bool
	MatchCount    int
	Raw           json.RawMessage
	Status        string
	Error         *string
	CreatedAt     time.Time
}

// AlertRecord captures an emitted alert for de-duplication/auditing.
type AlertRecord struct {
	ID           int64
	SampleTS     time.Time
	DivergenceBP int64
	ThresholdBP  int64
	MatchCount   int
	Direction    string
	Channels     []string
	CreatedAt    time.Time
}
