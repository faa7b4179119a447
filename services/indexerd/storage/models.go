// Package storage defines the indexer's persistence interface (spec.md
// §4.10) and a concrete gorm/Postgres implementation. The interface is the
// load-bearing contract; the schema below is a reasonable relational
// mapping, not a fixed wire format.
package storage

import "time"

// Market mirrors the on-chain market record plus indexer-derived totals.
type Market struct {
	Address      string `gorm:"primaryKey;size:64"`
	Token0       string `gorm:"size:64;index"`
	Token1       string `gorm:"size:64;index"`
	BaseFeeBps   uint16
	TickSpacing  uint16
	CurrentTick  int32
	SqrtPrice    string `gorm:"size:96"`
	Liquidity    string `gorm:"size:96"`
	TotalVolume0 string `gorm:"size:96"`
	TotalVolume1 string `gorm:"size:96"`
	TotalFees0   string `gorm:"size:96"`
	TotalFees1   string `gorm:"size:96"`
	LastSlot     uint64 `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MarketSnapshot is a bucketed point-in-time record of a market's state,
// the raw material OHLCV candles are derived from.
type MarketSnapshot struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	MarketAddr string `gorm:"size:64;index:idx_snapshot_market_time"`
	SqrtPrice  string `gorm:"size:96"`
	Liquidity  string `gorm:"size:96"`
	Tick       int32
	Slot       uint64
	BucketedAt time.Time `gorm:"index:idx_snapshot_market_time"`
	RecordedAt time.Time
}

// Position mirrors an on-chain concentrated-liquidity position.
type Position struct {
	Address    string `gorm:"primaryKey;size:64"`
	MarketAddr string `gorm:"size:64;index"`
	Owner      string `gorm:"size:64;index"`
	LowerTick  int32
	UpperTick  int32
	Liquidity  string `gorm:"size:96"`
	LastSlot   uint64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Swap records one executed swap, keyed for idempotent replay by its
// signature (spec.md §4.10's "swaps are idempotent under replay keyed by
// signature" invariant).
type Swap struct {
	Signature      string `gorm:"primaryKey;size:128"`
	MarketAddr     string `gorm:"size:64;index:idx_swap_market_time"`
	Trader         string `gorm:"size:64;index"`
	ZeroForOne     bool
	AmountIn       string `gorm:"size:96"`
	AmountOut      string `gorm:"size:96"`
	EffectivePrice float64
	PriceImpactBps uint32
	FeeAmount      string    `gorm:"size:96"`
	Slot           uint64
	ExecutedAt     time.Time `gorm:"index:idx_swap_market_time"`
}

// PaginationParams bounds list queries; Limit is clamped by the store.
type PaginationParams struct {
	Limit  int
	Offset int
}

// ProtocolStats24h is the aggregate the /protocol/stats/24h endpoint serves.
type ProtocolStats24h struct {
	TotalVolume0   string
	TotalVolume1   string
	TotalFees0     string
	TotalFees1     string
	TotalLiquidity  string
	DistinctTraders int64
	SwapCount       int64
}

// Candle is one OHLCV bucket.
type Candle struct {
	BucketStart time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume0     string
	Volume1     string
	SwapCount   int64
}

// CandleInterval enumerates the intervals §6.4 requires.
type CandleInterval string

const (
	Interval1m  CandleInterval = "1m"
	Interval5m  CandleInterval = "5m"
	Interval15m CandleInterval = "15m"
	Interval1h  CandleInterval = "1h"
	Interval4h  CandleInterval = "4h"
	Interval1d  CandleInterval = "1d"
)

// Duration returns the bucket width for an interval, or false if unknown.
func (i CandleInterval) Duration() (time.Duration, bool) {
	switch i {
	case Interval1m:
		return time.Minute, true
	case Interval5m:
		return 5 * time.Minute, true
	case Interval15m:
		return 15 * time.Minute, true
	case Interval1h:
		return time.Hour, true
	case Interval4h:
		return 4 * time.Hour, true
	case Interval1d:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}
