package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore is the gorm-backed Store implementation.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres dials dsn and runs the schema migration.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := &PostgresStore{db: db}
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// Migrate applies (or re-applies) the schema, exposed separately so
// cmd/indexerd's `migrate` subcommand can run it without starting the
// service.
func (s *PostgresStore) Migrate() error {
	return s.db.AutoMigrate(&Market{}, &MarketSnapshot{}, &Position{}, &Swap{})
}

func (s *PostgresStore) UpsertMarket(ctx context.Context, m Market) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (s *PostgresStore) InsertMarketSnapshot(ctx context.Context, snap MarketSnapshot) error {
	return s.db.WithContext(ctx).Create(&snap).Error
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p Position) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		UpdateAll: true,
	}).Create(&p).Error
}

// InsertSwap relies on the signature primary key's ON CONFLICT DO NOTHING
// to make replay idempotent without a read-before-write race.
func (s *PostgresStore) InsertSwap(ctx context.Context, swap Swap) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signature"}},
		DoNothing: true,
	}).Create(&swap).Error
}

func (s *PostgresStore) Markets(ctx context.Context, p PaginationParams) ([]Market, error) {
	limit := clampLimit(p.Limit)
	var markets []Market
	err := s.db.WithContext(ctx).
		Order("total_volume0 desc").
		Limit(limit).Offset(p.Offset).
		Find(&markets).Error
	return markets, err
}

func (s *PostgresStore) Market(ctx context.Context, address string) (Market, error) {
	var m Market
	err := s.db.WithContext(ctx).First(&m, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Market{}, ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) SwapsByMarket(ctx context.Context, marketAddr string, p PaginationParams) ([]Swap, error) {
	limit := clampLimit(p.Limit)
	var swaps []Swap
	err := s.db.WithContext(ctx).
		Where("market_addr = ?", marketAddr).
		Order("executed_at desc").
		Limit(limit).Offset(p.Offset).
		Find(&swaps).Error
	return swaps, err
}

func (s *PostgresStore) SwapBySignature(ctx context.Context, signature string) (Swap, error) {
	var swap Swap
	err := s.db.WithContext(ctx).First(&swap, "signature = ?", signature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Swap{}, ErrNotFound
	}
	return swap, err
}

func (s *PostgresStore) Position(ctx context.Context, address string) (Position, error) {
	var p Position
	err := s.db.WithContext(ctx).First(&p, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Position{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) ProtocolStats24h(ctx context.Context, now time.Time) (ProtocolStats24h, error) {
	since := now.Add(-24 * time.Hour)
	var stats ProtocolStats24h
	row := s.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(amount_in) FILTER (WHERE zero_for_one), '0') AS total_volume0,
			COALESCE(SUM(amount_in) FILTER (WHERE NOT zero_for_one), '0') AS total_volume1,
			COALESCE(SUM(fee_amount), '0') AS total_fees,
			COUNT(DISTINCT trader) AS distinct_traders,
			COUNT(*) AS swap_count
		FROM swaps WHERE executed_at >= ?`, since).Row()
	var totalFees string
	if err := row.Scan(&stats.TotalVolume0, &stats.TotalVolume1, &totalFees, &stats.DistinctTraders, &stats.SwapCount); err != nil {
		return ProtocolStats24h{}, fmt.Errorf("scan protocol stats: %w", err)
	}
	stats.TotalFees0 = totalFees
	return stats, nil
}

func (s *PostgresStore) OHLCV(ctx context.Context, marketAddr string, interval CandleInterval, start, end time.Time) ([]Candle, error) {
	bucket, ok := interval.Duration()
	if !ok {
		return nil, fmt.Errorf("unsupported candle interval %q", interval)
	}

	var swaps []Swap
	err := s.db.WithContext(ctx).
		Where("market_addr = ? AND executed_at BETWEEN ? AND ?", marketAddr, start, end).
		Order("executed_at asc").
		Find(&swaps).Error
	if err != nil {
		return nil, err
	}
	return bucketCandles(swaps, start, bucket), nil
}

// bucketCandles groups pre-sorted swaps into fixed-width time buckets,
// using each swap's stored effective price. The aggregation runs in Go
// rather than SQL.
func bucketCandles(swaps []Swap, start time.Time, bucket time.Duration) []Candle {
	buckets := make(map[int64]*Candle)
	var order []int64
	for _, sw := range swaps {
		idx := int64(sw.ExecutedAt.Sub(start) / bucket)
		c, ok := buckets[idx]
		if !ok {
			bucketStart := start.Add(time.Duration(idx) * bucket)
			c = &Candle{BucketStart: bucketStart, Open: sw.EffectivePrice, Low: sw.EffectivePrice, High: sw.EffectivePrice}
			buckets[idx] = c
			order = append(order, idx)
		}
		if sw.EffectivePrice > c.High {
			c.High = sw.EffectivePrice
		}
		if sw.EffectivePrice < c.Low {
			c.Low = sw.EffectivePrice
		}
		c.Close = sw.EffectivePrice
		c.SwapCount++
	}
	candles := make([]Candle, 0, len(order))
	for _, idx := range order {
		candles = append(candles, *buckets[idx])
	}
	return candles
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
