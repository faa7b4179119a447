package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by single-record lookups that miss.
var ErrNotFound = errors.New("storage: record not found")

// Store is the indexer's persistence contract (spec.md §4.10). Only the
// interface is load-bearing; the concrete schema behind it is not.
type Store interface {
	UpsertMarket(ctx context.Context, m Market) error
	InsertMarketSnapshot(ctx context.Context, s MarketSnapshot) error
	UpsertPosition(ctx context.Context, p Position) error
	// InsertSwap is idempotent under replay: a duplicate Signature must not
	// create a second row or return an error.
	InsertSwap(ctx context.Context, s Swap) error

	Markets(ctx context.Context, p PaginationParams) ([]Market, error)
	Market(ctx context.Context, address string) (Market, error)
	SwapsByMarket(ctx context.Context, marketAddr string, p PaginationParams) ([]Swap, error)
	SwapBySignature(ctx context.Context, signature string) (Swap, error)
	Position(ctx context.Context, address string) (Position, error)
	ProtocolStats24h(ctx context.Context, now time.Time) (ProtocolStats24h, error)
	OHLCV(ctx context.Context, marketAddr string, interval CandleInterval, start, end time.Time) ([]Candle, error)
}
