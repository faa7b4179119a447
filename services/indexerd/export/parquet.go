// Package export periodically writes swap history and OHLCV candles to
// parquet, grounded on the teacher's otc-gateway reconciliation report
// writer (same xitongsys/parquet-go writer/schema-tag pattern).
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/fluxfield/clmm/services/indexerd/storage"
)

type swapRow struct {
	Signature      string  `parquet:"name=signature, type=BYTE_ARRAY, convertedtype=UTF8"`
	MarketAddr     string  `parquet:"name=market_addr, type=BYTE_ARRAY, convertedtype=UTF8"`
	Trader         string  `parquet:"name=trader, type=BYTE_ARRAY, convertedtype=UTF8"`
	ZeroForOne     bool    `parquet:"name=zero_for_one, type=BOOLEAN"`
	AmountIn       string  `parquet:"name=amount_in, type=BYTE_ARRAY, convertedtype=UTF8"`
	AmountOut      string  `parquet:"name=amount_out, type=BYTE_ARRAY, convertedtype=UTF8"`
	EffectivePrice float64 `parquet:"name=effective_price, type=DOUBLE"`
	PriceImpactBps int32   `parquet:"name=price_impact_bps, type=INT32"`
	FeeAmount      string  `parquet:"name=fee_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Slot           int64   `parquet:"name=slot, type=INT64"`
	ExecutedAt     string  `parquet:"name=executed_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type candleRow struct {
	BucketStart string  `parquet:"name=bucket_start, type=BYTE_ARRAY, convertedtype=UTF8"`
	Open        float64 `parquet:"name=open, type=DOUBLE"`
	High        float64 `parquet:"name=high, type=DOUBLE"`
	Low         float64 `parquet:"name=low, type=DOUBLE"`
	Close       float64 `parquet:"name=close, type=DOUBLE"`
	SwapCount   int64   `parquet:"name=swap_count, type=INT64"`
}

// Writer periodically exports a market's recent swaps and candles.
type Writer struct {
	store     storage.Store
	directory string
}

// NewWriter constructs a Writer rooted at directory.
func NewWriter(store storage.Store, directory string) *Writer {
	return &Writer{store: store, directory: directory}
}

// ExportSwaps writes every swap for marketAddr (page-limited by the store's
// own clamp) to a parquet file under the export directory.
func (w *Writer) ExportSwaps(ctx context.Context, marketAddr string, asOf time.Time) (string, error) {
	swaps, err := w.store.SwapsByMarket(ctx, marketAddr, storage.PaginationParams{Limit: 500})
	if err != nil {
		return "", fmt.Errorf("export: load swaps: %w", err)
	}
	path := filepath.Join(w.directory, fmt.Sprintf("swaps-%s-%d.parquet", marketAddr, asOf.Unix()))
	if err := os.MkdirAll(w.directory, 0o755); err != nil {
		return "", fmt.Errorf("export: create directory: %w", err)
	}
	if err := writeSwapParquet(path, swaps); err != nil {
		return "", err
	}
	return path, nil
}

// ExportCandles writes OHLCV candles for marketAddr over [start, end] at
// interval to a parquet file under the export directory.
func (w *Writer) ExportCandles(ctx context.Context, marketAddr string, interval storage.CandleInterval, start, end time.Time) (string, error) {
	candles, err := w.store.OHLCV(ctx, marketAddr, interval, start, end)
	if err != nil {
		return "", fmt.Errorf("export: load candles: %w", err)
	}
	path := filepath.Join(w.directory, fmt.Sprintf("candles-%s-%s-%d.parquet", marketAddr, interval, end.Unix()))
	if err := os.MkdirAll(w.directory, 0o755); err != nil {
		return "", fmt.Errorf("export: create directory: %w", err)
	}
	if err := writeCandleParquet(path, candles); err != nil {
		return "", err
	}
	return path, nil
}

func writeSwapParquet(path string, swaps []storage.Swap) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(swapRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.RowGroupSize = 64 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, s := range swaps {
		row := &swapRow{
			Signature:      s.Signature,
			MarketAddr:     s.MarketAddr,
			Trader:         s.Trader,
			ZeroForOne:     s.ZeroForOne,
			AmountIn:       s.AmountIn,
			AmountOut:      s.AmountOut,
			EffectivePrice: s.EffectivePrice,
			PriceImpactBps: int32(s.PriceImpactBps),
			FeeAmount:      s.FeeAmount,
			Slot:           int64(s.Slot),
			ExecutedAt:     s.ExecutedAt.Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("export: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: parquet flush: %w", err)
	}
	return file.Close()
}

func writeCandleParquet(path string, candles []storage.Candle) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(candleRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.RowGroupSize = 64 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, c := range candles {
		row := &candleRow{
			BucketStart: c.BucketStart.Format(time.RFC3339),
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			SwapCount:   c.SwapCount,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("export: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: parquet flush: %w", err)
	}
	return file.Close()
}
