package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fluxfield/clmm/services/indexerd/storage"
)

type fakeStore struct {
	markets map[string]storage.Market
	swaps   map[string]storage.Swap
}

func newFakeStore() *fakeStore {
	return &fakeStore{markets: make(map[string]storage.Market), swaps: make(map[string]storage.Swap)}
}

func (s *fakeStore) UpsertMarket(ctx context.Context, m storage.Market) error {
	s.markets[m.Address] = m
	return nil
}
func (s *fakeStore) InsertMarketSnapshot(ctx context.Context, snap storage.MarketSnapshot) error {
	return nil
}
func (s *fakeStore) UpsertPosition(ctx context.Context, p storage.Position) error { return nil }
func (s *fakeStore) InsertSwap(ctx context.Context, swap storage.Swap) error {
	if _, ok := s.swaps[swap.Signature]; !ok {
		s.swaps[swap.Signature] = swap
	}
	return nil
}
func (s *fakeStore) Markets(ctx context.Context, p storage.PaginationParams) ([]storage.Market, error) {
	out := make([]storage.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}
func (s *fakeStore) Market(ctx context.Context, address string) (storage.Market, error) {
	m, ok := s.markets[address]
	if !ok {
		return storage.Market{}, storage.ErrNotFound
	}
	return m, nil
}
func (s *fakeStore) SwapsByMarket(ctx context.Context, marketAddr string, p storage.PaginationParams) ([]storage.Swap, error) {
	var out []storage.Swap
	for _, sw := range s.swaps {
		if sw.MarketAddr == marketAddr {
			out = append(out, sw)
		}
	}
	return out, nil
}
func (s *fakeStore) SwapBySignature(ctx context.Context, signature string) (storage.Swap, error) {
	sw, ok := s.swaps[signature]
	if !ok {
		return storage.Swap{}, storage.ErrNotFound
	}
	return sw, nil
}
func (s *fakeStore) Position(ctx context.Context, address string) (storage.Position, error) {
	return storage.Position{}, storage.ErrNotFound
}
func (s *fakeStore) ProtocolStats24h(ctx context.Context, now time.Time) (storage.ProtocolStats24h, error) {
	return storage.ProtocolStats24h{SwapCount: int64(len(s.swaps))}, nil
}
func (s *fakeStore) OHLCV(ctx context.Context, marketAddr string, interval storage.CandleInterval, start, end time.Time) ([]storage.Candle, error) {
	return nil, nil
}

func TestListMarketsReturnsEmptyArray(t *testing.T) {
	store := newFakeStore()
	srv := NewServer(store, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/markets", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetMarketNotFoundReturns404(t *testing.T) {
	store := newFakeStore()
	srv := NewServer(store, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/markets/unknown", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetMarketReturnsUpsertedRecord(t *testing.T) {
	store := newFakeStore()
	store.markets["market-1"] = storage.Market{Address: "market-1", CurrentTick: 5}
	srv := NewServer(store, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/markets/market-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got storage.Market
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.CurrentTick != 5 {
		t.Fatalf("expected tick 5, got %d", got.CurrentTick)
	}
}

func TestSwapBySignatureRequiresQueryParam(t *testing.T) {
	store := newFakeStore()
	srv := NewServer(store, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/swaps", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestRouteUnavailableWithoutProjector(t *testing.T) {
	store := newFakeStore()
	srv := NewServer(store, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/ingest/accounts", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a configured projector, got %d", rec.Code)
	}
}

func TestGetOHLCVRejectsUnsupportedInterval(t *testing.T) {
	store := newFakeStore()
	srv := NewServer(store, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/markets/market-1/ohlcv?interval=7m", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported interval, got %d", rec.Code)
	}
}
