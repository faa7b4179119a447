// Package indexerd projects an account-update stream into the relational
// entities spec.md §4.10 names (Market, Position, Swap) and serves the
// read-side aggregates over HTTP. Grounded structurally on the teacher's
// services/swapd (config/server/storage subpackage split); the account
// stream itself is abstracted per spec.md §4.10's "lazy sequence of
// (pubkey, account_bytes, slot) records, encoding out of scope."
package indexerd

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxfield/clmm/observability/metrics"
	"github.com/fluxfield/clmm/services/indexerd/dedupe"
	"github.com/fluxfield/clmm/services/indexerd/storage"
)

// Discriminator identifies which entity an account update decodes to.
type Discriminator int

const (
	DiscriminatorUnknown Discriminator = iota
	DiscriminatorMarket
	DiscriminatorPosition
)

// AccountUpdate is one record from the consumed stream.
type AccountUpdate struct {
	Pubkey      string
	AccountData []byte
	Slot        uint64
}

// SwapEvent is the out-of-band event C4 emits alongside a swap instruction;
// its encoding is likewise out of scope, only its decoded shape matters
// here.
type SwapEvent struct {
	Signature      string
	MarketAddr     string
	Trader         string
	ZeroForOne     bool
	AmountIn       string
	AmountOut      string
	EffectivePrice float64
	PriceImpactBps uint32
	FeeAmount      string
	Slot           uint64
	ExecutedAt     time.Time
}

// Decoder turns raw account bytes into the indexer's entities. A real
// deployment supplies a decoder matched to the on-chain account layout;
// this package does not prescribe one.
type Decoder interface {
	Discriminate(data []byte) Discriminator
	DecodeMarket(pubkey string, data []byte, slot uint64) (storage.Market, error)
	DecodePosition(pubkey string, data []byte, slot uint64) (storage.Position, error)
}

// SnapshotInterval is the bucketing width for MarketSnapshot rows.
const SnapshotInterval = time.Minute

// Projector applies account updates and swap events to a Store.
type Projector struct {
	store   storage.Store
	decoder Decoder
	cache   *dedupe.SignatureCache

	lastSnapshotBucket map[string]time.Time
}

// NewProjector constructs a projector writing to store via decoder.
func NewProjector(store storage.Store, decoder Decoder) *Projector {
	return &Projector{
		store:              store,
		decoder:            decoder,
		lastSnapshotBucket: make(map[string]time.Time),
	}
}

// WithSignatureCache attaches a leveldb-backed dedupe cache so replayed
// swap signatures skip the Postgres round-trip entirely instead of relying
// solely on the store's own conflict handling.
func (p *Projector) WithSignatureCache(cache *dedupe.SignatureCache) *Projector {
	p.cache = cache
	return p
}

// Apply projects one account update. Ordering within a market must be
// slot-ascending (spec.md §5's indexer ordering guarantee); ordering
// across markets is not required and this method does not enforce it.
func (p *Projector) Apply(ctx context.Context, update AccountUpdate) error {
	switch p.decoder.Discriminate(update.AccountData) {
	case DiscriminatorMarket:
		metrics.Indexer().IncAccountUpdate("market")
		market, err := p.decoder.DecodeMarket(update.Pubkey, update.AccountData, update.Slot)
		if err != nil {
			return fmt.Errorf("decode market account: %w", err)
		}
		if err := p.store.UpsertMarket(ctx, market); err != nil {
			return fmt.Errorf("upsert market: %w", err)
		}
		return p.maybeSnapshot(ctx, market, time.Now().UTC())
	case DiscriminatorPosition:
		metrics.Indexer().IncAccountUpdate("position")
		position, err := p.decoder.DecodePosition(update.Pubkey, update.AccountData, update.Slot)
		if err != nil {
			return fmt.Errorf("decode position account: %w", err)
		}
		if err := p.store.UpsertPosition(ctx, position); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		return nil
	default:
		metrics.Indexer().IncAccountUpdate("unrecognized")
		return nil
	}
}

// maybeSnapshot appends a MarketSnapshot only when entering a new bucket,
// keeping snapshots monotone in timestamp per market (spec.md §4.10's
// invariant) without requiring the caller to pre-bucket updates.
func (p *Projector) maybeSnapshot(ctx context.Context, market storage.Market, now time.Time) error {
	bucket := now.Truncate(SnapshotInterval)
	if last, ok := p.lastSnapshotBucket[market.Address]; ok && !bucket.After(last) {
		return nil
	}
	p.lastSnapshotBucket[market.Address] = bucket
	snap := storage.MarketSnapshot{
		MarketAddr: market.Address,
		SqrtPrice:  market.SqrtPrice,
		Liquidity:  market.Liquidity,
		Tick:       market.CurrentTick,
		Slot:       market.LastSlot,
		BucketedAt: bucket,
		RecordedAt: now,
	}
	if err := p.store.InsertMarketSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ApplySwap projects a decoded swap event into the Swap table. Replay
// safety comes from the store's idempotent InsertSwap; when a signature
// cache is attached, signatures it has already seen skip the store.
func (p *Projector) ApplySwap(ctx context.Context, ev SwapEvent) error {
	if p.cache != nil {
		seen, err := p.cache.Seen(ev.Signature)
		if err != nil {
			return fmt.Errorf("check signature cache: %w", err)
		}
		if seen {
			metrics.Indexer().IncDedupeHit()
			return nil
		}
	}
	swap := storage.Swap{
		Signature:      ev.Signature,
		MarketAddr:     ev.MarketAddr,
		Trader:         ev.Trader,
		ZeroForOne:     ev.ZeroForOne,
		AmountIn:       ev.AmountIn,
		AmountOut:      ev.AmountOut,
		EffectivePrice: ev.EffectivePrice,
		PriceImpactBps: ev.PriceImpactBps,
		FeeAmount:      ev.FeeAmount,
		Slot:           ev.Slot,
		ExecutedAt:     ev.ExecutedAt,
	}
	if err := p.store.InsertSwap(ctx, swap); err != nil {
		return fmt.Errorf("insert swap: %w", err)
	}
	metrics.Indexer().IncSwapProjected()
	return nil
}
