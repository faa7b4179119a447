// Package keeperd implements the off-chain keeper loop (C9): for each
// configured market, read state, advance the hysteresis controller,
// compute a new field commitment, and submit it on-chain when it differs
// enough from what is stored. Grounded on
// original_source/crates/keeper/src/keeper.rs's Keeper (update_all_markets,
// update_market, should_update_field, calculate_change_bps, health_check),
// translated from its per-process HashMap-of-controllers shape into Go.
package keeperd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/crypto"
	"github.com/fluxfield/clmm/field"
	"github.com/fluxfield/clmm/observability/metrics"
	"github.com/fluxfield/clmm/services/keeperd/config"
	"github.com/fluxfield/clmm/services/keeperd/rpc"
	"github.com/fluxfield/clmm/services/keeperd/store"
)

// commitmentChangeThresholdBps is the minimum relative change in any of
// S/T/L that justifies an on-chain update, per spec.md §4.9 step 4.
const commitmentChangeThresholdBps = 100

// Keeper is the per-process keeper service. It is not safe for concurrent
// calls to UpdateAllMarkets; the service runs one round-robin loop.
type Keeper struct {
	cfg    config.Config
	client rpc.Client
	store  *store.Store
	signer *crypto.PrivateKey
	logger *slog.Logger

	mu          sync.Mutex
	controllers map[string]*field.Controller
}

// New constructs a keeper ready to run against the supplied client and
// store. signer authenticates update_field_commitment submissions.
func New(cfg config.Config, client rpc.Client, st *store.Store, signer *crypto.PrivateKey, logger *slog.Logger) *Keeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		cfg:         cfg,
		client:      client,
		store:       st,
		signer:      signer,
		logger:      logger,
		controllers: make(map[string]*field.Controller),
	}
}

// UpdateAllMarkets walks every configured market once, isolating failures
// per market, and returns how many were actually updated.
func (k *Keeper) UpdateAllMarkets(ctx context.Context) (int, error) {
	metrics.Keeper().ObserveCycle()
	updated := 0
	for _, mc := range k.cfg.Markets {
		select {
		case <-ctx.Done():
			return updated, ctx.Err()
		default:
		}
		didUpdate, err := k.updateMarket(ctx, mc)
		if err != nil {
			k.logger.Error("market update failed", "market", mc.MarketAddress, "error", err)
			continue
		}
		if didUpdate {
			updated++
		}
	}
	return updated, nil
}

func (k *Keeper) controllerFor(marketAddress string, weights field.DomainWeights, baseFeeBps uint16) *field.Controller {
	k.mu.Lock()
	defer k.mu.Unlock()
	if c, ok := k.controllers[marketAddress]; ok {
		return c
	}
	params := field.DefaultControllerParams(baseFeeBps)
	c := field.NewController(params)
	k.controllers[marketAddress] = c
	return c
}

// updateMarket mirrors keeper.rs's update_market: staleness gate, stress
// computation, hysteresis update, significance check, conditional submit.
func (k *Keeper) updateMarket(ctx context.Context, mc config.MarketConfig) (bool, error) {
	now := time.Now().Unix()

	if lastUpdate, _, ok := k.store.LastUpdate(mc.MarketAddress); ok {
		if now-lastUpdate < mc.MinUpdateInterval {
			k.logger.Debug("market within min update interval, skipping", "market", mc.MarketAddress)
			return false, nil
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, k.cfg.RequestTimeout())
	defer cancel()
	snapshot, err := k.client.FetchMarketSnapshot(reqCtx, mc.MarketAddress)
	if err != nil {
		return false, fmt.Errorf("%w: %v", fxerrors.ErrRpcError, err)
	}

	weights := field.DomainWeights{WS: 7000, WT: 2000, WL: 1000}
	if snapshot.StoredCommitment != nil {
		weights = field.DomainWeights{
			WS: snapshot.StoredCommitment.WS,
			WT: snapshot.StoredCommitment.WT,
			WL: snapshot.StoredCommitment.WL,
		}
	}

	computer := field.Computer{}
	stress := computer.ComputeStressComponents(snapshot.Market)

	var previousSequence uint64
	if snapshot.StoredCommitment != nil {
		previousSequence = snapshot.StoredCommitment.Sequence
	}
	baseFeeBps := uint16(0)
	if snapshot.StoredCommitment != nil {
		baseFeeBps = snapshot.StoredCommitment.BaseFeeBps
	}
	controller := k.controllerFor(mc.MarketAddress, weights, baseFeeBps)
	nextFeeBps := controller.Update(stress, weights)

	commitment := computer.ComputeFieldCommitment(snapshot.Market, previousSequence, nextFeeBps, now)

	significant := shouldUpdateField(snapshot.StoredCommitment, commitment, snapshot.CommitmentAgeSecs)
	metrics.Keeper().ObserveMarketUpdate(mc.MarketAddress, nextFeeBps, snapshot.CommitmentAgeSecs, significant)
	if !significant {
		k.logger.Debug("field commitment change not significant enough", "market", mc.MarketAddress)
		return false, nil
	}

	if k.cfg.DryRun {
		k.logger.Info("dry run: would submit field commitment", "market", mc.MarketAddress, "sequence", commitment.Sequence)
		return true, nil
	}

	signature, err := signCommitment(k.signer, mc.MarketAddress, commitment)
	if err != nil {
		metrics.Keeper().IncSubmitError(mc.MarketAddress)
		return false, fmt.Errorf("sign commitment: %w", err)
	}

	submitCtx, submitCancel := context.WithTimeout(ctx, k.cfg.RequestTimeout())
	defer submitCancel()
	txHash, err := k.client.SubmitFieldCommitment(submitCtx, mc.MarketAddress, commitment, signature)
	if err != nil {
		metrics.Keeper().IncSubmitError(mc.MarketAddress)
		return false, fmt.Errorf("%w: submit field commitment: %v", fxerrors.ErrRpcError, err)
	}

	if err := k.store.RecordUpdate(mc.MarketAddress, now, commitment.Sequence); err != nil {
		k.logger.Warn("failed to persist last-update record", "market", mc.MarketAddress, "error", err)
	}
	k.logger.Info("submitted field commitment", "market", mc.MarketAddress, "tx", txHash, "sequence", commitment.Sequence)
	return true, nil
}

// shouldUpdateField mirrors keeper.rs's should_update_field: always update
// if nothing stored yet, update if the stored commitment is stale, else
// update only if S/T/L moved by more than the threshold.
func shouldUpdateField(stored *field.Commitment, next field.Commitment, ageSecs int64) bool {
	if stored == nil {
		return true
	}
	if ageSecs > next.MaxStaleness {
		return true
	}
	sChange := field.CalculateChangeBps(next.S, stored.S)
	tChange := field.CalculateChangeBps(next.T, stored.T)
	lChange := field.CalculateChangeBps(next.L, stored.L)
	return sChange > commitmentChangeThresholdBps ||
		tChange > commitmentChangeThresholdBps ||
		lChange > commitmentChangeThresholdBps
}

// HealthCheck verifies RPC responsiveness and the keeper authority's
// balance, per spec.md §4.9 step 6.
func (k *Keeper) HealthCheck(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, k.cfg.RequestTimeout())
	defer cancel()
	if err := k.client.Health(reqCtx); err != nil {
		metrics.Keeper().IncHealthFailure()
		return fmt.Errorf("%w: %v", fxerrors.ErrRpcError, err)
	}
	balance, err := k.client.Balance(reqCtx, k.signer.PubKey().Address().String())
	if err != nil {
		metrics.Keeper().IncHealthFailure()
		return fmt.Errorf("%w: %v", fxerrors.ErrRpcError, err)
	}
	if balance < k.cfg.MinBalance {
		metrics.Keeper().IncHealthFailure()
		return fmt.Errorf("%w: balance %d below minimum %d", fxerrors.ErrInsufficientBalance, balance, k.cfg.MinBalance)
	}
	return nil
}

// Run drives the cooperative poll loop until ctx is cancelled, matching
// spec.md §5's "controller polls a shutdown flag each iteration."
func (k *Keeper) Run(ctx context.Context) error {
	interval := time.Duration(k.cfg.PollIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := k.HealthCheck(ctx); err != nil {
			k.logger.Error("health check failed", "error", err)
			if errors.Is(err, fxerrors.ErrInsufficientBalance) {
				return fmt.Errorf("halting: %w", err)
			}
		}
		updated, err := k.UpdateAllMarkets(ctx)
		if err != nil {
			k.logger.Error("update cycle aborted", "error", err)
		} else {
			k.logger.Info("update cycle complete", "markets_updated", updated)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
