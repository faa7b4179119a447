// Package metrics holds the per-subsystem Prometheus collectors for the
// CLMM's own domains (swap, JIT, floor, keeper, indexer), following the
// teacher's ModuleMetrics-style sync.Once singleton pattern: one registry
// per subsystem, lazily built on first use, safe to call with a nil
// receiver so instrumentation never needs its own guard clauses.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fluxfield"

// SwapMetrics instruments the swap executor (core/swap, core/market.Swap).
type SwapMetrics struct {
	swapsTotal      *prometheus.CounterVec
	ticksCrossed    *prometheus.HistogramVec
	amountIn        *prometheus.HistogramVec
	feeCollected    *prometheus.CounterVec
	slippageAborts  prometheus.Counter
	priceLimitClamp prometheus.Counter
}

var (
	swapOnce sync.Once
	swapReg  *SwapMetrics
)

// Swap returns the singleton swap metrics registry.
func Swap() *SwapMetrics {
	swapOnce.Do(func() {
		swapReg = &SwapMetrics{
			swapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "executions_total",
				Help:      "Count of completed swap executions by direction and outcome.",
			}, []string{"direction", "outcome"}),
			ticksCrossed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "ticks_crossed",
				Help:      "Distribution of tick crossings per swap.",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
			}, []string{"direction"}),
			amountIn: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "amount_in",
				Help:      "Distribution of swap input amounts, as a float approximation of the raw integer amount.",
				Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
			}, []string{"direction"}),
			feeCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "fee_collected_total",
				Help:      "Cumulative fee amount collected, as a float approximation of the raw integer amount.",
			}, []string{"direction"}),
			slippageAborts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "slippage_rejections_total",
				Help:      "Count of swaps rejected for failing the minimum-amount-out check.",
			}),
			priceLimitClamp: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "swap",
				Name:      "floor_clamped_total",
				Help:      "Count of ZeroForOne swaps whose price limit was clamped to the floor ratchet.",
			}),
		}
		prometheus.MustRegister(
			swapReg.swapsTotal,
			swapReg.ticksCrossed,
			swapReg.amountIn,
			swapReg.feeCollected,
			swapReg.slippageAborts,
			swapReg.priceLimitClamp,
		)
	})
	return swapReg
}

func directionLabel(zeroForOne bool) string {
	if zeroForOne {
		return "zero_for_one"
	}
	return "one_for_zero"
}

// ObserveExecution records one completed swap's shape.
func (m *SwapMetrics) ObserveExecution(zeroForOne bool, ticksCrossed int, amountIn, feeCollected float64) {
	if m == nil {
		return
	}
	dir := directionLabel(zeroForOne)
	m.swapsTotal.WithLabelValues(dir, "filled").Inc()
	m.ticksCrossed.WithLabelValues(dir).Observe(float64(ticksCrossed))
	m.amountIn.WithLabelValues(dir).Observe(amountIn)
	m.feeCollected.WithLabelValues(dir).Add(feeCollected)
}

// ObserveRejection records a swap that failed before or during execution.
func (m *SwapMetrics) ObserveRejection(zeroForOne bool, reason string) {
	if m == nil {
		return
	}
	m.swapsTotal.WithLabelValues(directionLabel(zeroForOne), "rejected").Inc()
	if reason == "slippage" {
		m.slippageAborts.Inc()
	}
}

// IncFloorClamp records that a swap's requested price limit was pulled up
// to the floor ratchet's hard bound.
func (m *SwapMetrics) IncFloorClamp() {
	if m == nil {
		return
	}
	m.priceLimitClamp.Inc()
}

// JITMetrics instruments the JIT virtual-liquidity placement path
// (core/jit, invoked from core/market.Swap).
type JITMetrics struct {
	placementsTotal  *prometheus.CounterVec
	virtualLiquidity prometheus.Gauge
	safetyRejections *prometheus.CounterVec
}

var (
	jitOnce sync.Once
	jitReg  *JITMetrics
)

// JIT returns the singleton JIT metrics registry.
func JIT() *JITMetrics {
	jitOnce.Do(func() {
		jitReg = &JITMetrics{
			placementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jit",
				Name:      "placements_total",
				Help:      "Count of JIT virtual liquidity placement attempts by outcome.",
			}, []string{"outcome"}),
			virtualLiquidity: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "jit",
				Name:      "virtual_liquidity",
				Help:      "Virtual liquidity amount injected by the most recent successful placement.",
			}),
			safetyRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jit",
				Name:      "safety_rejections_total",
				Help:      "Count of JIT placements declined by a safety guard, labeled by guard name.",
			}, []string{"guard"}),
		}
		prometheus.MustRegister(
			jitReg.placementsTotal,
			jitReg.virtualLiquidity,
			jitReg.safetyRejections,
		)
	})
	return jitReg
}

// ObservePlacement records a successful JIT placement's size.
func (m *JITMetrics) ObservePlacement(liquidityAmount float64) {
	if m == nil {
		return
	}
	m.placementsTotal.WithLabelValues("placed").Inc()
	m.virtualLiquidity.Set(liquidityAmount)
}

// ObserveDeclined records a guard turning JIT away for this swap, or JIT
// simply not participating (guard == "none_applicable").
func (m *JITMetrics) ObserveDeclined(guard string) {
	if m == nil {
		return
	}
	if guard == "" {
		guard = "unspecified"
	}
	m.placementsTotal.WithLabelValues("declined").Inc()
	m.safetyRejections.WithLabelValues(guard).Inc()
}

// FloorMetrics instruments the floor ratchet (core/floor).
type FloorMetrics struct {
	ratchetsTotal   prometheus.Counter
	floorTick       prometheus.Gauge
	ratchetGapTicks prometheus.Gauge
}

var (
	floorOnce sync.Once
	floorReg  *FloorMetrics
)

// Floor returns the singleton floor ratchet metrics registry.
func Floor() *FloorMetrics {
	floorOnce.Do(func() {
		floorReg = &FloorMetrics{
			ratchetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "floor",
				Name:      "ratchets_total",
				Help:      "Count of floor ratchet advances (the floor only ever moves up).",
			}),
			floorTick: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "floor",
				Name:      "tick",
				Help:      "Current floor tick for the most recently ratcheted market.",
			}),
			ratchetGapTicks: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "floor",
				Name:      "gap_ticks",
				Help:      "Tick distance the floor advanced by on the most recent ratchet.",
			}),
		}
		prometheus.MustRegister(floorReg.ratchetsTotal, floorReg.floorTick, floorReg.ratchetGapTicks)
	})
	return floorReg
}

// ObserveRatchet records a successful floor advance.
func (m *FloorMetrics) ObserveRatchet(newFloorTick, gapTicks int32) {
	if m == nil {
		return
	}
	m.ratchetsTotal.Inc()
	m.floorTick.Set(float64(newFloorTick))
	m.ratchetGapTicks.Set(float64(gapTicks))
}

// KeeperMetrics instruments the keeper control loop (services/keeperd).
type KeeperMetrics struct {
	cycles         prometheus.Counter
	marketsUpdated *prometheus.GaugeVec
	submitErrors   *prometheus.CounterVec
	healthFailures prometheus.Counter
	commitmentLag  *prometheus.HistogramVec
	feeBpsByMarket *prometheus.GaugeVec
}

var (
	keeperOnce sync.Once
	keeperReg  *KeeperMetrics
)

// Keeper returns the singleton keeper metrics registry.
func Keeper() *KeeperMetrics {
	keeperOnce.Do(func() {
		keeperReg = &KeeperMetrics{
			cycles: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "cycles_total",
				Help:      "Count of completed poll-loop cycles.",
			}),
			marketsUpdated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "markets_updated",
				Help:      "Number of markets that received a submitted field commitment in the last cycle.",
			}, []string{"market"}),
			submitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "submit_errors_total",
				Help:      "Count of field commitment submission failures by market.",
			}, []string{"market"}),
			healthFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "health_check_failures_total",
				Help:      "Count of failed RPC health checks.",
			}),
			commitmentLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "commitment_age_seconds",
				Help:      "Age of the stored commitment at the moment a market was evaluated for update.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"market"}),
			feeBpsByMarket: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "next_fee_bps",
				Help:      "Base fee in basis points computed by the hysteresis controller for a market's last cycle.",
			}, []string{"market"}),
		}
		prometheus.MustRegister(
			keeperReg.cycles,
			keeperReg.marketsUpdated,
			keeperReg.submitErrors,
			keeperReg.healthFailures,
			keeperReg.commitmentLag,
			keeperReg.feeBpsByMarket,
		)
	})
	return keeperReg
}

// ObserveCycle records the outcome of one UpdateAllMarkets pass.
func (m *KeeperMetrics) ObserveCycle() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

// ObserveMarketUpdate records a per-market evaluation: the computed fee
// and the commitment age observed, plus whether a submission actually
// happened (submitted=false simply means "not significant enough").
func (m *KeeperMetrics) ObserveMarketUpdate(market string, nextFeeBps uint16, commitmentAgeSecs int64, submitted bool) {
	if m == nil {
		return
	}
	m.feeBpsByMarket.WithLabelValues(market).Set(float64(nextFeeBps))
	m.commitmentLag.WithLabelValues(market).Observe(float64(commitmentAgeSecs))
	if submitted {
		m.marketsUpdated.WithLabelValues(market).Set(1)
	} else {
		m.marketsUpdated.WithLabelValues(market).Set(0)
	}
}

// IncSubmitError records a failed on-chain submission for a market.
func (m *KeeperMetrics) IncSubmitError(market string) {
	if m == nil {
		return
	}
	m.submitErrors.WithLabelValues(market).Inc()
}

// IncHealthFailure records a failed RPC health check.
func (m *KeeperMetrics) IncHealthFailure() {
	if m == nil {
		return
	}
	m.healthFailures.Inc()
}

// IndexerMetrics instruments the indexer projection and delivery path
// (services/indexerd).
type IndexerMetrics struct {
	accountUpdates   *prometheus.CounterVec
	swapsProjected   prometheus.Counter
	dedupeHits       prometheus.Counter
	webhookDelivered *prometheus.CounterVec
	webhookFailed    *prometheus.CounterVec
}

var (
	indexerOnce sync.Once
	indexerReg  *IndexerMetrics
)

// Indexer returns the singleton indexer metrics registry.
func Indexer() *IndexerMetrics {
	indexerOnce.Do(func() {
		indexerReg = &IndexerMetrics{
			accountUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "indexer",
				Name:      "account_updates_total",
				Help:      "Count of projected account updates by decoded entity type.",
			}, []string{"entity"}),
			swapsProjected: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "indexer",
				Name:      "swaps_projected_total",
				Help:      "Count of swap events written to the store (excludes dedupe hits).",
			}),
			dedupeHits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "indexer",
				Name:      "dedupe_hits_total",
				Help:      "Count of swap signatures skipped because the dedupe cache had already seen them.",
			}),
			webhookDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "indexer",
				Name:      "webhook_deliveries_total",
				Help:      "Count of successful webhook deliveries by event type.",
			}, []string{"event"}),
			webhookFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "indexer",
				Name:      "webhook_delivery_failures_total",
				Help:      "Count of webhook deliveries abandoned after exhausting retries, by event type.",
			}, []string{"event"}),
		}
		prometheus.MustRegister(
			indexerReg.accountUpdates,
			indexerReg.swapsProjected,
			indexerReg.dedupeHits,
			indexerReg.webhookDelivered,
			indexerReg.webhookFailed,
		)
	})
	return indexerReg
}

// IncAccountUpdate records a decoded account update by entity kind
// ("market", "position", or "unrecognized").
func (m *IndexerMetrics) IncAccountUpdate(entity string) {
	if m == nil {
		return
	}
	if entity == "" {
		entity = "unrecognized"
	}
	m.accountUpdates.WithLabelValues(entity).Inc()
}

// IncSwapProjected records a swap actually written to the store.
func (m *IndexerMetrics) IncSwapProjected() {
	if m == nil {
		return
	}
	m.swapsProjected.Inc()
}

// IncDedupeHit records a replayed swap signature short-circuited by the
// signature cache.
func (m *IndexerMetrics) IncDedupeHit() {
	if m == nil {
		return
	}
	m.dedupeHits.Inc()
}

// IncWebhookDelivered records a successful webhook delivery.
func (m *IndexerMetrics) IncWebhookDelivered(event string) {
	if m == nil {
		return
	}
	m.webhookDelivered.WithLabelValues(labelEvent(event)).Inc()
}

// IncWebhookFailed records a webhook delivery abandoned after retries.
func (m *IndexerMetrics) IncWebhookFailed(event string) {
	if m == nil {
		return
	}
	m.webhookFailed.WithLabelValues(labelEvent(event)).Inc()
}

func labelEvent(event string) string {
	if event == "" {
		return "unknown"
	}
	return event
}
