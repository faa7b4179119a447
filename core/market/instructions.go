package market

import (
	"math/big"

	"github.com/holiman/uint256"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/core/floor"
	"github.com/fluxfield/clmm/core/fxmath"
	"github.com/fluxfield/clmm/core/jit"
	"github.com/fluxfield/clmm/core/oracle"
	"github.com/fluxfield/clmm/core/swap"
	"github.com/fluxfield/clmm/core/ticks"
	"github.com/fluxfield/clmm/observability"
	"github.com/fluxfield/clmm/observability/metrics"
)

// DeployInitialLiquidity places a one-shot staircase of bid positions
// extending downward from the market's initial price, per spec.md §6.1.
// Each step is a position tickStepSize ticks wide whose upper tick is the
// previous step's lower tick, so the staircase approximates a ladder of limit bids funded by
// initialBuyAmount spread evenly across the steps.
func DeployInitialLiquidity(m *Market, store *ticks.Store, tickStepSize int32, initialBuyAmount *big.Int, steps int) ([]Position, error) {
	if m.Phase != PhaseInitialized {
		return nil, fxerrors.ErrMarketAlreadyDeployed
	}
	if tickStepSize <= 0 || steps <= 0 {
		return nil, fxerrors.ErrDeploymentFailed
	}
	if initialBuyAmount == nil || initialBuyAmount.Sign() <= 0 {
		return nil, fxerrors.ErrDeploymentFailed
	}

	perStep := new(big.Int).Quo(initialBuyAmount, big.NewInt(int64(steps)))
	if perStep.Sign() == 0 {
		return nil, fxerrors.ErrDeploymentFailed
	}
	perStepU256, overflow := uint256.FromBig(perStep)
	if overflow {
		return nil, fxerrors.ErrDeploymentFailed
	}

	positions := make([]Position, 0, steps)
	upper := m.CurrentTick
	for i := 0; i < steps; i++ {
		lower := upper - tickStepSize
		if lower < m.GlobalLower {
			lower = m.GlobalLower
		}
		if lower >= upper {
			break
		}

		if _, err := store.UpdateLiquidity(lower, perStep, false, m.CurrentTick, m.FeeGrowth0, m.FeeGrowth1); err != nil {
			return nil, fxerrors.ErrDeploymentFailed
		}
		if _, err := store.UpdateLiquidity(upper, perStep, true, m.CurrentTick, m.FeeGrowth0, m.FeeGrowth1); err != nil {
			return nil, fxerrors.ErrDeploymentFailed
		}

		positions = append(positions, Position{
			LowerTick:            lower,
			UpperTick:            upper,
			Liquidity:            new(big.Int).Set(perStep),
			FeeGrowthInside0Last: new(big.Int),
			FeeGrowthInside1Last: new(big.Int),
		})

		if upper <= m.CurrentTick {
			m.Liquidity = new(uint256.Int).Add(m.Liquidity, perStepU256)
		}

		upper = lower
		if upper <= m.GlobalLower {
			break
		}
	}

	m.Phase = PhaseLiquidityDeployed
	return positions, nil
}

// Swap executes a swap instruction against the market, honoring the
// floor ratchet's hard lower bound in the ZeroForOne direction and
// optionally letting JIT inject transient virtual liquidity first.
func Swap(m *Market, store *ticks.Store, ring *oracle.Ring, req swap.Request, now int64, jitCtx *jit.Context) (swap.Result, error) {
	if err := m.Lock(); err != nil {
		return swap.Result{}, err
	}
	defer m.Unlock()

	if req.Direction == swap.ZeroForOne {
		floorSqrt := fxmath.SqrtPriceFromTick(m.Floor.FloorTick)
		if req.SqrtPriceLimit.Cmp(floorSqrt) < 0 {
			req.SqrtPriceLimit = floorSqrt
			metrics.Swap().IncFloorClamp()
		}
	}

	effectiveLiquidity := m.Liquidity
	var jitVirtual *uint256.Int
	if jitCtx != nil && m.JIT.Enabled {
		marketView := jit.MarketView{
			IsPaused:              false,
			JitEnabled:            m.JIT.Enabled,
			FloorTick:             m.Floor.FloorTick,
			GlobalLowerTick:       m.GlobalLower,
			GlobalUpperTick:       m.GlobalUpper,
			JitLastHeavyUsageSlot: m.JIT.LastHeavyUsageSlot,
		}
		placement, err := jit.Execute(*jitCtx, marketView, ring, &m.JIT.Budget)
		if err == nil && placement != nil && placement.LiquidityAmount != nil {
			virtual, overflow := uint256.FromBig(placement.LiquidityAmount)
			if !overflow {
				jitVirtual = virtual
				effectiveLiquidity = new(uint256.Int).Add(m.Liquidity, virtual)
				liquidityF, _ := new(big.Float).SetInt(placement.LiquidityAmount).Float64()
				metrics.JIT().ObservePlacement(liquidityF)
			}
		} else if err != nil {
			metrics.JIT().ObserveDeclined(err.Error())
		} else {
			metrics.JIT().ObserveDeclined("none_applicable")
		}
	}

	marketState := &swap.MarketState{
		SqrtPrice:        m.SqrtPrice,
		Liquidity:        effectiveLiquidity,
		CurrentTick:      m.CurrentTick,
		FeeBps:           m.BaseFeeBps,
		GlobalLowerTick:  m.GlobalLower,
		GlobalUpperTick:  m.GlobalUpper,
		TickSpacing:      m.TickSpacing,
		FeeGrowthGlobal0: m.FeeGrowth0,
		FeeGrowthGlobal1: m.FeeGrowth1,
	}

	result, err := swap.Execute(marketState, store, req)
	if err != nil {
		reason := "execution"
		if err == fxerrors.ErrSlippageExceeded {
			reason = "slippage"
		}
		metrics.Swap().ObserveRejection(req.Direction == swap.ZeroForOne, reason)
		return swap.Result{}, err
	}

	tickBeforeSwap := m.CurrentTick
	m.SqrtPrice = marketState.SqrtPrice
	m.CurrentTick = marketState.CurrentTick

	// marketState.Liquidity now reflects real liquidity plus whatever tick
	// crossings happened during the swap, still carrying the JIT virtual
	// top-up (if any) as a constant offset added once at the start. Strip
	// that offset back out before persisting so virtual liquidity never
	// survives past the swap that requested it.
	finalLiquidity := marketState.Liquidity
	if jitVirtual != nil {
		if finalLiquidity.Cmp(jitVirtual) < 0 {
			finalLiquidity = new(uint256.Int)
		} else {
			finalLiquidity = new(uint256.Int).Sub(finalLiquidity, jitVirtual)
		}
	}
	m.Liquidity = finalLiquidity

	if req.Direction == swap.ZeroForOne {
		m.FeeGrowth0.Add(m.FeeGrowth0, result.FeeGrowthDelta)
	} else {
		m.FeeGrowth1.Add(m.FeeGrowth1, result.FeeGrowthDelta)
	}

	// the pre-swap tick is the one that was active since the last observation.
	ring.Observe(tickBeforeSwap, now)

	amountInF, _ := new(big.Float).SetInt(result.AmountInUsed.ToBig()).Float64()
	feeF, _ := new(big.Float).SetInt(result.FeePaid.ToBig()).Float64()
	metrics.Swap().ObserveExecution(req.Direction == swap.ZeroForOne, result.TicksCrossed, amountInF, feeF)

	return result, nil
}

// UpdateFieldCommitment installs a keeper-authenticated commitment,
// enforcing spec.md §6.1's strictly-increasing sequence requirement.
func UpdateFieldCommitment(m *Market, stored *FieldCommitment, next FieldCommitment) error {
	if stored != nil && next.Sequence <= stored.Sequence {
		return fxerrors.ErrSequenceOutOfOrder
	}
	m.BaseFeeBps = next.BaseFeeBps
	*stored = next
	observability.Events().RecordCommitment(marketLabel(m))
	return nil
}

func marketLabel(m *Market) string {
	return m.Token0 + "/" + m.Token1
}

// PlaceFloorLiquidity is the permissionless trigger for the floor ratchet,
// gated entirely by the floor package's own preconditions.
func PlaceFloorLiquidity(m *Market, history floor.PriceHistory, now int64) (int32, error) {
	tick, err := floor.PlaceFloorLiquidity(&m.Floor, history, now, m.GlobalLower)
	if err == nil {
		observability.Events().RecordFloorRatchet(marketLabel(m))
	}
	return tick, err
}
