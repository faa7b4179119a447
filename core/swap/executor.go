package swap

import (
	"math/big"

	"github.com/holiman/uint256"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/core/fxmath"
	"github.com/fluxfield/clmm/core/ticks"
)

// Request is the public-facing input to Execute, matching the swap
// instruction's parameters.
type Request struct {
	AmountIn         *uint256.Int
	MinimumAmountOut *uint256.Int
	Direction        Direction
	SqrtPriceLimit   *uint256.Int
	MaxTicksCrossed  int
}

// Result is the cumulative outcome of a multi-segment swap.
type Result struct {
	AmountInUsed   *uint256.Int
	AmountOut      *uint256.Int
	FeePaid        *uint256.Int
	SqrtPriceAfter *uint256.Int
	TickAfter      int32
	TicksCrossed   int
	StepsTaken     int
	FeeGrowthDelta *big.Int // Q64.64 increment to the accumulator for this swap's input token
	LastOutcome    Outcome
}

// MarketState is the subset of market fields the executor reads and
// mutates in place across the loop. FeeGrowthGlobal0/1 are read-only
// starting points for this swap; Execute tracks its own running copy
// internally to flip crossed ticks' fee_growth_outside with the
// accumulator value active at the moment of crossing, and never mutates
// the pointers the caller passed in.
type MarketState struct {
	SqrtPrice        *uint256.Int
	Liquidity        *uint256.Int
	CurrentTick      int32
	FeeBps           uint16
	GlobalLowerTick  int32
	GlobalUpperTick  int32
	TickSpacing      uint16
	FeeGrowthGlobal0 *big.Int
	FeeGrowthGlobal1 *big.Int
}

// Execute drives ComputeStep across tick crossings until the input is
// exhausted, the price limit is hit, or req.MaxTicksCrossed ticks have been
// crossed; needing more than MaxSwapSteps steps fails with
// ErrTooManySteps. A price limit equal to MinSqrtPrice (ZeroForOne) or
// MaxSqrtPrice (OneForZero) is accepted and leaves the price unbounded
// within the supported range. Fee growth for the
// step is accrued against the liquidity value active *before* the tick
// crossing that ends it, per UpdateFeeGrowthSegment's contract.
func Execute(market *MarketState, store *ticks.Store, req Request) (Result, error) {
	if req.AmountIn.IsZero() {
		return Result{}, fxerrors.ErrZeroAmount
	}
	if req.MaxTicksCrossed > MaxSwapSteps {
		return Result{}, fxerrors.ErrTooManySteps
	}

	switch req.Direction {
	case ZeroForOne:
		if req.SqrtPriceLimit.Cmp(fxmath.MinSqrtPrice) < 0 || req.SqrtPriceLimit.Cmp(market.SqrtPrice) >= 0 {
			return Result{}, fxerrors.ErrPriceLimitInvalid
		}
	case OneForZero:
		if req.SqrtPriceLimit.Cmp(fxmath.MaxSqrtPrice) > 0 || req.SqrtPriceLimit.Cmp(market.SqrtPrice) <= 0 {
			return Result{}, fxerrors.ErrPriceLimitInvalid
		}
	}

	remaining := new(uint256.Int).Set(req.AmountIn)
	totalOut := new(uint256.Int)
	totalFee := new(uint256.Int)
	totalIn := new(uint256.Int)
	feeGrowthDelta := new(big.Int)
	ticksCrossed := 0
	steps := 0
	var lastOutcome Outcome

	runningFeeGrowth0 := new(big.Int)
	if market.FeeGrowthGlobal0 != nil {
		runningFeeGrowth0.Set(market.FeeGrowthGlobal0)
	}
	runningFeeGrowth1 := new(big.Int)
	if market.FeeGrowthGlobal1 != nil {
		runningFeeGrowth1.Set(market.FeeGrowthGlobal1)
	}

	for {
		if remaining.IsZero() || market.SqrtPrice.Cmp(req.SqrtPriceLimit) == 0 {
			break
		}
		if steps >= MaxSwapSteps {
			return Result{}, fxerrors.ErrTooManySteps
		}
		if ticksCrossed >= req.MaxTicksCrossed {
			break
		}

		nextTick, hasNext := store.NextInitializedTick(market.CurrentTick, req.Direction == ZeroForOne)

		var targetTick *int32
		var targetSqrt *uint256.Int
		if hasNext {
			t := nextTick
			targetTick = &t
			targetSqrt = fxmath.SqrtPriceFromTick(nextTick)
		} else {
			if req.Direction == ZeroForOne {
				targetSqrt = fxmath.SqrtPriceFromTick(market.GlobalLowerTick)
				b := market.GlobalLowerTick
				targetTick = &b
			} else {
				targetSqrt = fxmath.SqrtPriceFromTick(market.GlobalUpperTick)
				b := market.GlobalUpperTick
				targetTick = &b
			}
		}
		targetSqrt = boundByLimit(req.Direction, targetSqrt, req.SqrtPriceLimit)

		ctx := Context{
			Direction:       req.Direction,
			SqrtPrice:       market.SqrtPrice,
			Liquidity:       market.Liquidity,
			FeeBps:          market.FeeBps,
			GlobalLowerTick: market.GlobalLowerTick,
			GlobalUpperTick: market.GlobalUpperTick,
			TickSpacing:     market.TickSpacing,
		}

		step, err := ComputeStep(ctx, targetSqrt, targetTick, remaining)
		if err != nil {
			return Result{}, err
		}
		steps++

		growthInc, err := UpdateFeeGrowthSegment(step.Fee, market.Liquidity)
		if err != nil {
			return Result{}, err
		}
		feeGrowthDelta.Add(feeGrowthDelta, growthInc.ToBig())
		if req.Direction == ZeroForOne {
			runningFeeGrowth0.Add(runningFeeGrowth0, growthInc.ToBig())
		} else {
			runningFeeGrowth1.Add(runningFeeGrowth1, growthInc.ToBig())
		}

		remaining = new(uint256.Int).Sub(remaining, step.GrossInUsed)
		totalIn = new(uint256.Int).Add(totalIn, step.GrossInUsed)
		totalOut = new(uint256.Int).Add(totalOut, step.Out)
		totalFee = new(uint256.Int).Add(totalFee, step.Fee)
		market.SqrtPrice = step.SqrtNext
		lastOutcome = step.Outcome

		if step.CrossedTick != nil {
			crossed := *step.CrossedTick
			if req.Direction == ZeroForOne {
				market.CurrentTick = crossed - 1
			} else {
				market.CurrentTick = crossed
			}
			liquidityNet, err := crossingDelta(store, crossed, req.Direction)
			if err != nil {
				return Result{}, err
			}
			market.Liquidity = applyLiquidityNet(market.Liquidity, liquidityNet)
			if err := store.CrossTick(crossed, runningFeeGrowth0, runningFeeGrowth1); err != nil {
				return Result{}, err
			}
			ticksCrossed++
		} else {
			market.CurrentTick = fxmath.TickFromSqrtPrice(market.SqrtPrice)
		}

		if step.Outcome == PartialByAmount {
			break
		}
	}

	if totalOut.Cmp(req.MinimumAmountOut) < 0 {
		return Result{}, fxerrors.ErrSlippageExceeded
	}

	return Result{
		AmountInUsed:   totalIn,
		AmountOut:      totalOut,
		FeePaid:        totalFee,
		SqrtPriceAfter: market.SqrtPrice,
		TickAfter:      market.CurrentTick,
		TicksCrossed:   ticksCrossed,
		StepsTaken:     steps,
		FeeGrowthDelta: feeGrowthDelta,
		LastOutcome:    lastOutcome,
	}, nil
}

func boundByLimit(direction Direction, target, limit *uint256.Int) *uint256.Int {
	switch direction {
	case ZeroForOne:
		if limit.Cmp(target) > 0 {
			return limit
		}
	case OneForZero:
		if limit.Cmp(target) < 0 {
			return limit
		}
	}
	return target
}

// crossingDelta returns the signed liquidity change applied when crossing
// tick in the given direction: the net value as stored if moving upward
// (price increasing, OneForZero), negated if moving downward.
func crossingDelta(store *ticks.Store, tick int32, direction Direction) (*big.Int, error) {
	t, err := store.GetTick(tick)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return new(big.Int), nil
	}
	delta := new(big.Int).Set(t.LiquidityNet)
	if direction == ZeroForOne {
		delta.Neg(delta)
	}
	return delta, nil
}

func applyLiquidityNet(liquidity *uint256.Int, delta *big.Int) *uint256.Int {
	cur := liquidity.ToBig()
	next := new(big.Int).Add(cur, delta)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	result, overflow := uint256.FromBig(next)
	if overflow {
		return liquidity
	}
	return result
}
