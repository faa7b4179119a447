// Package swap implements the concentrated-liquidity swap stepper (one
// bounded price segment) and the executor that drives it across tick
// crossings, ported from the bound-clamping, fee-on-used-amount algorithm
// in the reference engine.
package swap

import (
	"math/big"

	"github.com/holiman/uint256"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/core/fxmath"
)

// Direction of a swap: ZeroForOne decreases price, OneForZero increases it.
type Direction int

const (
	ZeroForOne Direction = iota
	OneForZero
)

// Outcome classifies why a step stopped.
type Outcome int

const (
	ReachedTarget Outcome = iota
	PartialAtBound
	PartialByAmount
)

// MaxSwapSteps and MaxTickArraysPerSwap bound a single swap instruction's
// compute cost.
const (
	MaxSwapSteps         = 256
	MaxTickArraysPerSwap = 10
)

const basisPointsDenominator = 10_000

// Context bundles the parameters a step needs, mirroring the reference
// SwapContext.
type Context struct {
	Direction       Direction
	SqrtPrice       *uint256.Int
	Liquidity       *uint256.Int
	FeeBps          uint16
	GlobalLowerTick int32
	GlobalUpperTick int32
	TickSpacing     uint16
}

// StepResult is the outcome of a single bounded price segment.
type StepResult struct {
	GrossInUsed *uint256.Int
	NetInUsed   *uint256.Int
	Out         *uint256.Int
	Fee         *uint256.Int
	SqrtNext    *uint256.Int
	CrossedTick *int32
	Outcome     Outcome
}

// ComputeStep advances ctx.SqrtPrice toward targetSqrtPrice by at most
// amountRemaining (gross, before fee), stopping at whichever comes first:
// the target price, a global tick bound, or amountRemaining being spent.
//
// Whether the target is a global bound is decided from targetTick first;
// when it is, the target price is clamped to that bound, and the maximum
// input (rounded up) and the output at the target (rounded down) are then
// computed once, against the clamped target, so amountRemaining is always
// compared with the amount needed to reach the price the step can
// actually stop at.
func ComputeStep(ctx Context, targetSqrtPrice *uint256.Int, targetTick *int32, amountRemaining *uint256.Int) (StepResult, error) {
	if ctx.SqrtPrice.IsZero() || targetSqrtPrice.IsZero() {
		return StepResult{}, fxerrors.ErrPriceLimitInvalid
	}
	if ctx.Liquidity.IsZero() {
		return StepResult{}, fxerrors.ErrNoLiquidity
	}

	switch ctx.Direction {
	case ZeroForOne:
		if targetSqrtPrice.Cmp(ctx.SqrtPrice) >= 0 {
			return StepResult{}, fxerrors.ErrPriceLimitInvalid
		}
	case OneForZero:
		if targetSqrtPrice.Cmp(ctx.SqrtPrice) <= 0 {
			return StepResult{}, fxerrors.ErrPriceLimitInvalid
		}
	}

	atBound := false
	if targetTick != nil {
		switch ctx.Direction {
		case ZeroForOne:
			atBound = *targetTick <= ctx.GlobalLowerTick
		case OneForZero:
			atBound = *targetTick >= ctx.GlobalUpperTick
		}
	}

	clampedTarget := targetSqrtPrice
	if atBound {
		var boundSqrt *uint256.Int
		switch ctx.Direction {
		case ZeroForOne:
			boundSqrt = fxmath.SqrtPriceFromTick(ctx.GlobalLowerTick)
			if boundSqrt.Cmp(targetSqrtPrice) > 0 {
				clampedTarget = boundSqrt
			}
		case OneForZero:
			boundSqrt = fxmath.SqrtPriceFromTick(ctx.GlobalUpperTick)
			if boundSqrt.Cmp(targetSqrtPrice) < 0 {
				clampedTarget = boundSqrt
			}
		}
	}

	maxAmountIn, amountOutAtTarget, err := amountsToTarget(ctx, clampedTarget)
	if err != nil {
		return StepResult{}, err
	}

	var (
		grossIn     *uint256.Int
		fee         *uint256.Int
		newSqrtPrice *uint256.Int
		out         *uint256.Int
		outcome     Outcome
		crossedTick *int32
	)

	if amountRemaining.Cmp(maxAmountIn) > 0 {
		grossIn, err = grossInForNet(maxAmountIn, ctx.FeeBps, amountRemaining)
		if err != nil {
			return StepResult{}, err
		}
		fee = new(uint256.Int).Sub(grossIn, maxAmountIn)
		if fee.Sign() < 0 {
			fee = new(uint256.Int)
		}
		newSqrtPrice = clampedTarget
		out = amountOutAtTarget
		outcome = ReachedTarget
		if !atBound {
			crossedTick = targetTick
		}
	} else {
		fee, err = feeCeil(amountRemaining, ctx.FeeBps)
		if err != nil {
			return StepResult{}, err
		}
		netAmount := new(uint256.Int).Sub(amountRemaining, fee)

		switch ctx.Direction {
		case ZeroForOne:
			newSqrtPrice, err = fxmath.NextSqrtPriceFromInputA(ctx.SqrtPrice, ctx.Liquidity, netAmount)
		case OneForZero:
			newSqrtPrice, err = fxmath.NextSqrtPriceFromInputB(ctx.SqrtPrice, ctx.Liquidity, netAmount)
		}
		if err != nil {
			return StepResult{}, err
		}

		switch ctx.Direction {
		case ZeroForOne:
			out, err = fxmath.AmountDelta1(newSqrtPrice, ctx.SqrtPrice, ctx.Liquidity, false)
		case OneForZero:
			out, err = fxmath.AmountDelta0(ctx.SqrtPrice, newSqrtPrice, ctx.Liquidity, false)
		}
		if err != nil {
			return StepResult{}, err
		}

		grossIn = new(uint256.Int).Set(amountRemaining)
		outcome = PartialByAmount
	}

	if outcome == ReachedTarget && atBound {
		outcome = PartialAtBound
	}

	netIn := new(uint256.Int).Sub(grossIn, fee)
	return StepResult{
		GrossInUsed: grossIn,
		NetInUsed:   netIn,
		Out:         out,
		Fee:         fee,
		SqrtNext:    newSqrtPrice,
		CrossedTick: crossedTick,
		Outcome:     outcome,
	}, nil
}

func amountsToTarget(ctx Context, target *uint256.Int) (maxIn, amountOut *uint256.Int, err error) {
	switch ctx.Direction {
	case ZeroForOne:
		maxIn, err = fxmath.AmountDelta0(target, ctx.SqrtPrice, ctx.Liquidity, true)
		if err != nil {
			return nil, nil, err
		}
		amountOut, err = fxmath.AmountDelta1(target, ctx.SqrtPrice, ctx.Liquidity, false)
		if err != nil {
			return nil, nil, err
		}
	case OneForZero:
		maxIn, err = fxmath.AmountDelta1(ctx.SqrtPrice, target, ctx.Liquidity, true)
		if err != nil {
			return nil, nil, err
		}
		amountOut, err = fxmath.AmountDelta0(ctx.SqrtPrice, target, ctx.Liquidity, false)
		if err != nil {
			return nil, nil, err
		}
	}
	return maxIn, amountOut, nil
}

// grossInForNet computes ceil(net * 10000 / (10000 - feeBps)), clamped to
// amountRemaining, so the caller never pays more gross input than it has.
func grossInForNet(net *uint256.Int, feeBps uint16, amountRemaining *uint256.Int) (*uint256.Int, error) {
	if feeBps == 0 {
		return new(uint256.Int).Set(net), nil
	}
	denominator := basisPointsDenominator - int(feeBps)
	if denominator <= 0 {
		return nil, fxerrors.ErrOverflow
	}
	numerator := new(big.Int).Mul(net.ToBig(), big.NewInt(basisPointsDenominator))
	denom := big.NewInt(int64(denominator))
	q, r := new(big.Int).QuoRem(numerator, denom, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	gross, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fxerrors.ErrOverflow
	}
	if gross.Cmp(amountRemaining) > 0 {
		gross = amountRemaining
	}
	return gross, nil
}

// feeCeil computes the fee on the full amount, rounded up so a non-zero
// fee rate never yields a zero fee on a non-zero amount — the minimum-fee
// invariant.
func feeCeil(amount *uint256.Int, feeBps uint16) (*uint256.Int, error) {
	if feeBps == 0 {
		return new(uint256.Int), nil
	}
	numerator := new(big.Int).Mul(amount.ToBig(), big.NewInt(int64(feeBps)))
	q, r := new(big.Int).QuoRem(numerator, big.NewInt(basisPointsDenominator), new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	fee, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fxerrors.ErrOverflow
	}
	return fee, nil
}

// UpdateFeeGrowthSegment computes the fee-growth-per-liquidity increment
// for one swap segment. Kept as its own function, as in the reference
// engine, because it must be evaluated with the liquidity value active
// immediately before a tick crossing — folding it into the executor loop
// would make that ordering easy to get wrong.
func UpdateFeeGrowthSegment(feeAmount *uint256.Int, liquidityBeforeStep *uint256.Int) (*uint256.Int, error) {
	if liquidityBeforeStep.IsZero() {
		return new(uint256.Int), nil
	}
	return fxmath.DivFloor64(feeAmount, liquidityBeforeStep)
}
