// Package jit implements the JIT virtual concentrated liquidity layer:
// entry guards, GTWAP-anchored contrarian placement, a safety envelope
// bounding how much virtual liquidity any one swap may draw, and the
// concentration multiplier that shapes it near the current price. Ported
// from the reference protocol's jit_core.rs.
package jit

import (
	"math/big"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/core/fxmath"
	"github.com/holiman/uint256"
)

// Tuning constants, carried over from the reference implementation.
const (
	DevClampTicks   int32  = 100 // max anchor deviation from current price
	BaseSpreadTicks int32  = 1
	MaxSpreadTicks  int32  = 4
	RangeTicks      int32  = 1
	LMinTicks       int32  = 5 // min |limit - current| for unambiguous direction
	QMinForJit             = 100_000
	MaxDevTicks     int32  = 500 // max |current - gtwap| before JIT stands down
	CooldownSlots   uint64 = 2
)

// Context captures the swap parameters JIT needs to decide whether and
// how to participate, mirroring the reference JitContext.
type Context struct {
	CurrentTick            int32
	CurrentSlot            uint64
	CurrentTimestamp       int64
	SqrtPriceLimit         *uint256.Int
	AmountSpecifiedIsInput bool
	IsToken0To1            bool
	SwapAmountQuote        *big.Int
}

// MarketView is the subset of market/buffer/oracle state the guards and
// placement logic read.
type MarketView struct {
	IsPaused              bool
	JitEnabled            bool
	FloorTick             int32
	GlobalLowerTick       int32
	GlobalUpperTick       int32
	JitLastHeavyUsageSlot uint64
}

// OracleView is the minimal oracle surface JIT depends on.
type OracleView interface {
	Initialized() bool
	TwapTick(now int64, secondsAgo int64, currentTick int32) (int32, error)
	Age(now int64) (int64, error)
}

// Placement describes where and (eventually) how much virtual liquidity
// to provide.
type Placement struct {
	LiquidityAmount *big.Int
	LowerTick       int32
	UpperTick       int32
	IsAsk           bool
	AnchorTick      int32
}

// CheckEntryGuards validates every precondition required before JIT may
// participate in a swap, in the same order as the reference guard chain
// so the first violated guard is always the one reported.
func CheckEntryGuards(ctx Context, market MarketView, oracle OracleView) error {
	if market.IsPaused {
		return fxerrors.ErrJitPaused
	}
	if !oracle.Initialized() {
		return fxerrors.ErrJitOracleUnready
	}
	age, err := oracle.Age(ctx.CurrentTimestamp)
	if err != nil {
		return fxerrors.ErrJitOracleUnready
	}
	if age >= 300 {
		return fxerrors.ErrJitOracleUnready
	}

	gtwapTick, err := oracle.TwapTick(ctx.CurrentTimestamp, 60, ctx.CurrentTick)
	if err != nil {
		return fxerrors.ErrJitOracleUnready
	}
	deviation := ctx.CurrentTick - gtwapTick
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > MaxDevTicks {
		return fxerrors.ErrJitDeviationTooHigh
	}

	if ctx.CurrentSlot < market.JitLastHeavyUsageSlot+CooldownSlots {
		return fxerrors.ErrJitCooldownActive
	}

	if ctx.SwapAmountQuote == nil || ctx.SwapAmountQuote.Cmp(big.NewInt(QMinForJit)) < 0 {
		return fxerrors.ErrJitSizeTooSmall
	}

	if !market.JitEnabled {
		return fxerrors.ErrJitDisabled
	}

	return nil
}

// CalculateAnchor computes the GTWAP-and-floor-anchored reference tick
// JIT places liquidity around: max(gtwap, floor), clamped to within
// DevClampTicks of the current price, and never below the floor.
func CalculateAnchor(ctx Context, oracle OracleView, market MarketView) (int32, error) {
	gtwapTick := ctx.CurrentTick
	if oracle.Initialized() {
		t, err := oracle.TwapTick(ctx.CurrentTimestamp, 60, ctx.CurrentTick)
		if err != nil {
			return 0, err
		}
		gtwapTick = t
	}

	anchor := gtwapTick
	if market.FloorTick > anchor {
		anchor = market.FloorTick
	}

	clamped := anchor
	if lo := ctx.CurrentTick - DevClampTicks; clamped < lo {
		clamped = lo
	}
	if hi := ctx.CurrentTick + DevClampTicks; clamped > hi {
		clamped = hi
	}
	if clamped < market.FloorTick {
		clamped = market.FloorTick
	}
	return clamped, nil
}

// CalculateContrarianPlacement determines the direction opposite the
// taker's and a tick range around anchorTick to place it in, or nil if
// the swap's price limit doesn't reveal unambiguous intent or no viable
// range survives bound alignment.
func CalculateContrarianPlacement(ctx Context, anchorTick int32, spreadAdjustment int32, market MarketView) (*Placement, error) {
	currentSqrtPrice := fxmath.SqrtPriceFromTick(ctx.CurrentTick)

	isMeaningfulLimit := ctx.SqrtPriceLimit.Cmp(fxmath.MinSqrtPrice) > 0 && ctx.SqrtPriceLimit.Cmp(fxmath.MaxSqrtPrice) < 0
	if !isMeaningfulLimit {
		return nil, nil
	}

	limitBelowCurrent := ctx.SqrtPriceLimit.Cmp(currentSqrtPrice) < 0
	limitAboveCurrent := ctx.SqrtPriceLimit.Cmp(currentSqrtPrice) > 0
	isBuy := (ctx.IsToken0To1 && limitBelowCurrent) || (!ctx.IsToken0To1 && limitAboveCurrent)

	limitTick := fxmath.TickFromSqrtPrice(ctx.SqrtPriceLimit)
	dist := limitTick - ctx.CurrentTick
	if dist < 0 {
		dist = -dist
	}
	if dist < LMinTicks {
		return nil, nil
	}

	finalSpread := clampInt32(BaseSpreadTicks+spreadAdjustment, 0, MaxSpreadTicks)
	edgeOffset := int32(ctx.CurrentSlot & 1)

	var placement Placement
	if isBuy {
		placement = Placement{
			LowerTick: anchorTick + finalSpread + edgeOffset,
			UpperTick: anchorTick + finalSpread + edgeOffset + RangeTicks,
			IsAsk:     true,
		}
	} else {
		placement = Placement{
			LowerTick: anchorTick - finalSpread - RangeTicks,
			UpperTick: anchorTick - finalSpread,
			IsAsk:     false,
		}
	}
	placement.AnchorTick = anchorTick

	minLowerBound := market.GlobalLowerTick
	if placement.IsAsk {
		minLowerBound = maxInt32(market.FloorTick, market.GlobalLowerTick)
	}
	maxUpperBound := market.GlobalUpperTick

	if !alignRangeWithBounds(&placement, ctx.CurrentTick, minLowerBound, maxUpperBound) {
		return nil, nil
	}

	return &placement, nil
}

// alignRangeWithBounds shifts [lower, upper] minimally so current_tick
// falls inside it, while respecting [minLowerBound, maxUpperBound],
// shrinking the width if the bound interval itself is narrower than the
// requested range. Returns false if no placement containing current_tick
// survives the bound constraints.
func alignRangeWithBounds(placement *Placement, currentTick, minLowerBound, maxUpperBound int32) bool {
	width := placement.UpperTick - placement.LowerTick
	if width < 0 {
		width = 0
	}
	maxWidth := int32(0)
	if maxUpperBound >= minLowerBound {
		maxWidth = maxUpperBound - minLowerBound
	}
	if width > maxWidth {
		width = maxWidth
	}

	lower := placement.LowerTick
	upper := lower + width

	if currentTick < lower {
		shift := lower - currentTick
		availableLeft := int32(0)
		if lower > minLowerBound {
			availableLeft = lower - minLowerBound
		}
		allowedShift := minInt32(availableLeft, shift)
		lower -= allowedShift
		upper = lower + width
		if currentTick < lower {
			lower = currentTick
			upper = lower + width
		}
	} else if currentTick > upper {
		shift := currentTick - upper
		availableRight := int32(0)
		if maxUpperBound > upper {
			availableRight = maxUpperBound - upper
		}
		allowedShift := minInt32(availableRight, shift)
		upper += allowedShift
		lower = upper - width
		if currentTick > upper {
			upper = currentTick
			lower = upper - width
		}
	}

	if lower < minLowerBound {
		lower = minLowerBound
		upper = lower + width
	}
	if upper > maxUpperBound {
		upper = maxUpperBound
		lower = upper - width
	}

	if currentTick < lower {
		lower = currentTick
		upper = lower + width
	} else if currentTick > upper {
		upper = currentTick
		lower = upper - width
	}

	if lower < minLowerBound {
		lower = minLowerBound
	}
	if upper > maxUpperBound {
		upper = maxUpperBound
	}
	if lower > upper {
		lower = upper
	}

	placement.LowerTick = lower
	placement.UpperTick = upper

	return currentTick >= lower && currentTick <= upper
}

func clampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
