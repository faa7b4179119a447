package jit

import "math/big"

// Budget is the per-slot/per-market mutable state a swap's JIT pass reads
// and updates, standing in for the reference's JitBudget tracker.
type Budget struct {
	Envelope SafetyEnvelope
	Volume   *VolumeTracker
	Snapshot *PriceSnapshot
}

// Execute runs the full JIT decision sequence for one swap: entry guards,
// anchor, contrarian placement, safety sizing, and the floor re-check for
// asks. Returns a nil placement (not an error) whenever JIT declines to
// participate for a reason that isn't itself a fault — ambiguous
// direction, an unalignable range, or a final amount below the dust
// floor — since those are routine outcomes, not failures of the swap.
func Execute(ctx Context, market MarketView, oracle OracleView, budget *Budget) (*Placement, error) {
	if err := CheckEntryGuards(ctx, market, oracle); err != nil {
		return nil, err
	}

	anchorTick, err := CalculateAnchor(ctx, oracle, market)
	if err != nil {
		return nil, err
	}

	const spreadAdjustment = 0 // reserved for a future toxicity-driven signal
	placement, err := CalculateContrarianPlacement(ctx, anchorTick, spreadAdjustment, market)
	if err != nil {
		return nil, err
	}
	if placement == nil {
		return nil, nil
	}

	safeAmount, err := budget.Envelope.CalculateSafeAllowance()
	if err != nil {
		return nil, err
	}

	if placement.IsAsk && placement.LowerTick < market.FloorTick {
		placement.LowerTick = market.FloorTick
		placement.UpperTick = placement.LowerTick + RangeTicks
		minLowerBound := maxInt32(market.FloorTick, market.GlobalLowerTick)
		maxUpperBound := market.GlobalUpperTick
		if !alignRangeWithBounds(placement, ctx.CurrentTick, minLowerBound, maxUpperBound) {
			return nil, nil
		}
	}

	placement.LiquidityAmount = safeAmount
	if placement.LiquidityAmount.Cmp(big.NewInt(QMinForJit)) < 0 {
		return nil, nil
	}

	return placement, nil
}
