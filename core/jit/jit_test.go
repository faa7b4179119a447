package jit

import (
	"math/big"
	"testing"

	"github.com/fluxfield/clmm/core/fxmath"
)

type fakeOracle struct {
	initialized bool
	age         int64
	twap        int32
	err         error
}

func (f fakeOracle) Initialized() bool { return f.initialized }
func (f fakeOracle) Age(now int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.age, nil
}
func (f fakeOracle) TwapTick(now, secondsAgo int64, currentTick int32) (int32, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.twap, nil
}

func baseMarket() MarketView {
	return MarketView{
		IsPaused:        false,
		JitEnabled:      true,
		FloorTick:       fxmath.MinTick,
		GlobalLowerTick: fxmath.MinTick,
		GlobalUpperTick: fxmath.MaxTick,
	}
}

func TestCheckEntryGuardsPassesHappyPath(t *testing.T) {
	ctx := Context{
		CurrentTick:      0,
		CurrentSlot:      1000,
		CurrentTimestamp: 10_000,
		SwapAmountQuote:  big.NewInt(200_000),
	}
	oracle := fakeOracle{initialized: true, age: 5, twap: 0}
	if err := CheckEntryGuards(ctx, baseMarket(), oracle); err != nil {
		t.Fatalf("expected guards to pass, got %v", err)
	}
}

func TestCheckEntryGuardsRejectsPaused(t *testing.T) {
	ctx := Context{CurrentTick: 0, SwapAmountQuote: big.NewInt(200_000)}
	market := baseMarket()
	market.IsPaused = true
	oracle := fakeOracle{initialized: true, age: 5}
	if err := CheckEntryGuards(ctx, market, oracle); err == nil {
		t.Fatal("expected paused market to reject JIT")
	}
}

func TestCheckEntryGuardsRejectsStaleOracle(t *testing.T) {
	ctx := Context{CurrentTimestamp: 1000, SwapAmountQuote: big.NewInt(200_000)}
	oracle := fakeOracle{initialized: true, age: 400}
	if err := CheckEntryGuards(ctx, baseMarket(), oracle); err == nil {
		t.Fatal("expected stale oracle to reject JIT")
	}
}

func TestCheckEntryGuardsRejectsLargeDeviation(t *testing.T) {
	ctx := Context{CurrentTick: 1000, CurrentTimestamp: 1000, SwapAmountQuote: big.NewInt(200_000)}
	oracle := fakeOracle{initialized: true, age: 5, twap: 0} // deviation 1000 > 500
	if err := CheckEntryGuards(ctx, baseMarket(), oracle); err == nil {
		t.Fatal("expected large deviation to reject JIT")
	}
}

func TestCheckEntryGuardsRejectsDustSize(t *testing.T) {
	ctx := Context{CurrentTimestamp: 1000, SwapAmountQuote: big.NewInt(1)}
	oracle := fakeOracle{initialized: true, age: 5}
	if err := CheckEntryGuards(ctx, baseMarket(), oracle); err == nil {
		t.Fatal("expected dust-size swap to reject JIT")
	}
}

func TestCheckEntryGuardsRejectsCooldown(t *testing.T) {
	ctx := Context{CurrentSlot: 5, CurrentTimestamp: 1000, SwapAmountQuote: big.NewInt(200_000)}
	market := baseMarket()
	market.JitLastHeavyUsageSlot = 4
	oracle := fakeOracle{initialized: true, age: 5}
	if err := CheckEntryGuards(ctx, market, oracle); err == nil {
		t.Fatal("expected active cooldown to reject JIT")
	}
}

func TestCalculateAnchorRespectsFloor(t *testing.T) {
	ctx := Context{CurrentTick: 0, CurrentTimestamp: 1000}
	market := baseMarket()
	market.FloorTick = 50
	oracle := fakeOracle{initialized: true, twap: -10}

	anchor, err := CalculateAnchor(ctx, oracle, market)
	if err != nil {
		t.Fatal(err)
	}
	if anchor < market.FloorTick {
		t.Fatalf("anchor %d must never be below floor %d", anchor, market.FloorTick)
	}
}

func TestCalculateAnchorClampsToDeviationBound(t *testing.T) {
	ctx := Context{CurrentTick: 0, CurrentTimestamp: 1000}
	market := baseMarket()
	oracle := fakeOracle{initialized: true, twap: 10_000}

	anchor, err := CalculateAnchor(ctx, oracle, market)
	if err != nil {
		t.Fatal(err)
	}
	if anchor > ctx.CurrentTick+DevClampTicks {
		t.Fatalf("anchor %d exceeds dev-clamp bound", anchor)
	}
}

func TestCalculateContrarianPlacementDeclinesOnAmbiguousLimit(t *testing.T) {
	ctx := Context{
		CurrentTick:    0,
		SqrtPriceLimit: fxmath.MinSqrtPrice, // not strictly inside bounds
	}
	placement, err := CalculateContrarianPlacement(ctx, 0, 0, baseMarket())
	if err != nil {
		t.Fatal(err)
	}
	if placement != nil {
		t.Fatal("expected nil placement for an ambiguous price limit")
	}
}

func TestCalculateContrarianPlacementDeclinesOnCloseLimit(t *testing.T) {
	ctx := Context{
		CurrentTick:    0,
		SqrtPriceLimit: fxmath.SqrtPriceFromTick(1), // within L_MIN_TICKS
		IsToken0To1:    true,
	}
	placement, err := CalculateContrarianPlacement(ctx, 0, 0, baseMarket())
	if err != nil {
		t.Fatal(err)
	}
	if placement != nil {
		t.Fatal("expected nil placement when limit is too close to current price")
	}
}

func TestCalculateContrarianPlacementBuyProducesAsk(t *testing.T) {
	ctx := Context{
		CurrentTick:    0,
		CurrentSlot:    0,
		SqrtPriceLimit: fxmath.SqrtPriceFromTick(-50),
		IsToken0To1:    true, // taker sells token0 for token1, limit below current => buy
	}
	placement, err := CalculateContrarianPlacement(ctx, 0, 0, baseMarket())
	if err != nil {
		t.Fatal(err)
	}
	if placement == nil {
		t.Fatal("expected a valid placement")
	}
	if !placement.IsAsk {
		t.Fatal("taker buying token1 should be met with a JIT ask")
	}
	if ctx.CurrentTick < placement.LowerTick || ctx.CurrentTick > placement.UpperTick {
		t.Fatalf("current tick must lie inside the aligned placement [%d,%d]", placement.LowerTick, placement.UpperTick)
	}
}

func TestAlignRangeWithBoundsShiftsIntoView(t *testing.T) {
	p := &Placement{LowerTick: 100, UpperTick: 101}
	ok := alignRangeWithBounds(p, 0, fxmath.MinTick, fxmath.MaxTick)
	if !ok {
		t.Fatal("expected alignment to succeed with wide global bounds")
	}
	if 0 < p.LowerTick || 0 > p.UpperTick {
		t.Fatalf("current tick 0 must fall inside realigned range [%d,%d]", p.LowerTick, p.UpperTick)
	}
}

func TestAlignRangeWithBoundsDeclinesWhenBoundsExcludeCurrent(t *testing.T) {
	p := &Placement{LowerTick: 100, UpperTick: 101}
	ok := alignRangeWithBounds(p, -1000, 50, 200)
	if ok {
		t.Fatal("expected decline when current tick is outside the allowed bound interval")
	}
}

func TestConcentrationMultiplierTable(t *testing.T) {
	placement := Placement{LowerTick: -10, UpperTick: 10}
	cases := []struct {
		target int32
		want   uint32
	}{
		{0, 10},
		{1, 5},
		{-1, 5},
		{2, 2},
		{-2, 2},
		{5, 1},
		{11, 0},
		{-11, 0},
	}
	for _, c := range cases {
		got := ConcentrationMultiplier(0, c.target, placement)
		if got != c.want {
			t.Errorf("ConcentrationMultiplier(0, %d) = %d, want %d", c.target, got, c.want)
		}
	}
}

func TestSafetyEnvelopeCircuitBreaker(t *testing.T) {
	env := DefaultSafetyEnvelope(big.NewInt(1_000_000), big.NewInt(1_000_000))
	env.HourlyPriceMoveBps = env.MaxHourlyMoveBps + 1
	if _, err := env.CalculateSafeAllowance(); err == nil {
		t.Fatal("expected circuit breaker to trip")
	}
}

func TestSafetyEnvelopeRespectsLowestCap(t *testing.T) {
	env := DefaultSafetyEnvelope(big.NewInt(1_000_000), big.NewInt(1_000_000))
	env.UsedThisSlot = big.NewInt(999_999_999) // exhaust the per-slot cap
	allowance, err := env.CalculateSafeAllowance()
	if err != nil {
		t.Fatal(err)
	}
	if allowance.Sign() != 0 {
		t.Fatalf("allowance = %s, want 0 once the per-slot cap is exhausted", allowance)
	}
}
