package swap

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"github.com/fluxfield/clmm/core/fxmath"
	"github.com/fluxfield/clmm/core/ticks"
)

func newMarket() *MarketState {
	return &MarketState{
		SqrtPrice:        fxmath.SqrtPriceFromTick(0),
		Liquidity:        uint256.NewInt(10_000_000_000_000),
		CurrentTick:      0,
		FeeBps:           30,
		GlobalLowerTick:  fxmath.MinTick,
		GlobalUpperTick:  fxmath.MaxTick,
		TickSpacing:      10,
		FeeGrowthGlobal0: new(big.Int),
		FeeGrowthGlobal1: new(big.Int),
	}
}

func TestExecuteSimpleSwapNoCrossings(t *testing.T) {
	market := newMarket()
	store := ticks.NewStore(10)

	req := Request{
		AmountIn:         uint256.NewInt(1_000_000),
		MinimumAmountOut: new(uint256.Int),
		Direction:        ZeroForOne,
		SqrtPriceLimit:   fxmath.MinSqrtPrice,
		MaxTicksCrossed:  256,
	}

	result, err := Execute(market, store, req)
	if err != nil {
		t.Fatal(err)
	}
	if result.TicksCrossed != 0 {
		t.Fatalf("expected no crossings, got %d", result.TicksCrossed)
	}
	if result.AmountInUsed.Cmp(req.AmountIn) != 0 {
		t.Fatalf("should consume all input when no bound reached: used %s, want %s", result.AmountInUsed, req.AmountIn)
	}
	if result.FeeGrowthDelta.Sign() <= 0 {
		t.Fatal("expected a non-zero fee growth accumulation")
	}
}

func TestExecuteCrossesInitializedTick(t *testing.T) {
	market := newMarket()
	store := ticks.NewStore(10)

	// place a lower-tick boundary at -100 so liquidity drops once the
	// price crosses below it, forcing a liquidity-net update. Moving the
	// full [-100, 0] range at liquidity=10^13 needs ~50.1B net input
	// (AmountDelta0 ceiling) plus the 30bps fee, so this amount comfortably
	// clears it rather than stopping short within the range.
	if _, err := store.UpdateLiquidity(-100, bigFromInt(5_000_000_000_000), false, 0, new(big.Int), new(big.Int)); err != nil {
		t.Fatal(err)
	}

	req := Request{
		AmountIn:         uint256.NewInt(60_000_000_000),
		MinimumAmountOut: new(uint256.Int),
		Direction:        ZeroForOne,
		SqrtPriceLimit:   fxmath.MinSqrtPrice,
		MaxTicksCrossed:  256,
	}

	result, err := Execute(market, store, req)
	if err != nil {
		t.Fatal(err)
	}
	if result.TicksCrossed == 0 {
		t.Fatal("expected at least one tick crossing for a large enough swap")
	}
	if market.Liquidity.Sign() < 0 {
		t.Fatal("liquidity must never go negative")
	}
}

// TestExecuteMatchesScenario2TickCrossing reproduces spec.md §8.4 scenario
// 2 exactly: an initialized tick at t=-10 with liquidity_net=+5e12, a swap
// sized to exhaust precisely the [-10, 0] range. Expects crossed_tick=-10,
// liquidity after=5e12, current_tick=-11 (ZeroForOne lands one tick below
// the crossed boundary).
func TestExecuteMatchesScenario2TickCrossing(t *testing.T) {
	market := newMarket()
	store := ticks.NewStore(10)

	if _, err := store.UpdateLiquidity(-10, bigFromInt(5_000_000_000_000), false, 0, new(big.Int), new(big.Int)); err != nil {
		t.Fatal(err)
	}

	sqrtAt0 := fxmath.SqrtPriceFromTick(0)
	sqrtAtMinus10 := fxmath.SqrtPriceFromTick(-10)
	netNeeded, err := fxmath.AmountDelta0(sqrtAtMinus10, sqrtAt0, market.Liquidity, false)
	if err != nil {
		t.Fatal(err)
	}
	headroom := new(uint256.Int).Mul(netNeeded, uint256.NewInt(2))
	grossNeeded, err := grossInForNet(netNeeded, market.FeeBps, headroom)
	if err != nil {
		t.Fatal(err)
	}

	req := Request{
		AmountIn:         grossNeeded,
		MinimumAmountOut: new(uint256.Int),
		Direction:        ZeroForOne,
		SqrtPriceLimit:   fxmath.MinSqrtPrice,
		MaxTicksCrossed:  256,
	}

	result, err := Execute(market, store, req)
	if err != nil {
		t.Fatal(err)
	}
	if result.TicksCrossed != 1 {
		t.Fatalf("expected exactly one tick crossing, got %d", result.TicksCrossed)
	}
	if market.Liquidity.Cmp(uint256.NewInt(5_000_000_000_000)) != 0 {
		t.Fatalf("liquidity after crossing = %s, want 5e12", market.Liquidity)
	}
	if market.CurrentTick != -11 {
		t.Fatalf("current_tick after crossing = %d, want -11", market.CurrentTick)
	}
}

func TestExecuteRejectsZeroAmount(t *testing.T) {
	market := newMarket()
	store := ticks.NewStore(10)
	req := Request{
		AmountIn:         new(uint256.Int),
		MinimumAmountOut: new(uint256.Int),
		Direction:        ZeroForOne,
		SqrtPriceLimit:   fxmath.MinSqrtPrice,
		MaxTicksCrossed:  256,
	}
	if _, err := Execute(market, store, req); err == nil {
		t.Fatal("expected error for zero amount in")
	}
}

func TestExecuteRejectsSlippage(t *testing.T) {
	market := newMarket()
	store := ticks.NewStore(10)
	req := Request{
		AmountIn:         uint256.NewInt(1_000_000),
		MinimumAmountOut: uint256.NewInt(1_000_000_000_000), // impossible to satisfy
		Direction:        ZeroForOne,
		SqrtPriceLimit:   fxmath.MinSqrtPrice,
		MaxTicksCrossed:  256,
	}
	if _, err := Execute(market, store, req); err == nil {
		t.Fatal("expected slippage error")
	}
}

func bigFromInt(v int64) *big.Int { return big.NewInt(v) }
