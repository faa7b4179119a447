package ticks

import (
	"math/big"
	"testing"
)

func TestAlignedStartIndexEuclideanFloor(t *testing.T) {
	cases := []struct {
		tick    int32
		spacing uint16
		want    int32
	}{
		{tick: 0, spacing: 10, want: 0},
		{tick: 639, spacing: 10, want: 0},
		{tick: 640, spacing: 10, want: 640},
		{tick: -1, spacing: 10, want: -640},
		{tick: -640, spacing: 10, want: -640},
		{tick: -641, spacing: 10, want: -1280},
	}
	for _, c := range cases {
		got := AlignedStartIndex(c.tick, c.spacing)
		if got != c.want {
			t.Errorf("AlignedStartIndex(%d, %d) = %d, want %d", c.tick, c.spacing, got, c.want)
		}
	}
}

func TestGetOrCreateTickAndLiquidityUpdate(t *testing.T) {
	s := NewStore(10)

	flipped, err := s.UpdateLiquidity(100, big.NewInt(1000), false, 0, big.NewInt(7), big.NewInt(9))
	if err != nil {
		t.Fatal(err)
	}
	if !flipped {
		t.Fatal("expected tick to flip to initialized")
	}

	tk, err := s.GetTick(100)
	if err != nil {
		t.Fatal(err)
	}
	if tk.LiquidityNet.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("liquidity net = %s, want 1000", tk.LiquidityNet)
	}
	if tk.FeeGrowthOutside0.Sign() != 0 || tk.FeeGrowthOutside1.Sign() != 0 {
		t.Fatalf("tick initialized above current price should start with zero fee growth outside, got %s/%s", tk.FeeGrowthOutside0, tk.FeeGrowthOutside1)
	}

	flipped, err = s.UpdateLiquidity(100, big.NewInt(1000), true, 0, big.NewInt(7), big.NewInt(9))
	if err != nil {
		t.Fatal(err)
	}
	if flipped {
		t.Fatal("should still be initialized (gross not zero)")
	}
	if tk.LiquidityNet.Sign() != 0 {
		t.Fatalf("liquidity net should net to zero for upper-side equal delta, got %s", tk.LiquidityNet)
	}
}

func TestNextInitializedTickForward(t *testing.T) {
	s := NewStore(10)
	if _, err := s.UpdateLiquidity(500, big.NewInt(5), false, 0, big.NewInt(0), big.NewInt(0)); err != nil {
		t.Fatal(err)
	}
	tick, ok := s.NextInitializedTick(0, false)
	if !ok {
		t.Fatal("expected to find initialized tick")
	}
	if tick != 500 {
		t.Fatalf("next initialized tick = %d, want 500", tick)
	}
}

func TestNextInitializedTickBackward(t *testing.T) {
	s := NewStore(10)
	if _, err := s.UpdateLiquidity(-500, big.NewInt(5), false, 0, big.NewInt(0), big.NewInt(0)); err != nil {
		t.Fatal(err)
	}
	tick, ok := s.NextInitializedTick(0, true)
	if !ok {
		t.Fatal("expected to find initialized tick")
	}
	if tick != -500 {
		t.Fatalf("next initialized tick = %d, want -500", tick)
	}
}

func TestNextInitializedTickBoundedScan(t *testing.T) {
	s := NewStore(10)
	// no initialized ticks anywhere nearby; scan should terminate, not hang.
	_, ok := s.NextInitializedTick(0, false)
	if ok {
		t.Fatal("expected no initialized tick to be found")
	}
}

func TestUpdateLiquidityUnderflow(t *testing.T) {
	s := NewStore(10)
	if _, err := s.UpdateLiquidity(10, big.NewInt(-5), false, 0, big.NewInt(0), big.NewInt(0)); err == nil {
		t.Fatal("expected underflow error when gross liquidity goes negative")
	}
}

func TestUpdateLiquidityInitializesFeeGrowthOutsideAtOrBelowCurrentTick(t *testing.T) {
	s := NewStore(10)
	if _, err := s.UpdateLiquidity(-50, big.NewInt(100), false, 0, big.NewInt(42), big.NewInt(99)); err != nil {
		t.Fatal(err)
	}
	tk, err := s.GetTick(-50)
	if err != nil {
		t.Fatal(err)
	}
	if tk.FeeGrowthOutside0.Cmp(big.NewInt(42)) != 0 || tk.FeeGrowthOutside1.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("tick at or below current price should seed with the full global accumulator, got %s/%s", tk.FeeGrowthOutside0, tk.FeeGrowthOutside1)
	}
}

func TestCrossTickFlipsFeeGrowthOutside(t *testing.T) {
	s := NewStore(10)
	if _, err := s.UpdateLiquidity(-50, big.NewInt(100), false, 0, big.NewInt(10), big.NewInt(20)); err != nil {
		t.Fatal(err)
	}
	if err := s.CrossTick(-50, big.NewInt(30), big.NewInt(50)); err != nil {
		t.Fatal(err)
	}
	tk, err := s.GetTick(-50)
	if err != nil {
		t.Fatal(err)
	}
	if tk.FeeGrowthOutside0.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("fee_growth_outside_0 after crossing = %s, want 20", tk.FeeGrowthOutside0)
	}
	if tk.FeeGrowthOutside1.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("fee_growth_outside_1 after crossing = %s, want 30", tk.FeeGrowthOutside1)
	}
}

// sumLiquidityNet walks every loaded tick and sums LiquidityNet, used to
// check the range-position invariant that every position's open contributes
// +L at its lower tick and -L at its upper tick, so the net always cancels
// out across a fully closed set of positions.
func sumLiquidityNet(s *Store) *big.Int {
	sum := new(big.Int)
	for _, arr := range s.arrays {
		for _, t := range arr.Ticks {
			if t == nil {
				continue
			}
			sum.Add(sum, t.LiquidityNet)
		}
	}
	return sum
}

func TestLiquidityNetSumsToZeroAfterOpenAndCloseSequence(t *testing.T) {
	s := NewStore(10)
	type position struct {
		lower, upper int32
		amount       *big.Int
	}
	positions := []position{
		{lower: -100, upper: 100, amount: big.NewInt(500)},
		{lower: -50, upper: 200, amount: big.NewInt(250)},
		{lower: 0, upper: 50, amount: big.NewInt(1000)},
	}

	for _, p := range positions {
		if _, err := s.UpdateLiquidity(p.lower, p.amount, false, 0, big.NewInt(0), big.NewInt(0)); err != nil {
			t.Fatalf("open lower tick: %v", err)
		}
		if _, err := s.UpdateLiquidity(p.upper, p.amount, true, 0, big.NewInt(0), big.NewInt(0)); err != nil {
			t.Fatalf("open upper tick: %v", err)
		}
	}
	if got := sumLiquidityNet(s); got.Sign() != 0 {
		t.Fatalf("expected liquidity_net to sum to zero with positions still open, got %s", got.String())
	}

	for _, p := range positions {
		if _, err := s.UpdateLiquidity(p.lower, p.amount, true, 0, big.NewInt(0), big.NewInt(0)); err != nil {
			t.Fatalf("close lower tick: %v", err)
		}
		if _, err := s.UpdateLiquidity(p.upper, p.amount, false, 0, big.NewInt(0), big.NewInt(0)); err != nil {
			t.Fatalf("close upper tick: %v", err)
		}
	}
	if got := sumLiquidityNet(s); got.Sign() != 0 {
		t.Fatalf("expected liquidity_net to sum to zero after closing every position, got %s", got.String())
	}
}
