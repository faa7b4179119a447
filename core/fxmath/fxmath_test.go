package fxmath

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestTickZeroMapsToUnity(t *testing.T) {
	sqrtPrice := SqrtPriceFromTick(0)
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	if sqrtPrice.Cmp(want) != 0 {
		t.Fatalf("tick 0 sqrt price = %s, want %s", sqrtPrice, want)
	}
}

func TestTickRoundTripWithinOneTick(t *testing.T) {
	for _, tick := range []int32{0, 1, -1, 10, -10, 100, -100, 10_000, -10_000, 200_000, -200_000} {
		sqrtPrice := SqrtPriceFromTick(tick)
		recovered := TickFromSqrtPrice(sqrtPrice)
		diff := tick - recovered
		if diff < -1 || diff > 1 {
			t.Errorf("tick %d round-tripped to %d (diff %d)", tick, recovered, diff)
		}
	}
}

func TestSqrtPriceFromTickMonotone(t *testing.T) {
	prev := SqrtPriceFromTick(MinTick)
	for tick := MinTick + 1000; tick <= MaxTick; tick += 1000 {
		cur := SqrtPriceFromTick(tick)
		if cur.Cmp(prev) <= 0 {
			t.Fatalf("sqrt price not increasing at tick %d", tick)
		}
		prev = cur
	}
}

func TestSqrtPriceFromTickSaturates(t *testing.T) {
	if SqrtPriceFromTick(MinTick-1000).Cmp(MinSqrtPrice) != 0 {
		t.Fatal("expected saturation below MinTick")
	}
	if SqrtPriceFromTick(MaxTick+1000).Cmp(MaxSqrtPrice) != 0 {
		t.Fatal("expected saturation above MaxTick")
	}
}

func TestAmountDelta0RoundingDirection(t *testing.T) {
	sqrtA := SqrtPriceFromTick(-10)
	sqrtB := SqrtPriceFromTick(10)
	liquidity := uint256.NewInt(1_000_000_000_000)

	down, err := AmountDelta0(sqrtA, sqrtB, liquidity, false)
	if err != nil {
		t.Fatal(err)
	}
	up, err := AmountDelta0(sqrtA, sqrtB, liquidity, true)
	if err != nil {
		t.Fatal(err)
	}
	if up.Cmp(down) < 0 {
		t.Fatalf("round-up amount %s should be >= round-down amount %s", up, down)
	}
}

func TestAmountDelta1Symmetry(t *testing.T) {
	sqrtA := SqrtPriceFromTick(-500)
	sqrtB := SqrtPriceFromTick(500)
	liquidity := uint256.NewInt(42_000_000)

	a, err := AmountDelta1(sqrtA, sqrtB, liquidity, false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := AmountDelta1(sqrtB, sqrtA, liquidity, false)
	if err != nil {
		t.Fatal(err)
	}
	if a.Cmp(b) != 0 {
		t.Fatalf("amount delta should not depend on argument order: %s vs %s", a, b)
	}
}

func TestNextSqrtPriceFromInputAMovesPriceDown(t *testing.T) {
	start := SqrtPriceFromTick(0)
	liquidity := uint256.NewInt(1_000_000_000_000)
	amountIn := uint256.NewInt(1_000_000)

	next, err := NextSqrtPriceFromInputA(start, liquidity, amountIn)
	if err != nil {
		t.Fatal(err)
	}
	if next.Cmp(start) >= 0 {
		t.Fatalf("adding token0 should decrease sqrt price: start=%s next=%s", start, next)
	}
}

func TestNextSqrtPriceFromInputBMovesPriceUp(t *testing.T) {
	start := SqrtPriceFromTick(0)
	liquidity := uint256.NewInt(1_000_000_000_000)
	amountIn := uint256.NewInt(1_000_000)

	next, err := NextSqrtPriceFromInputB(start, liquidity, amountIn)
	if err != nil {
		t.Fatal(err)
	}
	if next.Cmp(start) <= 0 {
		t.Fatalf("adding token1 should increase sqrt price: start=%s next=%s", start, next)
	}
}

func TestDivCeilRoundsUpOnRemainder(t *testing.T) {
	a := uint256.NewInt(1)
	b := uint256.NewInt(3)
	got, err := DivCeil64(a, b)
	if err != nil {
		t.Fatal(err)
	}
	floor, err := DivFloor64(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(floor) <= 0 {
		t.Fatalf("ceil division %s should exceed floor division %s when remainder is non-zero", got, floor)
	}
}

func TestDivByZero(t *testing.T) {
	if _, err := DivCeil64(uint256.NewInt(1), uint256.NewInt(0)); err == nil {
		t.Fatal("expected division by zero error")
	}
}
