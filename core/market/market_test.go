package market

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"github.com/fluxfield/clmm/core/fxmath"
	"github.com/fluxfield/clmm/core/oracle"
	"github.com/fluxfield/clmm/core/swap"
	"github.com/fluxfield/clmm/core/ticks"
)

func newTestMarket(t *testing.T) (*Market, *ticks.Store, *oracle.Ring) {
	t.Helper()
	params := InitializeMarketParams{
		Token0:           "token0",
		Token1:           "token1",
		Vault0:           "vault0",
		Vault1:           "vault1",
		BaseFeeBps:       30,
		TickSpacing:      10,
		InitialSqrtPrice: fxmath.SqrtPriceFromTick(0),
		GlobalLower:      -443600,
		GlobalUpper:      443600,
	}
	m, ring, err := InitializeMarket(params, 1000)
	if err != nil {
		t.Fatal(err)
	}
	m.Liquidity = uint256.NewInt(10_000_000_000_000)
	store := ticks.NewStore(10)
	return m, store, ring
}

func TestInitializeMarketRejectsSameToken(t *testing.T) {
	_, _, err := InitializeMarket(InitializeMarketParams{
		Token0:           "x",
		Token1:           "x",
		TickSpacing:      10,
		BaseFeeBps:       30,
		InitialSqrtPrice: fxmath.SqrtPriceFromTick(0),
	}, 0)
	if err == nil {
		t.Fatal("expected rejection for identical tokens")
	}
}

func TestInitializeMarketRejectsInvalidTickSpacing(t *testing.T) {
	_, _, err := InitializeMarket(InitializeMarketParams{
		Token0:           "a",
		Token1:           "b",
		TickSpacing:      7,
		BaseFeeBps:       30,
		InitialSqrtPrice: fxmath.SqrtPriceFromTick(0),
	}, 0)
	if err == nil {
		t.Fatal("expected rejection for invalid tick spacing")
	}
}

func TestInitializeMarketSeedsOracleAndFlags(t *testing.T) {
	m, _, ring := newTestMarket(t)
	if !m.Initialized {
		t.Fatal("expected market to be marked initialized")
	}
	if m.Phase != PhaseInitialized {
		t.Fatalf("phase = %v, want PhaseInitialized", m.Phase)
	}
	if !ring.Initialized() {
		t.Fatal("expected oracle ring to be seeded with observation 0")
	}
}

func TestDeployInitialLiquidityBuildsStaircase(t *testing.T) {
	m, store, _ := newTestMarket(t)
	m.Liquidity = new(uint256.Int) // deploy should be the thing building liquidity here

	positions, err := DeployInitialLiquidity(m, store, 10, big.NewInt(1_000_000), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) == 0 {
		t.Fatal("expected at least one staircase position")
	}
	if m.Phase != PhaseLiquidityDeployed {
		t.Fatalf("phase = %v, want PhaseLiquidityDeployed", m.Phase)
	}
	for i, p := range positions {
		if p.LowerTick >= p.UpperTick {
			t.Fatalf("position %d has non-increasing range [%d,%d]", i, p.LowerTick, p.UpperTick)
		}
	}
}

func TestDeployInitialLiquidityRejectsWhenAlreadyDeployed(t *testing.T) {
	m, store, _ := newTestMarket(t)
	m.Phase = PhaseLiquidityDeployed
	_, err := DeployInitialLiquidity(m, store, 10, big.NewInt(1_000_000), 5)
	if err == nil {
		t.Fatal("expected rejection for a market already past deployment")
	}
}

func TestSwapEnforcesFloorOnZeroForOne(t *testing.T) {
	m, store, ring := newTestMarket(t)
	m.Floor.FloorTick = -20

	req := swap.Request{
		AmountIn:         uint256.NewInt(1_000_000_000_000),
		MinimumAmountOut: new(uint256.Int),
		Direction:        swap.ZeroForOne,
		SqrtPriceLimit:   fxmath.SqrtPriceFromTick(-4000), // far below the floor
		MaxTicksCrossed:  10,
	}

	result, err := Swap(m, store, ring, req, 2000, nil)
	if err != nil {
		t.Fatal(err)
	}
	floorSqrt := fxmath.SqrtPriceFromTick(m.Floor.FloorTick)
	if result.SqrtPriceAfter.Cmp(floorSqrt) < 0 {
		t.Fatalf("swap pushed price below the floor: %s < %s", result.SqrtPriceAfter, floorSqrt)
	}
}

func TestSwapLocksAndUnlocksMarket(t *testing.T) {
	m, store, ring := newTestMarket(t)
	req := swap.Request{
		AmountIn:         uint256.NewInt(1_000_000),
		MinimumAmountOut: new(uint256.Int),
		Direction:        swap.ZeroForOne,
		SqrtPriceLimit:   fxmath.SqrtPriceFromTick(-1000),
		MaxTicksCrossed:  10,
	}
	if _, err := Swap(m, store, ring, req, 2000, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Lock(); err != nil {
		t.Fatalf("expected market to be unlocked after swap returns, got %v", err)
	}
	m.Unlock()
}

func TestUpdateFieldCommitmentEnforcesMonotoneSequence(t *testing.T) {
	m, _, _ := newTestMarket(t)
	stored := &FieldCommitment{Sequence: 5}

	err := UpdateFieldCommitment(m, stored, FieldCommitment{Sequence: 5, BaseFeeBps: 40})
	if err == nil {
		t.Fatal("expected rejection for a non-increasing sequence")
	}

	err = UpdateFieldCommitment(m, stored, FieldCommitment{Sequence: 6, BaseFeeBps: 40})
	if err != nil {
		t.Fatal(err)
	}
	if m.BaseFeeBps != 40 {
		t.Fatalf("base_fee_bps = %d, want 40 after an accepted commitment", m.BaseFeeBps)
	}
	if stored.Sequence != 6 {
		t.Fatalf("stored sequence = %d, want 6", stored.Sequence)
	}
}

func TestPlaceFloorLiquidityDelegatesToFloorPackage(t *testing.T) {
	m, _, _ := newTestMarket(t)
	m.Floor.BufferBalance = 1000
	m.Floor.PlacementThreshold = 500
	m.Floor.LastPlacementTime = 0

	newFloor, err := PlaceFloorLiquidity(m, []int32{-50, -40, -45}, 3600)
	if err != nil {
		t.Fatal(err)
	}
	if newFloor <= m.GlobalLower {
		t.Fatalf("new floor %d did not rise above global lower %d", newFloor, m.GlobalLower)
	}
}
