package floor

import "testing"

func TestPlaceFloorLiquidityAdvancesOnSuccess(t *testing.T) {
	state := &State{
		FloorTick:          -200,
		LastPlacementTime:  0,
		BufferBalance:      1000,
		PlacementThreshold: 500,
		BufferTicks:        10,
	}
	history := PriceHistory{-50, -40, -45, -60, -55}

	newTick, err := PlaceFloorLiquidity(state, history, CooldownSecs, -443636)
	if err != nil {
		t.Fatal(err)
	}
	if newTick <= -200 {
		t.Fatalf("floor must strictly increase, got %d", newTick)
	}
	if state.BufferBalance != 0 {
		t.Fatalf("buffer should reset to 0 after a successful placement, got %d", state.BufferBalance)
	}
}

func TestPlaceFloorLiquidityRejectsCooldown(t *testing.T) {
	state := &State{
		FloorTick:          -100,
		LastPlacementTime:  100,
		BufferBalance:      1000,
		PlacementThreshold: 500,
		BufferTicks:        10,
	}
	history := PriceHistory{-50, -40, -45}

	_, err := PlaceFloorLiquidity(state, history, 100+CooldownSecs-1, -443636)
	if err == nil {
		t.Fatal("expected cooldown rejection")
	}
	if state.FloorTick != -100 {
		t.Fatalf("floor must stay unchanged on cooldown rejection, got %d", state.FloorTick)
	}
}

func TestPlaceFloorLiquidityRejectsInsufficientBuffer(t *testing.T) {
	state := &State{
		FloorTick:          -100,
		LastPlacementTime:  0,
		BufferBalance:      10,
		PlacementThreshold: 500,
		BufferTicks:        10,
	}
	history := PriceHistory{-50, -40, -45}

	_, err := PlaceFloorLiquidity(state, history, CooldownSecs, -443636)
	if err == nil {
		t.Fatal("expected rejection for insufficient buffer")
	}
}

func TestPlaceFloorLiquidityRejectsWhenCandidateWouldNotRise(t *testing.T) {
	state := &State{
		FloorTick:          0,
		LastPlacementTime:  0,
		BufferBalance:      1000,
		PlacementThreshold: 500,
		BufferTicks:        10,
	}
	// median of the history minus the buffer ticks lands below the current floor
	history := PriceHistory{-5, -4, -6}

	_, err := PlaceFloorLiquidity(state, history, CooldownSecs, -443636)
	if err == nil {
		t.Fatal("expected rejection when the candidate would not rise")
	}
	if state.FloorTick != 0 {
		t.Fatalf("floor must stay unchanged, got %d", state.FloorTick)
	}
}

func TestPlaceFloorLiquidityClampsToGlobalLowerBound(t *testing.T) {
	state := &State{
		FloorTick:          -1000,
		LastPlacementTime:  0,
		BufferBalance:      1000,
		PlacementThreshold: 500,
		BufferTicks:        10,
	}
	history := PriceHistory{-995, -994, -996}

	newTick, err := PlaceFloorLiquidity(state, history, CooldownSecs, -990)
	if err != nil {
		t.Fatal(err)
	}
	if newTick < -990 {
		t.Fatalf("floor must never fall below the global lower bound, got %d", newTick)
	}
}

func TestMonotoneFloorAcrossRepeatedPlacements(t *testing.T) {
	state := &State{
		FloorTick:          -1000,
		BufferBalance:      1000,
		PlacementThreshold: 500,
		BufferTicks:        5,
	}
	now := int64(0)
	prevFloor := state.FloorTick
	tickSeries := []int32{-500, -400, -300, -200, -100}

	for _, tick := range tickSeries {
		now += CooldownSecs
		state.BufferBalance = state.PlacementThreshold
		newTick, err := PlaceFloorLiquidity(state, PriceHistory{tick, tick, tick}, now, -443636)
		if err != nil {
			t.Fatalf("unexpected rejection at tick %d: %v", tick, err)
		}
		if newTick <= prevFloor {
			t.Fatalf("floor must be strictly increasing: prev=%d new=%d", prevFloor, newTick)
		}
		prevFloor = newTick
	}
}

func TestClampZeroForOneEnforcesFloor(t *testing.T) {
	if got := ClampZeroForOne(-500, -300); got != -300 {
		t.Fatalf("ClampZeroForOne(-500, -300) = %d, want -300", got)
	}
	if got := ClampZeroForOne(-100, -300); got != -100 {
		t.Fatalf("ClampZeroForOne(-100, -300) = %d, want -100 (already above floor)", got)
	}
}
