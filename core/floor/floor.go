// Package floor implements the price-floor ratchet: a monotone lower
// bound on a market's sqrt_price, funded from the protocol-fee buffer and
// advanced in discrete, cooldown-gated steps. Grounded on spec.md §4.7 and
// the reference engine's use of a price bound to stop a swap step short
// (engine.rs's StopReason::PriceBound), generalized here to the
// ZeroForOne-only, ratcheting case a floor requires.
package floor

import (
	"sort"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/observability/metrics"
)

// CooldownSecs is the minimum interval between successive floor
// placements.
const CooldownSecs int64 = 3600

// State is the floor sub-state carried on the market record.
type State struct {
	FloorTick          int32
	LastPlacementTime  int64
	BufferBalance      uint64 // accumulated quote-token buffer, in base units
	PlacementThreshold uint64 // buffer balance required to attempt a placement
	BufferTicks        int32  // safety margin subtracted from the raw candidate
}

// PriceHistory is a short rolling window of recently observed ticks,
// newest-last; the candidate floor is derived from its median.
type PriceHistory []int32

// median returns the middle value of a sorted copy of h, or the lower of
// the two middle values for an even-length history (spec.md doesn't
// specify interpolation, so this matches the conventional integer-tick
// median used elsewhere in the spec's tick arithmetic).
func (h PriceHistory) median() int32 {
	sorted := append(PriceHistory(nil), h...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1]
}

// PlaceFloorLiquidity attempts to ratchet the floor upward. It is a
// permissionless operation that only succeeds when the buffer has
// accumulated enough, the cooldown has elapsed, and the resulting
// candidate is strictly above the current floor. On success it returns
// the new floor tick and resets the buffer's threshold counter; on
// failure it returns the unchanged floor tick alongside the reason.
func PlaceFloorLiquidity(state *State, history PriceHistory, now int64, globalLowerTick int32) (newFloorTick int32, err error) {
	if state.BufferBalance < state.PlacementThreshold {
		return state.FloorTick, fxerrors.ErrFloorWouldLower
	}
	if now < state.LastPlacementTime+CooldownSecs {
		return state.FloorTick, fxerrors.ErrFloorCooldownActive
	}

	candidate := history.median() - state.BufferTicks
	if candidate < globalLowerTick {
		candidate = globalLowerTick
	}
	if candidate <= state.FloorTick {
		return state.FloorTick, fxerrors.ErrFloorWouldLower
	}

	gap := candidate - state.FloorTick
	state.FloorTick = candidate
	state.LastPlacementTime = now
	state.BufferBalance = 0

	metrics.Floor().ObserveRatchet(state.FloorTick, gap)
	return state.FloorTick, nil
}

// DepositToBuffer accumulates protocol fees destined for the floor's
// funding buffer; called by the swap executor's fee-split step.
func (s *State) DepositToBuffer(amount uint64) {
	s.BufferBalance += amount
}

// ClampZeroForOne enforces the floor as a hard lower bound on a
// ZeroForOne swap's price target: the stepper may never push sqrt_price
// below the tick the floor currently sits at. Returns the tighter of the
// caller's requested bound and the floor.
func ClampZeroForOne(requestedLowerTick int32, floorTick int32) int32 {
	if requestedLowerTick < floorTick {
		return floorTick
	}
	return requestedLowerTick
}
