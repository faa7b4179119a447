// Package ticks implements the per-tick liquidity/fee-growth ledger and the
// fixed-size tick-array store used to page it, modeled on the tick-array
// iterator in the original engine (array-bounded scan, O(1) start-index
// lookup via a map rather than a sorted structure).
package ticks

import (
	"math/big"

	fxerrors "github.com/fluxfield/clmm/core/errors"
)

// ArraySize is the number of ticks held by a single TickArray.
const ArraySize = 64

// MaxArraysPerSwap bounds how many tick arrays a single swap instruction
// may traverse, matching the stepper's compute-bound guarantee.
const MaxArraysPerSwap = 10

// Tick holds the per-tick accounting the stepper needs when crossing it.
type Tick struct {
	LiquidityNet      *big.Int // signed; net change to active liquidity when crossed upward
	LiquidityGross    *big.Int // total liquidity referencing this tick, either side
	FeeGrowthOutside0 *big.Int // Q64.64, fee growth on the far side of this tick
	FeeGrowthOutside1 *big.Int
	Initialized       bool
}

func newTick() *Tick {
	return &Tick{
		LiquidityNet:      new(big.Int),
		LiquidityGross:    new(big.Int),
		FeeGrowthOutside0: new(big.Int),
		FeeGrowthOutside1: new(big.Int),
	}
}

// TickArray is a contiguous, fixed-size block of ticks addressed by an
// aligned start index.
type TickArray struct {
	StartTickIndex int32
	TickSpacing    uint16
	Ticks          [ArraySize]*Tick
}

// AlignedStartIndex returns the start index of the array that would
// contain tick, aligned to spacing*ArraySize using euclidean (floored)
// division so negative indices align correctly.
func AlignedStartIndex(tick int32, spacing uint16) int32 {
	blockSize := int64(spacing) * ArraySize
	t := int64(tick)
	q := t / blockSize
	if t%blockSize != 0 && (t < 0) != (blockSize < 0) {
		q--
	}
	return int32(q * blockSize)
}

func offsetInArray(tick int32, start int32, spacing uint16) int {
	return int((tick - start) / int32(spacing))
}

// Store holds the loaded tick arrays for a market, keyed by start index for
// O(1) lookup, mirroring the original's TickArrayIterator.start_index_map.
type Store struct {
	TickSpacing uint16
	arrays      map[int32]*TickArray
}

// NewStore creates an empty tick store for the given tick spacing.
func NewStore(tickSpacing uint16) *Store {
	return &Store{
		TickSpacing: tickSpacing,
		arrays:      make(map[int32]*TickArray),
	}
}

// GetOrCreateArray returns the array covering tick, allocating and
// registering one if it doesn't exist yet.
func (s *Store) GetOrCreateArray(tick int32) *TickArray {
	start := AlignedStartIndex(tick, s.TickSpacing)
	if arr, ok := s.arrays[start]; ok {
		return arr
	}
	arr := &TickArray{StartTickIndex: start, TickSpacing: s.TickSpacing}
	s.arrays[start] = arr
	return arr
}

// LoadArray registers an already-constructed array (e.g. deserialized from
// storage) under its start index.
func (s *Store) LoadArray(arr *TickArray) {
	s.arrays[arr.StartTickIndex] = arr
}

// GetTick returns the Tick at the given index, or nil if its array isn't
// loaded or the slot is empty.
func (s *Store) GetTick(tick int32) (*Tick, error) {
	start := AlignedStartIndex(tick, s.TickSpacing)
	arr, ok := s.arrays[start]
	if !ok {
		return nil, fxerrors.ErrTickArrayNotFound
	}
	return arr.Ticks[offsetInArray(tick, start, s.TickSpacing)], nil
}

// GetOrCreateTick returns the Tick at the given index, allocating both the
// array and the tick slot if necessary.
func (s *Store) GetOrCreateTick(tick int32) *Tick {
	arr := s.GetOrCreateArray(tick)
	off := offsetInArray(tick, arr.StartTickIndex, s.TickSpacing)
	if arr.Ticks[off] == nil {
		arr.Ticks[off] = newTick()
	}
	return arr.Ticks[off]
}

// UpdateLiquidity applies a signed liquidity delta to the tick at the given
// index, flipping the initialized flag as the gross liquidity transitions
// to/from zero, and returns whether the tick became (un)initialized so the
// caller can maintain its own bitmap/index if it keeps one.
//
// currentTick, feeGrowthGlobal0, and feeGrowthGlobal1 seed the tick's
// fee_growth_outside values the moment it first becomes initialized, per
// the Uniswap-v3-style convention that a tick at or below the current price
// starts with the full global accumulator already "outside" it. Callers
// that never initialize a tick for the first time (pure gross top-ups) may
// pass zero values; they are ignored once the tick is already initialized.
func (s *Store) UpdateLiquidity(tick int32, liquidityDelta *big.Int, upper bool, currentTick int32, feeGrowthGlobal0, feeGrowthGlobal1 *big.Int) (flipped bool, err error) {
	t := s.GetOrCreateTick(tick)

	wasInitialized := t.Initialized
	grossAfter := new(big.Int).Add(t.LiquidityGross, liquidityDelta)
	if grossAfter.Sign() < 0 {
		return false, fxerrors.ErrLiquidityUnderflow
	}
	t.LiquidityGross = grossAfter

	signedDelta := new(big.Int).Set(liquidityDelta)
	if upper {
		signedDelta.Neg(signedDelta)
	}
	t.LiquidityNet.Add(t.LiquidityNet, signedDelta)

	t.Initialized = t.LiquidityGross.Sign() != 0
	flipped = wasInitialized != t.Initialized
	if flipped && t.Initialized {
		t.FeeGrowthOutside0, t.FeeGrowthOutside1 = initialFeeGrowthOutside(tick, currentTick, feeGrowthGlobal0, feeGrowthGlobal1)
	}
	return flipped, nil
}

// initialFeeGrowthOutside returns the fee-growth-outside values a tick
// should be seeded with the first time it's initialized.
func initialFeeGrowthOutside(tickIndex, currentTick int32, feeGrowthGlobal0, feeGrowthGlobal1 *big.Int) (*big.Int, *big.Int) {
	if feeGrowthGlobal0 == nil {
		feeGrowthGlobal0 = new(big.Int)
	}
	if feeGrowthGlobal1 == nil {
		feeGrowthGlobal1 = new(big.Int)
	}
	if tickIndex <= currentTick {
		return new(big.Int).Set(feeGrowthGlobal0), new(big.Int).Set(feeGrowthGlobal1)
	}
	return new(big.Int), new(big.Int)
}

// CrossTick flips tick's fee-growth-outside accumulators to reflect having
// been crossed: tick.fee_growth_outside_i := fee_growth_global_i -
// tick.fee_growth_outside_i, evaluated with the accumulator values active
// at the moment of crossing (spec.md §4.4).
func (s *Store) CrossTick(tick int32, feeGrowthGlobal0, feeGrowthGlobal1 *big.Int) error {
	t, err := s.GetTick(tick)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	t.FeeGrowthOutside0 = new(big.Int).Sub(feeGrowthGlobal0, t.FeeGrowthOutside0)
	t.FeeGrowthOutside1 = new(big.Int).Sub(feeGrowthGlobal1, t.FeeGrowthOutside1)
	return nil
}

// NextInitializedTick scans for the next initialized tick strictly in the
// search direction from `fromTick`, starting one step beyond `fromTick`
// itself (±tick_spacing, per spec.md §4.2) so a tick just arrived at is
// never re-found as "next." It scans the current array first, then steps
// through the following aligned arrays, visiting at most MaxArraysPerSwap
// arrays in all (the first one included), returning ok=false if none is
// found within that bound, matching the stepper's
// compute-boundedness guarantee.
func (s *Store) NextInitializedTick(fromTick int32, lte bool) (tick int32, ok bool) {
	spacing := int32(s.TickSpacing)
	if lte {
		fromTick -= spacing
	} else {
		fromTick += spacing
	}
	start := AlignedStartIndex(fromTick, s.TickSpacing)

	for arraysScanned := 0; arraysScanned < MaxArraysPerSwap; arraysScanned++ {
		arr, loaded := s.arrays[start]
		if loaded {
			if lte {
				for candidate := fromTick; candidate >= start; candidate -= spacing {
					off := offsetInArray(candidate, start, s.TickSpacing)
					if off < 0 || off >= ArraySize {
						break
					}
					if t := arr.Ticks[off]; t != nil && t.Initialized {
						return candidate, true
					}
				}
			} else {
				arrayEnd := start + spacing*(ArraySize-1)
				for candidate := fromTick; candidate <= arrayEnd; candidate += spacing {
					off := offsetInArray(candidate, start, s.TickSpacing)
					if off < 0 || off >= ArraySize {
						break
					}
					if t := arr.Ticks[off]; t != nil && t.Initialized {
						return candidate, true
					}
				}
			}
		}

		if lte {
			start -= spacing * ArraySize
			fromTick = start + spacing*(ArraySize-1)
		} else {
			start += spacing * ArraySize
			fromTick = start
		}
	}
	return 0, false
}
