// Package market wires the fixed-point, tick-store, swap, oracle, JIT, and
// floor packages into the per-pair state and instruction surface spec.md
// §3.2-3.8 and §6.1 describe. Grounded structurally on
// original_source/programs/feels/src/instructions/initialize_market.rs for
// the two-phase initialize/deploy split, and on the teacher's
// native/lending/engine.go for the setter-configured Engine style (a state
// interface plus a struct of wired dependencies, rather than a framework's
// auto-validated account bag per spec.md §9's "reify as a typed struct"
// design note).
package market

import (
	"math/big"

	fxerrors "github.com/fluxfield/clmm/core/errors"
	"github.com/fluxfield/clmm/core/floor"
	"github.com/fluxfield/clmm/core/fxmath"
	"github.com/fluxfield/clmm/core/jit"
	"github.com/fluxfield/clmm/core/oracle"
	"github.com/fluxfield/clmm/core/swap"
	"github.com/fluxfield/clmm/core/ticks"
	"github.com/holiman/uint256"
)

// Phase tags the market's lifecycle, per spec.md §3.8.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitialized
	PhaseLiquidityDeployed
)

// Market is the exclusively-owned per-pair record. Lock/Unlock is its
// reentrancy guard: Swap holds it for the whole instruction and fails with
// ErrReentrantAccess if it is already held. DeployInitialLiquidity,
// UpdateFieldCommitment, and PlaceFloorLiquidity do not take it.
type Market struct {
	Token0 string
	Token1 string

	Vault0 string
	Vault1 string

	SqrtPrice     *uint256.Int
	CurrentTick   int32
	Liquidity     *uint256.Int
	TickSpacing   uint16
	BaseFeeBps    uint16
	GlobalLower   int32
	GlobalUpper   int32
	FeeGrowth0    *big.Int
	FeeGrowth1    *big.Int

	Floor floor.State
	JIT   JITState

	Phase       Phase
	Initialized bool
	Version     uint64

	locked bool
}

// JITState is the per-market JIT sub-state (enable flag and budget caps).
type JITState struct {
	Enabled            bool
	LastHeavyUsageSlot uint64
	Budget             jit.Budget
}

// Buffer holds the side-state mutated by the swap executor and JIT engine:
// counters, protocol-fee accumulators, rolling volume, and the floor's
// funding threshold fields (spec.md §3.4).
type Buffer struct {
	Volume         jit.VolumeTracker
	PriceSnapshot  jit.PriceSnapshot
	LastRebaseTime int64
	ProtocolFees0  *big.Int
	ProtocolFees1  *big.Int
}

// Position is a (owner, range, liquidity, fee-growth-checkpoint) tuple per
// spec.md §3.7; mutation mechanics beyond flipping tick liquidity_net are
// out of this core's scope.
type Position struct {
	Owner                string
	LowerTick            int32
	UpperTick            int32
	Liquidity            *big.Int
	FeeGrowthInside0Last *big.Int
	FeeGrowthInside1Last *big.Int
}

// FieldCommitment is the keeper-installed parameter bundle, spec.md §3.6.
type FieldCommitment struct {
	S, T, L                              *big.Int
	WS, WT, WL, WTau                     uint32
	Omega0, Omega1                       uint32
	SigmaPrice, SigmaRate, SigmaLeverage uint64
	Twap0, Twap1                         *big.Int
	SnapshotTimestamp                    int64
	MaxStaleness                         int64
	Sequence                             uint64
	BaseFeeBps                           uint16
}

// Lock acquires exclusive mutation access, failing if the market is
// already held — the single-writer reentrancy guard spec.md §3.2 and §9
// call for.
func (m *Market) Lock() error {
	if m.locked {
		return fxerrors.ErrReentrantAccess
	}
	m.locked = true
	return nil
}

// Unlock releases exclusive access. Safe to call unconditionally on every
// exit path of an instruction handler.
func (m *Market) Unlock() {
	m.locked = false
}

// validTickSpacings enumerates the tick spacings InitializeMarket accepts, mirroring typical CLMM fee-tier presets
// (1 bps / 5 bps / 30 bps / 100 bps equivalents).
var validTickSpacings = map[uint16]bool{1: true, 10: true, 60: true, 200: true}

// InitializeMarketParams mirrors spec.md §6.1's initialize_market surface.
type InitializeMarketParams struct {
	Token0, Token1   string
	Vault0, Vault1   string
	BaseFeeBps       uint16
	TickSpacing      uint16
	InitialSqrtPrice *uint256.Int
	GlobalLower      int32
	GlobalUpper      int32
}

// InitializeMarket constructs a new market record and seeds its oracle
// ring with observation zero. Preconditions: tokens distinct, tick
// spacing valid, sqrt_price within bounds.
func InitializeMarket(params InitializeMarketParams, now int64) (*Market, *oracle.Ring, error) {
	if params.Token0 == params.Token1 {
		return nil, nil, fxerrors.ErrMarketAlreadyInitialized
	}
	if !validTickSpacings[params.TickSpacing] {
		return nil, nil, fxerrors.ErrInvalidTickSpacing
	}
	if params.BaseFeeBps == 0 || params.BaseFeeBps > 10_000 {
		return nil, nil, fxerrors.ErrInvalidFeeTier
	}
	if params.InitialSqrtPrice == nil {
		return nil, nil, fxerrors.ErrMarketAlreadyInitialized
	}
	if params.InitialSqrtPrice.Cmp(fxmath.MinSqrtPrice) < 0 || params.InitialSqrtPrice.Cmp(fxmath.MaxSqrtPrice) > 0 {
		return nil, nil, fxerrors.ErrSqrtPriceOutOfRange
	}

	currentTick := fxmath.TickFromSqrtPrice(params.InitialSqrtPrice)

	m := &Market{
		Token0:      params.Token0,
		Token1:      params.Token1,
		Vault0:      params.Vault0,
		Vault1:      params.Vault1,
		SqrtPrice:   params.InitialSqrtPrice,
		CurrentTick: currentTick,
		Liquidity:   new(uint256.Int),
		TickSpacing: params.TickSpacing,
		BaseFeeBps:  params.BaseFeeBps,
		GlobalLower: params.GlobalLower,
		GlobalUpper: params.GlobalUpper,
		FeeGrowth0:  new(big.Int),
		FeeGrowth1:  new(big.Int),
		Floor: floor.State{
			FloorTick: params.GlobalLower,
		},
		Phase:       PhaseInitialized,
		Initialized: true,
		Version:     1,
	}

	ring := oracle.NewRing(currentTick, now)

	return m, ring, nil
}
