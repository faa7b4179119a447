// Package field implements the off-chain field-commitment builder (C8):
// a 3D gradient/Hessian decomposition of market state into the scalar
// triple (S, T, L), domain weights, spot weights, and risk sigmas the
// keeper installs on-chain via update_field_commitment. Grounded on
// original_source/crates/keeper/src/field_computation.rs's
// compute_stress_components / compute_field_commitment pipeline,
// translated from its Rust f64 arithmetic into the same shape of Go code.
package field

import "math"

// Snapshot is the subset of on-chain market state the builder reads.
// Values that are exact integers on-chain (sqrt price, liquidity, fee
// growth) are passed as float64 here since the entire computation is
// double-precision until the commitment boundary quantizes it back to
// fixed point (spec.md §9's "floating point in the keeper" design note).
type Snapshot struct {
	CurrentSqrtPrice  float64
	Liquidity         float64
	CurrentTick       int32
	FeeGrowthGlobal0  float64
	FeeGrowthGlobal1  float64
	Twap0             float64
	Twap1             float64
	LastUpdateUnixSec int64
}

// StressComponents are the three 0..10000 bps stress readings that feed
// the hysteresis controller.
type StressComponents struct {
	SpotStressBps     uint64
	TimeStressBps     uint64
	LeverageStressBps uint64
}

// Position3D is the normalized (spot, time, leverage) coordinate a
// snapshot maps to before gradient/Hessian analysis.
type Position3D struct {
	X, Y, Z float64
}

// Gradient3D and Hessian3D are first- and second-order partials of the
// potential V(S,T,L) at a Position3D.
type Gradient3D struct {
	DS, DT, DL float64
}

type Hessian3D struct {
	D2S, D2T, D2L    float64
	DSDT, DSDL, DTDL float64
}

// FieldScalars are the eigenvalue-derived magnitudes that become the
// commitment's S, T, L fields.
type FieldScalars struct {
	S, T, L uint64
}

// DomainWeights are the basis-point weights (summing to 10000) assigned
// to each dimension, with w_tau absorbing the residual.
type DomainWeights struct {
	WS, WT, WL, WTau uint32
}

// SpotWeights are the TWAP-ratio-derived weights for the two sides.
type SpotWeights struct {
	Omega0, Omega1 uint32
}

// RiskParams are the Q32.32-scaled volatility sigmas.
type RiskParams struct {
	SigmaPrice, SigmaRate, SigmaLeverage uint64
}

// Commitment is the full §3.6 commitment payload in its pre-quantization
// (float-derived-but-already-integer) form.
type Commitment struct {
	S, T, L                              uint64
	WS, WT, WL, WTau                     uint32
	Omega0, Omega1                       uint32
	SigmaPrice, SigmaRate, SigmaLeverage uint64
	Twap0, Twap1                         uint64
	SnapshotTimestamp                    int64
	MaxStaleness                         int64
	Sequence                             uint64
	BaseFeeBps                           uint16
}

// DefaultMaxStaleness matches the reference's 30-minute commitment
// staleness window.
const DefaultMaxStaleness int64 = 1800

// Computer builds commitments from snapshots. It is stateless; sequence
// numbering is the caller's responsibility (the keeper tracks the last
// accepted sequence per market).
type Computer struct{}

// ComputeStressComponents derives the three stress readings spot/time/
// leverage_stress feed into the hysteresis controller.
func (Computer) ComputeStressComponents(s Snapshot) StressComponents {
	return StressComponents{
		SpotStressBps:     computeSpotStress(s),
		TimeStressBps:     computeTimeStress(s),
		LeverageStressBps: computeLeverageStress(s),
	}
}

func computeSpotStress(s Snapshot) uint64 {
	currentPrice := s.CurrentSqrtPrice * s.CurrentSqrtPrice
	var reference float64
	if s.Twap0 > 0 && s.Twap1 > 0 {
		reference = (s.Twap0 + s.Twap1) / 2
	} else {
		reference = currentPrice
	}
	if reference == 0 {
		return 0
	}
	deviation := math.Abs(currentPrice-reference) / reference * 10_000
	return clampBps(deviation)
}

func computeTimeStress(s Snapshot) uint64 {
	// Normalized liquidity in the reference's 1e18-ish scale; liquidity at
	// or above that scale reads as fully deep (stress 0).
	normalized := s.Liquidity / 1e18 * 10_000
	if normalized <= 0 {
		return 10_000
	}
	if normalized >= 10_000 {
		return 0
	}
	return 10_000 - uint64(normalized)
}

func computeLeverageStress(s Snapshot) uint64 {
	delta := math.Abs(s.FeeGrowthGlobal0 - s.FeeGrowthGlobal1)
	// Scale down from a Q64.64-ish magnitude to bps, matching the
	// reference's ">> 54" scale-down of its 128-bit fee-growth delta.
	scaled := delta / math.Pow(2, 54)
	return clampBps(scaled)
}

func clampBps(v float64) uint64 {
	if v < 0 {
		return 0
	}
	if v > 10_000 {
		return 10_000
	}
	return uint64(v)
}

// snapshotToPosition converts market state into the normalized 3D
// coordinate the gradient/Hessian analysis operates on.
func snapshotToPosition(s Snapshot) Position3D {
	spot := math.Log(math.Max(s.CurrentSqrtPrice, 1e-12))
	timeCoord := 1.0
	liquidityRatio := s.Liquidity / 1e18
	if liquidityRatio < 0.01 {
		liquidityRatio = 0.01
	}
	if liquidityRatio > 100 {
		liquidityRatio = 100
	}
	leverage := math.Log1p(liquidityRatio)
	return Position3D{X: spot, Y: timeCoord, Z: leverage}
}

func computeGradient(p Position3D, s Snapshot) Gradient3D {
	liquidity := s.Liquidity / 1e18
	return Gradient3D{
		DS: liquidity / (p.X + 1.0),
		DT: -p.Y * 0.01,
		DL: p.Z * 0.1,
	}
}

func computeHessian(p Position3D, s Snapshot) Hessian3D {
	liquidity := s.Liquidity / 1e18
	return Hessian3D{
		D2S:  -liquidity / ((p.X + 1.0) * (p.X + 1.0)),
		D2T:  -0.01,
		D2L:  0.1,
		DSDT: 0.001,
		DSDL: 0.005,
		DTDL: 0.002,
	}
}

// eigenvalues returns the three principal curvatures of h. The potential
// as modeled has no cross-dimension coupling strong enough to move the
// diagonal-dominant eigenvalues, so (as in the reference) the diagonal
// entries are used directly rather than running a full decomposition.
func eigenvalues(h Hessian3D) (float64, float64, float64) {
	return h.D2S, h.D2T, h.D2L
}

func eigenvalueToScalar(ev float64) uint64 {
	scaled := math.Abs(ev) * 1e12
	return uint64(scaled)
}

// computeFieldScalars runs the gradient/Hessian/eigenvalue pipeline to
// produce the commitment's S, T, L fields.
func computeFieldScalars(p Position3D, s Snapshot) FieldScalars {
	h := computeHessian(p, s)
	eS, eT, eL := eigenvalues(h)
	return FieldScalars{
		S: eigenvalueToScalar(eS),
		T: eigenvalueToScalar(eT),
		L: eigenvalueToScalar(eL),
	}
}

// computeDomainWeights normalizes gradient magnitude per dimension into
// basis-point weights; w_tau absorbs the residual with a floor of 1 so
// no decomposition ever assigns the unmodeled remainder exactly zero
// weight (spec.md §9 open question 1 — the floor is preserved without
// inventing a deeper rationale for it).
func computeDomainWeights(p Position3D, s Snapshot) DomainWeights {
	g := computeGradient(p, s)
	magS, magT, magL := math.Abs(g.DS), math.Abs(g.DT), math.Abs(g.DL)
	total := magS + magT + magL

	if total == 0 {
		return DomainWeights{WS: 3333, WT: 3333, WL: 3333, WTau: 1}
	}

	ws := uint32(magS / total * 9900.0)
	wt := uint32(magT / total * 9900.0)
	wl := uint32(magL / total * 9900.0)

	sum := ws + wt + wl
	var wTau uint32 = 1
	if sum < 10_000 {
		wTau = 10_000 - sum
	}
	return DomainWeights{WS: ws, WT: wt, WL: wl, WTau: wTau}
}

// computeSpotWeights derives the two sides' value weights from a simple
// TWAP-ratio split.
func computeSpotWeights(s Snapshot) SpotWeights {
	total := s.Twap0 + s.Twap1
	if total == 0 {
		return SpotWeights{Omega0: 5000, Omega1: 5000}
	}
	omega0 := uint32(s.Twap0 / total * 10_000)
	var omega1 uint32 = 1
	if omega0 < 10_000 {
		omega1 = 10_000 - omega0
	} else {
		omega1 = 0
	}
	return SpotWeights{Omega0: omega0, Omega1: omega1}
}

// computeRiskParameters derives volatility sigmas from a baseline scaled
// by inverse liquidity depth, quantized to Q32.32.
func computeRiskParameters(s Snapshot) RiskParams {
	const baseVolatility = 0.01
	liquidityFactor := s.Liquidity / 1e18
	if liquidityFactor < 0.001 {
		liquidityFactor = 0.001
	}
	sigmaPrice := baseVolatility / liquidityFactor
	sigmaRate := sigmaPrice * 0.5
	sigmaLeverage := sigmaPrice * 2.0

	const q32Scale = 1 << 32
	return RiskParams{
		SigmaPrice:    uint64(sigmaPrice * q32Scale),
		SigmaRate:     uint64(sigmaRate * q32Scale),
		SigmaLeverage: uint64(sigmaLeverage * q32Scale),
	}
}

// ComputeFieldCommitment runs the full builder pipeline and returns a
// commitment with sequence = previousSequence + 1.
func (Computer) ComputeFieldCommitment(s Snapshot, previousSequence uint64, baseFeeBps uint16, now int64) Commitment {
	position := snapshotToPosition(s)
	scalars := computeFieldScalars(position, s)
	weights := computeDomainWeights(position, s)
	spotWeights := computeSpotWeights(s)
	risk := computeRiskParameters(s)

	return Commitment{
		S: scalars.S, T: scalars.T, L: scalars.L,
		WS: weights.WS, WT: weights.WT, WL: weights.WL, WTau: weights.WTau,
		Omega0: spotWeights.Omega0, Omega1: spotWeights.Omega1,
		SigmaPrice: risk.SigmaPrice, SigmaRate: risk.SigmaRate, SigmaLeverage: risk.SigmaLeverage,
		Twap0: uint64(s.Twap0), Twap1: uint64(s.Twap1),
		SnapshotTimestamp: now,
		MaxStaleness:      DefaultMaxStaleness,
		Sequence:          previousSequence + 1,
		BaseFeeBps:        baseFeeBps,
	}
}

// CalculateChangeBps returns the absolute relative change between two
// values in basis points, used by the keeper to decide whether a new
// commitment differs enough from the stored one to submit.
func CalculateChangeBps(newValue, oldValue uint64) uint64 {
	if oldValue == 0 {
		if newValue == 0 {
			return 0
		}
		return 10_000
	}
	var delta uint64
	if newValue > oldValue {
		delta = newValue - oldValue
	} else {
		delta = oldValue - newValue
	}
	return delta * 10_000 / oldValue
}
