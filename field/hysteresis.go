package field

import "math"

// Direction is the sign of the last stress-vs-anchor deviation the
// controller observed.
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

// ControllerParams are the tunable coefficients spec.md §4.8.2 leaves as
// implementation choices, with the contract that the controller is
// deterministic, converges under constant input, and never exceeds the
// configured fee bounds.
type ControllerParams struct {
	Alpha           float64 // EWMA smoothing factor, ~0.2 per spec.md
	Anchor          float64 // target stress level, in bps
	DeadZoneBps     float64
	GainUp          float64
	GainDown        float64
	ReversalDamping float64 // 0..1, weight given to the new target on a reversal
	BaseFeeBps      float64
	FeeFloorBps     float64
	FeeCeilingBps   float64
}

// DefaultControllerParams returns the coefficients used unless a market
// overrides them: an anchor of 5000bps (mid-stress), a 2% dead zone, and
// asymmetric gains that raise fees twice as fast as they fall.
func DefaultControllerParams(baseFeeBps uint16) ControllerParams {
	return ControllerParams{
		Alpha:           0.2,
		Anchor:          5000,
		DeadZoneBps:     200,
		GainUp:          0.02,
		GainDown:        0.01,
		ReversalDamping: 0.5,
		BaseFeeBps:      float64(baseFeeBps),
		FeeFloorBps:     1,
		FeeCeilingBps:   1000,
	}
}

// Controller is the per-market hysteresis state machine from spec.md
// §4.8.2. The reference's own hysteresis_controller.rs was not present in
// the retrieval pack (only its call signature via keeper.rs's imports was
// visible); this is a direct implementation of the spec's pseudocode, not
// a port.
type Controller struct {
	params ControllerParams

	StressEwma  float64
	CurrentFee  float64
	LastDir     Direction
	InDeadZone  bool
	initialized bool
}

// NewController constructs a controller seeded at the base fee with no
// prior stress reading.
func NewController(params ControllerParams) *Controller {
	return &Controller{
		params:     params,
		CurrentFee: params.BaseFeeBps,
		LastDir:    Flat,
	}
}

// Update advances the controller with a fresh stress reading and returns
// the resulting base_fee_bps.
func (c *Controller) Update(stress StressComponents, weights DomainWeights) uint16 {
	totalWeight := uint64(weights.WS) + uint64(weights.WT) + uint64(weights.WL)
	var composite float64
	if totalWeight > 0 {
		composite = float64(uint64(weights.WS)*stress.SpotStressBps+
			uint64(weights.WT)*stress.TimeStressBps+
			uint64(weights.WL)*stress.LeverageStressBps) / float64(totalWeight)
	}

	if !c.initialized {
		c.StressEwma = composite
		c.initialized = true
	} else {
		c.StressEwma = c.params.Alpha*composite + (1-c.params.Alpha)*c.StressEwma
	}

	deviation := c.StressEwma - c.params.Anchor
	if math.Abs(deviation) <= c.params.DeadZoneBps {
		c.InDeadZone = true
		return clampFee(c.CurrentFee, c.params)
	}
	c.InDeadZone = false

	direction := Up
	gain := c.params.GainUp
	if deviation < 0 {
		direction = Down
		gain = c.params.GainDown
	}

	target := float64(clampFee(c.params.BaseFeeBps+gain*deviation, c.params))

	if c.LastDir != Flat && direction != c.LastDir {
		target = blend(c.CurrentFee, target, c.params.ReversalDamping)
	}

	c.CurrentFee = target
	c.LastDir = direction

	return clampFee(c.CurrentFee, c.params)
}

func blend(from, to, weight float64) float64 {
	return from + (to-from)*weight
}

func clampFee(fee float64, params ControllerParams) uint16 {
	if fee < params.FeeFloorBps {
		fee = params.FeeFloorBps
	}
	if fee > params.FeeCeilingBps {
		fee = params.FeeCeilingBps
	}
	return uint16(fee)
}
