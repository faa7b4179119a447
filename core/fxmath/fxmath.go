// Package fxmath implements the Q64.64 fixed-point price math shared by the
// tick store and the swap stepper: tick<->sqrt-price conversion, delta
// amounts for a liquidity range, and the next-sqrt-price-from-input step.
package fxmath

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	fxerrors "github.com/fluxfield/clmm/core/errors"
)

// MinTick and MaxTick bound the supported price range, roughly ±443636
// ticks either side of price 1.0 — approximately 10^-19 to 10^19 in price
// terms, matching Uniswap-v3-class CLMMs.
const (
	MinTick int32 = -443636
	MaxTick int32 = 443636
)

// Q64 is the fixed-point scale: sqrt_price values represent sqrt(P) * 2^64.
var q64 = new(big.Int).Lsh(big.NewInt(1), 64)

// MinSqrtPrice and MaxSqrtPrice are the sqrt-price values at MinTick/MaxTick.
var (
	MinSqrtPrice *uint256.Int
	MaxSqrtPrice *uint256.Int
)

func init() {
	MinSqrtPrice = SqrtPriceFromTick(MinTick)
	MaxSqrtPrice = SqrtPriceFromTick(MaxTick)
}

// SqrtPriceFromTick returns floor(sqrt(1.0001^tick) * 2^64) as a Q64.64
// value. Ticks outside [MinTick, MaxTick] saturate to the corresponding
// bound rather than overflow — this is a deliberate divergence from a
// hard error, since callers (the stepper's target clamp) rely on being
// able to ask for an out-of-range tick and get back a usable bound.
func SqrtPriceFromTick(tick int32) *uint256.Int {
	if tick < MinTick {
		tick = MinTick
	}
	if tick > MaxTick {
		tick = MaxTick
	}

	// price = 1.0001^tick; sqrt_price = 1.0001^(tick/2) * 2^64.
	// Computed in float64 and rounded into the big integer domain; the
	// ULP-level error here is well within the ±1-tick round-trip
	// tolerance the stepper is built to tolerate.
	sqrtPrice := math.Pow(1.0001, float64(tick)/2.0)
	scaled := new(big.Float).Mul(big.NewFloat(sqrtPrice), new(big.Float).SetInt(q64))
	i, _ := scaled.Int(nil)
	if i.Sign() < 0 {
		i.SetInt64(0)
	}
	u, overflow := uint256.FromBig(i)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return u
}

// TickFromSqrtPrice returns the tick whose sqrt-price is closest to (and
// not greater than) the given Q64.64 value, via binary search over
// SqrtPriceFromTick. Accurate to within ±1 tick across the supported
// range; callers needing exactness at a known tick boundary should prefer
// tracking the tick alongside the price rather than re-deriving it here.
func TickFromSqrtPrice(sqrtPrice *uint256.Int) int32 {
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if SqrtPriceFromTick(mid).Cmp(sqrtPrice) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// MulShift64 computes floor(a * b / 2^64) using an arbitrary-precision
// (math/big) intermediate so the multiply itself never overflows; it
// panics with ErrOverflow if the shifted result does not fit in 256 bits.
func MulShift64(a, b *uint256.Int) *uint256.Int {
	// uint256 does not expose a 512-bit widening multiply; route through
	// math/big for the one operation that genuinely needs more than 256
	// bits of intermediate precision (two Q64.64 values can produce a
	// Q128.128 product), then re-check the result fits back in 256 bits.
	bigA := a.ToBig()
	bigB := b.ToBig()
	product256 := new(big.Int).Mul(bigA, bigB)
	product256.Rsh(product256, 64)
	result, overflow := uint256.FromBig(product256)
	if overflow {
		panic(fxerrors.ErrOverflow)
	}
	return result
}

// DivCeil64 computes ceil(a * 2^64 / b), used wherever the protocol must
// round in the pool's favor (input amounts, fee amounts).
func DivCeil64(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, fxerrors.ErrDivisionByZero
	}
	bigA := new(big.Int).Lsh(a.ToBig(), 64)
	bigB := b.ToBig()
	q, r := new(big.Int).QuoRem(bigA, bigB, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	result, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fxerrors.ErrOverflow
	}
	return result, nil
}

// AmountDelta0 returns the amount of token 0 required to move liquidity L
// between sqrtA and sqrtB (order-independent), rounded up or down per
// roundUp. This is Δ(1/sqrt_price) * L, i.e. L * (sqrtB - sqrtA) / (sqrtA * sqrtB).
func AmountDelta0(sqrtA, sqrtB *uint256.Int, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return nil, fxerrors.ErrDivisionByZero
	}
	numerator := new(big.Int).Mul(liquidity.ToBig(), new(big.Int).Lsh(new(big.Int).Sub(sqrtB.ToBig(), sqrtA.ToBig()), 64))
	denominator := new(big.Int).Mul(sqrtA.ToBig(), sqrtB.ToBig())
	q, r := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	result, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fxerrors.ErrOverflow
	}
	return result, nil
}

// AmountDelta1 returns the amount of token 1 required to move liquidity L
// between sqrtA and sqrtB (order-independent): L * (sqrtB - sqrtA) / 2^64.
func AmountDelta1(sqrtA, sqrtB *uint256.Int, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	numerator := new(big.Int).Mul(liquidity.ToBig(), new(big.Int).Sub(sqrtB.ToBig(), sqrtA.ToBig()))
	q, r := new(big.Int).QuoRem(numerator, q64, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	result, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fxerrors.ErrOverflow
	}
	return result, nil
}

// NextSqrtPriceFromInputA computes the new sqrt price after adding amountIn
// of token 0 to a pool with the given liquidity, rounding the resulting
// price up so the pool never gives up more than it received.
func NextSqrtPriceFromInputA(sqrtPrice *uint256.Int, liquidity *uint256.Int, amountIn *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return new(uint256.Int).Set(sqrtPrice), nil
	}
	liquidityShifted := new(big.Int).Lsh(liquidity.ToBig(), 64)
	product := new(big.Int).Mul(amountIn.ToBig(), sqrtPrice.ToBig())
	denominator := new(big.Int).Add(liquidityShifted, product)
	if denominator.Sign() <= 0 {
		return nil, fxerrors.ErrOverflow
	}
	numerator := new(big.Int).Mul(liquidityShifted, sqrtPrice.ToBig())
	q, r := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	result, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fxerrors.ErrOverflow
	}
	return result, nil
}

// NextSqrtPriceFromInputB computes the new sqrt price after adding amountIn
// of token 1 to a pool with the given liquidity, rounding the resulting
// price down for the same reason.
func NextSqrtPriceFromInputB(sqrtPrice *uint256.Int, liquidity *uint256.Int, amountIn *uint256.Int) (*uint256.Int, error) {
	quotient, err := DivFloor64(amountIn, liquidity)
	if err != nil {
		return nil, err
	}
	result := new(uint256.Int).Add(sqrtPrice, quotient)
	return result, nil
}

// DivFloor64 computes floor(a * 2^64 / b).
func DivFloor64(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, fxerrors.ErrDivisionByZero
	}
	bigA := new(big.Int).Lsh(a.ToBig(), 64)
	q := new(big.Int).Quo(bigA, b.ToBig())
	result, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fxerrors.ErrOverflow
	}
	return result, nil
}
