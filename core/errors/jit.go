package errors

import stderrors "errors"

var (
	ErrJitDisabled        = stderrors.New("jit: disabled for this market")
	ErrJitPaused          = stderrors.New("jit: market paused")
	ErrJitOracleUnready   = stderrors.New("jit: oracle not ready for anchor computation")
	ErrJitDeviationTooHigh = stderrors.New("jit: price deviation from gtwap exceeds bound")
	ErrJitCooldownActive  = stderrors.New("jit: heavy-usage cooldown still active")
	ErrJitSizeTooSmall    = stderrors.New("jit: swap notional below minimum for entry")
	ErrJitNoPlacement     = stderrors.New("jit: no viable contrarian placement for this swap")
	ErrJitAllowanceExhausted = stderrors.New("jit: safety envelope allowance exhausted")
	ErrJitCircuitBroken   = stderrors.New("jit: circuit breaker tripped")
)
