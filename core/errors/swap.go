package errors

import stderrors "errors"

var (
	ErrZeroAmount            = stderrors.New("swap: zero input amount")
	ErrPriceLimitReached     = stderrors.New("swap: price limit reached before amount satisfied")
	ErrPriceLimitInvalid     = stderrors.New("swap: price limit outside valid bound for direction")
	ErrSlippageExceeded      = stderrors.New("swap: output below minimum / input above maximum")
	ErrTooManyTickArrays     = stderrors.New("swap: exceeded max tick arrays per swap")
	ErrTooManySteps          = stderrors.New("swap: exceeded max steps per swap")
	ErrNoLiquidity           = stderrors.New("swap: no liquidity available in range")
	ErrMarketPaused          = stderrors.New("swap: market paused")
)
