package errors

import stderrors "errors"

var (
	ErrTickNotAligned    = stderrors.New("ticks: tick not aligned to spacing")
	ErrTickArrayNotFound = stderrors.New("ticks: tick array not loaded")
	ErrTickArrayFull     = stderrors.New("ticks: tick array has no free slots")
	ErrLiquidityUnderflow = stderrors.New("ticks: liquidity underflow")
	ErrLiquidityOverflow  = stderrors.New("ticks: liquidity overflow")
)
