package errors

import stderrors "errors"

var (
	ErrOracleUninitialized = stderrors.New("oracle: no observations recorded")
	ErrOracleStale         = stderrors.New("oracle: latest observation too old")
	ErrTwapWindowTooShort  = stderrors.New("oracle: requested twap window below minimum duration")
	ErrTwapWindowTooLong   = stderrors.New("oracle: requested twap window exceeds recorded history")
)
