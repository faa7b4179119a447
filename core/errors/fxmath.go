package errors

import stderrors "errors"

var (
	ErrTickOutOfRange      = stderrors.New("fxmath: tick out of range")
	ErrSqrtPriceOutOfRange = stderrors.New("fxmath: sqrt price out of range")
	ErrOverflow            = stderrors.New("fxmath: checked arithmetic overflow")
	ErrDivisionByZero      = stderrors.New("fxmath: division by zero")
)
