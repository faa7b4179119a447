package errors

import stderrors "errors"

var (
	ErrRpcError                 = stderrors.New("keeper: rpc request failed")
	ErrMarketOracleStale        = stderrors.New("keeper: market oracle state is stale")
	ErrInsufficientBalance      = stderrors.New("keeper: authority balance below configured minimum")
	ErrCommitmentNotSignificant = stderrors.New("keeper: field commitment change below update threshold")
	ErrMarketUpdateSkipped      = stderrors.New("keeper: market still within its minimum update interval")
)
