package errors

import stderrors "errors"

var (
	ErrMarketAlreadyInitialized = stderrors.New("market: already initialized")
	ErrMarketNotDeployed        = stderrors.New("market: initial liquidity not yet deployed")
	ErrMarketAlreadyDeployed    = stderrors.New("market: initial liquidity already deployed")
	ErrDeploymentFailed         = stderrors.New("market: initial liquidity deployment failed")
	ErrInvalidFeeTier           = stderrors.New("market: invalid fee tier in basis points")
	ErrInvalidTickSpacing       = stderrors.New("market: invalid tick spacing")
	ErrReentrantAccess          = stderrors.New("market: reentrant access to market state")
	ErrStaleFieldCommitment     = stderrors.New("market: field commitment older than max staleness")
	ErrSequenceOutOfOrder       = stderrors.New("market: field commitment sequence out of order")
	ErrPositionNotFound         = stderrors.New("market: position not found")
	ErrUnauthorized             = stderrors.New("market: caller not authorized for this operation")
)
