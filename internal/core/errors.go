package core

import "errors"

// Rejection reasons surfaced to API callers. Handlers map these onto HTTP
// status codes; anything not listed here is an internal error.
var (
	ErrUnknownPosition             = errors.New("unknown position")
	ErrUnauthorized                = errors.New("caller not authorized")
	ErrInvalidState                = errors.New("operation not valid in current position state")
	ErrDeadlineNotReached          = errors.New("payout deadline has not passed")
	ErrDeadlineExpired             = errors.New("payout deadline has passed")
	ErrRefHashMismatch             = errors.New("reference hash does not match declared value")
	ErrStaleOracleData             = errors.New("oracle data is stale")
	ErrInsufficientCollateralRatio = errors.New("principal exceeds maximum borrow for collateral")
	ErrNotLiquidatable             = errors.New("position is below the liquidation threshold")
	ErrAlreadyWithdrawn            = errors.New("collateral already withdrawn")
	ErrInvalidArgument             = errors.New("invalid argument")
)
