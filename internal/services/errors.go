package services

import "errors"

// ErrValidation wraps every malformed-input error so handlers can answer 400.
var ErrValidation = errors.New("validation failed")

var (
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key was already used with a different request")

	ErrInfluencerNotFound  = errors.New("influencer not found")
	ErrDuplicateInfluencer = errors.New("Handle or email already exists")
	ErrUnknownField        = errors.New("field cannot be updated")
	ErrInvalidField        = errors.New("invalid field value")
	ErrInfluencerLive      = errors.New("influencer token is already live")

	ErrPledgingClosed    = errors.New("influencer is not accepting pledges")
	ErrPledgeNotFound    = errors.New("active pledge not found")
	ErrWithdrawalClosed  = errors.New("pledges can no longer be withdrawn")
	ErrConcurrentUpdate  = errors.New("pledge changed concurrently, retry")
	ErrAlreadyApproved   = errors.New("influencer already approved")
	ErrThresholdNotMet   = errors.New("pledge threshold not met")
	ErrNotApproved       = errors.New("influencer is not approved")
	ErrAlreadyLaunched   = errors.New("influencer token already launched")
	ErrAlreadyRejected   = errors.New("influencer already rejected")
	ErrTokenNotFound     = errors.New("token not found for influencer")
	ErrLiquidityExists   = errors.New("liquidity pool already exists")
	ErrUnparseableResult = errors.New("could not determine pool address from script output")
	ErrLiquidityTimeout  = errors.New("liquidity script timed out")
	ErrLiquidityRunning  = errors.New("liquidity creation already in progress")

	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrTokenAddressInUse  = errors.New("token address already registered")

	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidStatus     = errors.New("invalid user status")
	ErrCannotDemoteAdmin = errors.New("refusing to demote an admin")
	ErrNoPledges         = errors.New("user has no pledges")
	ErrNotInfluencer     = errors.New("no influencer profile linked to user")
	ErrTokenDataNotFound = errors.New("token data not found")
)
