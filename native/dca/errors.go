package dca

import "errors"

var (
	// ErrNilState indicates the engine was used before its state backend was wired.
	ErrNilState = errors.New("dca: state not configured")
	// ErrNilOracle indicates settlement was attempted without a price oracle.
	ErrNilOracle = errors.New("dca: oracle not configured")
	// ErrNilSwapper indicates settlement was attempted without an execution venue.
	ErrNilSwapper = errors.New("dca: swapper not configured")
	// ErrInvalidAmount indicates a zero or negative per-period amount.
	ErrInvalidAmount = errors.New("dca: amount per period must be positive")
	// ErrInvalidPeriodCount indicates a zero swap count.
	ErrInvalidPeriodCount = errors.New("dca: number of periods must be positive")
	// ErrSameAsset indicates the sell and buy assets are identical.
	ErrSameAsset = errors.New("dca: sell and buy assets must differ")
	// ErrInsufficientFunds indicates the caller cannot cover the order principal.
	ErrInsufficientFunds = errors.New("dca: insufficient funds")
	// ErrUnknownPair indicates no ledger exists for the supplied pair.
	ErrUnknownPair = errors.New("dca: unknown pair")
	// ErrInvalidPeriod indicates a settlement call out of strict period order.
	ErrInvalidPeriod = errors.New("dca: period must equal last settled period plus one")
	// ErrPeriodNotElapsed indicates an attempt to settle a future period.
	ErrPeriodNotElapsed = errors.New("dca: period has not elapsed")
	// ErrNothingToSettle indicates the pair has no active per-period amount.
	ErrNothingToSettle = errors.New("dca: nothing to settle")
	// ErrOracleFailure indicates the price source returned a degenerate quote.
	ErrOracleFailure = errors.New("dca: oracle failure")
	// ErrInsufficientReturn indicates the execution venue under-delivered.
	ErrInsufficientReturn = errors.New("dca: insufficient return from executor")
	// ErrOrderNotFound indicates the referenced order does not exist.
	ErrOrderNotFound = errors.New("dca: order not found")
	// ErrUnauthorized indicates an administrative call by a non-authority.
	ErrUnauthorized = errors.New("dca: unauthorized")
	// ErrFeeTooHigh indicates a fee update beyond the protocol maximum.
	ErrFeeTooHigh = errors.New("dca: fee exceeds maximum")
	// ErrCounterNotStarted indicates the monotonic counter has not produced a
	// full period yet, so no ledger can be anchored.
	ErrCounterNotStarted = errors.New("dca: period counter not started")
)
