package ledger

import (
	"errors"

	"github.com/LeJamon/swapx/internal/core/amount"
)

var (
	// ErrInvalidAmount is returned when a positive amount is required.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientLiquidity is returned when a reserve or contribution
	// cannot cover the requested amount.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrSlippageExceeded is returned when a swap would pay out less than the
	// caller's minimum.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrOverflow and ErrUnderflow report checked-arithmetic failures.
	ErrOverflow  = amount.ErrOverflow
	ErrUnderflow = amount.ErrUnderflow

	// ErrOracleUnavailable is returned when the rate oracle fails or reports
	// a zero rate.
	ErrOracleUnavailable = errors.New("rate oracle unavailable")

	// ErrInvalidFee is returned by SetFeePercentage for values above 100.
	ErrInvalidFee = errors.New("fee percentage out of range")

	// ErrInvalidPair is returned when a swap names the same token on both sides.
	ErrInvalidPair = errors.New("token pair must name two distinct tokens")

	// ErrTreasury is returned when the protocol fee could not be forwarded.
	ErrTreasury = errors.New("treasury transfer failed")

	// ErrStore is returned when committed changes could not be persisted.
	ErrStore = errors.New("ledger store failure")

	// ErrPastSequence is returned when a request reuses an account sequence
	// that was already consumed.
	ErrPastSequence = errors.New("account sequence already used")

	// ErrFutureSequence is returned when a request skips ahead of the next
	// account sequence.
	ErrFutureSequence = errors.New("account sequence is ahead of the ledger")
)
