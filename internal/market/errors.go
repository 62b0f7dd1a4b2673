package market

import (
	"errors"
	"fmt"
)

// Sentinel errors for every non-validation failure the engines can report.
// The message text is the reason surfaced verbatim to the event submitter.
var (
	ErrMarketNotFound      = errors.New("market not found")
	ErrTradeClosed         = errors.New("trade already closed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShare   = errors.New("insufficient share")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrTimeNotArrived      = errors.New("time not arrived")
	ErrRevealOutOfDate     = errors.New("reveal out of date")
	ErrIncorrectState      = errors.New("incorrect market state")
	ErrInvalidState        = errors.New("invalid target state")
	ErrMarketFinished      = errors.New("market is already finished")
	ErrMarketNotFinished   = errors.New("market not finished")
	ErrAlreadySettled      = errors.New("already settled")
	ErrNoValidShares       = errors.New("no valid shares")
	ErrNoValidOutcome      = errors.New("no valid final outcome")
)

// ValidationError reports malformed or out-of-range creation input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
