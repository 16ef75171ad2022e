package domain

import "github.com/pkg/errors"

// Failure classes of a quoting cycle. None of them is fatal: the loop logs,
// returns to idle and retries on the next eligible tick.
var (
	// ErrDataUnavailable no price or not enough bars yet.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrCalculation malformed input or a numeric failure in one stage.
	ErrCalculation = errors.New("calculation error")
	// ErrExecution order submission or cancellation rejected by the venue.
	ErrExecution = errors.New("execution error")
)
