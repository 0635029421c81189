package core

import "errors"

// All engine errors are recoverable client-input failures: handlers map any
// of them to a 400 response. Internal inconsistencies are not modeled here;
// they are programming defects and surface as test failures.
var (
	ErrMalformedTimestamp       = errors.New("malformed timestamp")
	ErrMissingTimestamp         = errors.New("missing timestamp")
	ErrNonNumericField          = errors.New("non-numeric field")
	ErrAmountOutOfBounds        = errors.New("amount out of bounds")
	ErrInvalidWageOrLimit       = errors.New("invalid wage or investment limit")
	ErrInvalidPeriod            = errors.New("invalid period")
	ErrCrossYearAggregatePeriod = errors.New("aggregate period cannot span multiple years")
	ErrNegativeInflation        = errors.New("inflation cannot be negative")
	ErrInvalidScalarInput       = errors.New("invalid scalar input")
	ErrNoValidTransactions      = errors.New("no valid transactions available")
)
