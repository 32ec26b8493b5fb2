package domain

import "errors"

// Input-validation failures. They are deterministic: retrying with the same
// series always fails the same way.
var (
	ErrEmptySeries      = errors.New("empty series")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrDegenerateInput  = errors.New("degenerate input")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
