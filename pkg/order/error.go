package order

import "errors"

var (
	ErrMissingHash    = errors.New("order hash missing")
	ErrMissingField   = errors.New("required field missing")
	ErrMalformedField = errors.New("malformed field")
)
