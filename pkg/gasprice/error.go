package gasprice

import "errors"

var (
	ErrNoURL         = errors.New("gas oracle url is empty")
	ErrUnknownUnit   = errors.New("unknown gas price unit")
	ErrOracleStatus  = errors.New("gas oracle request failed")
	ErrNoFastestTier = errors.New("gas oracle returned no fastest tier")
)
