package orderbook

import "errors"

var (
	errUnknownAction  = errors.New("orderbook: unknown action")
	errUnexpectedKind = errors.New("orderbook: update with unexpected kind")
)
