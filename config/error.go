package config

import "errors"

var (
	ErrMissingNetwork = errors.New("config: network.payment_token, api_url and stream_url are required")
	ErrBadAddress     = errors.New("config: invalid address")
)
