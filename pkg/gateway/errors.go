package gateway

import "errors"

var (
	// ErrInvalidSignature means the delivery failed authentication: a
	// missing, malformed, expired, or mismatching signature header.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidConfiguration is returned when the gateway is constructed
	// without a signing secret.
	ErrInvalidConfiguration = errors.New("invalid gateway configuration")
)
