package event

import "errors"

var (
	ErrMalformedEvent = errors.New("event: malformed provider event")
)
