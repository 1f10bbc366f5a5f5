package usage

import "errors"

var (
	ErrInvalidKind     = errors.New("usage: invalid counter kind")
	ErrInvalidAmount   = errors.New("usage: increment amount must be positive")
	ErrEmptyAccountID  = errors.New("usage: account id is required")
	ErrStoreFailure    = errors.New("usage: store operation failed")
	ErrCounterNotFound = errors.New("usage: counter not found")
)
