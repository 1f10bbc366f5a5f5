package ledger

import "errors"

var (
	ErrRecordNotFound   = errors.New("ledger: processing record not found")
	ErrAlreadyFinalized = errors.New("ledger: record already finalized with a different outcome")
	ErrNotInFlight      = errors.New("ledger: record is not in flight")
	ErrEmptyEventID     = errors.New("ledger: event id is required")
	ErrStoreFailure     = errors.New("ledger: store operation failed")
)
